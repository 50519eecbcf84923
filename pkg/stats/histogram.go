// Package stats provides per-request-kind latency histograms for the
// harness: one HdrHistogram per workload.Kind, bounded to the
// microsecond-to-minute scale a web request lives in.
package stats

import (
	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/lobsters-bench/harness/pkg/workload"
)

// Track from 1 microsecond to 60 seconds; 3 significant figures means ~1%
// precision or better, with headroom for a badly overloaded backend.
const (
	lowestTrackableUs  = 1
	highestTrackableUs = 60 * 1000 * 1000
	sigFigs            = 3
)

// Histogram wraps hdrhistogram.Histogram.
type Histogram struct {
	impl *hdrhistogram.Histogram
}

// NewHistogram allocates a histogram covering [1us, 60s] at 3 significant figures.
func NewHistogram() *Histogram {
	return &Histogram{impl: hdrhistogram.New(lowestTrackableUs, highestTrackableUs, sigFigs)}
}

// Record records a latency in microseconds. Negative values are dropped;
// out-of-range values are clamped rather than silently lost, since a clamped
// outlier is still evidence of an overloaded backend.
func (h *Histogram) Record(valUs int64) {
	if valUs < 0 {
		return
	}
	if valUs < lowestTrackableUs {
		valUs = lowestTrackableUs
	}
	if valUs > highestTrackableUs {
		valUs = highestTrackableUs
	}
	_ = h.impl.RecordValue(valUs)
}

// Merge folds other's recorded values into h.
func (h *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	h.impl.Merge(other.impl)
}

// ValueAtQuantile returns the value (in microseconds) at quantile q in [0,1].
func (h *Histogram) ValueAtQuantile(q float64) int64 {
	return h.impl.ValueAtQuantile(q * 100.0)
}

func (h *Histogram) Mean() float64     { return h.impl.Mean() }
func (h *Histogram) TotalCount() int64 { return h.impl.TotalCount() }
func (h *Histogram) Min() int64        { return h.impl.Min() }
func (h *Histogram) Max() int64        { return h.impl.Max() }
func (h *Histogram) StdDev() float64   { return h.impl.StdDev() }
func (h *Histogram) Reset()            { h.impl.Reset() }
func (h *Histogram) ByteSize() int     { return h.impl.ByteSize() }

// ByKind is a per-request-kind histogram table, keyed by the explicit
// workload.Kind discriminant rather than a reflection-derived identity.
type ByKind map[workload.Kind]*Histogram

// NewByKind allocates one Histogram per request kind.
func NewByKind() ByKind {
	m := make(ByKind, workload.NumKinds())
	for _, k := range workload.AllKinds() {
		m[k] = NewHistogram()
	}
	return m
}

// Merge folds src's per-kind histograms into dst in place, creating missing
// entries in dst as needed. Used to combine per-issuer histograms within one
// process; distributed runs merge wire summaries instead (see pkg/remote).
func (dst ByKind) Merge(src ByKind) {
	for k, h := range src {
		if dst[k] == nil {
			dst[k] = NewHistogram()
		}
		dst[k].Merge(h)
	}
}

// TotalCount sums TotalCount across every kind in the table.
func (dst ByKind) TotalCount() int64 {
	var total int64
	for _, h := range dst {
		total += h.TotalCount()
	}
	return total
}
