package remote

import (
	"github.com/lobsters-bench/harness/pkg/stats"
)

func summarize(byKind stats.ByKind) map[string]Kind {
	out := make(map[string]Kind, len(byKind))
	for k, h := range byKind {
		if h.TotalCount() == 0 {
			continue
		}
		out[k.String()] = Kind{
			Count:  h.TotalCount(),
			P50Us:  h.ValueAtQuantile(0.50),
			P99Us:  h.ValueAtQuantile(0.99),
			MeanUs: h.Mean(),
		}
	}
	return out
}
