package stats

import "testing"

func TestRecordAndQuantile(t *testing.T) {
	h := NewHistogram()
	for i := int64(1); i <= 1000; i++ {
		h.Record(i)
	}
	if h.TotalCount() != 1000 {
		t.Fatalf("TotalCount() = %d, want 1000", h.TotalCount())
	}
	p50 := h.ValueAtQuantile(0.5)
	if p50 < 450 || p50 > 550 {
		t.Errorf("ValueAtQuantile(0.5) = %d, want ~500", p50)
	}
}

func TestRecordClampsRange(t *testing.T) {
	h := NewHistogram()
	h.Record(-5)
	h.Record(0)
	h.Record(highestTrackableUs * 10)
	if h.TotalCount() != 2 {
		t.Fatalf("TotalCount() = %d, want 2 (negative dropped, others clamped)", h.TotalCount())
	}
}

func TestMerge(t *testing.T) {
	a := NewHistogram()
	b := NewHistogram()
	a.Record(10)
	b.Record(20)
	a.Merge(b)
	if a.TotalCount() != 2 {
		t.Fatalf("TotalCount() after merge = %d, want 2", a.TotalCount())
	}
}

func TestByKindMerge(t *testing.T) {
	a := NewByKind()
	b := NewByKind()
	a[0].Record(5)
	b[0].Record(6)
	b[1].Record(7)
	a.Merge(b)
	if a.TotalCount() != 3 {
		t.Fatalf("TotalCount() = %d, want 3", a.TotalCount())
	}
}
