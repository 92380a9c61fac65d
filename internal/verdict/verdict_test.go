package verdict

import (
	"math"
	"testing"
	"time"
)

func TestCosineKnownValues(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"zero norm left", []float64{0, 0}, []float64{1, 1}, 0},
		{"zero norm right", []float64{1, 1}, []float64{0, 0}, 0},
		{"dimension mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Cosine(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Cosine = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCosineScaleInvariant(t *testing.T) {
	a := []float64{0.3, -0.7, 0.2, 0.9}
	b := []float64{0.1, 0.4, -0.5, 0.8}
	scaled := make([]float64, len(a))
	for i, v := range a {
		scaled[i] = v * 12.5
	}
	if diff := math.Abs(Cosine(a, b) - Cosine(scaled, b)); diff > 1e-9 {
		t.Fatalf("cosine changed under scaling by %v", diff)
	}
}

func TestClassifyTieFavorsNatural(t *testing.T) {
	if got := Classify(0.5, 0.5); got != SegmentNatural {
		t.Fatalf("tie classified as %q, want %q", got, SegmentNatural)
	}
	if got := Classify(0.89, 0.85); got != SegmentReading {
		t.Fatalf("Classify(0.89, 0.85) = %q, want %q", got, SegmentReading)
	}
	if got := Classify(0.65, 0.91); got != SegmentNatural {
		t.Fatalf("Classify(0.65, 0.91) = %q, want %q", got, SegmentNatural)
	}
}

func TestAggregateSingleReadingSegmentFlags(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	segments := []SegmentResult{
		Score(1, []float64{1, 0}, []float64{0.9, 0.1}, []float64{0.5, 0.5}, now),
		{SegmentNo: 2, ReadingCosine: 0.65, NaturalCosine: 0.91, Verdict: SegmentNatural},
		{SegmentNo: 3, ReadingCosine: 0.50, NaturalCosine: 0.50, Verdict: SegmentNatural},
	}
	if segments[0].Verdict != SegmentReading {
		t.Fatalf("first segment verdict %q, want %q", segments[0].Verdict, SegmentReading)
	}

	result := Aggregate("intv-1", segments, 0, now)
	if result.FinalVerdict != FinalCheating {
		t.Fatalf("final verdict %q, want %q", result.FinalVerdict, FinalCheating)
	}
	if result.CheatingSegments != 1 || result.TotalSegments != 3 {
		t.Fatalf("counts %d/%d, want 1/3", result.CheatingSegments, result.TotalSegments)
	}
	if len(result.SegmentsDetails) != 3 || result.SegmentsDetails[0].SegmentNo != 1 {
		t.Fatal("segment details not carried through in order")
	}
}

func TestAggregateRatioThreshold(t *testing.T) {
	segments := []SegmentResult{
		{SegmentNo: 1, Verdict: SegmentReading},
		{SegmentNo: 2, Verdict: SegmentNatural},
		{SegmentNo: 3, Verdict: SegmentNatural},
		{SegmentNo: 4, Verdict: SegmentNatural},
	}
	now := time.Now()

	// 1 of 4 is exactly 0.25; the fraction must exceed the ratio.
	if got := Aggregate("intv-2", segments, 0.25, now).FinalVerdict; got != FinalNonCheating {
		t.Fatalf("at ratio 0.25 got %q, want %q", got, FinalNonCheating)
	}
	if got := Aggregate("intv-2", segments, 0.2, now).FinalVerdict; got != FinalCheating {
		t.Fatalf("at ratio 0.2 got %q, want %q", got, FinalCheating)
	}
}

func TestAggregateEmptySegments(t *testing.T) {
	result := Aggregate("intv-3", nil, 0, time.Now())
	if result.FinalVerdict != FinalNonCheating {
		t.Fatalf("empty interview verdict %q, want %q", result.FinalVerdict, FinalNonCheating)
	}
	if result.CheatingSegments != 0 || result.TotalSegments != 0 {
		t.Fatalf("counts %d/%d, want 0/0", result.CheatingSegments, result.TotalSegments)
	}
}

func TestAllNaturalIsNonCheating(t *testing.T) {
	segments := []SegmentResult{
		{SegmentNo: 1, Verdict: SegmentNatural},
		{SegmentNo: 2, Verdict: SegmentNatural},
	}
	if got := Aggregate("intv-4", segments, 0, time.Now()).FinalVerdict; got != FinalNonCheating {
		t.Fatalf("all-natural verdict %q, want %q", got, FinalNonCheating)
	}
}
