package scoring

import (
	"testing"
	"time"
)

func TestEvaluateScenarios(t *testing.T) {
	tests := []struct {
		name        string
		in          Inputs
		wantScore   int
		wantSegment Segment
	}{
		{"saturates at 100", Inputs{67, 120, HealthExcellent, UrgencyHigh}, 100, SegmentPremium},
		{"young low budget", Inputs{55, 40, HealthAverage, UrgencyLow}, 55, SegmentStandard},
		{"senior below premium budget", Inputs{72, 60, HealthGood, UrgencyMedium}, 95, SegmentStandard},
		{"over 75 bonus", Inputs{80, 10, HealthPoor, UrgencyLow}, 65, SegmentStandard},
		{"age 60 boundary", Inputs{60, 80, HealthPoor, UrgencyLow}, 80, SegmentPremium},
		{"age 75 boundary", Inputs{75, 50, HealthPoor, UrgencyLow}, 80, SegmentStandard},
		{"budget 99.99", Inputs{40, 99.99, HealthPoor, UrgencyLow}, 60, SegmentStandard},
		{"premium needs age", Inputs{59, 500, HealthPoor, UrgencyLow}, 65, SegmentStandard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.in)
			if got.Score != tt.wantScore {
				t.Errorf("score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.Segment != tt.wantSegment {
				t.Errorf("segment = %s, want %s", got.Segment, tt.wantSegment)
			}
		})
	}
}

func TestScoreRangeAndMonotonicity(t *testing.T) {
	ages := []int{18, 59, 60, 75, 76, 99}
	budgets := []float64{1, 49.99, 50, 80, 99.99, 100, 400}
	healths := []HealthStatus{HealthPoor, HealthAverage, HealthGood, HealthExcellent}
	urgencies := []UrgencyLevel{UrgencyLow, UrgencyMedium, UrgencyHigh}

	for _, age := range ages {
		for bi, budget := range budgets {
			for hi, health := range healths {
				for ui, urgency := range urgencies {
					in := Inputs{age, budget, health, urgency}
					score := Score(in)
					if score < 50 || score > 100 {
						t.Fatalf("score %d out of range for %+v", score, in)
					}
					if bi > 0 {
						lower := in
						lower.MonthlyBudget = budgets[bi-1]
						if Score(lower) > score {
							t.Fatalf("budget not monotonic at %+v", in)
						}
					}
					if hi > 0 {
						lower := in
						lower.HealthStatus = healths[hi-1]
						if Score(lower) > score {
							t.Fatalf("health not monotonic at %+v", in)
						}
					}
					if ui > 0 {
						lower := in
						lower.UrgencyLevel = urgencies[ui-1]
						if Score(lower) > score {
							t.Fatalf("urgency not monotonic at %+v", in)
						}
					}
					if SegmentFor(age, budget) == SegmentPremium && (budget < 80 || age < 60) {
						t.Fatalf("premium without qualifying age and budget: %+v", in)
					}
				}
			}
		}
	}
}

func TestAgeAt(t *testing.T) {
	birth := time.Date(1955, time.June, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC), 69},
		{time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC), 70},
		{time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), 70},
		{time.Date(1950, time.January, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		if got := AgeAt(birth, tt.now); got != tt.want {
			t.Errorf("AgeAt(%s) = %d, want %d", tt.now.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if _, err := ParseHealthStatus("excellent"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseHealthStatus("bonne"); err == nil {
		t.Fatal("expected unknown health status to fail")
	}
	if _, err := ParseUrgencyLevel("high"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseUrgencyLevel("urgent"); err == nil {
		t.Fatal("expected unknown urgency level to fail")
	}
}
