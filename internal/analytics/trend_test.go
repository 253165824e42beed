package analytics

import (
	"math"
	"testing"

	"tally/internal/core"
)

func TestClassifyChange(t *testing.T) {
	tests := []struct {
		name       string
		current    int64
		previous   int64
		wantChange float64
		wantTrend  TrendDirection
	}{
		{name: "inside dead band up", current: 10400, previous: 10000, wantChange: 4, wantTrend: TrendStable},
		{name: "above dead band", current: 10600, previous: 10000, wantChange: 6, wantTrend: TrendUp},
		{name: "below dead band", current: 9400, previous: 10000, wantChange: -6, wantTrend: TrendDown},
		{name: "inside dead band down", current: 9600, previous: 10000, wantChange: -4, wantTrend: TrendStable},
		{name: "exactly at band edge", current: 10500, previous: 10000, wantChange: 5, wantTrend: TrendUp},
		{name: "no change", current: 10000, previous: 10000, wantChange: 0, wantTrend: TrendStable},
		{name: "previous zero with spend", current: 5000, previous: 0, wantChange: 100, wantTrend: TrendUp},
		{name: "previous zero without spend", current: 0, previous: 0, wantChange: 0, wantTrend: TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, trend := classifyChange(tt.current, tt.previous)
			if math.Abs(change-tt.wantChange) > 1e-9 {
				t.Errorf("change = %f, want %f", change, tt.wantChange)
			}
			if trend != tt.wantTrend {
				t.Errorf("trend = %s, want %s", trend, tt.wantTrend)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	movements := []core.Movement{
		mov("cat-1", 10000, 2024, 2, 10),
		mov("cat-1", 10400, 2024, 3, 5),
	}

	got, err := Compare(movements, "2024-03", testCategories())
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if got.Current.Total.Cents != 10400 || got.Previous.Total.Cents != 10000 {
		t.Errorf("totals = %d/%d", got.Current.Total.Cents, got.Previous.Total.Cents)
	}
	if got.Trend != TrendStable {
		t.Errorf("trend = %s, want stable (4%% is inside the dead band)", got.Trend)
	}

	// January comparison crosses the year boundary into December.
	if _, err := Compare(movements, "2024-01", testCategories()); err != nil {
		t.Errorf("Compare across year boundary: %v", err)
	}

	if _, err := Compare(movements, "bogus", testCategories()); err == nil {
		t.Error("Compare accepted a malformed month")
	}
}
