package demand

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseDemand(t *testing.T) {
	tests := []struct {
		name    string
		hour    int
		routeID int
		want    float64
	}{
		{"morning peak busiest route", 8, 2, 90},
		{"evening peak", 18, 1, 72},
		{"midday", 12, 3, 35},
		{"evening", 21, 4, 20},
		{"night", 2, 5, 11},
		{"unknown route defaults to 1.0", 8, 42, 60},
		{"peak boundary inclusive", 9, 3, 60},
		{"after peak", 10, 3, 35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, BaseDemand(tt.hour, tt.routeID), 1e-9)
		})
	}
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 1.0, Accuracy(40, 40))
	assert.InDelta(t, 0.75, Accuracy(30, 40), 1e-9)
	assert.InDelta(t, 0.75, Accuracy(50, 40), 1e-9)
	assert.Equal(t, 0.0, Accuracy(10, 0))
	assert.Equal(t, 0.0, Accuracy(200, 40))
}

func TestUpdate_CoversHorizonForEveryRoute(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 20, 0, 0, time.UTC)
	p := NewPredictor(DefaultConfig(), rand.New(rand.NewPCG(1, 2)))

	added := p.Update(now, []int{1, 2, 3})
	assert.Equal(t, 18, added)

	preds := p.Predictions()
	require.Len(t, preds, 18)

	hours := make(map[int]bool)
	for _, pd := range preds {
		hours[pd.Hour] = true
		base := BaseDemand(pd.Hour, pd.RouteID)
		assert.GreaterOrEqual(t, float64(pd.PredictedRidership), base-1)
		assert.LessOrEqual(t, float64(pd.PredictedRidership), base*1.3)
		assert.GreaterOrEqual(t, pd.Confidence, 0.7)
		assert.LessOrEqual(t, pd.Confidence, 1.0)
		assert.Equal(t, base, pd.Factors.HistoricalAverage)
		assert.Contains(t, []float64{1.0, 1.5}, pd.Factors.Events)
		assert.Equal(t, now, pd.Timestamp)
		assert.Equal(t, pd.Hour, pd.ForecastFor.Hour())
	}
	assert.Equal(t, map[int]bool{7: true, 8: true, 9: true, 10: true, 11: true, 12: true}, hours)
}

func TestUpdate_SkipsFreshKeys(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 20, 0, 0, time.UTC)
	p := NewPredictor(DefaultConfig(), rand.New(rand.NewPCG(1, 2)))

	p.Update(now, []int{1})
	assert.Zero(t, p.Update(now.Add(4*time.Minute), []int{1}))

	// after the freshness window every key is regenerated
	assert.Equal(t, 6, p.Update(now.Add(6*time.Minute), []int{1}))
	assert.Len(t, p.Predictions(), 12)
}

func TestLatest_PicksNewestPerRoute(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 20, 0, 0, time.UTC)
	p := NewPredictor(DefaultConfig(), rand.New(rand.NewPCG(7, 7)))

	p.Update(now, []int{2, 1})
	later := now.Add(10 * time.Minute)
	p.Update(later, []int{2, 1})

	latest := p.Latest(7)
	require.Len(t, latest, 2)
	assert.Equal(t, 1, latest[0].RouteID)
	assert.Equal(t, 2, latest[1].RouteID)
	for _, pd := range latest {
		assert.Equal(t, later, pd.Timestamp)
	}
}

func TestUpdate_PrunesOldRecords(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 20, 0, 0, time.UTC)
	p := NewPredictor(Config{HorizonHours: 1, Freshness: 5 * time.Minute, Retention: time.Hour}, rand.New(rand.NewPCG(3, 4)))

	p.Update(now, []int{1})
	p.Update(now.Add(2*time.Hour), []int{1})

	preds := p.Predictions()
	require.Len(t, preds, 1)
	assert.Equal(t, 9, preds[0].Hour)
}

func TestUpdate_Deterministic(t *testing.T) {
	now := time.Date(2024, 5, 6, 17, 0, 0, 0, time.UTC)
	a := NewPredictor(DefaultConfig(), rand.New(rand.NewPCG(9, 9)))
	b := NewPredictor(DefaultConfig(), rand.New(rand.NewPCG(9, 9)))

	a.Update(now, []int{1, 2, 3, 4, 5})
	b.Update(now, []int{1, 2, 3, 4, 5})
	assert.Equal(t, a.Predictions(), b.Predictions())
}
