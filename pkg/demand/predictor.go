package demand

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"fleetsim/pkg/types"
)

var routeMultipliers = map[int]float64{
	1: 1.2,
	2: 1.5,
	3: 1.0,
	4: 0.8,
	5: 1.1,
}

// IsPeakHour reports whether hour falls in the morning (7-9) or evening
// (17-19) rush, inclusive.
func IsPeakHour(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19)
}

// BaseDemand is the noiseless ridership curve for a route at an hour of day.
func BaseDemand(hour, routeID int) float64 {
	var base float64
	switch {
	case IsPeakHour(hour):
		base = 60
	case hour >= 10 && hour <= 16:
		base = 35
	case hour >= 20 && hour <= 22:
		base = 25
	default:
		base = 10
	}

	multiplier, ok := routeMultipliers[routeID]
	if !ok {
		multiplier = 1.0
	}
	return base * multiplier
}

// Accuracy is 1 - |predicted-actual|/actual floored at zero, or 0 when there
// was no actual ridership.
func Accuracy(predicted, actual int) float64 {
	if actual <= 0 {
		return 0
	}
	acc := 1 - math.Abs(float64(predicted-actual))/float64(actual)
	if acc < 0 {
		return 0
	}
	return acc
}

// HourStart returns the start of the wall-clock hour containing t in t's
// location. Unlike Truncate it honours half-hour zone offsets such as IST.
func HourStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

type Config struct {
	HorizonHours int
	Freshness    time.Duration
	Retention    time.Duration
}

func DefaultConfig() Config {
	return Config{
		HorizonHours: 6,
		Freshness:    5 * time.Minute,
		Retention:    24 * time.Hour,
	}
}

type key struct {
	routeID int
	hour    int
}

// Predictor appends synthetic forecasts. Records are immutable; a newer record
// for the same (route, hour) supersedes older ones. It is not safe for
// concurrent use.
type Predictor struct {
	config      Config
	rng         *rand.Rand
	predictions []types.PredictionData
}

func NewPredictor(config Config, rng *rand.Rand) *Predictor {
	if config.HorizonHours <= 0 {
		config.HorizonHours = DefaultConfig().HorizonHours
	}
	return &Predictor{config: config, rng: rng}
}

// Update forecasts the next HorizonHours hours for every route, skipping keys
// that already have a fresh prediction. It returns how many were added.
func (p *Predictor) Update(now time.Time, routeIDs []int) int {
	fresh := make(map[key]bool)
	cutoff := now.Add(-p.config.Freshness)
	for _, pd := range p.predictions {
		if !pd.Timestamp.Before(cutoff) {
			fresh[key{pd.RouteID, pd.Hour}] = true
		}
	}

	hourStart := HourStart(now)
	added := 0
	for i := 0; i < p.config.HorizonHours; i++ {
		target := hourStart.Add(time.Duration(i) * time.Hour)
		hour := target.Hour()

		for _, routeID := range routeIDs {
			if fresh[key{routeID, hour}] {
				continue
			}

			base := BaseDemand(hour, routeID)
			events := 1.0
			weather := p.rng.Float64()
			if p.rng.Float64() < 0.1 {
				events = 1.5
			}

			p.predictions = append(p.predictions, types.PredictionData{
				RouteID:            routeID,
				Hour:               hour,
				PredictedRidership: int(math.Floor(base * (1 + p.rng.Float64()*0.3))),
				Confidence:         0.7 + p.rng.Float64()*0.3,
				Timestamp:          now,
				ForecastFor:        target,
				Factors: types.PredictionFactors{
					Weather:           weather,
					DayOfWeek:         int(target.Weekday()),
					HistoricalAverage: base,
					Events:            events,
				},
			})
			added++
		}
	}

	p.prune(now)
	return added
}

func (p *Predictor) prune(now time.Time) {
	if p.config.Retention <= 0 {
		return
	}
	cutoff := now.Add(-p.config.Retention)
	kept := p.predictions[:0]
	for _, pd := range p.predictions {
		if !pd.Timestamp.Before(cutoff) {
			kept = append(kept, pd)
		}
	}
	p.predictions = kept
}

// Predictions returns every retained record in generation order.
func (p *Predictor) Predictions() []types.PredictionData {
	return append([]types.PredictionData(nil), p.predictions...)
}

// Latest returns the newest prediction per route for the given hour, ordered
// by route id.
func (p *Predictor) Latest(hour int) []types.PredictionData {
	latest := make(map[int]types.PredictionData)
	for _, pd := range p.predictions {
		if pd.Hour != hour {
			continue
		}
		if cur, ok := latest[pd.RouteID]; !ok || !pd.Timestamp.Before(cur.Timestamp) {
			latest[pd.RouteID] = pd
		}
	}

	out := make([]types.PredictionData, 0, len(latest))
	for _, pd := range latest {
		out = append(out, pd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteID < out[j].RouteID })
	return out
}

func (p *Predictor) Reset() {
	p.predictions = nil
}
