// Package feeds holds placeholder live-data providers. Values are seeded by
// their inputs so repeated calls agree.
package feeds

import (
	"context"
	"hash/fnv"
	"math/rand"

	"pdo/internal/model"
)

// Feed supplies live traffic and weather. Stub is the only implementation.
type Feed interface {
	Traffic(ctx context.Context, origin, dest model.City) (float64, error)
	Forecast(ctx context.Context, loc model.City) (model.Weather, error)
}

// MaxTrafficHours bounds the stub traffic delay.
const MaxTrafficHours = 3.0

// forecasts are the stub outcomes; a clear sky counts as WeatherNone.
var forecasts = []model.Weather{model.WeatherNone, model.WeatherRain, model.WeatherStorm}

// Stub returns pseudo-random values. Salt varies the outcome, e.g. per day.
type Stub struct {
	Salt string
}

// Traffic returns a delay in [0, MaxTrafficHours).
func (s Stub) Traffic(_ context.Context, origin, dest model.City) (float64, error) {
	rng := rand.New(rand.NewSource(hashSeed("traffic", s.Salt, string(origin), string(dest))))
	return rng.Float64() * MaxTrafficHours, nil
}

func (s Stub) Forecast(_ context.Context, loc model.City) (model.Weather, error) {
	rng := rand.New(rand.NewSource(hashSeed("weather", s.Salt, string(loc))))
	return forecasts[rng.Intn(len(forecasts))], nil
}

func hashSeed(parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return int64(h.Sum64())
}
