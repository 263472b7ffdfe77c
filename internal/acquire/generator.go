package acquire

import (
	"fmt"
	"math/rand"
	"time"

	"pdo/internal/model"
)

// Generator produces a reproducible simulated dataset. Equal generators
// always produce equal datasets.
type Generator struct {
	Seed       int64
	Orders     int
	Deliveries int
	Routes     int
	Start      time.Time
}

// DefaultGenerator matches the demo dataset: seed 42, 200 orders and
// outcomes/routes for the first 150.
func DefaultGenerator() Generator {
	return Generator{
		Seed:       42,
		Orders:     200,
		Deliveries: 150,
		Routes:     150,
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Key identifies the generator inputs for memoization.
func (g Generator) Key() string {
	return fmt.Sprintf("pdo:dataset:%d:%d:%d:%d:%d", g.Seed, g.Orders, g.Deliveries, g.Routes, g.Start.Unix())
}

// Generate builds the three tables. Order ids run 1..Orders; delivery and
// route ids run 1..M with M capped at Orders.
func (g Generator) Generate() model.Dataset {
	rng := rand.New(rand.NewSource(g.Seed))
	nOrders := max(0, g.Orders)
	nDeliveries := min(max(0, g.Deliveries), nOrders)
	nRoutes := min(max(0, g.Routes), nOrders)

	ds := model.Dataset{
		Orders:     make([]model.Order, 0, nOrders),
		Deliveries: make([]model.DeliveryOutcome, 0, nDeliveries),
		Routes:     make([]model.RouteInfo, 0, nRoutes),
	}
	for i := 0; i < nOrders; i++ {
		o := model.Order{
			OrderID:         i + 1,
			OrderDate:       g.Start.AddDate(0, 0, i),
			Segment:         pick(rng, model.Segments),
			Priority:        model.Priorities[weighted(rng, 0.3, 0.5, 0.2)],
			Category:        pick(rng, model.Categories),
			Value:           uniform(rng, 100, 10000),
			Origin:          pick(rng, model.Warehouses),
			Destination:     pick(rng, model.Cities),
			SpecialHandling: weighted(rng, 0.2, 0.8) == 0,
		}
		ds.Orders = append(ds.Orders, model.Locate(o))
	}
	for i := 0; i < nDeliveries; i++ {
		ds.Deliveries = append(ds.Deliveries, model.DeliveryOutcome{
			OrderID:       i + 1,
			Carrier:       pick(rng, model.Carriers),
			PromisedHours: model.Ptr(24 + rng.Intn(96)),
			ActualHours:   model.Ptr(12 + rng.Intn(132)),
			Status:        model.Statuses[weighted(rng, 0.7, 0.2, 0.08, 0.02)],
			QualityIssue:  model.QualityIssues[weighted(rng, 0.85, 0.05, 0.05, 0.05)],
			Rating:        model.Ptr(1 + rng.Intn(5)),
			Cost:          model.Ptr(uniform(rng, 50, 500)),
		})
	}
	for i := 0; i < nRoutes; i++ {
		ds.Routes = append(ds.Routes, model.RouteInfo{
			OrderID:           i + 1,
			DistanceKM:        model.Ptr(uniform(rng, 10, 1500)),
			FuelConsumption:   model.Ptr(uniform(rng, 5, 50)),
			TollCharges:       model.Ptr(uniform(rng, 0, 200)),
			TrafficDelayHours: model.Ptr(uniform(rng, 0, 5)),
			Weather:           pick(rng, model.Weathers),
		})
	}
	return ds
}

func pick[T any](rng *rand.Rand, xs []T) T { return xs[rng.Intn(len(xs))] }

func uniform(rng *rand.Rand, lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

// weighted returns an index drawn with the given probabilities.
func weighted(rng *rand.Rand, probs ...float64) int {
	x := rng.Float64()
	var acc float64
	for i, p := range probs {
		acc += p
		if x < acc {
			return i
		}
	}
	return len(probs) - 1
}
