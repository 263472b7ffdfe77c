package acquire

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"pdo/internal/model"
)

// ErrAcquisition wraps every failure to read or validate a source.
var ErrAcquisition = errors.New("acquisition failed")

// Source yields the three base tables.
type Source interface {
	Name() string
	Load(ctx context.Context) (model.Dataset, error)
}

// NewSource selects a source by kind: generator, csv or sqlite. path is the
// CSV directory or the database file; gen and cache apply to generator only.
func NewSource(kind, path string, gen Generator, cache Cache, log *zap.Logger) (Source, error) {
	switch kind {
	case "generator", "":
		return NewGeneratorSource(gen, cache, log), nil
	case "csv":
		return CSVSource{Dir: path}, nil
	case "sqlite":
		return SQLiteSource{Path: path}, nil
	}
	return nil, fmt.Errorf("unknown data source %q", kind)
}

// Load reads src and validates the result. On failure it logs a warning and
// returns the fixture dataset together with the error, so callers can show a
// diagnostic and carry on with degraded data.
func Load(ctx context.Context, src Source, log *zap.Logger) (model.Dataset, error) {
	ds, err := src.Load(ctx)
	if err == nil {
		err = Validate(ds)
	}
	if err == nil {
		return ds, nil
	}
	if !errors.Is(err, ErrAcquisition) {
		err = fmt.Errorf("%w: %s: %w", ErrAcquisition, src.Name(), err)
	}
	log.Warn("acquisition failed, using fixture dataset",
		zap.String("source", src.Name()), zap.Error(err))
	return Fixture(), err
}

// Validate checks the join keys: positive unique order ids, at most one
// outcome and route per order, and no outcome or route for an unknown order.
func Validate(ds model.Dataset) error {
	orders := make(map[int]bool, len(ds.Orders))
	for _, o := range ds.Orders {
		if o.OrderID <= 0 {
			return fmt.Errorf("%w: order id %d is not positive", ErrAcquisition, o.OrderID)
		}
		if orders[o.OrderID] {
			return fmt.Errorf("%w: duplicate order id %d", ErrAcquisition, o.OrderID)
		}
		if o.Value < 0 || !finite(&o.Value) {
			return fmt.Errorf("%w: order %d has invalid value", ErrAcquisition, o.OrderID)
		}
		orders[o.OrderID] = true
	}

	seen := make(map[int]bool, len(ds.Deliveries))
	for _, d := range ds.Deliveries {
		if err := checkRef("delivery", d.OrderID, orders, seen); err != nil {
			return err
		}
		if !positive(d.PromisedHours) || !positive(d.ActualHours) {
			return fmt.Errorf("%w: delivery %d has non-positive duration", ErrAcquisition, d.OrderID)
		}
		if d.Rating != nil && (*d.Rating < 1 || *d.Rating > 5) {
			return fmt.Errorf("%w: delivery %d rating %d out of 1..5", ErrAcquisition, d.OrderID, *d.Rating)
		}
		if d.Cost != nil && (*d.Cost < 0 || !finite(d.Cost)) {
			return fmt.Errorf("%w: delivery %d has invalid cost", ErrAcquisition, d.OrderID)
		}
	}

	clear(seen)
	for _, r := range ds.Routes {
		if err := checkRef("route", r.OrderID, orders, seen); err != nil {
			return err
		}
		for name, v := range map[string]*float64{
			"distance_km":         r.DistanceKM,
			"fuel_consumption":    r.FuelConsumption,
			"toll_charges":        r.TollCharges,
			"traffic_delay_hours": r.TrafficDelayHours,
		} {
			if v != nil && (*v < 0 || !finite(v)) {
				return fmt.Errorf("%w: route %d has invalid %s", ErrAcquisition, r.OrderID, name)
			}
		}
	}
	return nil
}

// finite rejects NaN and ±Inf, which no JSON surface can encode.
func finite(v *float64) bool {
	return !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func checkRef(kind string, id int, orders, seen map[int]bool) error {
	if !orders[id] {
		return fmt.Errorf("%w: %s for unknown order %d", ErrAcquisition, kind, id)
	}
	if seen[id] {
		return fmt.Errorf("%w: duplicate %s for order %d", ErrAcquisition, kind, id)
	}
	seen[id] = true
	return nil
}

// positive treats a missing value as acceptable.
func positive(v *int) bool { return v == nil || *v > 0 }

// Fixture is the three-row fallback dataset. It has no routes, so none of its
// records can be scored.
func Fixture() model.Dataset {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orders := []model.Order{
		{OrderID: 1, OrderDate: day, Priority: model.PriorityExpress, Origin: model.CityMumbai, Destination: model.CityMumbai},
		{OrderID: 2, OrderDate: day.AddDate(0, 0, 1), Priority: model.PriorityStandard, Origin: model.CityDelhi, Destination: model.CityDelhi},
		{OrderID: 3, OrderDate: day.AddDate(0, 0, 2), Priority: model.PriorityEconomy, Origin: model.CityBangalore, Destination: model.CityBangalore},
	}
	for i := range orders {
		orders[i] = model.Locate(orders[i])
	}
	return model.Dataset{
		Orders: orders,
		Deliveries: []model.DeliveryOutcome{
			{OrderID: 1, PromisedHours: model.Ptr(48), ActualHours: model.Ptr(60), Rating: model.Ptr(4), Cost: model.Ptr(200.0)},
			{OrderID: 2, PromisedHours: model.Ptr(48), ActualHours: model.Ptr(40), Rating: model.Ptr(5), Cost: model.Ptr(150.0)},
			{OrderID: 3, PromisedHours: model.Ptr(72), ActualHours: model.Ptr(90), Rating: model.Ptr(3), Cost: model.Ptr(100.0)},
		},
	}
}
