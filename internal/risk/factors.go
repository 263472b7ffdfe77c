package risk

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"

	"pdo/internal/model"
)

// Factor names a boolean risk indicator.
type Factor string

const (
	FactorPriority       Factor = "priority"
	FactorTraffic        Factor = "traffic"
	FactorWeather        Factor = "weather"
	FactorDistance       Factor = "distance"
	FactorProduct        Factor = "product"
	FactorCarrierHistory Factor = "carrier_history"
	FactorTimeOfDay      Factor = "time_of_day"
)

// Weights maps factor names to their contribution when the indicator fires.
type Weights map[Factor]float64

// DefaultWeights is the five-factor set; it sums to 1.0.
func DefaultWeights() Weights {
	return Weights{
		FactorPriority: 0.30,
		FactorTraffic:  0.20,
		FactorWeather:  0.20,
		FactorDistance: 0.15,
		FactorProduct:  0.15,
	}
}

// ExtendedWeights adds carrier history and time of day to the default set.
func ExtendedWeights(carrierHistory, timeOfDay float64) Weights {
	w := DefaultWeights()
	w[FactorCarrierHistory] = carrierHistory
	w[FactorTimeOfDay] = timeOfDay
	return w
}

// Factors lists every factor with a builtin predicate.
var Factors = []Factor{
	FactorCarrierHistory, FactorDistance, FactorPriority, FactorProduct,
	FactorTimeOfDay, FactorTraffic, FactorWeather,
}

// ParseWeights converts a name→weight map read from configuration. Names
// must be builtin factors and weights finite; a zero weight disables a factor.
func ParseWeights(m map[string]float64) (Weights, error) {
	w := make(Weights, len(m))
	for _, name := range slices.Sorted(maps.Keys(m)) {
		v := m[name]
		f := Factor(name)
		if !slices.Contains(Factors, f) {
			return nil, fmt.Errorf("%w: unknown risk factor %q", model.ErrInvalidValue, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: weight for %s is not finite", model.ErrInvalidValue, name)
		}
		if v != 0 {
			w[f] = v
		}
	}
	return w, nil
}

// Input is what the predicates read. Empty enums and nil pointers mean the
// value is unknown.
type Input struct {
	Priority          model.Priority `json:"priority"`
	TrafficDelayHours *float64       `json:"trafficDelayHours"`
	Weather           model.Weather  `json:"weatherImpact"`
	DistanceKM        *float64       `json:"distanceKm"`
	Category          model.Category `json:"productCategory"`
	CarrierAvgDelay   *float64       `json:"carrierAvgDelay,omitempty"`
	HourOfDay         *int           `json:"hourOfDay,omitempty"`
}

// Missing lists the required fields absent from in.
func (in Input) Missing() []string {
	var out []string
	if in.Priority == "" {
		out = append(out, "priority")
	}
	if in.TrafficDelayHours == nil {
		out = append(out, "traffic_delay_hours")
	}
	if in.Weather == "" {
		out = append(out, "weather_impact")
	}
	if in.DistanceKM == nil {
		out = append(out, "distance_km")
	}
	if in.Category == "" {
		out = append(out, "product_category")
	}
	return out
}

// Predicate decides whether a factor fires for an input with all required
// fields present.
type Predicate func(Input) bool

var rushHours = []int{8, 9, 10, 17, 18}

func builtinPredicates() map[Factor]Predicate {
	return map[Factor]Predicate{
		FactorPriority: func(in Input) bool { return in.Priority == model.PriorityExpress },
		FactorTraffic:  func(in Input) bool { return *in.TrafficDelayHours > 2 },
		FactorWeather:  func(in Input) bool { return in.Weather != model.WeatherNone },
		FactorDistance: func(in Input) bool { return *in.DistanceKM > 500 },
		FactorProduct: func(in Input) bool {
			return in.Category == model.CategoryElectronics || in.Category == model.CategoryHealthcare
		},
		FactorCarrierHistory: func(in Input) bool {
			return in.CarrierAvgDelay != nil && *in.CarrierAvgDelay > 0.5
		},
		FactorTimeOfDay: func(in Input) bool {
			return in.HourOfDay != nil && slices.Contains(rushHours, *in.HourOfDay)
		},
	}
}

// FactorWeight is one entry of an importance ranking.
type FactorWeight struct {
	Factor Factor  `json:"factor"`
	Weight float64 `json:"importance"`
}

// Importance ranks weights from largest to smallest, ties by name.
func Importance(w Weights) []FactorWeight {
	out := make([]FactorWeight, 0, len(w))
	for f, v := range w {
		out = append(out, FactorWeight{Factor: f, Weight: v})
	}
	slices.SortFunc(out, func(a, b FactorWeight) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.Factor, b.Factor)
	})
	return out
}
