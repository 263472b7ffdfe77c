// Package routeplan is a placeholder planner. It validates the request and
// returns plausible numbers seeded from the request; no routing happens.
package routeplan

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"

	"pdo/internal/model"
	"pdo/internal/risk"
)

var ErrSameCity = errors.New("source and destination cannot be the same")

type Vehicle string

const (
	VehicleVan          Vehicle = "Van"
	VehicleTruck        Vehicle = "Truck"
	VehicleRefrigerated Vehicle = "Refrigerated"
	VehicleBike         Vehicle = "Bike"
)

var Vehicles = []Vehicle{VehicleVan, VehicleTruck, VehicleRefrigerated, VehicleBike}

type Goal string

const (
	GoalCost           Goal = "Cost"
	GoalTime           Goal = "Time"
	GoalSustainability Goal = "Sustainability"
	GoalBalanced       Goal = "Balanced"
)

var Goals = []Goal{GoalCost, GoalTime, GoalSustainability, GoalBalanced}

const (
	MinCargoValue = 100
	MaxCargoValue = 100000
)

// Hub is the city alternative routes pass through.
const Hub = model.CityHyderabad

type Request struct {
	From       model.City     `json:"from"`
	To         model.City     `json:"to"`
	Vehicle    Vehicle        `json:"vehicle"`
	Priority   model.Priority `json:"priority"`
	CargoValue float64        `json:"cargoValue"`
	Weather    model.Weather  `json:"weather"`
	Optimize   Goal           `json:"optimize"`
}

func (r Request) Validate() error {
	if _, err := model.ParseWarehouse(string(r.From)); err != nil {
		return err
	}
	if _, err := model.ParseCity(string(r.To)); err != nil {
		return err
	}
	if r.From == r.To {
		return ErrSameCity
	}
	if _, err := model.ParsePriority(string(r.Priority)); err != nil {
		return err
	}
	if _, err := model.ParseForecastWeather(string(r.Weather)); err != nil {
		return err
	}
	if !contains(Vehicles, r.Vehicle) {
		return fmt.Errorf("%w: vehicle %q", model.ErrInvalidValue, r.Vehicle)
	}
	if !contains(Goals, r.Optimize) {
		return fmt.Errorf("%w: optimize %q", model.ErrInvalidValue, r.Optimize)
	}
	if r.CargoValue < MinCargoValue || r.CargoValue > MaxCargoValue {
		return fmt.Errorf("%w: cargo value %.2f outside [%d, %d]",
			model.ErrInvalidValue, r.CargoValue, MinCargoValue, MaxCargoValue)
	}
	return nil
}

// Plan is the planner's answer.
type Plan struct {
	From        model.City    `json:"from"`
	To          model.City    `json:"to"`
	DistanceKM  int           `json:"distanceKm"`
	Hours       int           `json:"hours"`
	Cost        int           `json:"cost"`
	CO2Kg       int           `json:"co2Kg"`
	Carrier     model.Carrier `json:"carrier"`
	Departure   string        `json:"departure"`
	Alternative string        `json:"alternative,omitempty"`
	Risk        risk.Level    `json:"risk"`
}

// RiskForDistance labels a lane: under 500 km Low, under 800 km Medium.
func RiskForDistance(km int) risk.Level {
	switch {
	case km < 500:
		return risk.LevelLow
	case km < 800:
		return risk.LevelMedium
	default:
		return risk.LevelHigh
	}
}

var suggestedCarriers = []model.Carrier{"Carrier A", "Carrier B", "Carrier C"}

type Planner struct{}

func (Planner) Plan(req Request) (Plan, error) {
	if err := req.Validate(); err != nil {
		return Plan{}, err
	}
	rng := rand.New(rand.NewSource(seedFor(req)))
	p := Plan{
		From:       req.From,
		To:         req.To,
		DistanceKM: 100 + rng.Intn(900),
		Hours:      2 + rng.Intn(22),
		Cost:       500 + rng.Intn(4500),
		CO2Kg:      50 + rng.Intn(450),
		Carrier:    suggestedCarriers[rng.Intn(len(suggestedCarriers))],
		Departure:  "Tomorrow 08:00",
	}
	p.Risk = RiskForDistance(p.DistanceKM)
	if req.To != Hub {
		p.Alternative = fmt.Sprintf("%s → %s → %s (adds 2 hours, saves 15%% cost)", req.From, Hub, req.To)
	}
	return p, nil
}

func seedFor(r Request) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%s|%.2f|%s|%s", r.From, r.To, r.Vehicle, r.Priority, r.CargoValue, r.Weather, r.Optimize)
	return int64(h.Sum64())
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
