package routeplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdo/internal/model"
	"pdo/internal/risk"
)

func request() Request {
	return Request{
		From:       model.CityMumbai,
		To:         model.CityPune,
		Vehicle:    VehicleTruck,
		Priority:   model.PriorityExpress,
		CargoValue: 5000,
		Weather:    model.WeatherNone,
		Optimize:   GoalBalanced,
	}
}

func TestPlan_Deterministic(t *testing.T) {
	p1, err := Planner{}.Plan(request())
	require.NoError(t, err)
	p2, err := Planner{}.Plan(request())
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	assert.GreaterOrEqual(t, p1.DistanceKM, 100)
	assert.Less(t, p1.DistanceKM, 1000)
	assert.GreaterOrEqual(t, p1.Hours, 2)
	assert.Less(t, p1.Hours, 24)
	assert.GreaterOrEqual(t, p1.Cost, 500)
	assert.GreaterOrEqual(t, p1.CO2Kg, 50)
	assert.Contains(t, suggestedCarriers, p1.Carrier)
	assert.Equal(t, RiskForDistance(p1.DistanceKM), p1.Risk)
	assert.Contains(t, p1.Alternative, "Hyderabad")
}

func TestPlan_AcceptsClearWeather(t *testing.T) {
	req := request()
	req.Weather = "Clear"
	p, err := Planner{}.Plan(req)
	require.NoError(t, err)
	assert.Equal(t, RiskForDistance(p.DistanceKM), p.Risk)
}

func TestPlan_NoAlternativeIntoHub(t *testing.T) {
	req := request()
	req.To = model.CityHyderabad
	p, err := Planner{}.Plan(req)
	require.NoError(t, err)
	assert.Empty(t, p.Alternative)
}

func TestPlan_Validation(t *testing.T) {
	same := request()
	same.To = same.From
	_, err := Planner{}.Plan(same)
	assert.ErrorIs(t, err, ErrSameCity)

	tests := map[string]func(*Request){
		"origin not a warehouse": func(r *Request) { r.From = model.CityPune; r.To = model.CityDelhi },
		"unknown destination":    func(r *Request) { r.To = "Atlantis" },
		"unknown vehicle":        func(r *Request) { r.Vehicle = "Drone" },
		"unknown goal":           func(r *Request) { r.Optimize = "Speed" },
		"cargo too small":        func(r *Request) { r.CargoValue = 99 },
		"cargo too large":        func(r *Request) { r.CargoValue = 100001 },
		"unknown weather":        func(r *Request) { r.Weather = "Hail" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			r := request()
			mutate(&r)
			_, err := Planner{}.Plan(r)
			assert.ErrorIs(t, err, model.ErrInvalidValue)
		})
	}
}

func TestRiskForDistance(t *testing.T) {
	assert.Equal(t, risk.LevelLow, RiskForDistance(499))
	assert.Equal(t, risk.LevelMedium, RiskForDistance(500))
	assert.Equal(t, risk.LevelMedium, RiskForDistance(799))
	assert.Equal(t, risk.LevelHigh, RiskForDistance(800))
}
