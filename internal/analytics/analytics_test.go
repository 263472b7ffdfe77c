package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdo/internal/model"
	"pdo/internal/pipeline"
	"pdo/internal/risk"
	"pdo/internal/state"
)

func dataset() model.Dataset {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	order := func(id int, p model.Priority, from, to model.City, day int) model.Order {
		return model.Locate(model.Order{OrderID: id, OrderDate: jan1.AddDate(0, 0, day), Priority: p,
			Category: model.CategoryBooks, Origin: from, Destination: to})
	}
	return model.Dataset{
		Orders: []model.Order{
			order(3, model.PriorityEconomy, model.CityDelhi, model.CityPune, 8),
			order(1, model.PriorityExpress, model.CityMumbai, model.CityPune, 0),
			order(2, model.PriorityStandard, model.CityMumbai, model.CityPune, 1),
			order(4, model.PriorityExpress, model.CityMumbai, model.CityJaipur, 9),
		},
		Deliveries: []model.DeliveryOutcome{
			{OrderID: 1, Carrier: "Carrier A", PromisedHours: model.Ptr(24), ActualHours: model.Ptr(48), Rating: model.Ptr(2), Cost: model.Ptr(100.0)},
			{OrderID: 2, Carrier: "Carrier A", PromisedHours: model.Ptr(24), ActualHours: model.Ptr(20), Rating: model.Ptr(5), Cost: model.Ptr(300.0)},
			{OrderID: 3, Carrier: "Carrier B", Rating: model.Ptr(4)},
		},
		Routes: []model.RouteInfo{
			{OrderID: 1, DistanceKM: model.Ptr(900.0), TrafficDelayHours: model.Ptr(3.0), Weather: model.WeatherStorm},
			{OrderID: 2, DistanceKM: model.Ptr(100.0), TrafficDelayHours: model.Ptr(0.0), Weather: model.WeatherNone},
		},
	}
}

func scored() []risk.ScoredRecord {
	recs := pipeline.Join(dataset())
	return risk.ScoreAll(recs, risk.NewScorer(risk.DefaultWeights()), nil)
}

func TestIngest_KPIs(t *testing.T) {
	st := state.NewInMemoryStore()
	_, err := Ingest(st, scored())
	require.NoError(t, err)

	k := Summarize(st)
	assert.Equal(t, int64(4), k.TotalOrders)
	require.NotNil(t, k.DelayRate)
	assert.InDelta(t, 0.5, *k.DelayRate, 1e-12)
	assert.InDelta(t, 0.35, *k.DelayRateDelta, 1e-12)
	require.NotNil(t, k.AvgRating)
	assert.InDelta(t, 11.0/3, *k.AvgRating, 1e-12)
	assert.InDelta(t, 11.0/3-3.5, *k.AvgRatingDelta, 1e-12)
	assert.Equal(t, 400.0, k.TotalCost)
}

func TestIngest_Idempotent(t *testing.T) {
	st := state.NewInMemoryStore()
	recs := scored()
	first, err := Ingest(st, recs)
	require.NoError(t, err)
	assert.Positive(t, first.Applied)
	assert.Zero(t, first.Skipped)

	again, err := Ingest(st, recs)
	require.NoError(t, err)
	assert.Zero(t, again.Applied)
	assert.Equal(t, first.Applied, again.Skipped)
	assert.Equal(t, int64(4), Summarize(st).TotalOrders)
}

func TestSummarize_Empty(t *testing.T) {
	k := Summarize(state.NewInMemoryStore())
	assert.Zero(t, k.TotalOrders)
	assert.Nil(t, k.DelayRate)
	assert.Nil(t, k.DelayRateDelta)
	assert.Nil(t, k.AvgRating)
}

func TestBreakdowns(t *testing.T) {
	st := state.NewInMemoryStore()
	_, err := Ingest(st, scored())
	require.NoError(t, err)

	carriers, err := Breakdown(st, DimCarrier)
	require.NoError(t, err)
	require.Len(t, carriers, 2)
	assert.Equal(t, "Carrier A", carriers[0].Value)
	assert.Equal(t, int64(2), carriers[0].Orders)
	assert.InDelta(t, 0.5, *carriers[0].DelayRate, 1e-12)
	assert.InDelta(t, 200.0, *carriers[0].AvgCost, 1e-12)
	assert.Nil(t, carriers[1].DelayRate, "no known outcome for Carrier B")
	assert.Nil(t, carriers[1].AvgCost)

	prios, err := Breakdown(st, DimPriority)
	require.NoError(t, err)
	require.Len(t, prios, 3)
	assert.Equal(t, []string{"Express", "Standard", "Economy"}, []string{prios[0].Value, prios[1].Value, prios[2].Value})
	assert.Equal(t, int64(2), prios[0].Orders)

	weeks, err := Breakdown(st, DimWeek)
	require.NoError(t, err)
	require.Len(t, weeks, 2)
	assert.Equal(t, "2024-W01", weeks[0].Value)
	assert.Equal(t, int64(2), weeks[0].Orders)
	assert.Equal(t, "2024-W02", weeks[1].Value)

	routes, err := Breakdown(st, DimRoute)
	require.NoError(t, err)
	require.Len(t, routes, 3)
	assert.Equal(t, RouteOf(model.CityMumbai, model.CityPune), routes[0].Value)
	assert.Equal(t, int64(2), routes[0].Orders)

	dests, err := Breakdown(st, DimDestination)
	require.NoError(t, err)
	require.Len(t, dests, 2)
	assert.Equal(t, "Jaipur", dests[0].Value)
	assert.Equal(t, model.Coordinates(model.CityJaipur), *dests[0].Coord)

	levels, err := Breakdown(st, DimRisk)
	require.NoError(t, err)
	got := map[string]int64{}
	for _, r := range levels {
		got[r.Value] = r.Orders
	}
	// order 1 fires priority+traffic+weather+distance, order 2 nothing, 3 and 4 have no route
	assert.Equal(t, map[string]int64{"High": 1, "Low": 1, "Unscored": 2}, got)
	assert.Equal(t, "Unscored", levels[len(levels)-1].Value)
}

func TestBreakdown_RatingHistogram(t *testing.T) {
	st := state.NewInMemoryStore()
	_, err := Ingest(st, scored())
	require.NoError(t, err)

	rows, err := Breakdown(st, DimRating)
	require.NoError(t, err)
	var values []string
	var counts []int64
	for _, r := range rows {
		values = append(values, r.Value)
		counts = append(counts, r.Orders)
	}
	// order 4 has no delivery and so no rating
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, values)
	assert.Equal(t, []int64{0, 1, 0, 1, 1}, counts)
	assert.Nil(t, rows[0].AvgRating)
	require.NotNil(t, rows[4].AvgRating)
	assert.Equal(t, 5.0, *rows[4].AvgRating)

	d, err := ParseDimension("rating")
	require.NoError(t, err)
	assert.Equal(t, DimRating, d)
}

func TestBreakdown_TopRoutesBounded(t *testing.T) {
	st := state.NewInMemoryStore()
	var recs []risk.ScoredRecord
	id := 0
	for _, from := range model.Warehouses {
		for _, to := range model.Cities {
			id++
			recs = append(recs, risk.ScoredRecord{JoinedRecord: pipeline.JoinedRecord{
				Order: model.Order{OrderID: id, Origin: from, Destination: to},
			}, Assessment: risk.Assessment{Level: risk.LevelUnscored}})
		}
	}
	_, err := Ingest(st, recs)
	require.NoError(t, err)

	routes, err := Breakdown(st, DimRoute)
	require.NoError(t, err)
	assert.Len(t, routes, TopRoutes)
}

func TestBuild_AllDimensions(t *testing.T) {
	st := state.NewInMemoryStore()
	_, err := Ingest(st, scored())
	require.NoError(t, err)

	rep, err := Build(st)
	require.NoError(t, err)
	assert.Len(t, rep.Breakdowns, len(Dimensions))
	assert.Equal(t, int64(4), rep.KPIs.TotalOrders)
}

func TestParseDimension(t *testing.T) {
	d, err := ParseDimension("carrier")
	require.NoError(t, err)
	assert.Equal(t, DimCarrier, d)

	_, err = ParseDimension("total")
	assert.ErrorIs(t, err, model.ErrInvalidValue)
}

func TestWeekOf(t *testing.T) {
	assert.Equal(t, "2024-W01", WeekOf(time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-W02", WeekOf(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2020-W53", WeekOf(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
}
