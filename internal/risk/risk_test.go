package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdo/internal/model"
	"pdo/internal/pipeline"
)

func input(p model.Priority, traffic float64, w model.Weather, dist float64, c model.Category) Input {
	return Input{
		Priority:          p,
		TrafficDelayHours: &traffic,
		Weather:           w,
		DistanceKM:        &dist,
		Category:          c,
	}
}

func TestScore_Scenarios(t *testing.T) {
	s := NewScorer(DefaultWeights())

	tests := []struct {
		name  string
		in    Input
		score float64
		level Level
	}{
		{"all factors fire", input(model.PriorityExpress, 3.0, model.WeatherStorm, 600, model.CategoryElectronics), 1.0, LevelHigh},
		{"nothing fires", input(model.PriorityStandard, 1.0, model.WeatherNone, 200, model.CategoryBooks), 0, LevelLow},
		{"traffic only", input(model.PriorityStandard, 2.5, model.WeatherNone, 200, model.CategoryBooks), 0.20, LevelLow},
		{"traffic exactly 2 does not fire", input(model.PriorityStandard, 2.0, model.WeatherNone, 200, model.CategoryBooks), 0, LevelLow},
		{"distance exactly 500 does not fire", input(model.PriorityStandard, 0, model.WeatherNone, 500, model.CategoryBooks), 0, LevelLow},
		{"express alone sits on low edge", input(model.PriorityExpress, 0, model.WeatherNone, 10, model.CategoryBooks), 0.3, LevelLow},
		{"express plus traffic", input(model.PriorityExpress, 4, model.WeatherNone, 10, model.CategoryBooks), 0.5, LevelMedium},
		{"medium upper edge", input(model.PriorityExpress, 0, model.WeatherNone, 700, model.CategoryHealthcare), 0.6, LevelMedium},
		{"just above medium", input(model.PriorityStandard, 3, model.WeatherFog, 700, model.CategoryHealthcare), 0.7, LevelHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := s.Score(tt.in)
			require.True(t, a.Scored())
			assert.InDelta(t, tt.score, *a.Score, 1e-12)
			assert.Equal(t, tt.level, a.Level)
		})
	}
}

func TestScore_TriggeredFactorsInNameOrder(t *testing.T) {
	a := NewScorer(DefaultWeights()).Score(input(model.PriorityExpress, 3.0, model.WeatherStorm, 600, model.CategoryElectronics))
	assert.Equal(t, []Factor{FactorDistance, FactorPriority, FactorProduct, FactorTraffic, FactorWeather}, a.Triggered)
}

func TestScore_BoundedForAnyWeights(t *testing.T) {
	all := input(model.PriorityExpress, 3.0, model.WeatherStorm, 600, model.CategoryElectronics)
	weightSets := []Weights{
		{FactorPriority: 0.9, FactorTraffic: 0.9, FactorWeather: 5},
		{FactorPriority: -0.5},
		{FactorPriority: -1, FactorTraffic: 0.2},
		{FactorPriority: 1e9, FactorTraffic: -1e9, FactorWeather: -3},
		{FactorPriority: math.NaN()},
		{FactorPriority: math.Inf(1), FactorTraffic: math.Inf(-1)},
		{FactorPriority: math.Inf(1)},
		{},
		nil,
	}
	for _, w := range weightSets {
		a := NewScorer(w).Score(all)
		require.True(t, a.Scored())
		assert.GreaterOrEqual(t, *a.Score, 0.0)
		assert.LessOrEqual(t, *a.Score, 1.0)
	}

	assert.Equal(t, 1.0, *NewScorer(weightSets[0]).Score(all).Score)
	neg := NewScorer(weightSets[1]).Score(all)
	assert.Equal(t, 0.0, *neg.Score)
	assert.Equal(t, LevelLow, neg.Level)

	for _, w := range []Weights{{FactorPriority: math.NaN()}, {FactorPriority: math.Inf(1), FactorTraffic: math.Inf(-1)}} {
		a := NewScorer(w).Score(all)
		assert.Equal(t, 0.0, *a.Score)
		assert.Equal(t, LevelLow, a.Level)
	}
	assert.Equal(t, 1.0, *NewScorer(Weights{FactorPriority: math.Inf(1)}).Score(all).Score)
}

func TestScore_EmptyWeightsIsZeroLow(t *testing.T) {
	a := NewScorer(nil).Score(input(model.PriorityExpress, 3.0, model.WeatherStorm, 600, model.CategoryElectronics))
	require.True(t, a.Scored())
	assert.Equal(t, 0.0, *a.Score)
	assert.Equal(t, LevelLow, a.Level)
	assert.Empty(t, a.Triggered)
}

func TestLevelFor_Monotonic(t *testing.T) {
	cases := map[float64]Level{
		0.0:  LevelLow,
		0.1:  LevelLow,
		0.3:  LevelLow,
		0.31: LevelMedium,
		0.6:  LevelMedium,
		0.61: LevelHigh,
		1.0:  LevelHigh,
	}
	for score, want := range cases {
		assert.Equal(t, want, LevelFor(score), "score %v", score)
	}

	rank := map[Level]int{LevelLow: 0, LevelMedium: 1, LevelHigh: 2}
	prev := LevelLow
	for i := 0; i <= 1000; i++ {
		lvl := LevelFor(float64(i) / 1000)
		assert.GreaterOrEqual(t, rank[lvl], rank[prev])
		prev = lvl
	}
}

func TestScore_Deterministic(t *testing.T) {
	w := Weights{FactorPriority: 0.1, FactorTraffic: 0.2, FactorWeather: 0.3,
		FactorDistance: 0.07, FactorProduct: 0.011}
	in := input(model.PriorityExpress, 3.0, model.WeatherRain, 900, model.CategoryHealthcare)

	first := NewScorer(w).Score(in)
	for i := 0; i < 50; i++ {
		again := NewScorer(w).Score(in)
		assert.Equal(t, math.Float64bits(*first.Score), math.Float64bits(*again.Score))
		assert.Equal(t, first.Triggered, again.Triggered)
	}
}

func TestScore_UnscoredWhenInputsMissing(t *testing.T) {
	s := NewScorer(DefaultWeights())

	a := s.Score(Input{Priority: model.PriorityExpress, Category: model.CategoryBooks})
	assert.False(t, a.Scored())
	assert.Nil(t, a.Score)
	assert.Equal(t, LevelUnscored, a.Level)
	assert.ElementsMatch(t, []string{"traffic_delay_hours", "weather_impact", "distance_km"}, a.Missing)
	assert.Equal(t, []any{nil, nil}, a.Values())

	in := input(model.PriorityExpress, 3.0, model.WeatherStorm, 600, "")
	assert.Equal(t, []string{"product_category"}, s.Score(in).Missing)
}

func TestScore_ExtendedFactors(t *testing.T) {
	s := NewScorer(ExtendedWeights(0.1, 0.1))
	in := input(model.PriorityStandard, 0, model.WeatherNone, 10, model.CategoryBooks)

	a := s.Score(in)
	assert.Equal(t, 0.0, *a.Score, "extended inputs absent count as not firing")

	in.CarrierAvgDelay = model.Ptr(0.6)
	in.HourOfDay = model.Ptr(9)
	a = s.Score(in)
	assert.InDelta(t, 0.2, *a.Score, 1e-12)
	assert.Equal(t, []Factor{FactorCarrierHistory, FactorTimeOfDay}, a.Triggered)

	in.Priority = model.PriorityExpress
	a = s.Score(in)
	assert.InDelta(t, 0.5, *a.Score, 1e-12)
	assert.Equal(t, LevelMedium, a.Level)

	in.CarrierAvgDelay = model.Ptr(0.5)
	in.HourOfDay = model.Ptr(11)
	assert.InDelta(t, 0.3, *s.Score(in).Score, 1e-12)
}

func TestScore_CustomAndUnknownFactors(t *testing.T) {
	in := input(model.PriorityStandard, 0, model.WeatherNone, 10, model.CategoryBooks)

	unknown := NewScorer(Weights{"mystery": 0.5}).Score(in)
	assert.Equal(t, 0.0, *unknown.Score)

	fragile := NewScorer(Weights{"fragile": 0.7},
		WithPredicate("fragile", func(Input) bool { return true })).Score(in)
	assert.InDelta(t, 0.7, *fragile.Score, 1e-12)
	assert.Equal(t, LevelHigh, fragile.Level)
}

func TestNewScorer_CopiesWeights(t *testing.T) {
	w := DefaultWeights()
	s := NewScorer(w)
	w[FactorPriority] = 10
	assert.Equal(t, 0.30, s.Weights()[FactorPriority])
}

func TestImportance_SortedDescending(t *testing.T) {
	got := Importance(DefaultWeights())
	require.Len(t, got, 5)
	assert.Equal(t, FactorPriority, got[0].Factor)
	assert.Equal(t, FactorTraffic, got[1].Factor)
	assert.Equal(t, FactorWeather, got[2].Factor)
	assert.Equal(t, FactorDistance, got[3].Factor)
	assert.Equal(t, FactorProduct, got[4].Factor)
}

func TestCarrierHistoryAndInputFor(t *testing.T) {
	date := time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC)
	ds := model.Dataset{
		Orders: []model.Order{
			{OrderID: 1, OrderDate: date, Priority: model.PriorityExpress, Category: model.CategoryBooks},
			{OrderID: 2, OrderDate: date},
			{OrderID: 3, OrderDate: date},
		},
		Deliveries: []model.DeliveryOutcome{
			{OrderID: 1, Carrier: "Carrier A", PromisedHours: model.Ptr(10), ActualHours: model.Ptr(20)},
			{OrderID: 2, Carrier: "Carrier A", PromisedHours: model.Ptr(10), ActualHours: model.Ptr(5)},
			{OrderID: 3, Carrier: "Carrier B", PromisedHours: model.Ptr(10)},
		},
		Routes: []model.RouteInfo{
			{OrderID: 1, DistanceKM: model.Ptr(800.0), TrafficDelayHours: model.Ptr(1.0), Weather: model.WeatherNone},
		},
	}
	recs := pipeline.Join(ds)
	hist := CarrierHistoryFrom(recs)
	assert.Equal(t, CarrierHistory{"Carrier A": 0.5}, hist)

	in := InputFor(recs[0], hist)
	assert.Empty(t, in.Missing())
	assert.Equal(t, 0.5, *in.CarrierAvgDelay)
	assert.Equal(t, 17, *in.HourOfDay)

	scored := ScoreAll(recs, NewScorer(ExtendedWeights(0.2, 0.1)), hist)
	require.Len(t, scored, 3)
	assert.InDelta(t, 0.55, *scored[0].Score, 1e-12) // priority + distance + time_of_day
	assert.Equal(t, LevelMedium, scored[0].Level)
	assert.False(t, scored[1].Scored())
	assert.False(t, scored[2].Scored())
}

func TestPredict(t *testing.T) {
	s := NewScorer(DefaultWeights())

	p := Predict(s, input(model.PriorityExpress, 3.0, model.WeatherStorm, 600, model.CategoryElectronics))
	assert.Equal(t, 95.0, p.Probability)
	assert.Contains(t, p.Recommendation, "premium carrier")

	p = Predict(s, input(model.PriorityExpress, 3.0, model.WeatherNone, 100, model.CategoryBooks))
	assert.InDelta(t, 50.0, p.Probability, 1e-9)
	assert.Equal(t, "Monitor closely, consider alternative route", p.Recommendation)

	p = Predict(s, input(model.PriorityEconomy, 0, model.WeatherNone, 100, model.CategoryBooks))
	assert.Equal(t, 0.0, p.Probability)
	assert.Equal(t, "Proceed as planned", p.Recommendation)

	p = Predict(s, Input{})
	assert.False(t, p.Scored())
}

func TestTable_AppendsAssessmentColumns(t *testing.T) {
	recs := pipeline.Join(model.Dataset{
		Orders: []model.Order{{OrderID: 1, Priority: model.PriorityExpress, Category: model.CategoryBooks}, {OrderID: 2}},
		Routes: []model.RouteInfo{{OrderID: 1, DistanceKM: model.Ptr(100.0), TrafficDelayHours: model.Ptr(0.0), Weather: model.WeatherNone}},
	})
	tbl := Table(ScoreAll(recs, NewScorer(DefaultWeights()), nil))

	require.Len(t, tbl.Columns, len(pipeline.RecordColumns)+2)
	assert.Equal(t, "risk_level", tbl.Columns[len(tbl.Columns)-1])
	require.Len(t, tbl.Rows, 2)
	first := tbl.Rows[0]
	assert.Equal(t, 0.3, first[len(first)-2])
	assert.Equal(t, "Low", first[len(first)-1])
	second := tbl.Rows[1]
	assert.Nil(t, second[len(second)-1])
}

func TestParseWeights(t *testing.T) {
	w, err := ParseWeights(map[string]float64{"priority": 0.3, "carrier_history": 0.1, "weather": 0})
	require.NoError(t, err)
	assert.Equal(t, Weights{FactorPriority: 0.3, FactorCarrierHistory: 0.1}, w)

	_, err = ParseWeights(map[string]float64{"moon_phase": 0.1})
	require.ErrorIs(t, err, model.ErrInvalidValue)

	_, err = ParseWeights(map[string]float64{"traffic": math.Inf(1)})
	require.ErrorIs(t, err, model.ErrInvalidValue)
}
