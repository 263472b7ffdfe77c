package stream

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"pdo/internal/analytics"
	"pdo/internal/model"
	"pdo/internal/pipeline"
	"pdo/internal/risk"
	"pdo/internal/state"
)

func joined(id int, p model.Priority, traffic float64) pipeline.JoinedRecord {
	return pipeline.JoinedRecord{
		Order: model.Order{
			OrderID: id, OrderDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Priority: p, Category: model.CategoryElectronics,
			Origin: model.CityMumbai, Destination: model.CityDelhi,
		},
		Delivery: &model.DeliveryOutcome{OrderID: id, Carrier: "Carrier A",
			PromisedHours: model.Ptr(24), ActualHours: model.Ptr(30), Cost: model.Ptr(100.0)},
		Route: &model.RouteInfo{OrderID: id, DistanceKM: model.Ptr(900.0),
			TrafficDelayHours: model.Ptr(traffic), Weather: model.WeatherRain},
	}
}

func TestDecode_RecomputesDerivedFields(t *testing.T) {
	rec := joined(7, model.PriorityExpress, 1)
	rec.Delayed = model.Ptr(false)
	b, _ := json.Marshal(rec)

	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Delayed == nil || !*got.Delayed || *got.DelayHours != 6 {
		t.Fatalf("delay not derived: %+v %+v", got.Delayed, got.DelayHours)
	}
	if got.DestCoord != model.Coordinates(model.CityDelhi) {
		t.Fatalf("coords not located: %+v", got.DestCoord)
	}

	if _, err := Decode([]byte(`{"orderId":0}`)); !errors.Is(err, model.ErrInvalidValue) {
		t.Fatalf("want ErrInvalidValue for id 0, got %v", err)
	}
	if _, err := Decode([]byte(`not json`)); !errors.Is(err, model.ErrInvalidValue) {
		t.Fatalf("want ErrInvalidValue for bad json, got %v", err)
	}
}

func TestProcess_ScoresAndIsIdempotent(t *testing.T) {
	old := NowUnix
	defer func() { NowUnix = old }()
	NowUnix = func() int64 { return 111 }

	st := state.NewInMemoryStore()
	p := NewProcessor(risk.NewScorer(risk.DefaultWeights()), st, 0.6, nil)

	// Express + Rain + 900km + Electronics = 0.8
	applied, out, _, err := p.Process(joined(1, model.PriorityExpress, 1), 1)
	if err != nil || !applied {
		t.Fatalf("first should apply: applied=%v err=%v", applied, err)
	}
	if out.Key != "1" || out.Score == nil || *out.Score != 0.8 || !out.Alert || out.UpdatedAt != 111 {
		t.Fatalf("unexpected out: %+v", out)
	}
	if out.Probability != 80 || out.Level != risk.LevelHigh {
		t.Fatalf("unexpected prediction: %+v", out)
	}

	// redelivery of the same offset leaves state alone but still yields the
	// assessment for re-production
	applied, again, _, err := p.Process(joined(1, model.PriorityExpress, 1), 1)
	if err != nil || applied {
		t.Fatalf("redelivery should not apply: applied=%v err=%v", applied, err)
	}
	if again.Key != out.Key || *again.Score != *out.Score || !again.Alert {
		t.Fatalf("redelivered output differs: %+v", again)
	}

	// Standard + Rain + 900km + Electronics = 0.5, below the alert threshold
	applied, out, _, err = p.Process(joined(2, model.PriorityStandard, 1), 2)
	if err != nil || !applied {
		t.Fatalf("second should apply: applied=%v err=%v", applied, err)
	}
	if out.Alert || out.Level != risk.LevelMedium {
		t.Fatalf("unexpected out: %+v", out)
	}

	k := analytics.Summarize(st)
	if k.TotalOrders != 2 || k.TotalCost != 200 {
		t.Fatalf("kpis: %+v", k)
	}
}

func TestProcess_UnscoredStillAggregates(t *testing.T) {
	st := state.NewInMemoryStore()
	p := NewProcessor(risk.NewScorer(risk.DefaultWeights()), st, 0.6, nil)
	rec := joined(3, model.PriorityEconomy, 0)
	rec.Route = nil
	applied, out, sr, err := p.Process(rec, 10)
	if err != nil || !applied {
		t.Fatalf("applied=%v err=%v", applied, err)
	}
	if out.Scored() || out.Alert || sr.Level != risk.LevelUnscored {
		t.Fatalf("want unscored, got %+v", out)
	}
	if a, ok := st.Get(analytics.Key(analytics.DimRisk, string(risk.LevelUnscored))); !ok || a.Count != 1 {
		t.Fatalf("unscored bucket: %+v ok=%v", a, ok)
	}
}
