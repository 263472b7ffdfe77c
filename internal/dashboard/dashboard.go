package dashboard

import (
	"fmt"
	"slices"

	"pdo/internal/analytics"
	"pdo/internal/model"
	"pdo/internal/pipeline"
	"pdo/internal/risk"
	"pdo/internal/state"
)

// DefaultLimit bounds the high-risk list when Request.Limit is zero.
const DefaultLimit = 5

// Raw is acquisition output: the dataset plus the failure that caused a
// fixture fallback, if any.
type Raw struct {
	Dataset    model.Dataset
	Diagnostic string
}

// FromLoad builds a Raw from acquire.Load results.
func FromLoad(ds model.Dataset, err error) Raw {
	r := Raw{Dataset: ds}
	if err != nil {
		r.Diagnostic = err.Error()
	}
	return r
}

// Request carries the per-call filters. A nil Weights scores with the default
// five-factor set.
type Request struct {
	Filter  pipeline.Filter
	Weights risk.Weights
	Limit   int
}

func (r Request) Validate() error {
	if err := r.Filter.Validate(); err != nil {
		return err
	}
	if r.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", model.ErrInvalidValue)
	}
	return nil
}

func (r Request) scorer() *risk.Scorer {
	if r.Weights == nil {
		return risk.NewScorer(risk.DefaultWeights())
	}
	return risk.NewScorer(r.Weights)
}

type LevelCount struct {
	Level risk.Level `json:"level"`
	Count int        `json:"count"`
}

type HighRiskOrder struct {
	OrderID     int           `json:"orderId"`
	Carrier     model.Carrier `json:"carrier,omitempty"`
	Origin      model.City    `json:"originWarehouse"`
	Destination model.City    `json:"destinationCity"`
	Score       float64       `json:"riskScore"`
	Triggered   []risk.Factor `json:"triggered,omitempty"`
	Action      string        `json:"action"`
}

// ViewModel is everything the dashboard shows for one request.
type ViewModel struct {
	KPIs             analytics.KPIs                          `json:"kpis"`
	Breakdowns       map[analytics.Dimension][]analytics.Row `json:"breakdowns"`
	RiskDistribution []LevelCount                            `json:"riskDistribution"`
	HighRisk         []HighRiskOrder                         `json:"highRisk"`
	Importance       []risk.FactorWeight                     `json:"importance"`
	Diagnostic       string                                  `json:"diagnostic,omitempty"`

	Records []risk.ScoredRecord `json:"-"`
}

// Score joins, filters and scores raw. Carrier history is taken from the
// whole joined dataset so a filter does not change a carrier's record.
func Score(ds model.Dataset, req Request) ([]risk.ScoredRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	joined := pipeline.Join(ds)
	hist := risk.CarrierHistoryFrom(joined)
	return risk.ScoreAll(pipeline.Apply(joined, req.Filter), req.scorer(), hist), nil
}

// Compute runs the whole pipeline for one request. It holds no state between
// calls: aggregation happens in a fresh in-memory store.
func Compute(raw Raw, req Request) (ViewModel, error) {
	recs, err := Score(raw.Dataset, req)
	if err != nil {
		return ViewModel{}, err
	}
	st := state.NewInMemoryStore()
	if _, err := analytics.Ingest(st, recs); err != nil {
		return ViewModel{}, fmt.Errorf("aggregate: %w", err)
	}
	rep, err := analytics.Build(st)
	if err != nil {
		return ViewModel{}, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	return ViewModel{
		KPIs:             rep.KPIs,
		Breakdowns:       rep.Breakdowns,
		RiskDistribution: Distribution(recs),
		HighRisk:         HighRisk(recs, limit),
		Importance:       risk.Importance(req.scorer().Weights()),
		Diagnostic:       raw.Diagnostic,
		Records:          recs,
	}, nil
}

// Distribution counts records per level, Unscored last. Every level is
// present even when empty.
func Distribution(recs []risk.ScoredRecord) []LevelCount {
	levels := append(slices.Clone(risk.Levels), risk.LevelUnscored)
	out := make([]LevelCount, len(levels))
	for i, l := range levels {
		out[i].Level = l
	}
	for _, r := range recs {
		if i := slices.Index(levels, r.Level); i >= 0 {
			out[i].Count++
		}
	}
	return out
}

// HighRisk returns the first limit High records in input order.
func HighRisk(recs []risk.ScoredRecord, limit int) []HighRiskOrder {
	var out []HighRiskOrder
	for _, r := range recs {
		if len(out) >= limit {
			break
		}
		if r.Level != risk.LevelHigh {
			continue
		}
		h := HighRiskOrder{
			OrderID:     r.OrderID,
			Origin:      r.Origin,
			Destination: r.Destination,
			Score:       *r.Score,
			Triggered:   r.Triggered,
			Action:      risk.RecommendedAction,
		}
		if r.Delivery != nil {
			h.Carrier = r.Delivery.Carrier
		}
		out = append(out, h)
	}
	return out
}
