package risk

import (
	"slices"

	"pdo/internal/model"
	"pdo/internal/pipeline"
)

// CarrierHistory is the share of known deliveries each carrier delivered late.
type CarrierHistory map[model.Carrier]float64

// CarrierHistoryFrom averages the known delayed flags per carrier.
func CarrierHistoryFrom(recs []pipeline.JoinedRecord) CarrierHistory {
	late := map[model.Carrier]int{}
	known := map[model.Carrier]int{}
	for _, r := range recs {
		if r.Delivery == nil || r.Delivery.Carrier == "" || r.Delayed == nil {
			continue
		}
		known[r.Delivery.Carrier]++
		if *r.Delayed {
			late[r.Delivery.Carrier]++
		}
	}
	out := make(CarrierHistory, len(known))
	for c, n := range known {
		out[c] = float64(late[c]) / float64(n)
	}
	return out
}

// InputFor extracts scoring inputs from a joined record. hist may be nil.
func InputFor(r pipeline.JoinedRecord, hist CarrierHistory) Input {
	in := Input{
		Priority: r.Priority,
		Category: r.Category,
	}
	if rt := r.Route; rt != nil {
		in.TrafficDelayHours = rt.TrafficDelayHours
		in.Weather = rt.Weather
		in.DistanceKM = rt.DistanceKM
	}
	if d := r.Delivery; d != nil && hist != nil {
		if avg, ok := hist[d.Carrier]; ok {
			in.CarrierAvgDelay = &avg
		}
	}
	if !r.OrderDate.IsZero() {
		h := r.OrderDate.Hour()
		in.HourOfDay = &h
	}
	return in
}

// ScoredRecord pairs a joined record with its assessment.
type ScoredRecord struct {
	pipeline.JoinedRecord
	Assessment
}

// ScoreAll scores every record in order.
func ScoreAll(recs []pipeline.JoinedRecord, s *Scorer, hist CarrierHistory) []ScoredRecord {
	out := make([]ScoredRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, ScoredRecord{JoinedRecord: r, Assessment: s.Score(InputFor(r, hist))})
	}
	return out
}

// Prediction is the single-order answer for the "predict delay" form.
type Prediction struct {
	Assessment
	Probability    float64 `json:"delayProbability"`
	Recommendation string  `json:"recommendation"`
}

const maxProbability = 95.0

// DelayProbability turns a score into a percentage capped at 95.
func DelayProbability(score float64) float64 {
	return min(score*100, maxProbability)
}

// Recommend maps a delay probability to an operator action.
func Recommend(probability float64) string {
	switch {
	case probability > 60:
		return "Assign to premium carrier, add 25% buffer time, use GPS tracking"
	case probability > 30:
		return "Monitor closely, consider alternative route"
	default:
		return "Proceed as planned"
	}
}

// RecommendedAction is shown next to high-risk orders.
const RecommendedAction = "Assign premium carrier, add buffer time"

// Predict scores a single input.
func Predict(s *Scorer, in Input) Prediction {
	a := s.Score(in)
	p := Prediction{Assessment: a}
	if !a.Scored() {
		p.Recommendation = "Insufficient data to assess delay risk"
		return p
	}
	p.Probability = DelayProbability(*a.Score)
	p.Recommendation = Recommend(p.Probability)
	return p
}

// Table flattens scored records for export, assessment columns last.
func Table(recs []ScoredRecord) pipeline.Table {
	t := pipeline.Table{
		Columns: append(slices.Clone(pipeline.RecordColumns), AssessmentColumns...),
		Rows:    make([][]any, 0, len(recs)),
	}
	for _, r := range recs {
		t.Rows = append(t.Rows, append(pipeline.RecordValues(r.JoinedRecord), r.Values()...))
	}
	return t
}
