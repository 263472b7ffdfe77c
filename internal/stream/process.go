package stream

import (
	"pdo/internal/analytics"
	"pdo/internal/pipeline"
	"pdo/internal/risk"
	"pdo/internal/state"
)

// Processor scores records one at a time and folds them into analytics
// state. It is not safe for concurrent use.
type Processor struct {
	scorer    *risk.Scorer
	st        state.Store
	threshold float64
	hist      risk.CarrierHistory
}

// NewProcessor builds a processor. hist may be nil; it is never updated.
func NewProcessor(s *risk.Scorer, st state.Store, alertThreshold float64, hist risk.CarrierHistory) *Processor {
	return &Processor{scorer: s, st: st, threshold: alertThreshold, hist: hist}
}

// Process scores rec and applies it under seq, which must grow with every
// message (the input offset + 1). A redelivered message carries a seq the
// state already saw: applied is false and the state is untouched, but out is
// still returned so the caller can produce it again.
func (p *Processor) Process(rec pipeline.JoinedRecord, seq int64) (applied bool, out Output, sr risk.ScoredRecord, err error) {
	in := risk.InputFor(rec, p.hist)
	pred := risk.Predict(p.scorer, in)
	sr = risk.ScoredRecord{JoinedRecord: rec, Assessment: pred.Assessment}

	res, err := analytics.Apply(p.st, sr, seq)
	if err != nil {
		return false, Output{}, sr, err
	}
	return res.Applied > 0, Output{
		Key:            OutputKey(rec.OrderID),
		OrderID:        rec.OrderID,
		Assessment:     pred.Assessment,
		Probability:    pred.Probability,
		Recommendation: pred.Recommendation,
		Alert:          pred.Scored() && *pred.Score > p.threshold,
		UpdatedAt:      NowUnix(),
	}, sr, nil
}
