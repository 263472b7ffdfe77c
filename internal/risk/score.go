package risk

import (
	"maps"
	"math"
	"slices"
)

// Level is the ordinal risk tier.
type Level string

const (
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelUnscored Level = "Unscored"
)

// Levels lists the scored tiers in ascending order.
var Levels = []Level{LevelLow, LevelMedium, LevelHigh}

const (
	lowUpper    = 0.3
	mediumUpper = 0.6
	maxScore    = 1.0
)

// LevelFor buckets a clipped score: [0, 0.3] Low, (0.3, 0.6] Medium,
// (0.6, 1.0] High.
func LevelFor(score float64) Level {
	switch {
	case score <= lowUpper:
		return LevelLow
	case score <= mediumUpper:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Clip bounds a raw weighted sum to [0, 1.0]. NaN, e.g. from +Inf and -Inf
// weights firing together, clips to 0.
func Clip(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Min(maxScore, math.Max(0, score))
}

// Assessment is the scoring result for one input. Score is nil and Level is
// LevelUnscored when a required field was missing.
type Assessment struct {
	Score     *float64 `json:"riskScore"`
	Level     Level    `json:"riskLevel"`
	Triggered []Factor `json:"triggered,omitempty"`
	Missing   []string `json:"missing,omitempty"`
}

func (a Assessment) Scored() bool { return a.Score != nil }

// AssessmentColumns names the values returned by Values.
var AssessmentColumns = []string{"risk_score", "risk_level"}

func (a Assessment) Values() []any {
	if !a.Scored() {
		return []any{nil, nil}
	}
	return []any{*a.Score, string(a.Level)}
}

// Scorer computes a weighted sum over a named set of boolean predicates.
// It is safe for concurrent use once built.
type Scorer struct {
	weights    Weights
	predicates map[Factor]Predicate
	factors    []Factor
}

type Option func(*Scorer)

// WithPredicate registers or replaces the predicate for a factor name.
func WithPredicate(f Factor, p Predicate) Option {
	return func(s *Scorer) { s.predicates[f] = p }
}

func NewScorer(w Weights, opts ...Option) *Scorer {
	s := &Scorer{
		weights:    maps.Clone(w),
		predicates: builtinPredicates(),
	}
	if s.weights == nil {
		s.weights = Weights{}
	}
	for _, o := range opts {
		o(s)
	}
	s.factors = slices.Sorted(maps.Keys(s.weights))
	return s
}

// Weights returns a copy of the scorer's weight map.
func (s *Scorer) Weights() Weights { return maps.Clone(s.weights) }

// Score never fails. Factors are summed in name order so equal inputs give
// bit-identical scores; names without a predicate contribute nothing.
func (s *Scorer) Score(in Input) Assessment {
	if missing := in.Missing(); len(missing) > 0 {
		return Assessment{Level: LevelUnscored, Missing: missing}
	}
	var sum float64
	var triggered []Factor
	for _, f := range s.factors {
		pred, ok := s.predicates[f]
		if !ok || !pred(in) {
			continue
		}
		sum += s.weights[f]
		triggered = append(triggered, f)
	}
	score := Clip(round9(sum))
	return Assessment{Score: &score, Level: LevelFor(score), Triggered: triggered}
}

// round9 absorbs float summation error so 0.3+0.15+0.15 buckets as 0.6.
func round9(x float64) float64 {
	return math.Round(x*1e9) / 1e9
}
