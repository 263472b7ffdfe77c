package analytics

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"pdo/internal/model"
	"pdo/internal/risk"
	"pdo/internal/state"
)

const (
	// DelayTarget and RatingTarget are the KPI goals deltas are shown against.
	DelayTarget  = 0.15
	RatingTarget = 3.5
	// TopRoutes bounds the busiest-routes breakdown.
	TopRoutes = 10
)

// Dimension names a breakdown axis. It prefixes every state key.
type Dimension string

const (
	DimTotal       Dimension = "total"
	DimCarrier     Dimension = "carrier"
	DimPriority    Dimension = "priority"
	DimDestination Dimension = "dest"
	DimWeek        Dimension = "week"
	DimRoute       Dimension = "route"
	DimRisk        Dimension = "risk"
	DimRating      Dimension = "rating"
)

// Dimensions lists the breakdowns served over the API.
var Dimensions = []Dimension{DimCarrier, DimPriority, DimDestination, DimWeek, DimRoute, DimRisk, DimRating}

func ParseDimension(s string) (Dimension, error) {
	for _, d := range Dimensions {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: dimension %q", model.ErrInvalidValue, s)
}

const totalValue = "all"

// ratingValues are the customer rating histogram buckets.
var ratingValues = []string{"1", "2", "3", "4", "5"}

// Key returns the composite state key dimension#value.
func Key(dim Dimension, value string) string {
	return string(dim) + "#" + value
}

// WeekOf buckets a date into its ISO week, e.g. 2024-W01.
func WeekOf(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// RouteOf labels an origin→destination lane.
func RouteOf(origin, dest model.City) string {
	return string(origin) + " → " + string(dest)
}

// keysFor lists every state key a record contributes to. Empty values are
// skipped rather than bucketed.
func keysFor(r risk.ScoredRecord) []string {
	keys := []string{Key(DimTotal, totalValue), Key(DimRisk, string(r.Level))}
	if d := r.Delivery; d != nil && d.Carrier != "" {
		keys = append(keys, Key(DimCarrier, string(d.Carrier)))
	}
	if r.Priority != "" {
		keys = append(keys, Key(DimPriority, string(r.Priority)))
	}
	if r.Destination != "" {
		keys = append(keys, Key(DimDestination, string(r.Destination)))
	}
	if !r.OrderDate.IsZero() {
		keys = append(keys, Key(DimWeek, WeekOf(r.OrderDate)))
	}
	if r.Origin != "" && r.Destination != "" {
		keys = append(keys, Key(DimRoute, RouteOf(r.Origin, r.Destination)))
	}
	if d := r.Delivery; d != nil && d.Rating != nil {
		keys = append(keys, Key(DimRating, strconv.Itoa(*d.Rating)))
	}
	return keys
}

func deltaFor(r risk.ScoredRecord) state.Delta {
	d := state.Delta{Delayed: r.Delayed}
	if r.Delivery != nil {
		d.Rating = r.Delivery.Rating
		d.Cost = r.Delivery.Cost
	}
	return d
}

// Result counts key updates applied and skipped by Ingest.
type Result struct {
	Applied int
	Skipped int
}

// Ingest applies every record to st with seq = order id, in ascending id
// order so that a key's sequence only moves forward. Re-ingesting the same
// orders only produces skips.
func Ingest(st state.Store, recs []risk.ScoredRecord) (Result, error) {
	idx := make([]int, len(recs))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(recs[a].OrderID, recs[b].OrderID) })

	var res Result
	for _, i := range idx {
		r, err := Apply(st, recs[i], int64(recs[i].OrderID))
		res.Applied += r.Applied
		res.Skipped += r.Skipped
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// Apply folds one record into every key it contributes to under seq. Keys
// that already saw seq or a later one are skipped.
func Apply(st state.Store, r risk.ScoredRecord, seq int64) (Result, error) {
	var res Result
	d := deltaFor(r)
	for _, k := range keysFor(r) {
		ok, _, err := st.Apply(k, d, seq)
		if err != nil {
			return res, fmt.Errorf("apply %s: %w", k, err)
		}
		if ok {
			res.Applied++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

// Row is one breakdown line. Averages are nil when no value was known.
type Row struct {
	Value     string       `json:"value"`
	Orders    int64        `json:"orders"`
	DelayRate *float64     `json:"delayRate"`
	AvgRating *float64     `json:"avgRating"`
	AvgCost   *float64     `json:"avgCost"`
	TotalCost float64      `json:"totalCost"`
	Coord     *model.Coord `json:"coord,omitempty"`
}

func rowFor(value string, a state.Aggregate) Row {
	return Row{
		Value:     value,
		Orders:    a.Count,
		DelayRate: known(a.DelayRate()),
		AvgRating: known(a.AvgRating()),
		AvgCost:   known(a.AvgCost()),
		TotalCost: a.CostSum,
	}
}

func known(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// Breakdown reads one dimension out of st.
func Breakdown(st state.Store, dim Dimension) ([]Row, error) {
	prefix := Key(dim, "")
	var rows []Row
	err := st.Range(func(key string, a state.Aggregate) error {
		if v, ok := strings.CutPrefix(key, prefix); ok {
			rows = append(rows, rowFor(v, a))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch dim {
	case DimPriority:
		sortByOrder(rows, model.Priorities)
	case DimRisk:
		sortByOrder(rows, append(slices.Clone(risk.Levels), risk.LevelUnscored))
	case DimRating:
		// every bucket is reported, empty ones with zero orders
		for _, v := range ratingValues {
			if !slices.ContainsFunc(rows, func(r Row) bool { return r.Value == v }) {
				rows = append(rows, rowFor(v, state.Aggregate{}))
			}
		}
		sortByOrder(rows, ratingValues)
	case DimRoute:
		slices.SortFunc(rows, func(a, b Row) int {
			if c := cmp.Compare(b.Orders, a.Orders); c != 0 {
				return c
			}
			return cmp.Compare(a.Value, b.Value)
		})
		if len(rows) > TopRoutes {
			rows = rows[:TopRoutes]
		}
	default:
		slices.SortFunc(rows, func(a, b Row) int { return cmp.Compare(a.Value, b.Value) })
	}

	if dim == DimDestination {
		for i := range rows {
			c := model.Coordinates(model.City(rows[i].Value))
			rows[i].Coord = &c
		}
	}
	return rows, nil
}

// sortByOrder orders rows by their position in the enum list; unknown values
// go last in name order.
func sortByOrder[T ~string](rows []Row, order []T) {
	pos := func(v string) int {
		for i, o := range order {
			if string(o) == v {
				return i
			}
		}
		return len(order)
	}
	slices.SortFunc(rows, func(a, b Row) int {
		if c := cmp.Compare(pos(a.Value), pos(b.Value)); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
}

// KPIs are the headline metrics.
type KPIs struct {
	TotalOrders    int64    `json:"totalOrders"`
	DelayRate      *float64 `json:"delayRate"`
	DelayRateDelta *float64 `json:"delayRateDelta"`
	AvgRating      *float64 `json:"avgRating"`
	AvgRatingDelta *float64 `json:"avgRatingDelta"`
	TotalCost      float64  `json:"totalCost"`
}

// Summarize reads the headline KPIs from st.
func Summarize(st state.Store) KPIs {
	a, _ := st.Get(Key(DimTotal, totalValue))
	k := KPIs{
		TotalOrders: a.Count,
		DelayRate:   known(a.DelayRate()),
		AvgRating:   known(a.AvgRating()),
		TotalCost:   a.CostSum,
	}
	if k.DelayRate != nil {
		k.DelayRateDelta = known(*k.DelayRate-DelayTarget, true)
	}
	if k.AvgRating != nil {
		k.AvgRatingDelta = known(*k.AvgRating-RatingTarget, true)
	}
	return k
}

// Report bundles KPIs with every breakdown.
type Report struct {
	KPIs       KPIs                `json:"kpis"`
	Breakdowns map[Dimension][]Row `json:"breakdowns"`
}

func Build(st state.Store) (Report, error) {
	rep := Report{KPIs: Summarize(st), Breakdowns: make(map[Dimension][]Row, len(Dimensions))}
	for _, d := range Dimensions {
		rows, err := Breakdown(st, d)
		if err != nil {
			return Report{}, fmt.Errorf("breakdown %s: %w", d, err)
		}
		rep.Breakdowns[d] = rows
	}
	return rep, nil
}
