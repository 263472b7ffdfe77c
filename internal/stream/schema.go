package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"pdo/internal/model"
	"pdo/internal/pipeline"
	"pdo/internal/risk"
)

// Decode parses one input message: a joined record as JSON. Coordinates and
// the delay fields are recomputed rather than trusted.
func Decode(b []byte) (pipeline.JoinedRecord, error) {
	var rec pipeline.JoinedRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, fmt.Errorf("%w: %v", model.ErrInvalidValue, err)
	}
	if rec.OrderID <= 0 {
		return rec, fmt.Errorf("%w: order id %d", model.ErrInvalidValue, rec.OrderID)
	}
	rec.Order = model.Locate(rec.Order)
	rec.Delayed, rec.DelayHours = pipeline.DeriveDelay(rec.Delivery)
	return rec, nil
}

// OutputKey is the message key for an order's assessment.
func OutputKey(orderID int) string { return strconv.Itoa(orderID) }

// Output is the assessment published for one order.
type Output struct {
	Key     string `json:"key"`
	OrderID int    `json:"orderId"`
	risk.Assessment
	Probability    float64 `json:"delayProbability"`
	Recommendation string  `json:"recommendation"`
	Alert          bool    `json:"alert"`
	UpdatedAt      int64   `json:"updatedAt"`
}

// NowUnix returns current time in epoch seconds. Split for testability.
var NowUnix = func() int64 { return time.Now().UTC().Unix() }
