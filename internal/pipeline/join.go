package pipeline

import (
	"pdo/internal/model"
)

// JoinedRecord is one order with its optional delivery outcome and route.
// Delayed and DelayHours are nil when the durations are unknown.
type JoinedRecord struct {
	model.Order
	Delivery   *model.DeliveryOutcome `json:"delivery,omitempty"`
	Route      *model.RouteInfo       `json:"route,omitempty"`
	Delayed    *bool                  `json:"delayed"`
	DelayHours *int                   `json:"delayHours"`
}

// Join left-joins deliveries and routes onto orders by order id. Orders is the
// retained side: the result has exactly one record per order, in input order.
func Join(ds model.Dataset) []JoinedRecord {
	deliveries := make(map[int]*model.DeliveryOutcome, len(ds.Deliveries))
	for i := range ds.Deliveries {
		d := ds.Deliveries[i]
		deliveries[d.OrderID] = &d
	}
	routes := make(map[int]*model.RouteInfo, len(ds.Routes))
	for i := range ds.Routes {
		r := ds.Routes[i]
		routes[r.OrderID] = &r
	}

	out := make([]JoinedRecord, 0, len(ds.Orders))
	for _, o := range ds.Orders {
		rec := JoinedRecord{
			Order:    o,
			Delivery: deliveries[o.OrderID],
			Route:    routes[o.OrderID],
		}
		rec.Delayed, rec.DelayHours = DeriveDelay(rec.Delivery)
		out = append(out, rec)
	}
	return out
}

// DeriveDelay computes delayed = actual > promised and
// delay_hours = max(0, actual - promised). Both are nil unless the outcome
// exists and carries both durations.
func DeriveDelay(d *model.DeliveryOutcome) (*bool, *int) {
	if d == nil || d.PromisedHours == nil || d.ActualHours == nil {
		return nil, nil
	}
	diff := *d.ActualHours - *d.PromisedHours
	delayed := diff > 0
	hours := max(0, diff)
	return &delayed, &hours
}
