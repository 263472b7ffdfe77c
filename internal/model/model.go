package model

import "time"

// Order is one shipment request, the anchor of every join.
type Order struct {
	OrderID         int       `json:"orderId"`
	OrderDate       time.Time `json:"orderDate"`
	Segment         Segment   `json:"customerSegment,omitempty"`
	Priority        Priority  `json:"priority,omitempty"`
	Category        Category  `json:"productCategory,omitempty"`
	Value           float64   `json:"orderValue"`
	Origin          City      `json:"originWarehouse,omitempty"`
	Destination     City      `json:"destinationCity,omitempty"`
	SpecialHandling bool      `json:"specialHandling"`
	OriginCoord     Coord     `json:"originCoord"`
	DestCoord       Coord     `json:"destCoord"`
}

// DeliveryOutcome is the delivery result for an order. Measurement fields are
// nil when the source did not provide them.
type DeliveryOutcome struct {
	OrderID       int          `json:"orderId"`
	Carrier       Carrier      `json:"carrier,omitempty"`
	PromisedHours *int         `json:"promisedDeliveryHours"`
	ActualHours   *int         `json:"actualDeliveryHours"`
	Status        Status       `json:"status,omitempty"`
	QualityIssue  QualityIssue `json:"qualityIssue,omitempty"`
	Rating        *int         `json:"customerRating"`
	Cost          *float64     `json:"deliveryCost"`
}

// RouteInfo describes the route travelled for an order.
type RouteInfo struct {
	OrderID           int      `json:"orderId"`
	DistanceKM        *float64 `json:"distanceKm"`
	FuelConsumption   *float64 `json:"fuelConsumption"`
	TollCharges       *float64 `json:"tollCharges"`
	TrafficDelayHours *float64 `json:"trafficDelayHours"`
	Weather           Weather  `json:"weatherImpact,omitempty"`
}

// Dataset holds the three base tables produced by acquisition.
type Dataset struct {
	Orders     []Order           `json:"orders"`
	Deliveries []DeliveryOutcome `json:"deliveries"`
	Routes     []RouteInfo       `json:"routes"`
}

// Locate fills origin/destination coordinates from the city table.
func Locate(o Order) Order {
	o.OriginCoord = Coordinates(o.Origin)
	o.DestCoord = Coordinates(o.Destination)
	return o
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
