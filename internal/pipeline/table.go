package pipeline

import "time"

// Table is a columnar view of records for export. Null cells are nil.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// RecordColumns names the values returned by RecordValues.
var RecordColumns = []string{
	"order_id", "order_date", "customer_segment", "priority", "product_category",
	"order_value", "origin_warehouse", "destination_city", "special_handling",
	"origin_lat", "origin_lon", "dest_lat", "dest_lon",
	"carrier", "promised_delivery_hours", "actual_delivery_hours", "status",
	"quality_issue", "customer_rating", "delivery_cost", "delayed", "delay_hours",
	"distance_km", "fuel_consumption", "toll_charges", "traffic_delay_hours",
	"weather_impact",
}

// RecordValues flattens r in RecordColumns order.
func RecordValues(r JoinedRecord) []any {
	row := []any{
		r.OrderID, r.OrderDate.Format(time.DateOnly), str(r.Segment), str(r.Priority),
		str(r.Category), r.Value, str(r.Origin), str(r.Destination), r.SpecialHandling,
		r.OriginCoord.Lat, r.OriginCoord.Lon, r.DestCoord.Lat, r.DestCoord.Lon,
	}
	if d := r.Delivery; d != nil {
		row = append(row, str(d.Carrier), val(d.PromisedHours), val(d.ActualHours),
			str(d.Status), str(d.QualityIssue), val(d.Rating), val(d.Cost))
	} else {
		row = append(row, nil, nil, nil, nil, nil, nil, nil)
	}
	row = append(row, val(r.Delayed), val(r.DelayHours))
	if rt := r.Route; rt != nil {
		row = append(row, val(rt.DistanceKM), val(rt.FuelConsumption), val(rt.TollCharges),
			val(rt.TrafficDelayHours), str(rt.Weather))
	} else {
		row = append(row, nil, nil, nil, nil, nil)
	}
	return row
}

func val[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func str[T ~string](s T) any {
	if s == "" {
		return nil
	}
	return string(s)
}
