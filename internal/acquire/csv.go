package acquire

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pdo/internal/model"
)

const (
	OrdersFile     = "orders.csv"
	DeliveriesFile = "delivery_performance.csv"
	RoutesFile     = "routes_distance.csv"
)

var (
	orderColumns = []string{
		"order_id", "order_date", "customer_segment", "priority", "product_category",
		"order_value", "origin_warehouse", "destination_city", "special_handling",
	}
	deliveryColumns = []string{
		"order_id", "carrier", "promised_delivery_hours", "actual_delivery_hours",
		"status", "quality_issue", "customer_rating", "delivery_cost",
	}
	routeColumns = []string{
		"order_id", "distance_km", "fuel_consumption", "toll_charges",
		"traffic_delay_hours", "weather_impact",
	}
)

// CSVSource reads the three tables from a directory. Columns are matched by
// header name; absent or empty cells become missing values.
type CSVSource struct {
	Dir string
}

func (s CSVSource) Name() string { return "csv:" + s.Dir }

func (s CSVSource) Load(ctx context.Context) (model.Dataset, error) {
	var ds model.Dataset
	err := readCSV(filepath.Join(s.Dir, OrdersFile), func(r row) error {
		o, err := orderFrom(r)
		ds.Orders = append(ds.Orders, o)
		return err
	})
	if err == nil {
		err = readCSV(filepath.Join(s.Dir, DeliveriesFile), func(r row) error {
			d, err := deliveryFrom(r)
			ds.Deliveries = append(ds.Deliveries, d)
			return err
		})
	}
	if err == nil {
		err = readCSV(filepath.Join(s.Dir, RoutesFile), func(r row) error {
			rt, err := routeFrom(r)
			ds.Routes = append(ds.Routes, rt)
			return err
		})
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	return ds, nil
}

// row is one CSV record addressed by column name.
type row struct {
	cols map[string]int
	rec  []string
}

func (r row) str(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r row) id() (int, error) {
	s := r.str("order_id")
	if s == "" {
		return 0, errors.New("missing order_id")
	}
	n, err := r.intPtr("order_id")
	if err != nil {
		return 0, err
	}
	return *n, nil
}

// intPtr accepts integral floats such as "48.0", which is how pandas writes
// integer columns that contain nulls.
func (r row) intPtr(name string) (*int, error) {
	s := r.str(name)
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return nil, fmt.Errorf("column %s: %q is not an integer", name, s)
	}
	n := int(f)
	return &n, nil
}

func (r row) floatPtr(name string) (*float64, error) {
	s := r.str(name)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("column %s: %q is not a finite number", name, s)
	}
	return &f, nil
}

var dateLayouts = []string{time.DateOnly, time.DateTime, time.RFC3339}

func (r row) date(name string) (time.Time, error) {
	s := r.str(name)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("column %s: unrecognised date %q", name, s)
}

// enum parses an optional categorical cell.
func enum[T ~string](r row, name string, parse func(string) (T, error)) (T, error) {
	return optional(r.str(name), parse)
}

func orderFrom(r row) (model.Order, error) {
	var o model.Order
	var err error
	if o.OrderID, err = r.id(); err != nil {
		return o, err
	}
	if o.OrderDate, err = r.date("order_date"); err != nil {
		return o, err
	}
	if o.Segment, err = enum(r, "customer_segment", model.ParseSegment); err != nil {
		return o, err
	}
	if o.Priority, err = enum(r, "priority", model.ParsePriority); err != nil {
		return o, err
	}
	if o.Category, err = enum(r, "product_category", model.ParseCategory); err != nil {
		return o, err
	}
	v, err := r.floatPtr("order_value")
	if err != nil {
		return o, err
	}
	if v != nil {
		o.Value = *v
	}
	o.Origin = model.City(r.str("origin_warehouse"))
	o.Destination = model.City(r.str("destination_city"))
	if s := r.str("special_handling"); s != "" {
		if o.SpecialHandling, err = strconv.ParseBool(s); err != nil {
			return o, fmt.Errorf("column special_handling: %q is not a boolean", s)
		}
	}
	return model.Locate(o), nil
}

func deliveryFrom(r row) (model.DeliveryOutcome, error) {
	var d model.DeliveryOutcome
	var err error
	if d.OrderID, err = r.id(); err != nil {
		return d, err
	}
	d.Carrier = model.Carrier(r.str("carrier"))
	if d.PromisedHours, err = r.intPtr("promised_delivery_hours"); err != nil {
		return d, err
	}
	if d.ActualHours, err = r.intPtr("actual_delivery_hours"); err != nil {
		return d, err
	}
	if d.Status, err = enum(r, "status", model.ParseStatus); err != nil {
		return d, err
	}
	if d.QualityIssue, err = enum(r, "quality_issue", model.ParseQualityIssue); err != nil {
		return d, err
	}
	if d.Rating, err = r.intPtr("customer_rating"); err != nil {
		return d, err
	}
	d.Cost, err = r.floatPtr("delivery_cost")
	return d, err
}

func routeFrom(r row) (model.RouteInfo, error) {
	var rt model.RouteInfo
	var err error
	if rt.OrderID, err = r.id(); err != nil {
		return rt, err
	}
	if rt.DistanceKM, err = r.floatPtr("distance_km"); err != nil {
		return rt, err
	}
	if rt.FuelConsumption, err = r.floatPtr("fuel_consumption"); err != nil {
		return rt, err
	}
	if rt.TollCharges, err = r.floatPtr("toll_charges"); err != nil {
		return rt, err
	}
	if rt.TrafficDelayHours, err = r.floatPtr("traffic_delay_hours"); err != nil {
		return rt, err
	}
	rt.Weather, err = enum(r, "weather_impact", model.ParseWeather)
	return rt, err
}

func readCSV(path string, fn func(row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("%s: read header: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := cols["order_id"]; !ok {
		return fmt.Errorf("%s: no order_id column", path)
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := fn(row{cols: cols, rec: rec}); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}

// WriteCSV writes ds into dir using the file and column names CSVSource
// reads.
func WriteCSV(dir string, ds model.Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	orders := make([][]string, 0, len(ds.Orders))
	for _, o := range ds.Orders {
		orders = append(orders, []string{
			strconv.Itoa(o.OrderID), formatDate(o.OrderDate), string(o.Segment), string(o.Priority),
			string(o.Category), formatFloat(&o.Value), string(o.Origin), string(o.Destination),
			strconv.FormatBool(o.SpecialHandling),
		})
	}
	deliveries := make([][]string, 0, len(ds.Deliveries))
	for _, d := range ds.Deliveries {
		deliveries = append(deliveries, []string{
			strconv.Itoa(d.OrderID), string(d.Carrier), formatInt(d.PromisedHours), formatInt(d.ActualHours),
			string(d.Status), string(d.QualityIssue), formatInt(d.Rating), formatFloat(d.Cost),
		})
	}
	routes := make([][]string, 0, len(ds.Routes))
	for _, r := range ds.Routes {
		routes = append(routes, []string{
			strconv.Itoa(r.OrderID), formatFloat(r.DistanceKM), formatFloat(r.FuelConsumption),
			formatFloat(r.TollCharges), formatFloat(r.TrafficDelayHours), string(r.Weather),
		})
	}
	if err := writeCSV(filepath.Join(dir, OrdersFile), orderColumns, orders); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, DeliveriesFile), deliveryColumns, deliveries); err != nil {
		return err
	}
	return writeCSV(filepath.Join(dir, RoutesFile), routeColumns, routes)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.UTC().Format(time.DateOnly)
	}
	return t.UTC().Format(time.DateTime)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
