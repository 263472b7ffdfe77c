package acquire

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pdo/internal/model"
)

type orderRow struct {
	OrderID         int       `gorm:"column:order_id;primaryKey;autoIncrement:false"`
	OrderDate       time.Time `gorm:"column:order_date"`
	CustomerSegment string    `gorm:"column:customer_segment"`
	Priority        string    `gorm:"column:priority"`
	ProductCategory string    `gorm:"column:product_category"`
	OrderValue      float64   `gorm:"column:order_value"`
	OriginWarehouse string    `gorm:"column:origin_warehouse"`
	DestinationCity string    `gorm:"column:destination_city"`
	SpecialHandling bool      `gorm:"column:special_handling"`
}

func (orderRow) TableName() string { return "orders" }

type deliveryRow struct {
	OrderID               int      `gorm:"column:order_id;primaryKey;autoIncrement:false"`
	Carrier               string   `gorm:"column:carrier"`
	PromisedDeliveryHours *int     `gorm:"column:promised_delivery_hours"`
	ActualDeliveryHours   *int     `gorm:"column:actual_delivery_hours"`
	Status                string   `gorm:"column:status"`
	QualityIssue          string   `gorm:"column:quality_issue"`
	CustomerRating        *int     `gorm:"column:customer_rating"`
	DeliveryCost          *float64 `gorm:"column:delivery_cost"`
}

func (deliveryRow) TableName() string { return "delivery_performance" }

type routeRow struct {
	OrderID           int      `gorm:"column:order_id;primaryKey;autoIncrement:false"`
	DistanceKM        *float64 `gorm:"column:distance_km"`
	FuelConsumption   *float64 `gorm:"column:fuel_consumption"`
	TollCharges       *float64 `gorm:"column:toll_charges"`
	TrafficDelayHours *float64 `gorm:"column:traffic_delay_hours"`
	WeatherImpact     string   `gorm:"column:weather_impact"`
}

func (routeRow) TableName() string { return "routes_distance" }

// SQLiteSource reads the three tables from a SQLite database file with the
// same table and column names as the CSV files.
type SQLiteSource struct {
	Path string
}

func (s SQLiteSource) Name() string { return "sqlite:" + s.Path }

func (s SQLiteSource) Load(ctx context.Context) (model.Dataset, error) {
	// sqlite.Open creates missing files.
	if _, err := os.Stat(s.Path); err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	db, err := openSQLite(s.Path)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	defer closeSQLite(db)

	var (
		orders     []orderRow
		deliveries []deliveryRow
		routes     []routeRow
	)
	db = db.WithContext(ctx)
	if err := db.Order("order_id").Find(&orders).Error; err != nil {
		return model.Dataset{}, fmt.Errorf("%w: read orders: %w", ErrAcquisition, err)
	}
	if err := db.Order("order_id").Find(&deliveries).Error; err != nil {
		return model.Dataset{}, fmt.Errorf("%w: read delivery_performance: %w", ErrAcquisition, err)
	}
	if err := db.Order("order_id").Find(&routes).Error; err != nil {
		return model.Dataset{}, fmt.Errorf("%w: read routes_distance: %w", ErrAcquisition, err)
	}

	ds, err := datasetFromRows(orders, deliveries, routes)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	return ds, nil
}

func datasetFromRows(orders []orderRow, deliveries []deliveryRow, routes []routeRow) (model.Dataset, error) {
	ds := model.Dataset{
		Orders:     make([]model.Order, 0, len(orders)),
		Deliveries: make([]model.DeliveryOutcome, 0, len(deliveries)),
		Routes:     make([]model.RouteInfo, 0, len(routes)),
	}
	for _, r := range orders {
		o := model.Order{
			OrderID:         r.OrderID,
			OrderDate:       r.OrderDate.UTC(),
			Value:           r.OrderValue,
			Origin:          model.City(r.OriginWarehouse),
			Destination:     model.City(r.DestinationCity),
			SpecialHandling: r.SpecialHandling,
		}
		var err error
		if o.Segment, err = optional(r.CustomerSegment, model.ParseSegment); err != nil {
			return ds, fmt.Errorf("order %d: %w", r.OrderID, err)
		}
		if o.Priority, err = optional(r.Priority, model.ParsePriority); err != nil {
			return ds, fmt.Errorf("order %d: %w", r.OrderID, err)
		}
		if o.Category, err = optional(r.ProductCategory, model.ParseCategory); err != nil {
			return ds, fmt.Errorf("order %d: %w", r.OrderID, err)
		}
		ds.Orders = append(ds.Orders, model.Locate(o))
	}
	for _, r := range deliveries {
		d := model.DeliveryOutcome{
			OrderID:       r.OrderID,
			Carrier:       model.Carrier(r.Carrier),
			PromisedHours: r.PromisedDeliveryHours,
			ActualHours:   r.ActualDeliveryHours,
			Rating:        r.CustomerRating,
			Cost:          r.DeliveryCost,
		}
		var err error
		if d.Status, err = optional(r.Status, model.ParseStatus); err != nil {
			return ds, fmt.Errorf("delivery %d: %w", r.OrderID, err)
		}
		if d.QualityIssue, err = optional(r.QualityIssue, model.ParseQualityIssue); err != nil {
			return ds, fmt.Errorf("delivery %d: %w", r.OrderID, err)
		}
		ds.Deliveries = append(ds.Deliveries, d)
	}
	for _, r := range routes {
		rt := model.RouteInfo{
			OrderID:           r.OrderID,
			DistanceKM:        r.DistanceKM,
			FuelConsumption:   r.FuelConsumption,
			TollCharges:       r.TollCharges,
			TrafficDelayHours: r.TrafficDelayHours,
		}
		var err error
		if rt.Weather, err = optional(r.WeatherImpact, model.ParseWeather); err != nil {
			return ds, fmt.Errorf("route %d: %w", r.OrderID, err)
		}
		ds.Routes = append(ds.Routes, rt)
	}
	return ds, nil
}

func optional[T ~string](s string, parse func(string) (T, error)) (T, error) {
	if s == "" {
		return "", nil
	}
	return parse(s)
}

// WriteSQLite replaces the contents of the three tables at path with ds.
func WriteSQLite(ctx context.Context, path string, ds model.Dataset) error {
	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer closeSQLite(db)

	db = db.WithContext(ctx)
	if err := db.AutoMigrate(&orderRow{}, &deliveryRow{}, &routeRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	orders := make([]orderRow, 0, len(ds.Orders))
	for _, o := range ds.Orders {
		orders = append(orders, orderRow{
			OrderID:         o.OrderID,
			OrderDate:       o.OrderDate,
			CustomerSegment: string(o.Segment),
			Priority:        string(o.Priority),
			ProductCategory: string(o.Category),
			OrderValue:      o.Value,
			OriginWarehouse: string(o.Origin),
			DestinationCity: string(o.Destination),
			SpecialHandling: o.SpecialHandling,
		})
	}
	deliveries := make([]deliveryRow, 0, len(ds.Deliveries))
	for _, d := range ds.Deliveries {
		deliveries = append(deliveries, deliveryRow{
			OrderID:               d.OrderID,
			Carrier:               string(d.Carrier),
			PromisedDeliveryHours: d.PromisedHours,
			ActualDeliveryHours:   d.ActualHours,
			Status:                string(d.Status),
			QualityIssue:          string(d.QualityIssue),
			CustomerRating:        d.Rating,
			DeliveryCost:          d.Cost,
		})
	}
	routes := make([]routeRow, 0, len(ds.Routes))
	for _, r := range ds.Routes {
		routes = append(routes, routeRow{
			OrderID:           r.OrderID,
			DistanceKM:        r.DistanceKM,
			FuelConsumption:   r.FuelConsumption,
			TollCharges:       r.TollCharges,
			TrafficDelayHours: r.TrafficDelayHours,
			WeatherImpact:     string(r.Weather),
		})
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&orderRow{}, &deliveryRow{}, &routeRow{}} {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return fmt.Errorf("clear table: %w", err)
			}
		}
		if len(orders) > 0 {
			if err := tx.CreateInBatches(orders, 100).Error; err != nil {
				return fmt.Errorf("insert orders: %w", err)
			}
		}
		if len(deliveries) > 0 {
			if err := tx.CreateInBatches(deliveries, 100).Error; err != nil {
				return fmt.Errorf("insert deliveries: %w", err)
			}
		}
		if len(routes) > 0 {
			if err := tx.CreateInBatches(routes, 100).Error; err != nil {
				return fmt.Errorf("insert routes: %w", err)
			}
		}
		return nil
	})
}

func openSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

func closeSQLite(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
