package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidValue reports a categorical value outside its enum.
var ErrInvalidValue = errors.New("invalid value")

type Segment string

const (
	SegmentEnterprise Segment = "Enterprise"
	SegmentSMB        Segment = "SMB"
	SegmentIndividual Segment = "Individual"
)

var Segments = []Segment{SegmentEnterprise, SegmentSMB, SegmentIndividual}

type Priority string

const (
	PriorityExpress  Priority = "Express"
	PriorityStandard Priority = "Standard"
	PriorityEconomy  Priority = "Economy"
)

var Priorities = []Priority{PriorityExpress, PriorityStandard, PriorityEconomy}

type Category string

const (
	CategoryElectronics Category = "Electronics"
	CategoryFashion     Category = "Fashion"
	CategoryFood        Category = "Food & Beverage"
	CategoryHealthcare  Category = "Healthcare"
	CategoryIndustrial  Category = "Industrial"
	CategoryBooks       Category = "Books"
	CategoryHomeGoods   Category = "Home Goods"
)

var Categories = []Category{
	CategoryElectronics, CategoryFashion, CategoryFood, CategoryHealthcare,
	CategoryIndustrial, CategoryBooks, CategoryHomeGoods,
}

type Carrier string

var Carriers = []Carrier{"Carrier A", "Carrier B", "Carrier C", "Carrier D", "Carrier E"}

type Status string

const (
	StatusDelivered Status = "Delivered"
	StatusInTransit Status = "In Transit"
	StatusDelayed   Status = "Delayed"
	StatusCancelled Status = "Cancelled"
)

var Statuses = []Status{StatusDelivered, StatusInTransit, StatusDelayed, StatusCancelled}

type QualityIssue string

const (
	QualityNone      QualityIssue = "None"
	QualityDamage    QualityIssue = "Damage"
	QualityWrongItem QualityIssue = "Wrong Item"
	QualityLate      QualityIssue = "Late"
)

var QualityIssues = []QualityIssue{QualityNone, QualityDamage, QualityWrongItem, QualityLate}

type Weather string

const (
	WeatherNone  Weather = "None"
	WeatherRain  Weather = "Rain"
	WeatherHeat  Weather = "Heat"
	WeatherFog   Weather = "Fog"
	WeatherStorm Weather = "Storm"
)

var Weathers = []Weather{WeatherNone, WeatherRain, WeatherHeat, WeatherFog, WeatherStorm}

func ParseSegment(s string) (Segment, error)   { return parseEnum("customer segment", s, Segments) }
func ParsePriority(s string) (Priority, error) { return parseEnum("priority", s, Priorities) }
func ParseCategory(s string) (Category, error) { return parseEnum("product category", s, Categories) }
func ParseCarrier(s string) (Carrier, error)   { return parseEnum("carrier", s, Carriers) }
func ParseStatus(s string) (Status, error)     { return parseEnum("status", s, Statuses) }
func ParseWeather(s string) (Weather, error)   { return parseEnum("weather impact", s, Weathers) }

// ParseForecastWeather accepts the forecast and form vocabulary, where
// "Clear" means no impact, on top of the dataset values.
func ParseForecastWeather(s string) (Weather, error) {
	if strings.EqualFold(s, "Clear") {
		return WeatherNone, nil
	}
	return ParseWeather(s)
}

func ParseQualityIssue(s string) (QualityIssue, error) {
	return parseEnum("quality issue", s, QualityIssues)
}

// ParseWarehouse accepts only the five origin warehouses.
func ParseWarehouse(s string) (City, error) { return parseEnum("origin warehouse", s, Warehouses) }

// ParseCity accepts any destination city.
func ParseCity(s string) (City, error) { return parseEnum("city", s, Cities) }

func parseEnum[T ~string](field, s string, allowed []T) (T, error) {
	for _, v := range allowed {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s %q", ErrInvalidValue, field, s)
}
