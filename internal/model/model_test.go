package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinates_KnownAndFallback(t *testing.T) {
	assert.Equal(t, Coord{Lat: 19.0760, Lon: 72.8777}, Coordinates(CityMumbai))
	assert.Equal(t, DefaultCentroid, Coordinates("Atlantis"))
	assert.Equal(t, DefaultCentroid, Coordinates(""))
}

func TestLocate_FillsBothEnds(t *testing.T) {
	o := Locate(Order{OrderID: 1, Origin: CityDelhi, Destination: CityJaipur})
	assert.Equal(t, Coordinates(CityDelhi), o.OriginCoord)
	assert.Equal(t, Coordinates(CityJaipur), o.DestCoord)
}

func TestParseForecastWeather(t *testing.T) {
	for _, in := range []string{"Clear", "clear", "None"} {
		w, err := ParseForecastWeather(in)
		require.NoError(t, err, in)
		assert.Equal(t, WeatherNone, w)
	}
	w, err := ParseForecastWeather("Storm")
	require.NoError(t, err)
	assert.Equal(t, WeatherStorm, w)

	_, err = ParseForecastWeather("Hail")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = ParseWeather("Clear")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestParseEnums(t *testing.T) {
	p, err := ParsePriority("Express")
	require.NoError(t, err)
	assert.Equal(t, PriorityExpress, p)

	c, err := ParseCategory("Food & Beverage")
	require.NoError(t, err)
	assert.Equal(t, CategoryFood, c)

	_, err = ParsePriority("express")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidValue))

	_, err = ParseWarehouse("Pune")
	assert.ErrorIs(t, err, ErrInvalidValue, "Pune is a destination, not a warehouse")

	city, err := ParseCity("Pune")
	require.NoError(t, err)
	assert.Equal(t, CityPune, city)
}
