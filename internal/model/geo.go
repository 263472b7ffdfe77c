package model

type City string

const (
	CityMumbai    City = "Mumbai"
	CityDelhi     City = "Delhi"
	CityBangalore City = "Bangalore"
	CityChennai   City = "Chennai"
	CityKolkata   City = "Kolkata"
	CityHyderabad City = "Hyderabad"
	CityPune      City = "Pune"
	CityAhmedabad City = "Ahmedabad"
	CityJaipur    City = "Jaipur"
)

// Warehouses are the origin cities; Cities are all valid destinations.
var (
	Warehouses = []City{CityMumbai, CityDelhi, CityBangalore, CityChennai, CityKolkata}
	Cities     = []City{
		CityMumbai, CityDelhi, CityBangalore, CityChennai, CityKolkata,
		CityHyderabad, CityPune, CityAhmedabad, CityJaipur,
	}
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DefaultCentroid is used for cities missing from the coordinate table.
var DefaultCentroid = Coord{Lat: 20.5937, Lon: 78.9629}

var cityCoords = map[City]Coord{
	CityMumbai:    {Lat: 19.0760, Lon: 72.8777},
	CityDelhi:     {Lat: 28.7041, Lon: 77.1025},
	CityBangalore: {Lat: 12.9716, Lon: 77.5946},
	CityChennai:   {Lat: 13.0827, Lon: 80.2707},
	CityKolkata:   {Lat: 22.5726, Lon: 88.3639},
	CityHyderabad: {Lat: 17.3850, Lon: 78.4867},
	CityPune:      {Lat: 18.5204, Lon: 73.8567},
	CityAhmedabad: {Lat: 23.0225, Lon: 72.5714},
	CityJaipur:    {Lat: 26.9124, Lon: 75.7873},
}

// Coordinates never fails: unknown cities map to DefaultCentroid.
func Coordinates(c City) Coord {
	if xy, ok := cityCoords[c]; ok {
		return xy
	}
	return DefaultCentroid
}
