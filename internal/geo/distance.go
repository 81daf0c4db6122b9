// Package geo provides distance math and address geocoding for stations.
package geo

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Zero reports whether the point is unset.
func (p Point) Zero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// ParsePoint reads "lat, lng" as typed by a user or filled in from the
// browser location.
func ParsePoint(s string) (Point, bool) {
	latRaw, lngRaw, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil || lat < -90 || lat > 90 {
		return Point{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if err != nil || lng < -180 || lng > 180 {
		return Point{}, false
	}
	return Point{Lat: lat, Lng: lng}, true
}

// Distance returns the great-circle distance between a and b in kilometres.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Ranked pairs an item with its distance from the origin.
type Ranked[T any] struct {
	Item T
	Km   float64
}

// SortByDistance ranks items by distance from origin, nearest first. Items
// whose location is unset are dropped. A limit <= 0 keeps all.
func SortByDistance[T any](origin Point, items []T, loc func(T) Point, limit int) []Ranked[T] {
	out := make([]Ranked[T], 0, len(items))
	for _, it := range items {
		p := loc(it)
		if p.Zero() {
			continue
		}
		out = append(out, Ranked[T]{Item: it, Km: Distance(origin, p)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Km < out[j].Km })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
