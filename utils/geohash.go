package utils

import (
	"github.com/mmcloughlin/geohash"
)

// Two geohash precisions are used system-wide. CoarsePrecision buckets are
// roughly city-sized (~20km) and partition the cache; FinePrecision buckets
// are roughly neighborhood-sized (~1km) and are kept for indexing and
// tie-breaking.
const (
	CoarsePrecision = 4
	FinePrecision   = 6
)

// EncodeCoarse returns the coarse (cache partition) geohash for a coordinate.
func EncodeCoarse(lat, lon float64) string {
	return geohash.EncodeWithPrecision(lat, lon, CoarsePrecision)
}

// EncodeFine returns the fine (neighborhood) geohash for a coordinate.
func EncodeFine(lat, lon float64) string {
	return geohash.EncodeWithPrecision(lat, lon, FinePrecision)
}
