// Package keys builds deterministic cache keys for range query results.
package keys

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/geocached/internal/geo"
)

// CircleKey identifies a range query at a given index precision. Center and
// radius are written with the shortest exact float formatting, so two
// circles share a key only when they are the same circle.
func CircleKey(c geo.Circle, precision uint) string {
	text := canonical(c.Center.Lat, c.Center.Lon, c.Radius)
	sum := xxhash.Sum64String(text)

	return fmt.Sprintf("circle:%d:%s:f=%016x", precision, text, sum)
}

func canonical(lat, lon, radius float64) string {
	b := make([]byte, 0, 64)
	b = strconv.AppendFloat(b, lat, 'g', -1, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, lon, 'g', -1, 64)
	b = append(b, ":r="...)
	b = strconv.AppendFloat(b, radius, 'g', -1, 64)
	return string(b)
}
