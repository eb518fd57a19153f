package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MapOffset is the half-width in degrees of the bounding box around a point
const MapOffset = 0.05

const mapEmbedURL = "https://www.openstreetmap.org/export/embed.html"

// MapURL builds an OpenStreetMap embed link centred on loc ("lat,lon").
// Anything unparsable yields "".
func MapURL(loc string) string {
	lat, lon, ok := parseLoc(loc)
	if !ok {
		return ""
	}
	bbox := fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(lon-MapOffset), formatCoord(lat-MapOffset),
		formatCoord(lon+MapOffset), formatCoord(lat+MapOffset))
	return fmt.Sprintf("%s?bbox=%s&layer=mapnik&marker=%s,%s",
		mapEmbedURL, bbox, formatCoord(lat), formatCoord(lon))
}

// parseLoc splits "lat,lon" into two floats
func parseLoc(loc string) (lat, lon float64, ok bool) {
	parts := strings.Split(loc, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return 0, 0, false
	}
	return lat, lon, true
}

// formatCoord prints the shortest representation that round-trips
func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
