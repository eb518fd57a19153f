package geo

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestMapURLOrigin(t *testing.T) {
	want := "https://www.openstreetmap.org/export/embed.html?bbox=-0.05,-0.05,0.05,0.05&layer=mapnik&marker=0,0"
	if got := MapURL("0,0"); got != want {
		t.Errorf("MapURL(0,0) =\n %s\nwant\n %s", got, want)
	}
}

func TestMapURLInvalid(t *testing.T) {
	for _, loc := range []string{"", "37.4", "abc,def", "37.4,", ",-122", "1,2,3", "NaN,1", "1,Inf"} {
		if got := MapURL(loc); got != "" {
			t.Errorf("MapURL(%q) = %q, want empty", loc, got)
		}
	}
}

func TestMapURLTrimsSpaces(t *testing.T) {
	if MapURL(" 37.4056 , -122.0775 ") == "" {
		t.Error("whitespace around coordinates should be accepted")
	}
}

// parseFloats splits a comma-separated list of floats
func parseFloats(t *testing.T, s string) []float64 {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			t.Fatalf("bad float %q in %q", part, s)
		}
		out = append(out, f)
	}
	return out
}

// TestMapURLBoundingBox checks the bbox surrounds the marker by MapOffset
func TestMapURLBoundingBox(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("bbox is lon-o,lat-o,lon+o,lat+o and marker is lat,lon", prop.ForAll(
		func(lat, lon float64) bool {
			loc := strconv.FormatFloat(lat, 'f', 4, 64) + "," + strconv.FormatFloat(lon, 'f', 4, 64)
			raw := MapURL(loc)
			u, err := url.Parse(raw)
			if err != nil {
				t.Logf("unparsable url %q", raw)
				return false
			}
			q := u.Query()
			if q.Get("layer") != "mapnik" {
				return false
			}

			pLat, _ := strconv.ParseFloat(strconv.FormatFloat(lat, 'f', 4, 64), 64)
			pLon, _ := strconv.ParseFloat(strconv.FormatFloat(lon, 'f', 4, 64), 64)

			bbox := parseFloats(t, q.Get("bbox"))
			marker := parseFloats(t, q.Get("marker"))
			want := []float64{pLon - MapOffset, pLat - MapOffset, pLon + MapOffset, pLat + MapOffset}
			for i := range want {
				if math.Abs(bbox[i]-want[i]) > 1e-9 {
					t.Logf("bbox[%d] = %v, want %v", i, bbox[i], want[i])
					return false
				}
			}
			return marker[0] == pLat && marker[1] == pLon
		},
		gen.Float64Range(-90, 90),
		gen.Float64Range(-180, 180),
	))

	properties.TestingRun(t)
}
