package function

import (
	"math"

	"github.com/deltaflow/deltaflow/internal/timeseries"
)

// Difference combines the latest samples of the two inputs into one derived
// value. A nil sample means the input was absent (no data, or too old) and
// absence propagates: ok is false and nothing should be emitted this cycle.
//
// raw is a-b, or b-a when reverse is set; absolute maps the result through
// |raw|. Values are plain IEEE doubles — NaN and Inf inputs are not
// special-cased and propagate into the result.
func Difference(a, b *timeseries.Sample, reverse, absolute bool) (float64, bool) {
	if a == nil || b == nil {
		return 0, false
	}

	var raw float64
	if reverse {
		raw = b.Value - a.Value
	} else {
		raw = a.Value - b.Value
	}
	if absolute {
		raw = math.Abs(raw)
	}
	return raw, true
}
