package formulas

import "math"

func isNaN(v float64) bool { return math.IsNaN(v) }
