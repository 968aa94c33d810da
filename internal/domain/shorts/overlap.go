package shorts

import "math"

// Percent returns how much two intervals overlap, as a percentage of the
// shorter one. Disjoint or zero-length intervals yield 0.
func Percent(start1, end1, start2, end2 float64) float64 {
	d1 := end1 - start1
	d2 := end2 - start2
	if d1 <= 0 || d2 <= 0 {
		return 0
	}
	overlap := math.Min(end1, end2) - math.Max(start1, start2)
	if overlap <= 0 {
		return 0
	}
	return 100 * overlap / math.Min(d1, d2)
}
