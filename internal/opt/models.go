package opt

import "math"

// Square4 is a depot at the centre of a square with a location on each
// corner, served by one vehicle without a load limit.
func Square4() *Instance {
	in, _ := NewInstance(squareMatrix(), nil, []int{Unlimited}, 0)
	return in
}

// Square4Capacity is Square4 with demands 1..4 and a capacity of 10.
func Square4Capacity() *Instance {
	in, _ := NewInstance(squareMatrix(), []int{0, 1, 2, 3, 4}, []int{10}, 0)
	return in
}

// SixTwo has six locations on a line-like layout and two vehicles with
// capacities 10 and 15 for a total demand of 21.
func SixTwo() *Instance {
	dist := [][]float64{
		{0, 2, 4, 6, 8, 10, 12},
		{2, 0, 3, 5, 7, 9, 11},
		{4, 3, 0, 2, 4, 6, 8},
		{6, 5, 2, 0, 3, 5, 7},
		{8, 7, 4, 3, 0, 2, 4},
		{10, 9, 6, 5, 2, 0, 3},
		{12, 11, 8, 7, 4, 3, 0},
	}
	in, _ := NewInstance(dist, []int{0, 2, 3, 6, 4, 5, 1}, []int{10, 15}, 0)
	return in
}

func squareMatrix() [][]float64 {
	d := math.Sqrt2
	return [][]float64{
		{0, 1, 1, 1, 1},
		{1, 0, d, d, 2},
		{1, d, 0, 2, d},
		{1, d, 2, 0, d},
		{1, 2, d, d, 0},
	}
}
