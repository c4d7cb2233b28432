package util

// Choose returns a when cond holds, b otherwise.
func Choose[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

// Filter returns the elements of ts for which keep reports true.
func Filter[T any](ts []T, keep func(T) bool) []T {
	result := []T{}
	for _, v := range ts {
		if keep(v) {
			result = append(result, v)
		}
	}
	return result
}

// GroupBy splits ts into runs of consecutive elements for which same
// reports true against the first element of the current run. Order
// within and across runs is preserved.
func GroupBy[T any](ts []T, same func(a, b T) bool) [][]T {
	var groups [][]T
	for _, v := range ts {
		if len(groups) == 0 || !same(groups[len(groups)-1][0], v) {
			groups = append(groups, []T{v})
			continue
		}
		last := len(groups) - 1
		groups[last] = append(groups[last], v)
	}
	return groups
}
