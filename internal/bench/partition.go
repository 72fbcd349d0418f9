package bench

// Range is the half-open identifier interval [Start, End).
type Range struct {
	Start uint64
	End   uint64
}

func (r Range) Len() uint64 { return r.End - r.Start }

// Partition splits [0, total) into parts contiguous ranges of equal length.
// The last range absorbs the remainder.
func Partition(total uint64, parts int) []Range {
	if parts < 1 {
		parts = 1
	}
	step := total / uint64(parts)
	ranges := make([]Range, parts)
	for i := range ranges {
		ranges[i] = Range{Start: step * uint64(i), End: step * uint64(i+1)}
	}
	ranges[parts-1].End = total
	return ranges
}

// SplitOperations divides total operations among parts workers. The first
// worker absorbs the remainder.
func SplitOperations(total uint64, parts int) []uint64 {
	if parts < 1 {
		parts = 1
	}
	share := total / uint64(parts)
	loads := make([]uint64, parts)
	for i := range loads {
		loads[i] = share
	}
	loads[0] += total % uint64(parts)
	return loads
}
