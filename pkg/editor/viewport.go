package editor

// VisibleRange computes the half-open index window [Start, End) of list
// items to render for a viewport, plus an overscan margin on each side. It
// is a pure helper over the session's field list; it holds no state.
type VisibleRange struct {
	Start int
	End   int
}

// ComputeVisibleRange windows a list of total items of uniform itemHeight
// inside a viewport of viewportHeight scrolled to scrollOffset, extending
// the window by overscan items in each direction. Degenerate inputs (zero
// or negative heights, empty list) yield an empty range.
func ComputeVisibleRange(total, itemHeight, viewportHeight, scrollOffset, overscan int) VisibleRange {
	if total <= 0 || itemHeight <= 0 || viewportHeight <= 0 {
		return VisibleRange{}
	}
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	if overscan < 0 {
		overscan = 0
	}

	start := scrollOffset/itemHeight - overscan
	if start < 0 {
		start = 0
	}

	// Round the last partially visible item into the window.
	end := (scrollOffset+viewportHeight+itemHeight-1)/itemHeight + overscan
	if end > total {
		end = total
	}
	if start > end {
		start = end
	}
	return VisibleRange{Start: start, End: end}
}

// Len returns the number of items in the range.
func (r VisibleRange) Len() int {
	return r.End - r.Start
}
