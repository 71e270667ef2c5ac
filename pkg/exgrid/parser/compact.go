package parser

import (
	"fmt"
	"strings"
)

// CompactOptions controls trimming of sparse header rows.
type CompactOptions struct {
	// EnableTrim drops empty columns at the edges of the header span.
	EnableTrim bool
	// UseSlidingWindow locates the densest block of headers before trimming.
	UseSlidingWindow bool
	// SlidingWindowSize is the window width in columns.
	SlidingWindowSize int
	// SlidingDensityThreshold is the minimum share of non-empty cells in the
	// best window for the window to be used.
	SlidingDensityThreshold float64
}

// DefaultCompactOptions returns the default header trimming options.
func DefaultCompactOptions() CompactOptions {
	return CompactOptions{
		EnableTrim:              true,
		UseSlidingWindow:        true,
		SlidingWindowSize:       10,
		SlidingDensityThreshold: 0.25,
	}
}

// HeaderSpan is the compacted header list and the columns it covers,
// relative to the raw header row passed in.
type HeaderSpan struct {
	Headers  []string
	FirstCol int
	LastCol  int
}

// CompactHeaders turns a raw header row into unique column names.
//
// With trimming enabled the span is narrowed to the densest block found by the
// sliding window, grown while neighbouring columns are non-empty, or else to
// the first and last non-empty column. Empty columns inside the window stay
// in the span. Gaps are named __EMPTY, __EMPTY_1, ...
// and repeated names get " (n)" suffixes.
func CompactHeaders(raw []string, opts CompactOptions) HeaderSpan {
	n := len(raw)
	if n == 0 {
		return HeaderSpan{LastCol: -1}
	}
	vals := make([]string, n)
	first, last := -1, -1
	for i, v := range raw {
		vals[i] = strings.TrimSpace(v)
		if vals[i] == "" {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}

	start, end := 0, n-1
	if opts.EnableTrim && first >= 0 {
		start, end = first, last
		if opts.UseSlidingWindow {
			if s, e, ok := densestWindow(vals, opts); ok {
				start, end = s, e
			}
		}
	}

	return HeaderSpan{
		Headers:  nameHeaders(vals[start : end+1]),
		FirstCol: start,
		LastCol:  end,
	}
}

func densestWindow(vals []string, opts CompactOptions) (start, end int, ok bool) {
	n := len(vals)
	w := min(opts.SlidingWindowSize, n)
	if w <= 0 {
		return 0, 0, false
	}

	count := 0
	for i := 0; i < w; i++ {
		if vals[i] != "" {
			count++
		}
	}
	bestCount, bestStart := count, 0
	for i := w; i < n; i++ {
		if vals[i] != "" {
			count++
		}
		if vals[i-w] != "" {
			count--
		}
		if count > bestCount {
			bestCount, bestStart = count, i-w+1
		}
	}

	if float64(bestCount)/float64(w) < opts.SlidingDensityThreshold {
		return 0, 0, false
	}

	start, end = bestStart, bestStart+w-1
	for start > 0 && vals[start-1] != "" {
		start--
	}
	for end < n-1 && vals[end+1] != "" {
		end++
	}
	return start, end, true
}

func nameHeaders(vals []string) []string {
	headers := make([]string, len(vals))
	seen := make(map[string]bool, len(vals))
	empties := 0
	for i, v := range vals {
		if v == "" {
			if empties == 0 {
				v = "__EMPTY"
			} else {
				v = fmt.Sprintf("__EMPTY_%d", empties)
			}
			empties++
		}
		name := v
		for dup := 1; seen[name]; dup++ {
			name = fmt.Sprintf("%s (%d)", v, dup)
		}
		seen[name] = true
		headers[i] = name
	}
	return headers
}
