package render

import (
	"cmp"
	"slices"
	"strings"

	"github.com/roach88/grouparchive/internal/chat"
)

// splitBody removes the first occurrence of each video URL from text and
// splits what remains into plain and bold runs.
//
// Loci are code point offsets into the original text. They are sorted,
// clamped to the text and trimmed so they never overlap; repaired reports
// whether any locus needed that. Characters of an excised URL are dropped
// from whichever run they fall in.
func splitBody(text string, videos []string, loci []chat.Locus) (spans []Span, repaired bool) {
	runes := []rune(text)
	removed := exciseURLs(runes, videos)

	// owner[i] is 1 + the index of the locus covering rune i, or 0.
	owner := make([]int, len(runes))
	fixed, repaired := normalizeLoci(loci, len(runes))
	for n, l := range fixed {
		for i := l.Start; i < l.End(); i++ {
			owner[i] = n + 1
		}
	}

	var sb strings.Builder
	current := -1
	flush := func() {
		if sb.Len() > 0 {
			spans = append(spans, Span{Text: sb.String(), Bold: current > 0})
		}
		sb.Reset()
	}
	for i, r := range runes {
		if removed[i] {
			continue
		}
		if owner[i] != current {
			flush()
			current = owner[i]
		}
		sb.WriteRune(r)
	}
	flush()
	return spans, repaired
}

// exciseURLs marks the runes of the first remaining occurrence of each url.
// Occurrences are searched in the text as it stands after the previous
// removals.
func exciseURLs(runes []rune, urls []string) []bool {
	removed := make([]bool, len(runes))
	for _, u := range urls {
		target := []rune(u)
		if len(target) == 0 {
			continue
		}

		// kept maps positions of the current text back to runes.
		kept := make([]int, 0, len(runes))
		for i := range runes {
			if !removed[i] {
				kept = append(kept, i)
			}
		}

		at := -1
		for s := 0; s+len(target) <= len(kept); s++ {
			match := true
			for k, r := range target {
				if runes[kept[s+k]] != r {
					match = false
					break
				}
			}
			if match {
				at = s
				break
			}
		}
		if at < 0 {
			continue
		}
		for k := range target {
			removed[kept[at+k]] = true
		}
	}
	return removed
}

// normalizeLoci sorts loci and makes them disjoint and within [0, n).
// Empty ranges are dropped.
func normalizeLoci(loci []chat.Locus, n int) ([]chat.Locus, bool) {
	if len(loci) == 0 {
		return nil, false
	}

	sorted := slices.Clone(loci)
	repaired := !slices.IsSortedFunc(sorted, compareLoci)
	slices.SortStableFunc(sorted, compareLoci)

	out := make([]chat.Locus, 0, len(sorted))
	end := 0
	for _, l := range sorted {
		start, stop := l.Start, l.End()
		if l.Length < 0 {
			stop = start
		}
		if start < end {
			start = end
		}
		start = max(0, min(start, n))
		stop = max(start, min(stop, n))
		if start != l.Start || stop != l.End() {
			repaired = true
		}
		if stop == start {
			continue
		}
		out = append(out, chat.Locus{Start: start, Length: stop - start})
		end = stop
	}
	return out, repaired
}

func compareLoci(a, b chat.Locus) int {
	return cmp.Compare(a.Start, b.Start)
}
