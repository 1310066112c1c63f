package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// progress rewrites a single "Fetched n/total" line on a terminal.
type progress struct {
	w       io.Writer
	written bool
}

// newProgress returns nil unless w is a terminal; log lines already cover
// non-interactive runs.
func newProgress(w io.Writer) *progress {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return &progress{w: w}
}

// Update is an archive progress callback.
func (p *progress) Update(fetched, total int) {
	if total > 0 {
		fmt.Fprintf(p.w, "\rFetched %d/%d messages", fetched, total)
	} else {
		fmt.Fprintf(p.w, "\rFetched %d messages", fetched)
	}
	p.written = true
}

// Done ends the progress line.
func (p *progress) Done() {
	if p != nil && p.written {
		fmt.Fprintln(p.w)
	}
}

func (p *progress) callback() func(fetched, total int) {
	if p == nil {
		return nil
	}
	return p.Update
}
