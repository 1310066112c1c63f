package archive

import (
	"context"
	"errors"
)

var errMissingCursor = errors.New("page ends with a message that has no id")

// Pager walks a Source from the newest page backwards.
//
// Usage mirrors bufio.Scanner:
//
//	p := NewPager(src, 100)
//	for p.Next(ctx) {
//		page := p.Page()
//	}
//	if err := p.Err(); err != nil { ... }
//
// Next returns false once the source is exhausted (ErrNotModified, an empty
// page, or a cursor that stops advancing) with Err() == nil, or when a
// request fails or a page ends in a message without an id, with
// Err() != nil.
type Pager struct {
	src    Source
	limit  int
	cursor string
	pages  int
	page   Page
	done   bool
	err    error
}

// NewPager creates a pager. limit is clamped to 1..MaxPageSize.
func NewPager(src Source, limit int) *Pager {
	return &Pager{src: src, limit: clampPageSize(limit)}
}

// Next fetches the next older page.
func (p *Pager) Next(ctx context.Context) bool {
	if p.done {
		return false
	}

	page, err := p.src.Page(ctx, p.cursor, p.limit)
	if errors.Is(err, ErrNotModified) {
		return p.finish(nil)
	}
	if err != nil {
		return p.finish(&SourceFault{Cursor: p.cursor, Page: p.pages + 1, Err: err})
	}
	if len(page.Messages) == 0 {
		return p.finish(nil)
	}

	last := page.Messages[len(page.Messages)-1].ID
	if last == "" {
		// Without an id there is no cursor for the next request.
		return p.finish(&SourceFault{Cursor: p.cursor, Page: p.pages + 1, Err: errMissingCursor})
	}
	if p.pages > 0 && last == p.cursor {
		// A source that keeps answering with the same page would loop forever.
		return p.finish(nil)
	}

	p.pages++
	p.cursor = last
	p.page = page
	return true
}

// Page returns the page produced by the last successful Next.
func (p *Pager) Page() Page {
	return p.page
}

// Err returns the first non-exhaustion error, if any.
func (p *Pager) Err() error {
	return p.err
}

// Pages returns the number of pages delivered so far.
func (p *Pager) Pages() int {
	return p.pages
}

// Cursor returns the id of the oldest message delivered so far.
func (p *Pager) Cursor() string {
	return p.cursor
}

func (p *Pager) finish(err error) bool {
	p.done = true
	p.err = err
	p.page = Page{}
	return false
}

func clampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
