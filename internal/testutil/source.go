package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/grouparchive/internal/archive"
	"github.com/roach88/grouparchive/internal/chat"
)

// PageCall records one Page request made to a ScriptedSource.
type PageCall struct {
	Before string
	Limit  int
}

// ScriptedSource is an in-memory archive.GroupSource.
//
// By default it behaves like the GroupMe API: History is served newest
// first, before is honored as a cursor, and a request past the oldest
// message returns archive.ErrNotModified. When Pages is set, the n-th call
// returns Pages[n-1] regardless of the cursor, which lets tests script
// duplicates and out-of-order delivery.
type ScriptedSource struct {
	Info archive.Group

	// History is the full chat, newest first.
	History []archive.SourceMessage

	// Pages, if non-nil, replaces cursor handling.
	Pages [][]archive.SourceMessage

	// Total is the count reported on every page. Negative means len(History).
	Total int

	// Errors maps a 1-based call number to the error that call returns.
	Errors map[int]error

	// GroupErr is returned by Group.
	GroupErr error

	mu    sync.Mutex
	calls []PageCall
}

// NewScriptedSource returns a source serving history (newest first).
func NewScriptedSource(info archive.Group, history []archive.SourceMessage) *ScriptedSource {
	return &ScriptedSource{Info: info, History: history, Total: -1}
}

// Group implements archive.GroupSource.
func (s *ScriptedSource) Group(ctx context.Context) (archive.Group, error) {
	if s.GroupErr != nil {
		return archive.Group{}, s.GroupErr
	}
	return s.Info, nil
}

// Page implements archive.Source.
func (s *ScriptedSource) Page(ctx context.Context, before string, limit int) (archive.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return archive.Page{}, err
	}

	s.calls = append(s.calls, PageCall{Before: before, Limit: limit})
	n := len(s.calls)
	if err, ok := s.Errors[n]; ok {
		return archive.Page{}, err
	}

	total := s.Total
	if total < 0 {
		total = len(s.History)
	}

	if s.Pages != nil {
		if n > len(s.Pages) {
			return archive.Page{}, archive.ErrNotModified
		}
		return archive.Page{Total: total, Messages: s.Pages[n-1]}, nil
	}

	start := 0
	if before != "" {
		idx := s.indexOf(before)
		if idx < 0 {
			return archive.Page{}, fmt.Errorf("unknown cursor %q", before)
		}
		start = idx + 1
	}
	if start >= len(s.History) {
		return archive.Page{}, archive.ErrNotModified
	}
	end := min(start+limit, len(s.History))
	return archive.Page{Total: total, Messages: s.History[start:end]}, nil
}

// Calls returns the requests made so far.
func (s *ScriptedSource) Calls() []PageCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PageCall(nil), s.calls...)
}

func (s *ScriptedSource) indexOf(id string) int {
	for i, m := range s.History {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Msg builds a source message with an empty like list and no attachments.
func Msg(id, author string, createdAt int64, text string) archive.SourceMessage {
	var body *string
	if text != "" {
		body = chat.StringPtr(text)
	}
	return archive.SourceMessage{
		Message: chat.Message{
			ID:          id,
			Author:      author,
			CreatedAt:   createdAt,
			Text:        body,
			FavoritedBy: []string{},
			Attachments: chat.Attachments{},
		},
		SenderName: "user-" + author,
	}
}

var _ archive.GroupSource = (*ScriptedSource)(nil)
