package archive

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/roach88/grouparchive/internal/chat"
)

// FetchOptions configures FetchAll.
type FetchOptions struct {
	PageSize int

	// Progress, if set, is called after every page with the running count
	// and the source's reported total.
	Progress func(fetched, total int)

	Logger  *slog.Logger
	Metrics *Metrics
}

// FetchStats summarizes a completed fetch.
type FetchStats struct {
	Pages      int
	Total      int // count reported by the first page
	Fetched    int // messages kept after dedup
	Duplicates int // messages dropped because their id was already seen

	// Exhausted is true when the source ran dry before Total was reached.
	Exhausted bool
}

// FetchAll retrieves the complete history of src, oldest first.
//
// The first page's Total is a progress target, not a contract: the loop
// also ends when the source reports exhaustion. Any other source error
// aborts the fetch and no messages are returned.
func FetchAll(ctx context.Context, src Source, opts FetchOptions) ([]SourceMessage, FetchStats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pager := NewPager(src, opts.PageSize)
	seen := make(map[string]struct{})
	var (
		stats    FetchStats
		received []SourceMessage // newest first
		reached  bool
	)

	for pager.Next(ctx) {
		page := pager.Page()
		if pager.Pages() == 1 {
			stats.Total = page.Total
			logger.Info("fetching messages", "total", page.Total)
		}

		for _, m := range page.Messages {
			if _, dup := seen[m.ID]; dup {
				stats.Duplicates++
				logger.Warn("dropping duplicate message", "id", m.ID)
				continue
			}
			seen[m.ID] = struct{}{}
			received = append(received, m)
		}

		opts.Metrics.pageFetched(len(page.Messages))
		logger.Debug("page fetched", "page", pager.Pages(), "messages", len(page.Messages), "cursor", pager.Cursor())
		if opts.Progress != nil {
			opts.Progress(len(received), stats.Total)
		}

		if stats.Total > 0 && len(received) >= stats.Total {
			reached = true
			break
		}
	}
	if err := pager.Err(); err != nil {
		opts.Metrics.sourceFault()
		return nil, FetchStats{}, err
	}

	stats.Pages = pager.Pages()
	stats.Fetched = len(received)
	stats.Exhausted = !reached && stats.Fetched < stats.Total
	if stats.Exhausted {
		logger.Info("source exhausted before reported total", "fetched", stats.Fetched, "total", stats.Total)
	}

	// One reversal turns newest-first into oldest-first. The stable sort only
	// moves messages the source delivered out of order; ties keep API order.
	slices.Reverse(received)
	slices.SortStableFunc(received, func(a, b SourceMessage) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})

	return received, stats, nil
}

// Messages strips the sender snapshots from fetched messages.
func Messages(fetched []SourceMessage) []chat.Message {
	out := make([]chat.Message, len(fetched))
	for i, m := range fetched {
		out[i] = m.Message
	}
	return out
}
