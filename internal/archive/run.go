package archive

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/roach88/grouparchive/internal/assets"
	"github.com/roach88/grouparchive/internal/chat"
	"github.com/roach88/grouparchive/internal/store"
)

// RunOptions configures Run.
type RunOptions struct {
	// Dir is the archive directory. It is created if missing.
	Dir string

	PageSize     int
	Policy       AvatarPolicy
	Workers      int
	AvatarSuffix string

	// Fetcher downloads assets. Required.
	Fetcher assets.Fetcher

	Progress func(fetched, total int)
	Logger   *slog.Logger
	Metrics  *Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Summary describes a completed run.
type Summary struct {
	RunID   string
	GroupID string
	Archive chat.Archive
	Fetch   FetchStats
	Assets  assets.Report
	Digest  string
}

// Run archives one chat into opts.Dir: it fetches the full history,
// resolves people, downloads assets, then persists the JSON records and
// the archive.db snapshot. Source and integrity faults abort before
// anything is written; local write failures are returned as a
// *PersistFault; asset faults are reported in Summary.Assets.
func Run(ctx context.Context, src GroupSource, opts RunOptions) (*Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("archive run: no asset fetcher configured")
	}
	started := now()

	group, err := src.Group(ctx)
	if err != nil {
		return nil, fmt.Errorf("look up group: %w", err)
	}
	logger = logger.With("group", group.ID)
	logger.Info("archiving group", "name", group.Info.Name, "members", len(group.Members))

	fetched, stats, err := FetchAll(ctx, src, FetchOptions{
		PageSize: opts.PageSize,
		Progress: opts.Progress,
		Logger:   logger,
		Metrics:  opts.Metrics,
	})
	if err != nil {
		return nil, err
	}

	people := ResolvePeople(group.Members, fetched, opts.Policy)
	messages := Messages(fetched)
	if err := people.Verify(messages); err != nil {
		return nil, err
	}
	opts.Metrics.setPeople(len(people))

	a := chat.Archive{Group: group.Info, People: people, Messages: messages}
	digest, err := chat.Digest(a)
	if err != nil {
		return nil, &PersistFault{Op: "compute digest", Err: err}
	}

	plan := assets.BuildPlan(messages, people, assets.PlanOptions{AvatarSuffix: opts.AvatarSuffix})
	resolver := &assets.Resolver{
		Fetcher:  opts.Fetcher,
		Workers:  opts.Workers,
		Logger:   logger,
		Observer: opts.Metrics,
	}
	report, err := resolver.Resolve(ctx, opts.Dir, plan)
	if err != nil {
		return nil, &PersistFault{Op: "prepare asset directories", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := WriteJSON(opts.Dir, a); err != nil {
		return nil, &PersistFault{Op: "write records", Err: err}
	}

	runID := store.NewRunID()
	if err := saveSnapshot(ctx, opts.Dir, store.Snapshot{
		Run: store.Run{
			ID:           runID,
			GroupID:      group.ID,
			StartedAt:    started,
			FinishedAt:   now(),
			Messages:     len(messages),
			People:       len(people),
			AvatarPolicy: opts.Policy.String(),
			Digest:       digest,
		},
		Archive: a,
		Assets:  storedAssets(report),
	}); err != nil {
		return nil, &PersistFault{Op: "save snapshot", Err: err}
	}
	opts.Metrics.succeeded()

	logger.Info("archive complete",
		"run", runID,
		"messages", len(messages),
		"people", len(people),
		"assets_downloaded", report.Downloaded(),
		"assets_failed", len(report.Failures()),
	)

	return &Summary{
		RunID:   runID,
		GroupID: group.ID,
		Archive: a,
		Fetch:   stats,
		Assets:  report,
		Digest:  digest,
	}, nil
}

func saveSnapshot(ctx context.Context, dir string, snap store.Snapshot) error {
	s, err := store.Open(filepath.Join(dir, DatabaseFile))
	if err != nil {
		return fmt.Errorf("open archive index: %w", err)
	}
	defer s.Close()

	if err := s.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save archive index: %w", err)
	}
	return nil
}

// storedAssets lists the assets present on disk after the run, skipped
// ones included, so the index also covers files from earlier runs.
func storedAssets(report assets.Report) []store.Asset {
	var out []store.Asset
	for _, res := range report.Results {
		if res.Err != nil {
			continue
		}
		out = append(out, store.Asset{
			Kind:      res.Kind.Dir(),
			ID:        res.ID,
			FileName:  res.File,
			SourceURL: res.URL,
			Bytes:     res.Bytes,
		})
	}
	return out
}
