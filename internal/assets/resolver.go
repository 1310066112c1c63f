package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent downloads when Resolver.Workers is unset.
const DefaultWorkers = 4

// Observer receives per-asset outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	AssetFetched(kind string, bytes int64)
	AssetSkipped(kind string)
	AssetFailed(kind string)
}

// Resolver executes a Plan against an archive directory.
type Resolver struct {
	Fetcher  Fetcher
	Workers  int
	Logger   *slog.Logger
	Observer Observer
}

// Result is the outcome for one request.
type Result struct {
	Request
	File    string // file name inside the kind's directory; empty on failure
	Bytes   int64  // bytes downloaded; zero when skipped
	Skipped bool   // already present before this run
	Err     error  // *Fault on failure
}

// Report lists one Result per planned request, in plan order.
type Report struct {
	Results []Result
}

// Downloaded returns how many assets were fetched.
func (r Report) Downloaded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil && !res.Skipped {
			n++
		}
	}
	return n
}

// Skipped returns how many assets were already on disk.
func (r Report) Skipped() int {
	n := 0
	for _, res := range r.Results {
		if res.Skipped {
			n++
		}
	}
	return n
}

// Failures returns the failed results.
func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Bytes returns the total bytes downloaded.
func (r Report) Bytes() int64 {
	var n int64
	for _, res := range r.Results {
		n += res.Bytes
	}
	return n
}

// Resolve downloads every request in plan that is not yet present under
// root. It returns once all downloads have finished. The error is non-nil
// only when the destination directories cannot be prepared; individual
// download failures are reported in the Report.
func (r *Resolver) Resolve(ctx context.Context, root string, plan Plan) (Report, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	indexes := make(map[Kind]Index)
	for _, kind := range []Kind{KindAvatar, KindAttachment} {
		dir := filepath.Join(root, kind.Dir())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Report{}, fmt.Errorf("prepare %s: %w", dir, err)
		}
		idx, err := LoadIndex(dir)
		if err != nil {
			return Report{}, err
		}
		indexes[kind] = idx
	}

	for _, f := range plan.Faults {
		logger.Warn("skipping asset", "kind", f.Kind, "url", f.URL, "error", f.Err)
		r.failed(f.Kind)
	}

	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	// Each worker writes only its own slot, so results need no lock.
	results := make([]Result, len(plan.Requests))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, req := range plan.Requests {
		if name, ok := indexes[req.Kind].Lookup(req.ID); ok {
			results[i] = Result{Request: req, File: name, Skipped: true}
			r.skipped(req.Kind)
			continue
		}
		i, req := i, req
		g.Go(func() error {
			res := r.download(ctx, filepath.Join(root, req.Kind.Dir()), req)
			if res.Err != nil {
				logger.Warn("asset download failed", "kind", req.Kind, "asset", req.ID, "error", res.Err)
				r.failed(req.Kind)
			} else {
				logger.Debug("asset downloaded", "kind", req.Kind, "asset", req.ID, "file", res.File, "bytes", res.Bytes)
				r.fetched(req.Kind, res.Bytes)
			}
			results[i] = res
			// Never return an error: a failed asset must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	return Report{Results: results}, nil
}

func (r *Resolver) download(ctx context.Context, dir string, req Request) Result {
	res := Result{Request: req}
	fail := func(err error) Result {
		res.Err = &Fault{Kind: req.Kind, ID: req.ID, URL: req.URL, Err: err}
		return res
	}

	if r.Fetcher == nil {
		return fail(fmt.Errorf("no fetcher configured"))
	}
	resp, err := r.Fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	ext, err := ExtensionFor(resp.ContentType)
	if err != nil {
		return fail(err)
	}

	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return fail(err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), 0o644)
	}
	if err != nil {
		return fail(fmt.Errorf("write: %w", err))
	}

	name := req.ID + "." + ext
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fail(err)
	}

	res.File = name
	res.Bytes = n
	return res
}

func (r *Resolver) fetched(kind Kind, n int64) {
	if r.Observer != nil {
		r.Observer.AssetFetched(string(kind), n)
	}
}

func (r *Resolver) skipped(kind Kind) {
	if r.Observer != nil {
		r.Observer.AssetSkipped(string(kind))
	}
}

func (r *Resolver) failed(kind Kind) {
	if r.Observer != nil {
		r.Observer.AssetFailed(string(kind))
	}
}
