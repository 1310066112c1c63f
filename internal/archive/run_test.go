package archive_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/grouparchive/internal/archive"
	"github.com/roach88/grouparchive/internal/assets"
	"github.com/roach88/grouparchive/internal/chat"
	"github.com/roach88/grouparchive/internal/store"
	"github.com/roach88/grouparchive/internal/testutil"
)

// mapFetcher serves fixed bodies by URL and counts calls.
type mapFetcher struct {
	mu    sync.Mutex
	files map[string]string
	calls int
}

func (f *mapFetcher) Fetch(ctx context.Context, url string) (*assets.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	body, ok := f.files[url]
	if !ok {
		return nil, fmt.Errorf("no such asset %s", url)
	}
	return &assets.Response{ContentType: "image/png", Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *mapFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func runFixture() (*testutil.ScriptedSource, *mapFetcher) {
	avatar := "https://i.groupme.com/alice"
	img := "https://i.groupme.com/800x600.png.1"

	withImage := testutil.Msg("m2", "u2", 200, "look")
	withImage.Attachments = chat.Attachments{chat.Image{URL: img}}

	src := testutil.NewScriptedSource(archive.Group{
		ID:   "42",
		Info: chat.GroupInfo{Name: "Family", CreatedAt: 1},
		Members: []archive.RosterMember{
			{UserID: "u1", Nickname: "Alice", ImageURL: &avatar},
			{UserID: "u2", Nickname: "Bob"},
		},
	}, []archive.SourceMessage{
		testutil.Msg("m3", "u1", 300, "bye"),
		withImage,
		testutil.Msg("m1", "u1", 100, "hi"),
	})

	fetcher := &mapFetcher{files: map[string]string{
		avatar + ".avatar": "avatar-bytes",
		img:                "image-bytes",
	}}
	return src, fetcher
}

func TestRun_PersistsArchive(t *testing.T) {
	dir := t.TempDir()
	src, fetcher := runFixture()
	clock := testutil.NewStepClock(time.Unix(1700000000, 0), time.Minute)
	metrics := archive.NewMetrics()

	summary, err := archive.Run(context.Background(), src, archive.RunOptions{
		Dir:          dir,
		PageSize:     2,
		AvatarSuffix: ".avatar",
		Fetcher:      fetcher,
		Metrics:      metrics,
		Now:          clock.Now,
	})
	require.NoError(t, err)

	assert.Equal(t, "42", summary.GroupID)
	assert.Len(t, summary.Archive.Messages, 3)
	assert.Equal(t, 2, summary.Assets.Downloaded())
	assert.Equal(t, 2, fetcher.Calls())

	loaded, err := archive.LoadJSON(dir)
	require.NoError(t, err)
	assert.Equal(t, summary.Digest, digest(t, loaded))
	assert.FileExists(t, filepath.Join(dir, archive.AvatarsDir, "alice.png"))
	assert.FileExists(t, filepath.Join(dir, archive.AttachmentDir, "800x600.png.1.png"))

	s, err := store.Open(filepath.Join(dir, archive.DatabaseFile))
	require.NoError(t, err)
	defer s.Close()

	run, err := s.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, run.ID)
	assert.Equal(t, summary.Digest, run.Digest)
	assert.Equal(t, "local", run.AvatarPolicy)
	assert.Equal(t, int64(1700000000), run.StartedAt.Unix())
	assert.Equal(t, int64(1700000060), run.FinishedAt.Unix())

	indexed, err := s.LoadArchive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary.Digest, digest(t, indexed))

	avatars, err := s.Assets(context.Background(), "avatars")
	require.NoError(t, err)
	require.Len(t, avatars, 1)
	assert.Equal(t, "alice.png", avatars[0].FileName)

	expected := `
# HELP grouparchive_pages_fetched_total Message pages retrieved from the source.
# TYPE grouparchive_pages_fetched_total counter
grouparchive_pages_fetched_total 2
# HELP grouparchive_messages_fetched_total Messages retrieved from the source, before dedup.
# TYPE grouparchive_messages_fetched_total counter
grouparchive_messages_fetched_total 3
# HELP grouparchive_assets_downloaded_total Assets downloaded, by kind.
# TYPE grouparchive_assets_downloaded_total counter
grouparchive_assets_downloaded_total{kind="attachment"} 1
grouparchive_assets_downloaded_total{kind="avatar"} 1
# HELP grouparchive_people People in the resolved registry.
# TYPE grouparchive_people gauge
grouparchive_people 2
`
	assert.NoError(t, promtest.GatherAndCompare(metrics.Registry, strings.NewReader(expected),
		"grouparchive_pages_fetched_total",
		"grouparchive_messages_fetched_total",
		"grouparchive_assets_downloaded_total",
		"grouparchive_people",
	))

	textfile := filepath.Join(t.TempDir(), "archive.prom")
	require.NoError(t, metrics.WriteTextfile(textfile))
	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "grouparchive_last_success_timestamp_seconds")
}

func TestRun_SecondRunSkipsAssets(t *testing.T) {
	dir := t.TempDir()
	src, fetcher := runFixture()
	opts := archive.RunOptions{Dir: dir, AvatarSuffix: ".avatar", Fetcher: fetcher}

	_, err := archive.Run(context.Background(), src, opts)
	require.NoError(t, err)
	require.Equal(t, 2, fetcher.Calls())

	src2, _ := runFixture()
	summary, err := archive.Run(context.Background(), src2, opts)
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.Calls(), "no network fetches on the second run")
	assert.Equal(t, 2, summary.Assets.Skipped())

	s, err := store.Open(filepath.Join(dir, archive.DatabaseFile))
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Runs(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRun_SourceFaultWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	src, fetcher := runFixture()
	src.Errors = map[int]error{2: errors.New("503")}

	_, err := archive.Run(context.Background(), src, archive.RunOptions{Dir: dir, PageSize: 1, Fetcher: fetcher})
	require.Error(t, err)
	assert.True(t, archive.IsSourceFault(err))

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "no archive directory after a source fault")
	assert.Equal(t, 0, fetcher.Calls())
}

func TestRun_AssetFailuresDoNotAbort(t *testing.T) {
	dir := t.TempDir()
	src, _ := runFixture()
	broken := &mapFetcher{files: map[string]string{}}

	summary, err := archive.Run(context.Background(), src, archive.RunOptions{Dir: dir, AvatarSuffix: ".avatar", Fetcher: broken})
	require.NoError(t, err)
	assert.Len(t, summary.Assets.Failures(), 2)
	assert.FileExists(t, filepath.Join(dir, archive.MessagesFile))
}

func TestRun_GroupLookupFailure(t *testing.T) {
	src, fetcher := runFixture()
	src.GroupErr = errors.New("404 not found")

	_, err := archive.Run(context.Background(), src, archive.RunOptions{Dir: t.TempDir(), Fetcher: fetcher})
	require.Error(t, err)
	assert.Empty(t, src.Calls())
}

func TestRun_PreservedAttachmentWithFractionalNumbers(t *testing.T) {
	dir := t.TempDir()
	src, fetcher := runFixture()

	var atts chat.Attachments
	require.NoError(t, json.Unmarshal([]byte(`[{"type":"location","lat":40.7,"lng":-74.0,"name":"Office"}]`), &atts))
	src.History[0].Attachments = atts

	summary, err := archive.Run(context.Background(), src, archive.RunOptions{Dir: dir, AvatarSuffix: ".avatar", Fetcher: fetcher})
	require.NoError(t, err)

	loaded, err := archive.LoadJSON(dir)
	require.NoError(t, err)
	assert.Equal(t, summary.Digest, digest(t, loaded))

	s, err := store.Open(filepath.Join(dir, archive.DatabaseFile))
	require.NoError(t, err)
	defer s.Close()
	run, err := s.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary.Digest, run.Digest)
}

func TestRun_DigestFailureWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	src, fetcher := runFixture()
	src.History[0].Attachments = chat.Attachments{
		chat.Other{Kind: "location", Raw: json.RawMessage(`{"type":"location","lat":1e400}`)},
	}

	_, err := archive.Run(context.Background(), src, archive.RunOptions{Dir: dir, Fetcher: fetcher})
	require.Error(t, err)
	assert.True(t, archive.IsPersistFault(err))

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "no archive directory after a digest failure")
	assert.Equal(t, 0, fetcher.Calls())
}

func TestRun_UnwritableDirIsPersistFault(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0o644))
	src, fetcher := runFixture()

	_, err := archive.Run(context.Background(), src, archive.RunOptions{Dir: dir, Fetcher: fetcher})
	require.Error(t, err)
	assert.True(t, archive.IsPersistFault(err))
	assert.False(t, archive.IsSourceFault(err))
}

func TestRun_MalformedFirstPageKeepsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	src, fetcher := runFixture()
	first, err := archive.Run(context.Background(), src, archive.RunOptions{Dir: dir, AvatarSuffix: ".avatar", Fetcher: fetcher})
	require.NoError(t, err)

	broken, _ := runFixture()
	broken.Pages = [][]archive.SourceMessage{{testutil.Msg("m9", "u1", 400, "new"), testutil.Msg("", "u1", 350, "no id")}}
	_, err = archive.Run(context.Background(), broken, archive.RunOptions{Dir: dir, AvatarSuffix: ".avatar", Fetcher: fetcher})
	require.Error(t, err)
	assert.True(t, archive.IsSourceFault(err))

	loaded, err := archive.LoadJSON(dir)
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 3)
	assert.Equal(t, first.Digest, digest(t, loaded))

	s, err := store.Open(filepath.Join(dir, archive.DatabaseFile))
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Runs(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
