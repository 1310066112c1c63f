package archive_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/grouparchive/internal/archive"
	"github.com/roach88/grouparchive/internal/testutil"
)

func ids(msgs []archive.SourceMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestFetchAll_OldestFirstCompleteHistory(t *testing.T) {
	src := testutil.NewScriptedSource(archive.Group{}, history(7))

	var progress [][2]int
	msgs, stats, err := archive.FetchAll(context.Background(), src, archive.FetchOptions{
		PageSize: 3,
		Progress: func(fetched, total int) { progress = append(progress, [2]int{fetched, total}) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{id(1), id(2), id(3), id(4), id(5), id(6), id(7)}, ids(msgs))
	for i := 1; i < len(msgs); i++ {
		assert.LessOrEqual(t, msgs[i-1].CreatedAt, msgs[i].CreatedAt)
	}
	assert.Equal(t, archive.FetchStats{Pages: 3, Total: 7, Fetched: 7}, stats)
	assert.Equal(t, [][2]int{{3, 7}, {6, 7}, {7, 7}}, progress)
	assert.Len(t, src.Calls(), 3, "reaching the total ends the loop without another request")
}

func TestFetchAll_StopsAtReportedTotal(t *testing.T) {
	src := testutil.NewScriptedSource(archive.Group{}, history(10))
	src.Total = 4

	msgs, stats, err := archive.FetchAll(context.Background(), src, archive.FetchOptions{PageSize: 3})
	require.NoError(t, err)

	assert.Len(t, src.Calls(), 2)
	assert.Len(t, msgs, 6, "whole pages are kept")
	assert.False(t, stats.Exhausted)
}

func TestFetchAll_ExhaustionBeforeTotal(t *testing.T) {
	src := testutil.NewScriptedSource(archive.Group{}, history(5))
	src.Total = 10

	msgs, stats, err := archive.FetchAll(context.Background(), src, archive.FetchOptions{PageSize: 2})
	require.NoError(t, err)

	assert.Len(t, msgs, 5)
	assert.True(t, stats.Exhausted)
	assert.Equal(t, 10, stats.Total)
}

func TestFetchAll_EmptyChat(t *testing.T) {
	src := testutil.NewScriptedSource(archive.Group{}, nil)

	msgs, stats, err := archive.FetchAll(context.Background(), src, archive.FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 0, stats.Pages)
}

func TestFetchAll_DeduplicatesAndSortsOutOfOrderPages(t *testing.T) {
	src := testutil.NewScriptedSource(archive.Group{}, nil)
	src.Pages = [][]archive.SourceMessage{
		{testutil.Msg("c", "u1", 30, "c"), testutil.Msg("b", "u1", 20, "b")},
		{testutil.Msg("b", "u1", 20, "b again"), testutil.Msg("a", "u1", 25, "a")},
	}

	msgs, stats, err := archive.FetchAll(context.Background(), src, archive.FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a", "c"}, ids(msgs))
	assert.Equal(t, "b", *msgs[0].Text, "first occurrence wins")
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 3, stats.Fetched)
}

func TestFetchAll_TiesKeepAPIOrder(t *testing.T) {
	// Newest first: y was delivered before x, so y is the newer message.
	src := testutil.NewScriptedSource(archive.Group{}, []archive.SourceMessage{
		testutil.Msg("y", "u1", 5, ""),
		testutil.Msg("x", "u1", 5, ""),
		testutil.Msg("w", "u1", 4, ""),
	})

	msgs, _, err := archive.FetchAll(context.Background(), src, archive.FetchOptions{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"w", "x", "y"}, ids(msgs))
}

func TestFetchAll_SourceErrorAborts(t *testing.T) {
	boom := errors.New("connection reset")
	src := testutil.NewScriptedSource(archive.Group{}, history(9))
	src.Errors = map[int]error{3: boom}
	metrics := archive.NewMetrics()

	msgs, _, err := archive.FetchAll(context.Background(), src, archive.FetchOptions{PageSize: 3, Metrics: metrics})
	require.Error(t, err)
	assert.Nil(t, msgs)
	assert.True(t, archive.IsSourceFault(err))
	assert.ErrorIs(t, err, boom)
}

func TestFetchAll_CanceledContext(t *testing.T) {
	src := testutil.NewScriptedSource(archive.Group{}, history(3))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := archive.FetchAll(ctx, src, archive.FetchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
