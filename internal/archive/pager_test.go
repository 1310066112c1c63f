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

// history returns n messages, newest first, ids m<n>..m1, one second apart.
func history(n int) []archive.SourceMessage {
	out := make([]archive.SourceMessage, 0, n)
	for i := n; i >= 1; i-- {
		out = append(out, testutil.Msg(id(i), "u1", int64(1000+i), "hello"))
	}
	return out
}

func id(i int) string {
	return "m" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}

func TestPager_WalksUntilNotModified(t *testing.T) {
	src := testutil.NewScriptedSource(archive.Group{}, history(5))
	p := archive.NewPager(src, 2)

	var sizes []int
	for p.Next(context.Background()) {
		sizes = append(sizes, len(p.Page().Messages))
	}

	require.NoError(t, p.Err())
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, 3, p.Pages())
	assert.Equal(t, id(1), p.Cursor())

	calls := src.Calls()
	require.Len(t, calls, 4, "the fourth request hits 304")
	assert.Equal(t, "", calls[0].Before)
	assert.Equal(t, id(4), calls[1].Before)
	assert.False(t, p.Next(context.Background()), "exhausted pager stays exhausted")
	assert.Len(t, src.Calls(), 4)
}

func TestPager_ErrorIsSourceFault(t *testing.T) {
	boom := errors.New("502 bad gateway")
	src := testutil.NewScriptedSource(archive.Group{}, history(6))
	src.Errors = map[int]error{2: boom}

	p := archive.NewPager(src, 3)
	require.True(t, p.Next(context.Background()))
	require.False(t, p.Next(context.Background()))

	err := p.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var fault *archive.SourceFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, 2, fault.Page)
	assert.Equal(t, id(4), fault.Cursor)
}

func TestPager_StopsOnNonAdvancingCursor(t *testing.T) {
	page := history(2)
	src := testutil.NewScriptedSource(archive.Group{}, nil)
	src.Pages = [][]archive.SourceMessage{page, page, page}

	p := archive.NewPager(src, 20)
	n := 0
	for p.Next(context.Background()) {
		n++
	}
	require.NoError(t, p.Err())
	assert.Equal(t, 1, n)
}

func TestPager_PageEndingWithoutIDIsSourceFault(t *testing.T) {
	src := testutil.NewScriptedSource(archive.Group{}, nil)
	src.Pages = [][]archive.SourceMessage{{
		testutil.Msg("a", "u1", 2, "kept id"),
		testutil.Msg("", "u1", 1, "no id"),
	}}

	p := archive.NewPager(src, 20)
	assert.False(t, p.Next(context.Background()))
	require.Error(t, p.Err())
	assert.True(t, archive.IsSourceFault(p.Err()))

	var fault *archive.SourceFault
	require.ErrorAs(t, p.Err(), &fault)
	assert.Equal(t, 1, fault.Page)
	assert.Equal(t, "", fault.Cursor)
	assert.Equal(t, 0, p.Pages())
}

func TestPager_EmptyPageIsExhaustion(t *testing.T) {
	src := testutil.NewScriptedSource(archive.Group{}, nil)
	src.Pages = [][]archive.SourceMessage{{}}

	p := archive.NewPager(src, 20)
	assert.False(t, p.Next(context.Background()))
	assert.NoError(t, p.Err())
	assert.Equal(t, 0, p.Pages())
}

func TestPager_ClampsPageSize(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: archive.DefaultPageSize},
		{limit: -5, want: archive.DefaultPageSize},
		{limit: 50, want: 50},
		{limit: 500, want: archive.MaxPageSize},
	}
	for _, tt := range tests {
		src := testutil.NewScriptedSource(archive.Group{}, history(1))
		p := archive.NewPager(src, tt.limit)
		p.Next(context.Background())
		assert.Equal(t, tt.want, src.Calls()[0].Limit, "limit %d", tt.limit)
	}
}
