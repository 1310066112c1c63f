package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/grouparchive/internal/chat"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestArchive creates a small archive with two people and three
// messages, two of which share a timestamp.
func createTestArchive() chat.Archive {
	avatar := "https://i.groupme.com/alice"
	return chat.Archive{
		Group: chat.GroupInfo{
			Name:        "Weekend Plans",
			Description: chat.StringPtr("hiking & more"),
			CreatedAt:   1600000000,
		},
		People: chat.Registry{
			"1": {ID: "1", Name: "Alice", AvatarURL: &avatar},
			"2": {ID: "2", Name: "Bob"},
		},
		Messages: []chat.Message{
			{ID: "m1", Author: "1", CreatedAt: 1600000100, Text: chat.StringPtr("hi"), FavoritedBy: []string{"2"}, Attachments: chat.Attachments{}},
			{ID: "m2", Author: "2", CreatedAt: 1600000100, FavoritedBy: []string{}, Attachments: chat.Attachments{
				chat.Image{URL: "https://i.groupme.com/640x480.png.abc"},
			}},
			{ID: "m3", Author: "1", CreatedAt: 1600000200, Text: chat.StringPtr("@Bob yes"), FavoritedBy: []string{}, Attachments: chat.Attachments{
				chat.Mentions{UserIDs: []string{"2"}, Loci: []chat.Locus{{Start: 0, Length: 4}}},
			}},
		},
	}
}

// createTestRun creates a run record with minimal required fields.
func createTestRun(id string, started time.Time) Run {
	return Run{
		ID:           id,
		GroupID:      "42",
		StartedAt:    started,
		FinishedAt:   started.Add(time.Minute),
		Messages:     3,
		People:       2,
		AvatarPolicy: "local",
		Digest:       "test-digest",
	}
}
