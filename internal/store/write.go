package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/grouparchive/internal/chat"
)

// Run describes one successful archive run.
type Run struct {
	ID           string
	GroupID      string
	StartedAt    time.Time
	FinishedAt   time.Time
	Messages     int
	People       int
	AvatarPolicy string
	Digest       string
}

// Asset is one downloaded avatar or attachment.
type Asset struct {
	Kind      string
	ID        string
	FileName  string
	SourceURL string
	Bytes     int64
}

// Snapshot is everything a run persists.
type Snapshot struct {
	Run     Run
	Archive chat.Archive
	Assets  []Asset
}

// SaveSnapshot replaces the stored group, people and messages with snap's
// and records the run and any new assets. All writes share one
// transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) (err error) {
	if snap.Run.ID == "" {
		return fmt.Errorf("save snapshot: run id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = replaceGroup(ctx, tx, snap.Archive.Group); err != nil {
		return err
	}
	if err = replacePeople(ctx, tx, snap.Archive.People); err != nil {
		return err
	}
	if err = replaceMessages(ctx, tx, snap.Archive.Messages); err != nil {
		return err
	}
	if err = insertAssets(ctx, tx, snap.Run.ID, snap.Assets); err != nil {
		return err
	}
	if err = insertRun(ctx, tx, snap.Run); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func replaceGroup(ctx context.Context, tx *sql.Tx, g chat.GroupInfo) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO group_info (id, name, description, image_url, created_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			image_url = excluded.image_url,
			created_at = excluded.created_at
	`, g.Name, nullString(g.Description), nullString(g.ImageURL), g.CreatedAt)
	if err != nil {
		return fmt.Errorf("write group info: %w", err)
	}
	return nil
}

func replacePeople(ctx context.Context, tx *sql.Tx, people chat.Registry) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM people"); err != nil {
		return fmt.Errorf("clear people: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO people (id, name, avatar_url, global_avatar_url)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare people insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range people.IDs() {
		p := people[id]
		if _, err := stmt.ExecContext(ctx, id, p.Name, nullString(p.AvatarURL), nullString(p.GlobalAvatarURL)); err != nil {
			return fmt.Errorf("insert person %s: %w", id, err)
		}
	}
	return nil
}

func replaceMessages(ctx context.Context, tx *sql.Tx, msgs []chat.Message) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (seq, id, author, created_at, text, favorited_by, attachments)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		likes := m.FavoritedBy
		if likes == nil {
			likes = []string{}
		}
		likesJSON, err := json.Marshal(likes)
		if err != nil {
			return fmt.Errorf("marshal likes for %s: %w", m.ID, err)
		}
		attJSON, err := json.Marshal(m.Attachments)
		if err != nil {
			return fmt.Errorf("marshal attachments for %s: %w", m.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, i+1, m.ID, m.Author, m.CreatedAt,
			nullString(m.Text), string(likesJSON), string(attJSON)); err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}
	return nil
}

func insertAssets(ctx context.Context, tx *sql.Tx, runID string, assets []Asset) error {
	if len(assets) == 0 {
		return nil
	}

	// First writer wins; re-recording an asset is a no-op.
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assets (kind, id, file_name, source_url, bytes, run_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare asset insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range assets {
		if _, err := stmt.ExecContext(ctx, a.Kind, a.ID, a.FileName, a.SourceURL, a.Bytes, runID); err != nil {
			return fmt.Errorf("insert asset %s/%s: %w", a.Kind, a.ID, err)
		}
	}
	return nil
}

func insertRun(ctx context.Context, tx *sql.Tx, r Run) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, group_id, started_at, finished_at, message_count, people_count, avatar_policy, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.GroupID, r.StartedAt.Unix(), r.FinishedAt.Unix(), r.Messages, r.People, r.AvatarPolicy, r.Digest)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
