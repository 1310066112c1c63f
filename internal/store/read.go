package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/grouparchive/internal/chat"
)

// ErrNoSnapshot is returned when the index holds no archive yet.
var ErrNoSnapshot = errors.New("store: no snapshot recorded")

// LoadArchive reads the stored snapshot. Messages come back in archive
// order.
func (s *Store) LoadArchive(ctx context.Context) (chat.Archive, error) {
	var a chat.Archive

	var desc, image sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT name, description, image_url, created_at FROM group_info WHERE id = 1
	`).Scan(&a.Group.Name, &desc, &image, &a.Group.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Archive{}, ErrNoSnapshot
	}
	if err != nil {
		return chat.Archive{}, fmt.Errorf("read group info: %w", err)
	}
	a.Group.Description = stringPtr(desc)
	a.Group.ImageURL = stringPtr(image)

	if a.People, err = s.readPeople(ctx); err != nil {
		return chat.Archive{}, err
	}
	if a.Messages, err = s.readMessages(ctx); err != nil {
		return chat.Archive{}, err
	}
	return a, nil
}

func (s *Store) readPeople(ctx context.Context) (chat.Registry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, avatar_url, global_avatar_url FROM people ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	people := chat.Registry{}
	for rows.Next() {
		var p chat.Person
		var avatar, global sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &avatar, &global); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		p.AvatarURL = stringPtr(avatar)
		p.GlobalAvatarURL = stringPtr(global)
		people[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return people, nil
}

func (s *Store) readMessages(ctx context.Context) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author, created_at, text, favorited_by, attachments
		FROM messages
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []chat.Message{}
	for rows.Next() {
		var m chat.Message
		var text sql.NullString
		var likes, atts string
		if err := rows.Scan(&m.ID, &m.Author, &m.CreatedAt, &text, &likes, &atts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Text = stringPtr(text)
		if err := json.Unmarshal([]byte(likes), &m.FavoritedBy); err != nil {
			return nil, fmt.Errorf("decode likes for %s: %w", m.ID, err)
		}
		if err := json.Unmarshal([]byte(atts), &m.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments for %s: %w", m.ID, err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// Runs returns all recorded runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, started_at, finished_at, message_count, people_count, avatar_policy, digest
		FROM runs
		ORDER BY started_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.GroupID, &started, &finished, &r.Messages, &r.People, &r.AvatarPolicy, &r.Digest); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		r.FinishedAt = time.Unix(finished, 0).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recent run, or ErrNoSnapshot.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	runs, err := s.Runs(ctx)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrNoSnapshot
	}
	return runs[len(runs)-1], nil
}

// Assets returns the recorded assets of one kind, ordered by id.
func (s *Store) Assets(ctx context.Context, kind string) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, file_name, source_url, bytes
		FROM assets
		WHERE kind = ?
		ORDER BY id ASC
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.Kind, &a.ID, &a.FileName, &a.SourceURL, &a.Bytes); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return out, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
