package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/roach88/grouparchive/internal/chat"
)

// File names of the persisted archive records.
const (
	GroupInfoFile = "group_info.json"
	PeopleFile    = "people.json"
	MessagesFile  = "messages.json"
	DatabaseFile  = "archive.db"
	AvatarsDir    = "avatars"
	AttachmentDir = "attachments"
)

// ErrIncompleteArchive is returned by LoadJSON when a record file is missing.
var ErrIncompleteArchive = errors.New("archive is incomplete")

// WriteJSON persists the three archive records into dir. Each file is
// written to a temporary name and renamed, so a crash never leaves a
// truncated record behind.
func WriteJSON(dir string, a chat.Archive) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	messages := a.Messages
	if messages == nil {
		messages = []chat.Message{}
	}
	people := a.People
	if people == nil {
		people = chat.Registry{}
	}

	records := []struct {
		name  string
		value any
	}{
		{GroupInfoFile, a.Group},
		{PeopleFile, people},
		{MessagesFile, messages},
	}
	for _, r := range records {
		if err := writeJSONFile(filepath.Join(dir, r.name), r.value); err != nil {
			return fmt.Errorf("write archive: %s: %w", r.name, err)
		}
	}
	return nil
}

// LoadJSON reads an archive written by WriteJSON.
func LoadJSON(dir string) (chat.Archive, error) {
	var a chat.Archive
	targets := []struct {
		name string
		dst  any
	}{
		{GroupInfoFile, &a.Group},
		{PeopleFile, &a.People},
		{MessagesFile, &a.Messages},
	}
	for _, t := range targets {
		data, err := os.ReadFile(filepath.Join(dir, t.name))
		if errors.Is(err, fs.ErrNotExist) {
			return chat.Archive{}, fmt.Errorf("%w: missing %s in %s", ErrIncompleteArchive, t.name, dir)
		}
		if err != nil {
			return chat.Archive{}, fmt.Errorf("load archive: %w", err)
		}
		if err := json.Unmarshal(data, t.dst); err != nil {
			return chat.Archive{}, fmt.Errorf("load archive: %s: %w", t.name, err)
		}
	}
	for id, p := range a.People {
		p.ID = id
		a.People[id] = p
	}
	return a, nil
}

func writeJSONFile(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
