package archive

import (
	"fmt"

	"github.com/roach88/grouparchive/internal/chat"
)

// AvatarPolicy selects which avatar represents a person.
type AvatarPolicy int

const (
	// LocalAvatar prefers the avatar the sender used in this chat, falling
	// back to the roster avatar.
	LocalAvatar AvatarPolicy = iota

	// GlobalAvatar always uses the roster avatar when there is one.
	GlobalAvatar
)

func (p AvatarPolicy) String() string {
	switch p {
	case LocalAvatar:
		return "local"
	case GlobalAvatar:
		return "global"
	}
	return fmt.Sprintf("AvatarPolicy(%d)", int(p))
}

// ParseAvatarPolicy converts "local" or "global" to an AvatarPolicy.
func ParseAvatarPolicy(s string) (AvatarPolicy, error) {
	switch s {
	case "local", "":
		return LocalAvatar, nil
	case "global":
		return GlobalAvatar, nil
	}
	return LocalAvatar, fmt.Errorf("unknown avatar policy %q", s)
}

// ResolvePeople builds the person registry for an archive.
//
// The roster seeds the registry; the first roster entry for an id wins.
// Senders missing from the roster (people who left the chat, bots, the
// system sender) are added from the snapshot on their newest message.
// msgs must be oldest first, as returned by FetchAll.
func ResolvePeople(roster []RosterMember, msgs []SourceMessage, policy AvatarPolicy) chat.Registry {
	reg := make(chat.Registry, len(roster))
	for _, m := range roster {
		if _, ok := reg[m.UserID]; ok {
			continue
		}
		reg[m.UserID] = chat.Person{
			ID:              m.UserID,
			Name:            m.Nickname,
			GlobalAvatarURL: nonEmpty(m.ImageURL),
		}
	}

	// Newest message first, so "first seen" is the most recent snapshot.
	local := make(map[string]*string)
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if _, ok := reg[m.Author]; !ok {
			reg[m.Author] = chat.Person{
				ID:        m.Author,
				Name:      m.SenderName,
				AvatarURL: nonEmpty(m.SenderAvatar),
			}
		}
		if _, ok := local[m.Author]; !ok {
			if a := nonEmpty(m.SenderAvatar); a != nil {
				local[m.Author] = a
			}
		}
	}

	for id, p := range reg {
		switch policy {
		case GlobalAvatar:
			if p.GlobalAvatarURL != nil {
				p.AvatarURL = p.GlobalAvatarURL
			}
		case LocalAvatar:
			if a, ok := local[id]; ok {
				p.AvatarURL = a
			} else if p.GlobalAvatarURL != nil {
				p.AvatarURL = p.GlobalAvatarURL
			}
		}
		reg[id] = p
	}
	return reg
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
