package archive

import (
	"context"
	"errors"

	"github.com/roach88/grouparchive/internal/chat"
)

// ErrNotModified is returned by a Source when there is nothing older than
// the requested cursor. It signals exhaustion, not failure.
var ErrNotModified = errors.New("source: no messages before cursor")

// MaxPageSize is the largest page the GroupMe API serves.
const MaxPageSize = 100

// DefaultPageSize matches the API's default page.
const DefaultPageSize = 20

// Source is a reverse-chronological, cursor-driven message feed.
//
// Page returns up to limit messages strictly older than the message with
// id before, newest first. An empty before requests the newest page.
// Total is the chat's message count as reported by the source; it is only
// meaningful on the first page and may be approximate.
type Source interface {
	Page(ctx context.Context, before string, limit int) (Page, error)
}

// Page is one response from a Source.
type Page struct {
	Total    int
	Messages []SourceMessage
}

// SourceMessage is a message as delivered by the source, with the sender's
// name and avatar at the time the message was sent.
type SourceMessage struct {
	chat.Message
	SenderName   string
	SenderAvatar *string
}

// RosterMember is an entry of the chat's authoritative membership list.
type RosterMember struct {
	UserID   string
	Nickname string
	ImageURL *string
}

// Group is the chat metadata and roster returned by a group lookup.
type Group struct {
	ID      string
	Info    chat.GroupInfo
	Members []RosterMember
}

// GroupSource provides the group snapshot and its message feed.
type GroupSource interface {
	Group(ctx context.Context) (Group, error)
	Source
}
