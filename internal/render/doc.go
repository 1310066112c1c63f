// Package render turns an archive into a display document.
//
// Build makes a single pass over the messages, oldest first, and produces a
// Document: a flat list of items (day separators, system messages and user
// messages) holding everything a serializer needs and nothing it has to
// look up. Serializers (HTML, Text) only format; they never consult the
// archive, the registry or the file system.
package render

import "time"

// Document is the rendered form of one archive.
type Document struct {
	Title string
	Items []Item
}

// Item is one entry of a Document: *DaySeparator, *SystemMessage or
// *UserMessage.
type Item interface {
	item()
}

// DaySeparator marks the first message of a calendar day.
type DaySeparator struct {
	Date      time.Time // time of the first message of the day
	Timestamp string
}

// SystemMessage is a message sent by the chat service itself.
type SystemMessage struct {
	MessageID string
	Timestamp string
	Text      string
}

// UserMessage is a message sent by a participant.
type UserMessage struct {
	MessageID string
	Timestamp string
	Avatar    Avatar
	Author    string
	Media     []Media
	Body      []Span
	Likes     Likes
}

// Avatar is either an image path relative to the archive root or, when
// Image is empty, the author's initials.
type Avatar struct {
	Image    string
	Initials string
}

// MediaKind is the type of an inline attachment.
type MediaKind int

const (
	MediaImage MediaKind = iota
	MediaVideo
)

func (k MediaKind) String() string {
	if k == MediaVideo {
		return "video"
	}
	return "image"
}

// Media is an inline attachment with its path relative to the archive root.
type Media struct {
	Kind MediaKind
	Src  string
}

// Span is a run of message text. Bold spans are mentions.
type Span struct {
	Text string
	Bold bool
}

// Likes summarizes who favorited a message.
type Likes struct {
	Filled bool
	Count  int
	Names  []string
}

func (*DaySeparator) item()  {}
func (*SystemMessage) item() {}
func (*UserMessage) item()   {}
