package chat

import (
	"encoding/json"
	"time"
)

// Message is one archived chat message.
type Message struct {
	ID          string      `json:"id"`
	Author      string      `json:"author"`
	CreatedAt   int64       `json:"created_at"` // epoch seconds
	Text        *string     `json:"text"`
	FavoritedBy []string    `json:"favorited_by"`
	Attachments Attachments `json:"attachments"`
}

// Time returns the creation time in loc. A nil loc means time.Local.
func (m Message) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(m.CreatedAt, 0).In(loc)
}

// Body returns the message text, or "" when the text is null.
func (m Message) Body() string {
	if m.Text == nil {
		return ""
	}
	return *m.Text
}

// MarshalJSON keeps favorited_by and attachments as arrays even when empty.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	p := plain(m)
	if p.FavoritedBy == nil {
		p.FavoritedBy = []string{}
	}
	if p.Attachments == nil {
		p.Attachments = Attachments{}
	}
	return json.Marshal(p)
}

// GroupInfo is a static snapshot of the archived chat.
type GroupInfo struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
	CreatedAt   int64   `json:"created_at"`
}

// Archive is the complete persisted state of one chat.
type Archive struct {
	Group    GroupInfo
	People   Registry
	Messages []Message
}

// StringPtr returns a pointer to s. Useful for nullable text fields.
func StringPtr(s string) *string {
	return &s
}
