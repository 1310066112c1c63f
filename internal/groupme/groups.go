package groupme

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/roach88/grouparchive/internal/archive"
	"github.com/roach88/grouparchive/internal/chat"
)

type wireMember struct {
	UserID   string  `json:"user_id"`
	Nickname string  `json:"nickname"`
	ImageURL *string `json:"image_url"`
}

type wireGroup struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	ImageURL    *string      `json:"image_url"`
	CreatedAt   int64        `json:"created_at"`
	Members     []wireMember `json:"members"`
	Messages    struct {
		Count int `json:"count"`
	} `json:"messages"`
}

type wireMessage struct {
	ID          string           `json:"id"`
	SenderID    string           `json:"sender_id"`
	Name        string           `json:"name"`
	AvatarURL   *string          `json:"avatar_url"`
	CreatedAt   int64            `json:"created_at"`
	Text        *string          `json:"text"`
	FavoritedBy []string         `json:"favorited_by"`
	Attachments chat.Attachments `json:"attachments"`
}

type wireMessages struct {
	Count    int           `json:"count"`
	Messages []wireMessage `json:"messages"`
}

// Group fetches the group's metadata and roster.
func (c *Client) Group(ctx context.Context, groupID string) (archive.Group, error) {
	var g wireGroup
	if err := c.get(ctx, "/groups/"+url.PathEscape(groupID), nil, &g); err != nil {
		return archive.Group{}, fmt.Errorf("get group %s: %w", groupID, err)
	}

	members := make([]archive.RosterMember, 0, len(g.Members))
	for _, m := range g.Members {
		members = append(members, archive.RosterMember{
			UserID:   m.UserID,
			Nickname: m.Nickname,
			ImageURL: m.ImageURL,
		})
	}

	id := g.ID
	if id == "" {
		id = groupID
	}
	return archive.Group{
		ID: id,
		Info: chat.GroupInfo{
			Name:        g.Name,
			Description: g.Description,
			ImageURL:    g.ImageURL,
			CreatedAt:   g.CreatedAt,
		},
		Members: members,
	}, nil
}

// Messages fetches up to limit messages older than before, newest first.
// A 304 response is reported as archive.ErrNotModified.
func (c *Client) Messages(ctx context.Context, groupID, before string, limit int) (archive.Page, error) {
	query := url.Values{}
	if before != "" {
		query.Set("before_id", before)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var wm wireMessages
	err := c.get(ctx, "/groups/"+url.PathEscape(groupID)+"/messages", query, &wm)
	if errors.Is(err, errNotModified) {
		return archive.Page{}, archive.ErrNotModified
	}
	if err != nil {
		return archive.Page{}, err
	}

	page := archive.Page{
		Total:    wm.Count,
		Messages: make([]archive.SourceMessage, 0, len(wm.Messages)),
	}
	for _, m := range wm.Messages {
		page.Messages = append(page.Messages, m.toSource())
	}
	return page, nil
}

func (m wireMessage) toSource() archive.SourceMessage {
	likes := m.FavoritedBy
	if likes == nil {
		likes = []string{}
	}
	atts := m.Attachments
	if atts == nil {
		atts = chat.Attachments{}
	}
	return archive.SourceMessage{
		Message: chat.Message{
			ID:          m.ID,
			Author:      m.SenderID,
			CreatedAt:   m.CreatedAt,
			Text:        m.Text,
			FavoritedBy: likes,
			Attachments: atts,
		},
		SenderName:   m.Name,
		SenderAvatar: m.AvatarURL,
	}
}

// GroupSource binds a client to one group so it satisfies
// archive.GroupSource.
type GroupSource struct {
	client *Client
	id     string
}

// Source returns the archive source for groupID.
func (c *Client) Source(groupID string) *GroupSource {
	return &GroupSource{client: c, id: groupID}
}

// Group implements archive.GroupSource.
func (s *GroupSource) Group(ctx context.Context) (archive.Group, error) {
	return s.client.Group(ctx, s.id)
}

// Page implements archive.Source.
func (s *GroupSource) Page(ctx context.Context, before string, limit int) (archive.Page, error) {
	return s.client.Messages(ctx, s.id, before, limit)
}

var _ archive.GroupSource = (*GroupSource)(nil)
