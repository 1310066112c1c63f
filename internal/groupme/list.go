package groupme

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ChatKind distinguishes group chats from direct-message chats.
type ChatKind string

const (
	KindGroup  ChatKind = "group"
	KindDirect ChatKind = "direct"
)

// ChatSummary is one row of a chat listing.
type ChatSummary struct {
	Kind     ChatKind `json:"kind"`
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Messages int      `json:"messages"`
}

// DefaultListPageSize is the per_page used for listings.
const DefaultListPageSize = 10

type wireChat struct {
	OtherUser struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"other_user"`
	MessagesCount int `json:"messages_count"`
}

// ListGroups returns every group the token's user belongs to. Pages are
// requested until an empty page comes back.
func (c *Client) ListGroups(ctx context.Context, perPage int) ([]ChatSummary, error) {
	var out []ChatSummary
	err := c.eachPage(ctx, "/groups", func(page int) (int, error) {
		var groups []wireGroup
		if err := c.get(ctx, "/groups", c.pageQuery(page, perPage, url.Values{"omit": {"memberships"}}), &groups); err != nil {
			return 0, err
		}
		for _, g := range groups {
			out = append(out, ChatSummary{Kind: KindGroup, ID: g.ID, Name: g.Name, Messages: g.Messages.Count})
		}
		return len(groups), nil
	})
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return out, nil
}

// ListChats returns every direct-message chat, paged like ListGroups.
func (c *Client) ListChats(ctx context.Context, perPage int) ([]ChatSummary, error) {
	var out []ChatSummary
	err := c.eachPage(ctx, "/chats", func(page int) (int, error) {
		var chats []wireChat
		if err := c.get(ctx, "/chats", c.pageQuery(page, perPage, nil), &chats); err != nil {
			return 0, err
		}
		for _, ch := range chats {
			out = append(out, ChatSummary{Kind: KindDirect, ID: ch.OtherUser.ID, Name: ch.OtherUser.Name, Messages: ch.MessagesCount})
		}
		return len(chats), nil
	})
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return out, nil
}

// eachPage calls fetch for page 1, 2, ... until it reports zero items.
func (c *Client) eachPage(ctx context.Context, path string, fetch func(page int) (int, error)) error {
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := fetch(page)
		if err != nil {
			return err
		}
		c.logger.Debug("listing page", "path", path, "page", page, "items", n)
		if n == 0 {
			return nil
		}
	}
}

func (c *Client) pageQuery(page, perPage int, extra url.Values) url.Values {
	if perPage <= 0 {
		perPage = DefaultListPageSize
	}
	q := url.Values{}
	for k, v := range extra {
		q[k] = append([]string(nil), v...)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	return q
}
