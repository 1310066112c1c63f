package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// FakeMember is a roster entry served by FakeGroupMe.
type FakeMember struct {
	UserID   string  `json:"user_id"`
	Nickname string  `json:"nickname"`
	ImageURL *string `json:"image_url"`
}

// FakeMessage is a message in GroupMe's wire shape.
type FakeMessage struct {
	ID          string           `json:"id"`
	SenderID    string           `json:"sender_id"`
	Name        string           `json:"name"`
	AvatarURL   *string          `json:"avatar_url"`
	CreatedAt   int64            `json:"created_at"`
	Text        *string          `json:"text"`
	FavoritedBy []string         `json:"favorited_by"`
	Attachments []map[string]any `json:"attachments"`
}

// FakeGroup is one group served by FakeGroupMe.
type FakeGroup struct {
	ID          string
	Name        string
	Description *string
	ImageURL    *string
	CreatedAt   int64
	Members     []FakeMember

	// Messages, newest first.
	Messages []FakeMessage
}

// FakeChat is a direct-message chat row.
type FakeChat struct {
	UserID   string
	Name     string
	Messages int
}

// FakeAsset is a downloadable file.
type FakeAsset struct {
	ContentType string
	Body        []byte
}

// FakeGroupMe is an httptest server speaking the subset of the GroupMe v3
// API the client uses, plus a static file host for assets.
type FakeGroupMe struct {
	Server *httptest.Server
	Token  string

	mu     sync.Mutex
	groups []*FakeGroup
	chats  []FakeChat
	assets map[string]FakeAsset
	hits   map[string]int
}

// NewFakeGroupMe starts a fake API accepting token. The server is closed
// when the test ends.
func NewFakeGroupMe(t testing.TB, token string) *FakeGroupMe {
	t.Helper()
	f := &FakeGroupMe{
		Token:  token,
		assets: make(map[string]FakeAsset),
		hits:   make(map[string]int),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/v3").Subrouter()
	api.Use(f.requireToken)
	api.HandleFunc("/groups", f.listGroups).Methods("GET")
	api.HandleFunc("/groups/{id}", f.getGroup).Methods("GET")
	api.HandleFunc("/groups/{id}/messages", f.getMessages).Methods("GET")
	api.HandleFunc("/chats", f.listChats).Methods("GET")
	r.HandleFunc("/assets/{name}", f.getAsset).Methods("GET")

	f.Server = httptest.NewServer(f.count(r))
	t.Cleanup(f.Server.Close)
	return f
}

// APIURL is the base URL to hand to groupme.NewClient.
func (f *FakeGroupMe) APIURL() string {
	return f.Server.URL + "/v3"
}

// AssetURL returns the URL under which AddAsset serves name.
func (f *FakeGroupMe) AssetURL(name string) string {
	return f.Server.URL + "/assets/" + name
}

// AddGroup registers a group.
func (f *FakeGroupMe) AddGroup(g *FakeGroup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, g)
}

// AddChat registers a direct-message chat.
func (f *FakeGroupMe) AddChat(c FakeChat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, c)
}

// AddAsset serves body under /assets/name.
func (f *FakeGroupMe) AddAsset(name, contentType string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[name] = FakeAsset{ContentType: contentType, Body: body}
}

// Hits returns how many requests reached path (without query).
func (f *FakeGroupMe) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// AssetHits returns how many asset downloads were served in total.
func (f *FakeGroupMe) AssetHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for name := range f.assets {
		n += f.hits["/assets/"+name]
	}
	return n
}

func (f *FakeGroupMe) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *FakeGroupMe) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != f.Token {
			writeEnvelope(w, http.StatusUnauthorized, nil, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeGroupMe) group(id string) *FakeGroup {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.ID == id {
			return g
		}
	}
	return nil
}

type wireGroup struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	ImageURL    *string      `json:"image_url"`
	CreatedAt   int64        `json:"created_at"`
	Members     []FakeMember `json:"members,omitempty"`
	Messages    struct {
		Count int `json:"count"`
	} `json:"messages"`
}

func toWire(g *FakeGroup, withMembers bool) wireGroup {
	w := wireGroup{ID: g.ID, Name: g.Name, Description: g.Description, ImageURL: g.ImageURL, CreatedAt: g.CreatedAt}
	if withMembers {
		w.Members = g.Members
	}
	w.Messages.Count = len(g.Messages)
	return w
}

func (f *FakeGroupMe) getGroup(w http.ResponseWriter, r *http.Request) {
	g := f.group(mux.Vars(r)["id"])
	if g == nil {
		writeEnvelope(w, http.StatusNotFound, nil, "not found")
		return
	}
	writeEnvelope(w, http.StatusOK, toWire(g, true))
}

func (f *FakeGroupMe) getMessages(w http.ResponseWriter, r *http.Request) {
	g := f.group(mux.Vars(r)["id"])
	if g == nil {
		writeEnvelope(w, http.StatusNotFound, nil, "not found")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeEnvelope(w, http.StatusBadRequest, nil, "invalid limit")
			return
		}
		limit = n
	}

	start := 0
	if before := r.URL.Query().Get("before_id"); before != "" {
		start = -1
		for i, m := range g.Messages {
			if m.ID == before {
				start = i + 1
				break
			}
		}
		if start < 0 {
			writeEnvelope(w, http.StatusNotFound, nil, "message not found")
			return
		}
	}
	if start >= len(g.Messages) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	end := min(start+limit, len(g.Messages))
	writeEnvelope(w, http.StatusOK, map[string]any{
		"count":    len(g.Messages),
		"messages": g.Messages[start:end],
	})
}

func pageBounds(r *http.Request, n int) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = 10
	}
	start := min((page-1)*perPage, n)
	end := min(start+perPage, n)
	return start, end
}

func (f *FakeGroupMe) listGroups(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	groups := append([]*FakeGroup(nil), f.groups...)
	f.mu.Unlock()

	start, end := pageBounds(r, len(groups))
	out := make([]wireGroup, 0, end-start)
	for _, g := range groups[start:end] {
		out = append(out, toWire(g, false))
	}
	writeEnvelope(w, http.StatusOK, out)
}

func (f *FakeGroupMe) listChats(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	chats := append([]FakeChat(nil), f.chats...)
	f.mu.Unlock()

	type otherUser struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	type wireChat struct {
		OtherUser     otherUser `json:"other_user"`
		MessagesCount int       `json:"messages_count"`
	}

	start, end := pageBounds(r, len(chats))
	out := make([]wireChat, 0, end-start)
	for _, c := range chats[start:end] {
		out = append(out, wireChat{OtherUser: otherUser{ID: c.UserID, Name: c.Name}, MessagesCount: c.Messages})
	}
	writeEnvelope(w, http.StatusOK, out)
}

func (f *FakeGroupMe) getAsset(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	a, ok := f.assets[mux.Vars(r)["name"]]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Write(a.Body)
}

func writeEnvelope(w http.ResponseWriter, status int, response any, errs ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	meta := map[string]any{"code": status}
	if len(errs) > 0 {
		meta["errors"] = errs
	}
	json.NewEncoder(w).Encode(map[string]any{"response": response, "meta": meta})
}
