package render

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/grouparchive/internal/assets"
	"github.com/roach88/grouparchive/internal/chat"
)

// TimestampLayout formats message and separator times.
const TimestampLayout = "Jan 02, 2006 at 3:04 PM"

// DefaultSystemSender is the display name GroupMe uses for its own messages.
const DefaultSystemSender = "GroupMe"

// AttachmentPlaceholder replaces the empty text of a system message.
const AttachmentPlaceholder = "<ATTACHMENT>"

// Options configures Build.
type Options struct {
	// Location for timestamps and day boundaries. Nil means time.Local.
	Location *time.Location

	// UseGlobalAvatar shows roster avatars instead of per-chat avatars.
	UseGlobalAvatar bool

	// SystemSender is the person name whose messages render as system
	// messages. Empty means DefaultSystemSender.
	SystemSender string

	Logger *slog.Logger
}

// AssetLookup resolves remote URLs to downloaded files. Returned names are
// file names inside the avatars or attachments directory.
type AssetLookup interface {
	Avatar(url string) (file string, ok bool)
	Attachment(url string) (file string, ok bool)
}

// DirAssets is an AssetLookup over an archive directory's indexes.
type DirAssets struct {
	Avatars     assets.Index
	Attachments assets.Index
}

// LoadAssets indexes the avatars and attachments directories under dir.
func LoadAssets(dir string) (DirAssets, error) {
	avatars, err := assets.LoadIndex(filepath.Join(dir, assets.KindAvatar.Dir()))
	if err != nil {
		return DirAssets{}, err
	}
	attachments, err := assets.LoadIndex(filepath.Join(dir, assets.KindAttachment.Dir()))
	if err != nil {
		return DirAssets{}, err
	}
	return DirAssets{Avatars: avatars, Attachments: attachments}, nil
}

// Avatar implements AssetLookup.
func (d DirAssets) Avatar(url string) (string, bool) {
	return d.Avatars.LookupURL(url)
}

// Attachment implements AssetLookup.
func (d DirAssets) Attachment(url string) (string, bool) {
	return d.Attachments.LookupURL(url)
}

// DataFault reports archive data that rendered in degraded form.
type DataFault struct {
	MessageID string
	Reason    string
}

func (e *DataFault) Error() string {
	return fmt.Sprintf("render data fault: message %q: %s", e.MessageID, e.Reason)
}

// Build produces the display document for a. It fails only when a message
// author is missing from the registry (*chat.IntegrityFault); every other
// data problem is logged as a DataFault and rendered in degraded form.
func Build(a chat.Archive, idx AssetLookup, opts Options) (*Document, error) {
	b := builder{
		people: a.People,
		idx:    idx,
		opts:   opts,
		loc:    opts.Location,
		logger: opts.Logger,
		system: opts.SystemSender,
	}
	if b.loc == nil {
		b.loc = time.Local
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.system == "" {
		b.system = DefaultSystemSender
	}
	if b.idx == nil {
		b.idx = DirAssets{}
	}

	doc := &Document{Title: a.Group.Name, Items: make([]Item, 0, len(a.Messages)+8)}

	var prev time.Time
	for i, m := range a.Messages {
		t := m.Time(b.loc)
		if i == 0 || !sameDay(prev, t) {
			doc.Items = append(doc.Items, &DaySeparator{Date: t, Timestamp: t.Format(TimestampLayout)})
		}
		prev = t

		author, ok := a.People.Lookup(m.Author)
		if !ok {
			return nil, &chat.IntegrityFault{MessageID: m.ID, AuthorID: m.Author}
		}

		if author.Name == b.system {
			text := m.Body()
			if text == "" {
				text = AttachmentPlaceholder
			}
			doc.Items = append(doc.Items, &SystemMessage{
				MessageID: m.ID,
				Timestamp: t.Format(TimestampLayout),
				Text:      text,
			})
			continue
		}

		doc.Items = append(doc.Items, b.userMessage(m, author, t))
	}
	return doc, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

type builder struct {
	people chat.Registry
	idx    AssetLookup
	opts   Options
	loc    *time.Location
	logger *slog.Logger
	system string
}

func (b *builder) fault(id, reason string, args ...any) {
	f := &DataFault{MessageID: id, Reason: fmt.Sprintf(reason, args...)}
	b.logger.Warn("degraded render", "message", id, "error", f)
}

func (b *builder) userMessage(m chat.Message, author chat.Person, t time.Time) *UserMessage {
	um := &UserMessage{
		MessageID: m.ID,
		Timestamp: t.Format(TimestampLayout),
		Author:    author.Name,
		Avatar:    b.avatar(m.ID, author),
	}

	mc := &mediaCollector{b: b, messageID: m.ID}
	for _, a := range m.Attachments {
		a.Accept(mc)
	}
	um.Media = mc.media

	if text := m.Body(); text != "" {
		spans, repaired := splitBody(text, mc.videos, mc.loci)
		if repaired {
			b.fault(m.ID, "mention ranges out of bounds or overlapping")
		}
		um.Body = spans
	}

	um.Likes = Likes{Filled: len(m.FavoritedBy) > 0, Count: len(m.FavoritedBy)}
	for _, id := range m.FavoritedBy {
		name := "Unknown"
		if p, ok := b.people.Lookup(id); ok {
			name = p.Name
		}
		um.Likes.Names = append(um.Likes.Names, name)
	}
	return um
}

func (b *builder) avatar(messageID string, p chat.Person) Avatar {
	url, ok := p.Avatar(b.opts.UseGlobalAvatar)
	if ok {
		if file, found := b.idx.Avatar(url); found {
			return Avatar{Image: path.Join(assets.KindAvatar.Dir(), file)}
		}
		b.fault(messageID, "avatar %s not downloaded", url)
	}
	return Avatar{Initials: Initials(p.Name)}
}

var upper = cases.Upper(language.Und)

// Initials returns the uppercased first letters of the first and last
// words of name, or "?" when name has no words.
func Initials(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return "?"
	}
	first, _ := utf8.DecodeRuneInString(words[0])
	out := string(first)
	if len(words) > 1 {
		last, _ := utf8.DecodeRuneInString(words[len(words)-1])
		out += string(last)
	}
	return upper.String(out)
}

// mediaCollector gathers inline media, video URLs and mention loci from a
// message's attachments.
type mediaCollector struct {
	b         *builder
	messageID string
	media     []Media
	videos    []string
	loci      []chat.Locus
}

func (c *mediaCollector) add(kind MediaKind, url string) {
	file, ok := c.b.idx.Attachment(url)
	if !ok {
		c.b.fault(c.messageID, "%s %s not downloaded", kind, url)
		return
	}
	c.media = append(c.media, Media{Kind: kind, Src: path.Join(assets.KindAttachment.Dir(), file)})
}

func (c *mediaCollector) VisitImage(a chat.Image)             { c.add(MediaImage, a.URL) }
func (c *mediaCollector) VisitLinkedImage(a chat.LinkedImage) { c.add(MediaImage, a.URL) }
func (c *mediaCollector) VisitMentions(a chat.Mentions)       { c.loci = append(c.loci, a.Loci...) }
func (c *mediaCollector) VisitOther(chat.Other)               {}

func (c *mediaCollector) VisitVideo(a chat.Video) {
	c.add(MediaVideo, a.URL)
	if a.URL != "" {
		c.videos = append(c.videos, a.URL)
	}
}
