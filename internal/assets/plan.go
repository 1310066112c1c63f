package assets

import (
	"github.com/roach88/grouparchive/internal/chat"
)

// Kind separates avatars from message attachments. Each kind has its own
// directory in the archive.
type Kind string

const (
	KindAvatar     Kind = "avatar"
	KindAttachment Kind = "attachment"
)

// Dir returns the archive subdirectory for the kind.
func (k Kind) Dir() string {
	if k == KindAvatar {
		return "avatars"
	}
	return "attachments"
}

// Request is one asset to make available locally.
type Request struct {
	Kind Kind
	ID   string // identifier, derived from the reference URL
	URL  string // URL to download from
}

// Plan is the deduplicated set of downloads for an archive.
type Plan struct {
	Requests []Request

	// Faults lists references whose URL yields no identifier.
	Faults []*Fault
}

// PlanOptions configures BuildPlan.
type PlanOptions struct {
	// AvatarSuffix is appended to avatar URLs when downloading, e.g.
	// ".avatar" for GroupMe's thumbnail variant. The identifier is always
	// derived from the unsuffixed URL so the renderer can find the file.
	AvatarSuffix string
}

// BuildPlan collects every image, video and linked image referenced by
// messages, and every avatar of people. Each (kind, identifier) pair appears
// once; the first reference wins.
func BuildPlan(messages []chat.Message, people chat.Registry, opts PlanOptions) Plan {
	b := &planBuilder{seen: make(map[Kind]map[string]bool)}

	for _, m := range messages {
		for _, a := range m.Attachments {
			a.Accept(b)
		}
	}

	for _, id := range people.IDs() {
		p := people[id]
		for _, u := range []*string{p.AvatarURL, p.GlobalAvatarURL} {
			if u == nil || *u == "" {
				continue
			}
			b.add(KindAvatar, *u, *u+opts.AvatarSuffix)
		}
	}
	return b.plan
}

type planBuilder struct {
	plan Plan
	seen map[Kind]map[string]bool
}

func (b *planBuilder) add(kind Kind, refURL, fetchURL string) {
	id, err := Identifier(refURL)
	if err != nil {
		b.plan.Faults = append(b.plan.Faults, &Fault{Kind: kind, URL: refURL, Err: err})
		return
	}
	if b.seen[kind] == nil {
		b.seen[kind] = make(map[string]bool)
	}
	if b.seen[kind][id] {
		return
	}
	b.seen[kind][id] = true
	b.plan.Requests = append(b.plan.Requests, Request{Kind: kind, ID: id, URL: fetchURL})
}

func (b *planBuilder) media(url string) {
	if url == "" {
		return
	}
	b.add(KindAttachment, url, url)
}

func (b *planBuilder) VisitImage(a chat.Image)             { b.media(a.URL) }
func (b *planBuilder) VisitVideo(a chat.Video)             { b.media(a.URL) }
func (b *planBuilder) VisitLinkedImage(a chat.LinkedImage) { b.media(a.URL) }
func (b *planBuilder) VisitMentions(chat.Mentions)         {}
func (b *planBuilder) VisitOther(chat.Other)               {}
