package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Attachment type names as they appear on the wire.
const (
	TypeImage       = "image"
	TypeVideo       = "video"
	TypeLinkedImage = "linked_image"
	TypeMentions    = "mentions"
)

// Attachment is one element of a message's attachment list.
// The set of implementations is closed: see AttachmentVisitor.
type Attachment interface {
	// Type returns the wire type name.
	Type() string

	// Accept calls the visitor method matching the concrete variant.
	Accept(v AttachmentVisitor)
}

// AttachmentVisitor handles every attachment variant.
type AttachmentVisitor interface {
	VisitImage(Image)
	VisitVideo(Video)
	VisitLinkedImage(LinkedImage)
	VisitMentions(Mentions)
	VisitOther(Other)
}

// Image is an uploaded picture.
type Image struct {
	URL string
}

// Video is an uploaded video. Its URL is usually repeated in the message text.
type Video struct {
	URL string
}

// LinkedImage is a picture referenced by a link in the message.
type LinkedImage struct {
	URL string
}

// Mentions marks spans of the message text that name other members.
type Mentions struct {
	UserIDs []string
	Loci    []Locus
}

// Other preserves an attachment kind that is not modelled explicitly.
type Other struct {
	Kind string
	Raw  json.RawMessage
}

func (Image) Type() string       { return TypeImage }
func (Video) Type() string       { return TypeVideo }
func (LinkedImage) Type() string { return TypeLinkedImage }
func (Mentions) Type() string    { return TypeMentions }
func (o Other) Type() string     { return o.Kind }

func (a Image) Accept(v AttachmentVisitor)       { v.VisitImage(a) }
func (a Video) Accept(v AttachmentVisitor)       { v.VisitVideo(a) }
func (a LinkedImage) Accept(v AttachmentVisitor) { v.VisitLinkedImage(a) }
func (a Mentions) Accept(v AttachmentVisitor)    { v.VisitMentions(a) }
func (a Other) Accept(v AttachmentVisitor)       { v.VisitOther(a) }

// Locus is a (start, length) span into a message text, counted in Unicode
// code points. It is encoded as a two-element JSON array.
type Locus struct {
	Start  int
	Length int
}

// End returns the exclusive end offset.
func (l Locus) End() int {
	return l.Start + l.Length
}

func (l Locus) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{l.Start, l.Length})
}

func (l *Locus) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("locus: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("locus: expected [start, length], got %d elements", len(pair))
	}
	l.Start, l.Length = pair[0], pair[1]
	return nil
}

// MediaURL returns the remote URL of image, video and linked_image
// attachments. ok is false for every other variant.
func MediaURL(a Attachment) (url string, ok bool) {
	switch v := a.(type) {
	case Image:
		return v.URL, true
	case Video:
		return v.URL, true
	case LinkedImage:
		return v.URL, true
	}
	return "", false
}

// attachmentRecord is the wire shape shared by all modelled variants.
type attachmentRecord struct {
	Type    string   `json:"type"`
	URL     string   `json:"url,omitempty"`
	Loci    []Locus  `json:"loci,omitempty"`
	UserIDs []string `json:"user_ids,omitempty"`
}

// Attachments is an ordered attachment list with JSON support for the
// closed variant set.
type Attachments []Attachment

func (as Attachments) MarshalJSON() ([]byte, error) {
	if len(as) == 0 {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, a := range as {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := marshalAttachment(a)
		if err != nil {
			return nil, fmt.Errorf("attachment %d: %w", i, err)
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (as *Attachments) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("attachments: %w", err)
	}
	out := make(Attachments, 0, len(raws))
	for i, raw := range raws {
		a, err := unmarshalAttachment(raw)
		if err != nil {
			return fmt.Errorf("attachment %d: %w", i, err)
		}
		out = append(out, a)
	}
	*as = out
	return nil
}

func marshalAttachment(a Attachment) ([]byte, error) {
	switch v := a.(type) {
	case Image:
		return json.Marshal(attachmentRecord{Type: TypeImage, URL: v.URL})
	case Video:
		return json.Marshal(attachmentRecord{Type: TypeVideo, URL: v.URL})
	case LinkedImage:
		return json.Marshal(attachmentRecord{Type: TypeLinkedImage, URL: v.URL})
	case Mentions:
		return json.Marshal(attachmentRecord{Type: TypeMentions, Loci: v.Loci, UserIDs: v.UserIDs})
	case Other:
		if len(v.Raw) == 0 {
			return json.Marshal(attachmentRecord{Type: v.Kind})
		}
		return v.Raw, nil
	case nil:
		return nil, fmt.Errorf("nil attachment")
	}
	return nil, fmt.Errorf("unsupported attachment %T", a)
}

func unmarshalAttachment(raw json.RawMessage) (Attachment, error) {
	var rec attachmentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Unknown kinds may carry fields that don't fit the record shape.
		var probe struct {
			Type string `json:"type"`
		}
		if perr := json.Unmarshal(raw, &probe); perr != nil {
			return nil, err
		}
		rec = attachmentRecord{Type: probe.Type}
		if isModelled(rec.Type) {
			return nil, err
		}
	}

	switch rec.Type {
	case TypeImage:
		return Image{URL: rec.URL}, nil
	case TypeVideo:
		return Video{URL: rec.URL}, nil
	case TypeLinkedImage:
		return LinkedImage{URL: rec.URL}, nil
	case TypeMentions:
		return Mentions{UserIDs: rec.UserIDs, Loci: rec.Loci}, nil
	}
	return Other{Kind: rec.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
}

func isModelled(kind string) bool {
	switch kind {
	case TypeImage, TypeVideo, TypeLinkedImage, TypeMentions:
		return true
	}
	return false
}
