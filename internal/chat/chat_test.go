package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachments_DecodeGroupMePayload(t *testing.T) {
	payload := `[
		{"type":"image","url":"https://i.groupme.com/1024x768.jpeg.abc123"},
		{"type":"mentions","loci":[[0,5],[10,3]],"user_ids":["11","22"]},
		{"type":"location","lat":"40.7","lng":"-74.0","name":"Office"},
		{"type":"video","url":"https://v.groupme.com/1/2/clip.mp4","preview_url":"https://v.groupme.com/p.jpg"}
	]`

	var as Attachments
	require.NoError(t, json.Unmarshal([]byte(payload), &as))
	require.Len(t, as, 4)

	assert.Equal(t, Image{URL: "https://i.groupme.com/1024x768.jpeg.abc123"}, as[0])
	assert.Equal(t, Mentions{
		UserIDs: []string{"11", "22"},
		Loci:    []Locus{{Start: 0, Length: 5}, {Start: 10, Length: 3}},
	}, as[1])

	other, ok := as[2].(Other)
	require.True(t, ok, "location should decode as Other, got %T", as[2])
	assert.Equal(t, "location", other.Type())
	assert.JSONEq(t, `{"type":"location","lat":"40.7","lng":"-74.0","name":"Office"}`, string(other.Raw))

	assert.Equal(t, Video{URL: "https://v.groupme.com/1/2/clip.mp4"}, as[3])
}

func TestAttachments_OtherRoundTripsVerbatim(t *testing.T) {
	raw := `[{"type":"emoji","placeholder":"☃","charmap":[[1,42],[2,34]]}]`

	var as Attachments
	require.NoError(t, json.Unmarshal([]byte(raw), &as))

	out, err := json.Marshal(as)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestAttachments_EmptyEncodesAsArray(t *testing.T) {
	m := Message{ID: "1", Author: "a", CreatedAt: 10}
	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","author":"a","created_at":10,"text":null,"favorited_by":[],"attachments":[]}`, string(out))
}

func TestLocus_RejectsMalformedPair(t *testing.T) {
	var l Locus
	err := json.Unmarshal([]byte(`[1,2,3]`), &l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected [start, length]")
}

type kindCounter struct {
	images, videos, linked, mentions, other int
}

func (k *kindCounter) VisitImage(Image)             { k.images++ }
func (k *kindCounter) VisitVideo(Video)             { k.videos++ }
func (k *kindCounter) VisitLinkedImage(LinkedImage) { k.linked++ }
func (k *kindCounter) VisitMentions(Mentions)       { k.mentions++ }
func (k *kindCounter) VisitOther(Other)             { k.other++ }

func TestAttachmentVisitor_DispatchesEveryVariant(t *testing.T) {
	as := Attachments{
		Image{URL: "a"}, Video{URL: "b"}, LinkedImage{URL: "c"},
		Mentions{}, Other{Kind: "poll"}, Image{URL: "d"},
	}
	k := &kindCounter{}
	for _, a := range as {
		a.Accept(k)
	}
	assert.Equal(t, &kindCounter{images: 2, videos: 1, linked: 1, mentions: 1, other: 1}, k)
}

func TestMediaURL(t *testing.T) {
	url, ok := MediaURL(LinkedImage{URL: "https://x/y"})
	assert.True(t, ok)
	assert.Equal(t, "https://x/y", url)

	_, ok = MediaURL(Mentions{})
	assert.False(t, ok)
}

func TestRegistry_Verify(t *testing.T) {
	reg := Registry{"a": {Name: "Alice"}}
	msgs := []Message{{ID: "1", Author: "a"}, {ID: "2", Author: "ghost"}}

	err := reg.Verify(msgs)
	require.Error(t, err)
	assert.True(t, IsIntegrityFault(err))
	assert.Contains(t, err.Error(), `"ghost"`)

	assert.NoError(t, reg.Verify(msgs[:1]))
}

func TestRegistry_LookupCarriesID(t *testing.T) {
	reg := Registry{"42": {Name: "Zed"}}
	p, ok := reg.Lookup("42")
	require.True(t, ok)
	assert.Equal(t, "42", p.ID)
	assert.Equal(t, []string{"42"}, reg.IDs())
}

func TestPerson_Avatar(t *testing.T) {
	local := StringPtr("https://i.groupme.com/local")
	global := StringPtr("https://i.groupme.com/global")

	p := Person{Name: "A", AvatarURL: local, GlobalAvatarURL: global}
	url, ok := p.Avatar(false)
	assert.True(t, ok)
	assert.Equal(t, *local, url)

	url, _ = p.Avatar(true)
	assert.Equal(t, *global, url)

	p.GlobalAvatarURL = nil
	url, _ = p.Avatar(true)
	assert.Equal(t, *local, url, "falls back to resolved avatar")

	_, ok = Person{Name: "B"}.Avatar(true)
	assert.False(t, ok)
}

func TestDigest_StableAcrossMapOrderAndNormalization(t *testing.T) {
	// "é" precomposed vs. decomposed must hash identically.
	a := Archive{
		Group:    GroupInfo{Name: "Café", CreatedAt: 1},
		People:   Registry{"1": {Name: "A"}, "2": {Name: "B"}},
		Messages: []Message{{ID: "m1", Author: "1", CreatedAt: 5, Text: StringPtr("<hi>")}},
	}
	b := Archive{
		Group:    GroupInfo{Name: "Cafe\u0301", CreatedAt: 1},
		People:   Registry{"2": {Name: "B"}, "1": {Name: "A"}},
		Messages: []Message{{ID: "m1", Author: "1", CreatedAt: 5, Text: StringPtr("<hi>")}},
	}

	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Len(t, da, 64)

	b.Messages[0].FavoritedBy = []string{"2"}
	dc, err := Digest(b)
	require.NoError(t, err)
	assert.NotEqual(t, da, dc)
}

func TestCanonicalJSON(t *testing.T) {
	out, err := CanonicalJSON(map[string]any{"b": 1, "a": []any{"<&>", true, nil}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["<&>",true,null],"b":1}`, string(out))

	out, err = CanonicalJSON(map[string]any{"f": 1.5})
	require.NoError(t, err)
	assert.Equal(t, `{"f":1.5}`, string(out))
}

func TestDigest_AcceptsFractionalNumbersInPreservedAttachments(t *testing.T) {
	raw := `[{"type":"location","lat":40.70,"lng":-74.0,"name":"Office"}]`
	var as Attachments
	require.NoError(t, json.Unmarshal([]byte(raw), &as))

	a := Archive{
		People:   Registry{"1": {Name: "A"}},
		Messages: []Message{{ID: "m", Author: "1", CreatedAt: 1, Attachments: as}},
	}
	d1, err := Digest(a)
	require.NoError(t, err)

	// Same values, different spelling.
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"Office","lng":-74,"lat":4.07e1,"type":"location"}]`), &as))
	a.Messages[0].Attachments = as
	d2, err := Digest(a)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	out, err := CanonicalJSON(json.RawMessage(`{"x":40.70,"y":1e400}`))
	assert.Error(t, err, "numbers outside float64 range are rejected")
	assert.Nil(t, out)
}
