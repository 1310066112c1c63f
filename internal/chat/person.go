package chat

import "sort"

// Person is a chat participant.
type Person struct {
	ID   string `json:"-"`
	Name string `json:"name"`

	// AvatarURL is the avatar chosen by the archive's avatar policy.
	AvatarURL *string `json:"avatar_url"`

	// GlobalAvatarURL is the roster avatar, when the person was on the roster.
	GlobalAvatarURL *string `json:"global_avatar_url,omitempty"`
}

// Avatar returns the avatar URL to display. When preferGlobal is set and a
// roster avatar exists it wins; otherwise the policy-resolved avatar is used.
func (p Person) Avatar(preferGlobal bool) (string, bool) {
	if preferGlobal && p.GlobalAvatarURL != nil && *p.GlobalAvatarURL != "" {
		return *p.GlobalAvatarURL, true
	}
	if p.AvatarURL != nil && *p.AvatarURL != "" {
		return *p.AvatarURL, true
	}
	return "", false
}

// Registry maps person id to Person. Keys are unique by construction.
type Registry map[string]Person

// Lookup returns the person with the given id. The returned Person always
// carries its id, even when the registry was decoded from JSON.
func (r Registry) Lookup(id string) (Person, bool) {
	p, ok := r[id]
	if ok {
		p.ID = id
	}
	return p, ok
}

// IDs returns the registry keys in ascending order.
func (r Registry) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Verify checks that every message author has a registry entry.
// It returns an *IntegrityFault for the first message that violates this.
func (r Registry) Verify(messages []Message) error {
	for _, m := range messages {
		if _, ok := r[m.Author]; !ok {
			return &IntegrityFault{MessageID: m.ID, AuthorID: m.Author}
		}
	}
	return nil
}
