// Package changeset describes edits to multi-valued (tags) and keyed
// (properties) attributes as add / remove / override descriptors.
//
// Invariants held after every operation:
//   - add and remove never share a member;
//   - when an override is set it shares no member with add or remove.
//
// The zero value of each type is an empty change set ready to use.
package changeset

import (
	"encoding/json"
	"sort"
)

type set map[string]struct{}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Tags is the change descriptor for a tag set.
type Tags struct {
	add      set
	del      set
	override set // nil means no replacement.
}

func (t *Tags) init() {
	if t.add == nil {
		t.add = set{}
	}
	if t.del == nil {
		t.del = set{}
	}
}

// Append adds tags, withdrawing any pending removal or override of them.
func (t *Tags) Append(tags ...string) {
	t.init()
	for _, tag := range tags {
		t.add[tag] = struct{}{}
		delete(t.del, tag)
		delete(t.override, tag)
	}
}

// Remove marks tags for removal, withdrawing any pending add or override of them.
func (t *Tags) Remove(tags ...string) {
	t.init()
	for _, tag := range tags {
		t.del[tag] = struct{}{}
		delete(t.add, tag)
		delete(t.override, tag)
	}
}

// Replace sets the override to exactly tags. A nil slice clears the override;
// an empty non-nil slice overrides with no tags.
func (t *Tags) Replace(tags []string) {
	t.init()
	if tags == nil {
		t.override = nil
		return
	}
	t.override = make(set, len(tags))
	for _, tag := range tags {
		t.override[tag] = struct{}{}
		delete(t.add, tag)
		delete(t.del, tag)
	}
}

// Reset clears the change set.
func (t *Tags) Reset() {
	t.add, t.del, t.override = nil, nil, nil
}

// Added returns the tags to add, sorted.
func (t *Tags) Added() []string { return t.add.sorted() }

// Removed returns the tags to remove, sorted.
func (t *Tags) Removed() []string { return t.del.sorted() }

// Override returns the replacement tag set and whether one is set.
func (t *Tags) Override() ([]string, bool) {
	if t.override == nil {
		return nil, false
	}
	return t.override.sorted(), true
}

// IsEmpty reports whether the change set carries no edit.
func (t *Tags) IsEmpty() bool {
	return len(t.add) == 0 && len(t.del) == 0 && t.override == nil
}

type tagsWire struct {
	Add      []string `json:"add"`
	Del      []string `json:"del"`
	Override []string `json:"overrideValue"`
}

// MarshalJSON implements json.Marshaler.
func (t Tags) MarshalJSON() ([]byte, error) {
	w := tagsWire{Add: t.add.sorted(), Del: t.del.sorted()}
	if t.override != nil {
		w.Override = t.override.sorted()
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tags) UnmarshalJSON(data []byte) error {
	var w tagsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.Reset()
	t.Append(w.Add...)
	t.Remove(w.Del...)
	if w.Override != nil {
		t.Replace(w.Override)
	}
	return nil
}
