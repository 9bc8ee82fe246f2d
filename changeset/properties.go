package changeset

import "encoding/json"

// Properties is the change descriptor for a string-keyed property map.
type Properties struct {
	add      map[string]string
	del      set
	override map[string]string // nil means no replacement.
}

func (p *Properties) init() {
	if p.add == nil {
		p.add = map[string]string{}
	}
	if p.del == nil {
		p.del = set{}
	}
}

// Set adds or updates a single property.
func (p *Properties) Set(key, value string) {
	p.Append(map[string]string{key: value})
}

// Append adds or updates properties, withdrawing any pending removal or
// override of their keys.
func (p *Properties) Append(props map[string]string) {
	p.init()
	for k, v := range props {
		p.add[k] = v
		delete(p.del, k)
		delete(p.override, k)
	}
}

// Remove marks keys for removal, withdrawing any pending add or override of them.
func (p *Properties) Remove(keys ...string) {
	p.init()
	for _, k := range keys {
		p.del[k] = struct{}{}
		delete(p.add, k)
		delete(p.override, k)
	}
}

// Replace sets the override to exactly props. A nil map clears the override;
// an empty non-nil map overrides with no properties.
func (p *Properties) Replace(props map[string]string) {
	p.init()
	if props == nil {
		p.override = nil
		return
	}
	p.override = make(map[string]string, len(props))
	for k, v := range props {
		p.override[k] = v
		delete(p.add, k)
		delete(p.del, k)
	}
}

// Reset clears the change set.
func (p *Properties) Reset() {
	p.add, p.del, p.override = nil, nil, nil
}

// Added returns a copy of the properties to add.
func (p *Properties) Added() map[string]string { return copyMap(p.add) }

// Removed returns the keys to remove, sorted.
func (p *Properties) Removed() []string { return p.del.sorted() }

// Override returns a copy of the replacement map and whether one is set.
func (p *Properties) Override() (map[string]string, bool) {
	if p.override == nil {
		return nil, false
	}
	return copyMap(p.override), true
}

// IsEmpty reports whether the change set carries no edit.
func (p *Properties) IsEmpty() bool {
	return len(p.add) == 0 && len(p.del) == 0 && p.override == nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type propertiesWire struct {
	Add      map[string]string `json:"add"`
	Del      []string          `json:"del"`
	Override map[string]string `json:"overrideValue"`
}

// MarshalJSON implements json.Marshaler.
func (p Properties) MarshalJSON() ([]byte, error) {
	w := propertiesWire{Add: copyMap(p.add), Del: p.del.sorted()}
	if p.override != nil {
		w.Override = copyMap(p.override)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Properties) UnmarshalJSON(data []byte) error {
	var w propertiesWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Reset()
	p.Append(w.Add)
	p.Remove(w.Del...)
	if w.Override != nil {
		p.Replace(w.Override)
	}
	return nil
}
