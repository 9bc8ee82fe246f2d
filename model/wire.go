package model

// Encode renders e in the catalog's entity wire form: every set schema field
// keyed by name, plus non-empty tag and property change sets. Relation
// fields are not part of the payload; relations are written separately.
func Encode(e Entity) map[string]any {
	s := e.Schema()
	out := make(map[string]any, len(s.Fields)+2)
	for _, f := range s.Fields {
		v := f.Value(e)
		if isZero(v) {
			continue
		}
		out[f.Name] = v
	}

	b := e.Core()
	if !b.Tags.IsEmpty() {
		out["tags"] = &b.Tags
	}
	if !b.Properties.IsEmpty() {
		out["properties"] = &b.Properties
	}
	return out
}
