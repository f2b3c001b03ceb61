package model

// FilterOptions is the active attribute filter. Types has set semantics;
// iteration follows insertion order.
type FilterOptions struct {
	types []TypeTag
}

// NewFilterOptions returns options holding the distinct tags of types.
func NewFilterOptions(types ...TypeTag) FilterOptions {
	var f FilterOptions
	for _, t := range types {
		f.Add(t)
	}
	return f
}

// Has reports whether t is selected.
func (f FilterOptions) Has(t TypeTag) bool {
	for _, s := range f.types {
		if s == t {
			return true
		}
	}
	return false
}

// Add selects t. It reports false when t was already selected.
func (f *FilterOptions) Add(t TypeTag) bool {
	if t == "" || f.Has(t) {
		return false
	}
	f.types = append(f.types, t)
	return true
}

// Toggle flips the selection of t and reports whether it is now selected.
func (f *FilterOptions) Toggle(t TypeTag) bool {
	for i, s := range f.types {
		if s == t {
			f.types = append(f.types[:i:i], f.types[i+1:]...)
			return false
		}
	}
	return f.Add(t)
}

// Clear deselects every tag.
func (f *FilterOptions) Clear() { f.types = nil }

// Len returns the number of selected tags.
func (f FilterOptions) Len() int { return len(f.types) }

// Types returns a copy of the selected tags in insertion order.
func (f FilterOptions) Types() []TypeTag {
	out := make([]TypeTag, len(f.types))
	copy(out, f.types)
	return out
}

// Matches reports whether tags intersects the selection. An empty selection
// matches everything.
func (f FilterOptions) Matches(tags []TypeTag) bool {
	if len(f.types) == 0 {
		return true
	}
	for _, t := range tags {
		if f.Has(t) {
			return true
		}
	}
	return false
}
