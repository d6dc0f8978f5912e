package field

import "fmt"

// Ref locates a name inside a Registry: either a whole field (Part < 0) or
// one sub-field of a BitPair.
type Ref struct {
	Field *Field
	Part  int
}

// IsPart reports whether the reference addresses a BitPair sub-field.
func (r Ref) IsPart() bool { return r.Part >= 0 }

// Max returns the largest value the referenced field or sub-field holds.
func (r Ref) Max() uint32 {
	if r.IsPart() {
		_, width := r.Field.partGeometry(r.Part)
		return mask(width)
	}
	return mask(r.Field.Width())
}

// Registry is the ordered set of fields making up one layer layout.
type Registry struct {
	words  int
	order  []*Field
	byName map[string]Ref
}

// NewRegistry creates an empty layout over the given number of words.
func NewRegistry(words int) *Registry {
	return &Registry{
		words:  words,
		byName: make(map[string]Ref),
	}
}

// Words returns the number of storage words the layout covers.
func (r *Registry) Words() int { return r.words }

// Define registers f. An invalid bit range or a name clash is a defect in
// the layer definition and panics.
func (r *Registry) Define(f Field) {
	if err := f.check(r.words); err != nil {
		panic("field: " + err.Error())
	}
	names := append([]string{f.name}, f.Parts()...)
	for _, n := range names {
		if _, dup := r.byName[n]; dup {
			panic(fmt.Sprintf("field: %s already defined", n))
		}
	}

	p := &f
	r.order = append(r.order, p)
	r.byName[f.name] = Ref{Field: p, Part: -1}
	for i, n := range f.Parts() {
		r.byName[n] = Ref{Field: p, Part: i}
	}
}

// Lookup resolves a field or sub-field name.
func (r *Registry) Lookup(name string) (Ref, bool) {
	ref, ok := r.byName[name]
	return ref, ok
}

// MustLookup resolves name and panics when it is not defined.
func (r *Registry) MustLookup(name string) Ref {
	ref, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("field: %s is not defined", name))
	}
	return ref
}

// Fields returns the fields in registration order.
func (r *Registry) Fields() []*Field {
	out := make([]*Field, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of top-level fields.
func (r *Registry) Len() int { return len(r.order) }
