package schema

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/wippyai/packed/errors"
	"github.com/wippyai/packed/layout"
)

// Field describes one named array of a schema.
type Field struct {
	Type  reflect.Type // element type, nil when only size and alignment are known
	Name  string
	Size  uintptr
	Align uintptr
}

// Of returns a field of Go element type T.
func Of[T any](name string) Field {
	var zero T
	return Field{
		Type:  reflect.TypeFor[T](),
		Name:  name,
		Size:  unsafe.Sizeof(zero),
		Align: unsafe.Alignof(zero),
	}
}

// Raw returns an untyped field of size-byte elements aligned to align.
func Raw(name string, size, align uintptr) Field {
	return Field{Name: name, Size: size, Align: align}
}

// Counts holds the element count of each field, indexed like the schema.
type Counts []int

// Schema is an ordered list of fields. Order decides packing.
type Schema struct {
	index  map[string]int
	name   string
	fields []Field
}

// New validates fields and returns a schema.
func New(name string, fields ...Field) (*Schema, error) {
	s := &Schema{
		name:   name,
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)

	for i, f := range s.fields {
		path := []string{name, f.Name}
		if f.Name == "" {
			return nil, errors.InvalidFieldSpec(path, fmt.Sprintf("field %d has no name", i))
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, errors.InvalidFieldSpec(path, "duplicate field name")
		}
		if err := layout.Validate(f.spec(0)); err != nil {
			if e, ok := err.(*errors.Error); ok {
				e.Path = path
			}
			return nil, err
		}
		if f.Type != nil {
			if f.Type.Size() != f.Size || uintptr(f.Type.Align()) != f.Align {
				return nil, errors.New(errors.PhaseDeclare, errors.KindInvalidFieldSpec).
					Path(path...).
					GoType(f.Type.String()).
					Detail("size %d align %d disagree with element type", f.Size, f.Align).
					Build()
			}
			if hasPointers(f.Type) {
				return nil, errors.New(errors.PhaseDeclare, errors.KindInvalidFieldSpec).
					Path(path...).
					GoType(f.Type.String()).
					Detail("element type holds pointers").
					Build()
			}
		}
		s.index[f.Name] = i
	}

	return s, nil
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Field returns field i.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the field list.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Index returns the position of the named field.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// CountsOf maps per-name counts onto field order. Fields not named get 0.
func (s *Schema) CountsOf(byName map[string]int) (Counts, error) {
	counts := make(Counts, len(s.fields))
	for name, n := range byName {
		i, ok := s.index[name]
		if !ok {
			return nil, errors.FieldUnknown([]string{s.name}, name)
		}
		counts[i] = n
	}
	return counts, nil
}

// Specs pairs each field with its count.
func (s *Schema) Specs(counts Counts) ([]layout.FieldSpec, error) {
	if len(counts) != len(s.fields) {
		return nil, errors.InvalidInput(errors.PhaseLayout,
			fmt.Sprintf("schema %s has %d fields, got %d counts", s.name, len(s.fields), len(counts)))
	}
	specs := make([]layout.FieldSpec, len(s.fields))
	for i, f := range s.fields {
		if counts[i] < 0 {
			return nil, errors.New(errors.PhaseLayout, errors.KindInvalidInput).
				Path(s.name, f.Name).
				Value(counts[i]).
				Detail("negative count %d", counts[i]).
				Build()
		}
		specs[i] = f.spec(uintptr(counts[i]))
	}
	return specs, nil
}

// Plan computes offsets and total size for counts without allocating.
func (s *Schema) Plan(counts Counts) (layout.Plan, error) {
	specs, err := s.Specs(counts)
	if err != nil {
		return layout.Plan{}, err
	}
	plan, err := layout.Compute(specs)
	if err != nil {
		if e, ok := err.(*errors.Error); ok && len(e.Path) == 1 {
			e.Path = []string{s.name, e.Path[0]}
		}
		return layout.Plan{}, err
	}
	return plan, nil
}

// Accepts reports whether Go type t may be used to view the field's
// elements: the declared type itself, or for untyped fields any pointer-free
// type of the same size and alignment.
func (f Field) Accepts(t reflect.Type) bool {
	if f.Type != nil {
		return t == f.Type
	}
	return t.Size() == f.Size && uintptr(t.Align()) == f.Align && !hasPointers(t)
}

func (f Field) spec(count uintptr) layout.FieldSpec {
	return layout.FieldSpec{Name: f.Name, Size: f.Size, Align: f.Align, Count: count}
}

// hasPointers reports whether values of t contain anything the garbage
// collector must trace.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
