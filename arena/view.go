package arena

import (
	"iter"
	"reflect"
	"strconv"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/packed/errors"
)

// zeroBase backs views of zero-size elements, which occupy no buffer bytes.
var zeroBase uintptr

// View is a read-only typed window over one field.
type View[T any] struct {
	owner *Arena
	data  []T
	field int
}

// Len returns the element count.
func (v View[T]) Len() int {
	return len(v.data)
}

// At returns element i. It panics when i is out of range.
func (v View[T]) At(i int) T {
	v.owner.mustBeLive()
	if uint(i) >= uint(len(v.data)) {
		panic(v.outOfBounds(i))
	}
	return v.data[i]
}

// Get returns element i, or an out of bounds error.
func (v View[T]) Get(i int) (T, error) {
	v.owner.mustBeLive()
	if uint(i) >= uint(len(v.data)) {
		var zero T
		return zero, v.outOfBounds(i)
	}
	return v.data[i], nil
}

// CopyTo copies the field into dst and returns the elements copied.
func (v View[T]) CopyTo(dst []T) int {
	v.owner.mustBeLive()
	return copy(dst, v.data)
}

// All iterates over index and element pairs.
func (v View[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		v.owner.mustBeLive()
		for i, x := range v.data {
			if !yield(i, x) {
				return
			}
		}
	}
}

func (v View[T]) outOfBounds(i int) *errors.Error {
	return errors.OutOfBounds(v.owner.path(v.field), i, len(v.data))
}

// MutView is a writable typed window over one field.
type MutView[T any] struct {
	ro View[T]
}

// Len returns the element count.
func (v MutView[T]) Len() int { return v.ro.Len() }

// At returns element i. It panics when i is out of range.
func (v MutView[T]) At(i int) T { return v.ro.At(i) }

// Get returns element i, or an out of bounds error.
func (v MutView[T]) Get(i int) (T, error) { return v.ro.Get(i) }

// CopyTo copies the field into dst and returns the elements copied.
func (v MutView[T]) CopyTo(dst []T) int { return v.ro.CopyTo(dst) }

// All iterates over index and element pairs.
func (v MutView[T]) All() iter.Seq2[int, T] { return v.ro.All() }

// Set stores x at i. It panics when i is out of range.
func (v MutView[T]) Set(i int, x T) {
	v.ro.owner.mustBeLive()
	if uint(i) >= uint(len(v.ro.data)) {
		panic(v.ro.outOfBounds(i))
	}
	v.ro.data[i] = x
}

// Put stores x at i, or returns an out of bounds error.
func (v MutView[T]) Put(i int, x T) error {
	v.ro.owner.mustBeLive()
	if uint(i) >= uint(len(v.ro.data)) {
		return v.ro.outOfBounds(i)
	}
	v.ro.data[i] = x
	return nil
}

// Fill stores x in every element.
func (v MutView[T]) Fill(x T) {
	v.ro.owner.mustBeLive()
	for i := range v.ro.data {
		v.ro.data[i] = x
	}
}

// Slice returns the field as a slice whose capacity ends at the field, so
// append never writes into a neighbour. The slice must not outlive the arena.
func (v MutView[T]) Slice() []T {
	v.ro.owner.mustBeLive()
	return v.ro.data[:len(v.ro.data):len(v.ro.data)]
}

// View returns a read-only view of the same field.
func (v MutView[T]) View() View[T] {
	return v.ro
}

// Field returns a read-only view of field i.
func Field[T any](a *Arena, i int) (View[T], error) {
	data, err := fieldData[T](a, i)
	if err != nil {
		return View[T]{}, err
	}
	return View[T]{owner: a, data: data, field: i}, nil
}

// MutField returns a writable view of field i.
func MutField[T any](a *Arena, i int) (MutView[T], error) {
	v, err := Field[T](a, i)
	if err != nil {
		return MutView[T]{}, err
	}
	return MutView[T]{ro: v}, nil
}

// FieldByName returns a read-only view of the named field.
func FieldByName[T any](a *Arena, name string) (View[T], error) {
	i, err := a.lookup(name)
	if err != nil {
		return View[T]{}, err
	}
	return Field[T](a, i)
}

// MutFieldByName returns a writable view of the named field.
func MutFieldByName[T any](a *Arena, name string) (MutView[T], error) {
	i, err := a.lookup(name)
	if err != nil {
		return MutView[T]{}, err
	}
	return MutField[T](a, i)
}

// BorrowMut returns a writable view of field i and marks the field borrowed
// until release is called. A second borrow of the same field fails with a
// KindAliased error. Views obtained through MutField are not tracked.
func BorrowMut[T any](a *Arena, i int) (MutView[T], func(), error) {
	v, err := MutField[T](a, i)
	if err != nil {
		return MutView[T]{}, nil, err
	}
	if a.borrows[i] {
		Logger().Warn("field already borrowed",
			zap.String("schema", a.schema.Name()),
			zap.String("field", a.schema.Field(i).Name))
		return MutView[T]{}, nil, errors.Aliased(a.path(i))
	}
	a.borrows[i] = true

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		a.borrows[i] = false
	}
	return v, release, nil
}

// Borrowed reports whether field i has an outstanding BorrowMut.
func (a *Arena) Borrowed(i int) bool {
	if i < 0 || i >= len(a.borrows) {
		return false
	}
	return a.borrows[i]
}

func fieldData[T any](a *Arena, i int) ([]T, error) {
	if a == nil {
		return nil, errors.InvalidInput(errors.PhaseAccess, "nil arena")
	}
	if !a.live {
		return nil, errors.Released(errors.PhaseAccess, "arena "+a.schema.Name())
	}
	if !a.Attached() {
		Logger().Warn("arena buffer detached",
			zap.String("schema", a.schema.Name()),
			zap.Int("size", a.Size()))
		return nil, errors.Detached(errors.PhaseAccess, "arena "+a.schema.Name())
	}
	if i < 0 || i >= a.schema.Len() {
		return nil, errors.NotFound("field", strconv.Itoa(i))
	}

	f := a.schema.Field(i)
	t := reflect.TypeFor[T]()
	if !f.Accepts(t) {
		declared := "raw"
		if f.Type != nil {
			declared = f.Type.String()
		}
		return nil, errors.TypeMismatch(a.path(i), t.String(), declared)
	}

	n := a.counts[i]
	if n == 0 {
		return nil, nil
	}
	if f.Size == 0 {
		return unsafe.Slice((*T)(unsafe.Pointer(&zeroBase)), n), nil
	}
	start, end := a.plan.Range(i)
	body := a.block.Data[start:end]
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(body))), n), nil
}

func (a *Arena) lookup(name string) (int, error) {
	if a == nil {
		return 0, errors.InvalidInput(errors.PhaseAccess, "nil arena")
	}
	i, ok := a.schema.Index(name)
	if !ok {
		return 0, errors.NotFound("field", name)
	}
	return i, nil
}

func (a *Arena) path(i int) []string {
	return []string{a.schema.Name(), a.schema.Field(i).Name}
}
