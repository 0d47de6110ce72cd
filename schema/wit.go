package schema

import (
	"fmt"
	"reflect"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/packed/errors"
)

// FromWIT builds a schema from a WIT record. Each record field becomes one
// packed field; a field typed list<T> or T stores elements of primitive T
// with Canonical ABI size and alignment.
func FromWIT(name string, t wit.Type) (*Schema, error) {
	record := recordOf(t)
	if record == nil {
		return nil, errors.Unsupported([]string{name}, witName(t), "schema source must be a record")
	}

	fields := make([]Field, 0, len(record.Fields))
	for _, rf := range record.Fields {
		elem := rf.Type
		if list := listOf(rf.Type); list != nil {
			elem = list.Type
		}
		goType, ok := primitiveGoType(elem)
		if !ok {
			return nil, errors.New(errors.PhaseDeclare, errors.KindUnsupported).
				Path(name, rf.Name).
				WitType(witName(elem)).
				Detail("element must be a fixed-size primitive").
				Build()
		}
		fields = append(fields, Field{
			Type:  goType,
			Name:  rf.Name,
			Size:  goType.Size(),
			Align: uintptr(goType.Align()),
		})
	}

	return New(name, fields...)
}

func recordOf(t wit.Type) *wit.Record {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil
	}
	switch kind := td.Kind.(type) {
	case *wit.Record:
		return kind
	case wit.Type:
		return recordOf(kind)
	}
	return nil
}

func listOf(t wit.Type) *wit.List {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil
	}
	switch kind := td.Kind.(type) {
	case *wit.List:
		return kind
	case wit.Type:
		return listOf(kind)
	}
	return nil
}

// primitiveGoType maps WIT primitives to Go types whose size and alignment
// equal the Canonical ABI layout.
func primitiveGoType(t wit.Type) (reflect.Type, bool) {
	switch typ := t.(type) {
	case wit.Bool:
		return reflect.TypeFor[bool](), true
	case wit.U8:
		return reflect.TypeFor[uint8](), true
	case wit.S8:
		return reflect.TypeFor[int8](), true
	case wit.U16:
		return reflect.TypeFor[uint16](), true
	case wit.S16:
		return reflect.TypeFor[int16](), true
	case wit.U32:
		return reflect.TypeFor[uint32](), true
	case wit.S32:
		return reflect.TypeFor[int32](), true
	case wit.U64:
		return reflect.TypeFor[uint64](), true
	case wit.S64:
		return reflect.TypeFor[int64](), true
	case wit.F32:
		return reflect.TypeFor[float32](), true
	case wit.F64:
		return reflect.TypeFor[float64](), true
	case wit.Char:
		return reflect.TypeFor[rune](), true
	case *wit.TypeDef:
		if alias, ok := typ.Kind.(wit.Type); ok {
			return primitiveGoType(alias)
		}
	}
	return nil, false
}

func witName(t wit.Type) string {
	if t == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", t)
}
