// Package argbind implements typed positional argument substitution into
// compiled predicates (spec.md §4.2 Argument binding).
package argbind

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the dynamic types a bound argument may carry.
type Type int

const (
	TypeNull Type = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeDouble
	TypeString
	TypeBinary
	TypeTimestamp
	TypeObjectID
	TypeUUID
	TypeDecimal
	TypeObjectIndex
)

// ErrArgumentOutOfRange is returned when a $n reference names an index
// beyond the bound argument list.
type ErrArgumentOutOfRange struct{ Index int }

func (e *ErrArgumentOutOfRange) Error() string {
	return fmt.Sprintf("argbind: argument index %d out of range", e.Index)
}

// Source is the interface the constant compiler calls when it encounters an
// ARG constant ($n). Implementations provide typed accessors per spec.md
// §4.2; out-of-range indices must fail with *ErrArgumentOutOfRange.
type Source interface {
	BoolFor(i int) (bool, error)
	LongFor(i int) (int64, error)
	FloatFor(i int) (float32, error)
	DoubleFor(i int) (float64, error)
	StringFor(i int) (string, error)
	BinaryFor(i int) ([]byte, error)
	TimestampFor(i int) (time.Time, error)
	ObjectIDFor(i int) ([12]byte, error)
	UUIDFor(i int) (uuid.UUID, error)
	DecimalFor(i int) (string, error)
	ObjectIndexFor(i int) (int64, error)
	IsNull(i int) (bool, error)
	TypeFor(i int) (Type, error)
}

// Arg is one positional value; ObjectIndex and Decimal are carried as plain
// values since this module has no storage-layer Decimal128/ObjectIndex type
// of its own.
type Arg struct {
	Type        Type
	Bool        bool
	Long        int64
	Float       float32
	Double      float64
	String      string
	Binary      []byte
	Timestamp   time.Time
	ObjectID    [12]byte
	UUID        uuid.UUID
	Decimal     string
	ObjectIndex int64
}

// Args is a slice-backed Source, explicitly constructed and passed by the
// caller rather than held in package-level mutable state (spec.md §9: "keep
// a single process-wide sink behind an atomic only where cross-cutting").
type Args []Arg

func (a Args) get(i int) (Arg, error) {
	if i < 0 || i >= len(a) {
		return Arg{}, &ErrArgumentOutOfRange{Index: i}
	}
	return a[i], nil
}

func (a Args) IsNull(i int) (bool, error) {
	arg, err := a.get(i)
	if err != nil {
		return false, err
	}
	return arg.Type == TypeNull, nil
}

func (a Args) TypeFor(i int) (Type, error) {
	arg, err := a.get(i)
	if err != nil {
		return TypeNull, err
	}
	return arg.Type, nil
}

func (a Args) BoolFor(i int) (bool, error) {
	arg, err := a.get(i)
	return arg.Bool, err
}

func (a Args) LongFor(i int) (int64, error) {
	arg, err := a.get(i)
	return arg.Long, err
}

func (a Args) FloatFor(i int) (float32, error) {
	arg, err := a.get(i)
	return arg.Float, err
}

func (a Args) DoubleFor(i int) (float64, error) {
	arg, err := a.get(i)
	return arg.Double, err
}

func (a Args) StringFor(i int) (string, error) {
	arg, err := a.get(i)
	return arg.String, err
}

func (a Args) BinaryFor(i int) ([]byte, error) {
	arg, err := a.get(i)
	return arg.Binary, err
}

func (a Args) TimestampFor(i int) (time.Time, error) {
	arg, err := a.get(i)
	return arg.Timestamp, err
}

func (a Args) ObjectIDFor(i int) ([12]byte, error) {
	arg, err := a.get(i)
	return arg.ObjectID, err
}

func (a Args) UUIDFor(i int) (uuid.UUID, error) {
	arg, err := a.get(i)
	return arg.UUID, err
}

func (a Args) DecimalFor(i int) (string, error) {
	arg, err := a.get(i)
	return arg.Decimal, err
}

func (a Args) ObjectIndexFor(i int) (int64, error) {
	arg, err := a.get(i)
	return arg.ObjectIndex, err
}

var _ Source = Args(nil)
