package interp

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// Kind tags the closed set of runtime value variants.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFixedBytes
	KindBytes
	KindString
	KindAddress
	KindArray
	KindTuple
	KindNamedTuple
	KindTypeRef
	KindContract
	KindFunc
	KindTransaction
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFixedBytes:
		return "fixed bytes"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindAddress:
		return "address"
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	case KindNamedTuple:
		return "named tuple"
	case KindTypeRef:
		return "type"
	case KindContract:
		return "contract"
	case KindFunc:
		return "function"
	case KindTransaction:
		return "transaction"
	}
	return "unknown"
}

// Value is a runtime value. Values are immutable after construction;
// container operations return fresh containers.
type Value interface {
	Kind() Kind
	String() string
}

// Null is the unit result of statements that produce no value.
type Null struct{}

func (Null) Kind() Kind     { return KindNull }
func (Null) String() string { return "null" }

type Bool bool

func (Bool) Kind() Kind       { return KindBool }
func (b Bool) String() string { return fmt.Sprintf("%t", bool(b)) }

// Int is a width-tagged integer of at most 256 bits, stored in its
// mathematical (signed) representation.
type Int struct {
	X *big.Int
	T IntType
}

func (Int) Kind() Kind       { return KindInt }
func (i Int) String() string { return i.X.String() }

// NewUint builds an unsigned integer value, checking the width bound.
func NewUint(x *big.Int, bits int) (Int, error) {
	v := Int{X: new(big.Int).Set(x), T: IntType{Bits: bits}}
	if !v.T.Fits(v.X) {
		return Int{}, TypeErrorf("%s does not fit in uint%d", x, bits)
	}
	return v, nil
}

// NewInt builds a signed integer value, checking the width bound.
func NewInt(x *big.Int, bits int) (Int, error) {
	v := Int{X: new(big.Int).Set(x), T: IntType{Bits: bits, Signed: true}}
	if !v.T.Fits(v.X) {
		return Int{}, TypeErrorf("%s does not fit in int%d", x, bits)
	}
	return v, nil
}

// FixBytes is a byte sequence of fixed length 1..32.
type FixBytes struct {
	B []byte
}

func NewFixBytes(b []byte) (FixBytes, error) {
	if len(b) < 1 || len(b) > 32 {
		return FixBytes{}, TypeErrorf("fixed bytes length must be between 1 and 32, got %d", len(b))
	}
	return FixBytes{B: bytes.Clone(b)}, nil
}

func (FixBytes) Kind() Kind       { return KindFixedBytes }
func (f FixBytes) String() string { return "0x" + common.Bytes2Hex(f.B) }

// Word returns the value left-padded into a 32-byte slot.
func (f FixBytes) Word() [32]byte {
	var w [32]byte
	copy(w[32-len(f.B):], f.B)
	return w
}

type Bytes []byte

func (Bytes) Kind() Kind       { return KindBytes }
func (b Bytes) String() string { return "0x" + common.Bytes2Hex(b) }

type Str string

func (Str) Kind() Kind       { return KindString }
func (s Str) String() string { return fmt.Sprintf("%q", string(s)) }

type Addr common.Address

func (Addr) Kind() Kind { return KindAddress }
func (a Addr) String() string {
	return common.Address(a).Hex()
}

// Array is an ordered sequence sharing one element type. Elem may be nil
// for an empty array whose element type is not yet known.
type Array struct {
	Elems []Value
	Elem  Type
}

func NewArray(elems []Value) Array {
	arr := Array{Elems: elems}
	if len(elems) > 0 {
		arr.Elem = TypeOf(elems[0])
	}
	return arr
}

func (Array) Kind() Kind { return KindArray }
func (a Array) String() string {
	return "[" + joinValues(a.Elems) + "]"
}

type Tuple struct {
	Elems []Value
}

func (Tuple) Kind() Kind { return KindTuple }
func (t Tuple) String() string {
	return "(" + joinValues(t.Elems) + ")"
}

// NamedTuple is an ordered set of named fields with unique names; field
// order is stable.
type NamedTuple struct {
	Names []string
	Elems []Value
}

func (NamedTuple) Kind() Kind { return KindNamedTuple }
func (n NamedTuple) String() string {
	parts := make([]string, len(n.Elems))
	for i, e := range n.Elems {
		parts[i] = fmt.Sprintf("%s: %s", n.Names[i], e.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Field returns the value of a field by name.
func (n NamedTuple) Field(name string) (Value, bool) {
	for i, fname := range n.Names {
		if fname == name {
			return n.Elems[i], true
		}
	}
	return nil, false
}

// WithField returns a copy with the field appended (or replaced).
func (n NamedTuple) WithField(name string, v Value) NamedTuple {
	out := NamedTuple{Names: append([]string{}, n.Names...), Elems: append([]Value{}, n.Elems...)}
	for i, fname := range out.Names {
		if fname == name {
			out.Elems[i] = v
			return out
		}
	}
	out.Names = append(out.Names, name)
	out.Elems = append(out.Elems, v)
	return out
}

// TypeRef is a type descriptor promoted to a first-class value.
type TypeRef struct {
	T Type
}

func (TypeRef) Kind() Kind       { return KindTypeRef }
func (t TypeRef) String() string { return t.T.String() }

// ContractVal binds an ABI to an optional address. An unbound contract is
// usable as a namespace but cannot issue calls.
type ContractVal struct {
	Name  string
	ABI   *gethabi.ABI
	Addr  common.Address
	Bound bool
}

func (*ContractVal) Kind() Kind { return KindContract }
func (c *ContractVal) String() string {
	if !c.Bound {
		return c.Name
	}
	return fmt.Sprintf("%s(%s)", c.Name, common.Address(c.Addr).Hex())
}

// TxHash is a handle to a submitted transaction.
type TxHash common.Hash

func (TxHash) Kind() Kind       { return KindTransaction }
func (t TxHash) String() string { return fmt.Sprintf("Transaction(%s)", common.Hash(t).Hex()) }

// Func is a callable value.
type Func interface {
	Value
	Call(ip *Interp, args []Value, opts map[string]Value) (Value, error)
}

func joinValues(values []Value) string {
	return strings.Join(lo.Map(values, func(v Value, _ int) string { return v.String() }), ", ")
}

// Truthy reports the boolean interpretation of a condition value.
func Truthy(v Value) (bool, error) {
	if b, ok := v.(Bool); ok {
		return bool(b), nil
	}
	return false, TypeErrorf("expected bool condition, got %s", v.Kind())
}

// Eq implements equality across value kinds. Heterogeneous kinds compare
// equal only when one side coerces losslessly to the other.
func Eq(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return eqCoerced(a, b) || eqCoerced(b, a)
	}
	switch av := a.(type) {
	case Null:
		return true
	case Bool:
		return av == b.(Bool)
	case Int:
		return av.X.Cmp(b.(Int).X) == 0
	case FixBytes:
		return av.Word() == b.(FixBytes).Word()
	case Bytes:
		return bytes.Equal(av, b.(Bytes))
	case Str:
		return av == b.(Str)
	case Addr:
		return av == b.(Addr)
	case Array:
		return elemsEqual(av.Elems, b.(Array).Elems)
	case Tuple:
		return elemsEqual(av.Elems, b.(Tuple).Elems)
	case NamedTuple:
		bv := b.(NamedTuple)
		if !elemsEqual(av.Elems, bv.Elems) {
			return false
		}
		for i := range av.Names {
			if av.Names[i] != bv.Names[i] {
				return false
			}
		}
		return true
	case TypeRef:
		return av.T.String() == b.(TypeRef).T.String()
	case *ContractVal:
		bv := b.(*ContractVal)
		return av.Bound == bv.Bound && av.Addr == bv.Addr
	case TxHash:
		return av == b.(TxHash)
	}
	return false
}

// eqCoerced checks the lossless cross-kind equalities: Integer against
// FixedBytes (32-byte left-pad) and Address against FixedBytes of
// length 20.
func eqCoerced(a, b Value) bool {
	switch av := a.(type) {
	case Int:
		if fb, ok := b.(FixBytes); ok && !av.T.Signed {
			var w [32]byte
			av.X.FillBytes(w[:])
			return w == fb.Word()
		}
	case Addr:
		if fb, ok := b.(FixBytes); ok && len(fb.B) == 20 {
			return bytes.Equal(av[:], fb.B)
		}
	}
	return false
}

func elemsEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Eq(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Compare orders two values, erroring on kinds without an ordering.
func Compare(a, b Value) (int, error) {
	switch av := a.(type) {
	case Int:
		if bv, ok := b.(Int); ok {
			return av.X.Cmp(bv.X), nil
		}
	case Str:
		if bv, ok := b.(Str); ok {
			return strings.Compare(string(av), string(bv)), nil
		}
	case Bytes:
		if bv, ok := b.(Bytes); ok {
			return bytes.Compare(av, bv), nil
		}
	case FixBytes:
		if bv, ok := b.(FixBytes); ok {
			aw, bw := av.Word(), bv.Word()
			return bytes.Compare(aw[:], bw[:]), nil
		}
	case Addr:
		if bv, ok := b.(Addr); ok {
			return bytes.Compare(av[:], bv[:]), nil
		}
	}
	return 0, TypeErrorf("cannot compare %s and %s", a.Kind(), b.Kind())
}
