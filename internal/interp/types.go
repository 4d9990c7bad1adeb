package interp

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// Type is a runtime type descriptor. Descriptors are values themselves
// when wrapped in a TypeRef.
type Type interface {
	String() string
	// Cast applies constructor semantics: T(value).
	Cast(v Value) (Value, error)
}

type BoolType struct{}

func (BoolType) String() string { return "bool" }
func (BoolType) Cast(v Value) (Value, error) {
	if b, ok := v.(Bool); ok {
		return b, nil
	}
	return nil, castError(v, "bool")
}

// IntType is intN/uintN for N in 8..256.
type IntType struct {
	Bits   int
	Signed bool
}

func (t IntType) String() string {
	if t.Signed {
		return fmt.Sprintf("int%d", t.Bits)
	}
	return fmt.Sprintf("uint%d", t.Bits)
}

// Max returns the largest representable value.
func (t IntType) Max() *big.Int {
	if t.Signed {
		return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(t.Bits-1)), big.NewInt(1))
	}
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(t.Bits)), big.NewInt(1))
}

// Min returns the smallest representable value.
func (t IntType) Min() *big.Int {
	if t.Signed {
		return new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(t.Bits-1)))
	}
	return new(big.Int)
}

func (t IntType) Fits(x *big.Int) bool {
	return x.Cmp(t.Min()) >= 0 && x.Cmp(t.Max()) <= 0
}

func (t IntType) Cast(v Value) (Value, error) {
	switch val := v.(type) {
	case Int:
		if !t.Fits(val.X) {
			return nil, TypeErrorf("%s is out of range for %s", val.X, t)
		}
		return Int{X: new(big.Int).Set(val.X), T: t}, nil
	case FixBytes:
		w := val.Word()
		x := new(big.Int).SetBytes(w[:])
		if t.Signed {
			x = twosComplementToSigned(x, t.Bits)
		}
		if !t.Fits(x) {
			return nil, TypeErrorf("%s is out of range for %s", x, t)
		}
		return Int{X: x, T: t}, nil
	case Str:
		x, ok := new(big.Int).SetString(string(val), 10)
		if !ok {
			return nil, TypeErrorf("cannot parse %q as %s", string(val), t)
		}
		if !t.Fits(x) {
			return nil, TypeErrorf("%s is out of range for %s", x, t)
		}
		return Int{X: x, T: t}, nil
	}
	return nil, castError(v, t.String())
}

// FixBytesType is bytesN for N in 1..32.
type FixBytesType struct {
	Size int
}

func (t FixBytesType) String() string { return fmt.Sprintf("bytes%d", t.Size) }

// Cast reinterprets fixed-width values: left-zero-padded when widening,
// left-truncated when narrowing.
func (t FixBytesType) Cast(v Value) (Value, error) {
	switch val := v.(type) {
	case FixBytes:
		return NewFixBytes(resizeLeft(val.B, t.Size))
	case Int:
		if val.X.Sign() < 0 {
			return nil, TypeErrorf("cannot convert negative %s to %s", val.X, t)
		}
		b := val.X.Bytes()
		if len(b) > t.Size {
			return nil, TypeErrorf("%s does not fit in %s", val.X, t)
		}
		return NewFixBytes(resizeLeft(b, t.Size))
	case Addr:
		if t.Size < 20 {
			return nil, TypeErrorf("address does not fit in %s", t)
		}
		return NewFixBytes(resizeLeft(val[:], t.Size))
	case Bytes:
		if len(val) > t.Size {
			return nil, TypeErrorf("bytes of length %d do not fit in %s", len(val), t)
		}
		return NewFixBytes(resizeLeft(val, t.Size))
	}
	return nil, castError(v, t.String())
}

// resizeLeft left-pads with zeros or left-truncates to size bytes.
func resizeLeft(b []byte, size int) []byte {
	out := make([]byte, size)
	if len(b) >= size {
		copy(out, b[len(b)-size:])
	} else {
		copy(out[size-len(b):], b)
	}
	return out
}

type BytesType struct{}

func (BytesType) String() string { return "bytes" }
func (BytesType) Cast(v Value) (Value, error) {
	switch val := v.(type) {
	case Bytes:
		return val, nil
	case FixBytes:
		return Bytes(append([]byte{}, val.B...)), nil
	case Str:
		return Bytes([]byte(val)), nil
	}
	return nil, castError(v, "bytes")
}

type StringType struct{}

func (StringType) String() string { return "string" }
func (StringType) Cast(v Value) (Value, error) {
	switch val := v.(type) {
	case Str:
		return val, nil
	case Bytes:
		return Str(string(val)), nil
	}
	return nil, castError(v, "string")
}

type AddressType struct{}

func (AddressType) String() string { return "address" }
func (AddressType) Cast(v Value) (Value, error) {
	switch val := v.(type) {
	case Addr:
		return val, nil
	case FixBytes:
		if len(val.B) == 20 {
			return Addr(common.BytesToAddress(val.B)), nil
		}
		return nil, TypeErrorf("cannot convert bytes%d to address", len(val.B))
	case Int:
		if val.X.Sign() < 0 || val.X.BitLen() > 160 {
			return nil, TypeErrorf("%s is out of range for address", val.X)
		}
		return Addr(common.BigToAddress(val.X)), nil
	case *ContractVal:
		if !val.Bound {
			return nil, TypeErrorf("contract not bound to an address")
		}
		return Addr(val.Addr), nil
	case Str:
		if !common.IsHexAddress(string(val)) {
			return nil, TypeErrorf("cannot parse %q as address", string(val))
		}
		return Addr(common.HexToAddress(string(val))), nil
	}
	return nil, castError(v, "address")
}

type ArrayType struct {
	Elem Type
}

func (t ArrayType) String() string {
	if t.Elem == nil {
		return "[]"
	}
	return t.Elem.String() + "[]"
}

func (t ArrayType) Cast(v Value) (Value, error) {
	arr, ok := v.(Array)
	if !ok {
		return nil, castError(v, t.String())
	}
	if t.Elem == nil {
		return arr, nil
	}
	elems := make([]Value, len(arr.Elems))
	for i, e := range arr.Elems {
		cast, err := t.Elem.Cast(e)
		if err != nil {
			return nil, err
		}
		elems[i] = cast
	}
	return Array{Elems: elems, Elem: t.Elem}, nil
}

type TupleType struct {
	Elems []Type
}

func (t TupleType) String() string {
	return "(" + strings.Join(lo.Map(t.Elems, func(e Type, _ int) string { return e.String() }), ", ") + ")"
}

func (t TupleType) Cast(v Value) (Value, error) {
	tup, ok := v.(Tuple)
	if !ok || len(tup.Elems) != len(t.Elems) {
		return nil, castError(v, t.String())
	}
	elems := make([]Value, len(tup.Elems))
	for i, e := range tup.Elems {
		cast, err := t.Elems[i].Cast(e)
		if err != nil {
			return nil, err
		}
		elems[i] = cast
	}
	return Tuple{Elems: elems}, nil
}

// ContractType is an ABI bound to a contract name; calling it binds an
// address, producing a contract instance.
type ContractType struct {
	Name string
	ABI  *gethabi.ABI
}

func (t ContractType) String() string { return t.Name }

func (t ContractType) Cast(v Value) (Value, error) {
	addr, err := AddressType{}.Cast(v)
	if err != nil {
		return nil, TypeErrorf("%s constructor expects an address", t.Name)
	}
	return &ContractVal{Name: t.Name, ABI: t.ABI, Addr: common.Address(addr.(Addr)), Bound: true}, nil
}

// FunctionType describes callable values.
type FunctionType struct{}

func (FunctionType) String() string { return "function" }
func (FunctionType) Cast(v Value) (Value, error) {
	if f, ok := v.(Func); ok {
		return f, nil
	}
	return nil, castError(v, "function")
}

// TypeType is the type of type values: type(type(uint8)) == type(Type).
type TypeType struct{}

func (TypeType) String() string { return "Type" }
func (TypeType) Cast(v Value) (Value, error) {
	if t, ok := v.(TypeRef); ok {
		return t, nil
	}
	return nil, castError(v, "Type")
}

// MetaType is the result of type(T): it remembers the inner type so
// statics like type(uint8).max keep working. The meta of a meta
// collapses to the plain Type type.
type MetaType struct {
	Inner Type
}

func (t MetaType) String() string { return fmt.Sprintf("type(%s)", t.Inner.String()) }
func (t MetaType) Cast(v Value) (Value, error) {
	return t.Inner.Cast(v)
}

// unwrapMeta strips a MetaType wrapper for static member dispatch.
func unwrapMeta(t Type) Type {
	if m, ok := t.(MetaType); ok {
		return m.Inner
	}
	return t
}

// NamedKindType covers kinds with no parameters and no constructor
// (null, transaction, named tuples).
type NamedKindType struct {
	Name string
}

func (t NamedKindType) String() string { return t.Name }
func (t NamedKindType) Cast(v Value) (Value, error) {
	return nil, TypeErrorf("%s is not constructible", t.Name)
}

func castError(v Value, target string) error {
	return TypeErrorf("cannot convert %s to %s", v.Kind(), target)
}

// TypeOf returns the type descriptor of a value.
func TypeOf(v Value) Type {
	switch val := v.(type) {
	case Null:
		return NamedKindType{Name: "null"}
	case Bool:
		return BoolType{}
	case Int:
		return val.T
	case FixBytes:
		return FixBytesType{Size: len(val.B)}
	case Bytes:
		return BytesType{}
	case Str:
		return StringType{}
	case Addr:
		return AddressType{}
	case Array:
		return ArrayType{Elem: val.Elem}
	case Tuple:
		return TupleType{Elems: lo.Map(val.Elems, func(e Value, _ int) Type { return TypeOf(e) })}
	case NamedTuple:
		return TupleType{Elems: lo.Map(val.Elems, func(e Value, _ int) Type { return TypeOf(e) })}
	case TypeRef:
		switch val.T.(type) {
		case MetaType, TypeType:
			return TypeType{}
		}
		return MetaType{Inner: val.T}
	case *ContractVal:
		return ContractType{Name: val.Name, ABI: val.ABI}
	case Func:
		return FunctionType{}
	case TxHash:
		return NamedKindType{Name: "Transaction"}
	}
	return NamedKindType{Name: "unknown"}
}

// ParseElementaryType resolves a Solidity elementary type name. It covers
// uintN/intN (and the uint/int aliases), bytesN, bytes, string, bool,
// address and the Type meta-type.
func ParseElementaryType(name string) (Type, bool) {
	switch name {
	case "bool":
		return BoolType{}, true
	case "string":
		return StringType{}, true
	case "bytes":
		return BytesType{}, true
	case "address":
		return AddressType{}, true
	case "uint":
		return IntType{Bits: 256}, true
	case "int":
		return IntType{Bits: 256, Signed: true}, true
	case "Type":
		return TypeType{}, true
	}
	if rest, ok := strings.CutPrefix(name, "uint"); ok {
		if bits, err := strconv.Atoi(rest); err == nil && bits%8 == 0 && bits >= 8 && bits <= 256 {
			return IntType{Bits: bits}, true
		}
	}
	if rest, ok := strings.CutPrefix(name, "int"); ok {
		if bits, err := strconv.Atoi(rest); err == nil && bits%8 == 0 && bits >= 8 && bits <= 256 {
			return IntType{Bits: bits, Signed: true}, true
		}
	}
	if rest, ok := strings.CutPrefix(name, "bytes"); ok {
		if size, err := strconv.Atoi(rest); err == nil && size >= 1 && size <= 32 {
			return FixBytesType{Size: size}, true
		}
	}
	return nil, false
}

// twosComplementToSigned reinterprets an unsigned bit pattern as a signed
// value of the given width.
func twosComplementToSigned(x *big.Int, bits int) *big.Int {
	half := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	if x.Cmp(half) >= 0 {
		full := new(big.Int).Lsh(big.NewInt(1), uint(bits))
		return new(big.Int).Sub(x, full)
	}
	return x
}
