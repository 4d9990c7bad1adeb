package interp

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// abiTypeString renders a type descriptor as a canonical ABI type name.
func abiTypeString(t Type) (string, error) {
	switch tt := t.(type) {
	case BoolType, BytesType, StringType, AddressType:
		return t.String(), nil
	case IntType:
		return tt.String(), nil
	case FixBytesType:
		return tt.String(), nil
	case ArrayType:
		if tt.Elem == nil {
			return "", TypeErrorf("cannot infer element type of empty array")
		}
		elem, err := abiTypeString(tt.Elem)
		if err != nil {
			return "", err
		}
		return elem + "[]", nil
	case ContractType:
		return "address", nil
	}
	return "", TypeErrorf("%s has no ABI representation", t.String())
}

func newABIType(t Type) (gethabi.Type, error) {
	s, err := abiTypeString(t)
	if err != nil {
		return gethabi.Type{}, err
	}
	abiType, err := gethabi.NewType(s, "", nil)
	if err != nil {
		return gethabi.Type{}, TypeErrorf("invalid ABI type %s", s)
	}
	return abiType, nil
}

// inferEncodeType picks the ABI slot type used by abi.encode for a value.
// FixedBytes always encodes as a left-padded 32-byte word.
func inferEncodeType(v Value) (Type, error) {
	switch val := v.(type) {
	case FixBytes:
		return FixBytesType{Size: 32}, nil
	case Array:
		if val.Elem == nil {
			return nil, TypeErrorf("cannot infer element type of empty array")
		}
		return ArrayType{Elem: val.Elem}, nil
	default:
		t := TypeOf(v)
		if _, err := abiTypeString(t); err != nil {
			return nil, err
		}
		return t, nil
	}
}

// goValue converts a runtime value to the Go representation the ABI
// packer expects for the given ABI type, coercing where the conversion
// is lossless.
func goValue(v Value, t gethabi.Type) (any, error) {
	switch t.T {
	case gethabi.UintTy, gethabi.IntTy:
		target := IntType{Bits: t.Size, Signed: t.T == gethabi.IntTy}
		cast, err := target.Cast(v)
		if err != nil {
			return nil, err
		}
		x := cast.(Int).X
		goType := t.GetType()
		if goType.Kind() == reflect.Ptr {
			return new(big.Int).Set(x), nil
		}
		// Widths of 8, 16, 32 and 64 bits pack from native Go integers.
		rv := reflect.New(goType).Elem()
		if t.T == gethabi.IntTy {
			rv.SetInt(x.Int64())
		} else {
			rv.SetUint(x.Uint64())
		}
		return rv.Interface(), nil
	case gethabi.BoolTy:
		b, ok := v.(Bool)
		if !ok {
			return nil, TypeErrorf("expected bool, got %s", v.Kind())
		}
		return bool(b), nil
	case gethabi.StringTy:
		switch val := v.(type) {
		case Str:
			return string(val), nil
		case Bytes:
			return string(val), nil
		}
		return nil, TypeErrorf("expected string, got %s", v.Kind())
	case gethabi.BytesTy:
		switch val := v.(type) {
		case Bytes:
			return []byte(val), nil
		case FixBytes:
			return append([]byte{}, val.B...), nil
		case Str:
			return []byte(val), nil
		}
		return nil, TypeErrorf("expected bytes, got %s", v.Kind())
	case gethabi.FixedBytesTy:
		var src []byte
		switch val := v.(type) {
		case FixBytes:
			if len(val.B) == t.Size {
				src = val.B
			} else {
				src = resizeLeft(val.B, t.Size)
			}
		case Addr:
			if t.Size < 20 {
				return nil, TypeErrorf("address does not fit in bytes%d", t.Size)
			}
			src = resizeLeft(val[:], t.Size)
		case Int:
			cast, err := (FixBytesType{Size: t.Size}).Cast(val)
			if err != nil {
				return nil, err
			}
			src = cast.(FixBytes).B
		default:
			return nil, TypeErrorf("expected bytes%d, got %s", t.Size, v.Kind())
		}
		arr := reflect.New(reflect.ArrayOf(t.Size, reflect.TypeOf(byte(0)))).Elem()
		reflect.Copy(arr, reflect.ValueOf(src))
		return arr.Interface(), nil
	case gethabi.AddressTy:
		cast, err := AddressType{}.Cast(v)
		if err != nil {
			return nil, err
		}
		return common.Address(cast.(Addr)), nil
	case gethabi.SliceTy, gethabi.ArrayTy:
		arr, ok := v.(Array)
		if !ok {
			if tup, isTuple := v.(Tuple); isTuple {
				arr = NewArray(tup.Elems)
			} else {
				return nil, TypeErrorf("expected array, got %s", v.Kind())
			}
		}
		elemGo := t.Elem.GetType()
		out := reflect.MakeSlice(reflect.SliceOf(elemGo), 0, len(arr.Elems))
		for _, e := range arr.Elems {
			gv, err := goValue(e, *t.Elem)
			if err != nil {
				return nil, err
			}
			out = reflect.Append(out, reflect.ValueOf(gv))
		}
		return out.Interface(), nil
	}
	return nil, TypeErrorf("unsupported ABI type %s", t.String())
}

// fromGoValue converts an unpacked ABI value back into a runtime value.
func fromGoValue(gv any) (Value, error) {
	switch val := gv.(type) {
	case *big.Int:
		return NewUint(val, 256)
	case bool:
		return Bool(val), nil
	case string:
		return Str(val), nil
	case []byte:
		return Bytes(val), nil
	case common.Address:
		return Addr(val), nil
	case common.Hash:
		return NewFixBytes(val[:])
	}
	rv := reflect.ValueOf(gv)
	switch rv.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewUint(new(big.Int).SetUint64(rv.Uint()), 256)
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt(big.NewInt(rv.Int()), 256)
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return NewFixBytes(b)
		}
		fallthrough
	case reflect.Slice:
		elems := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := fromGoValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return NewArray(elems), nil
	case reflect.Struct:
		// Tuples unpack into anonymous structs.
		elems := make([]Value, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			elem, err := fromGoValue(rv.Field(i).Interface())
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return Tuple{Elems: elems}, nil
	}
	return nil, TypeErrorf("cannot convert ABI value %T", gv)
}

// ABIEncode implements abi.encode: standard head/tail encoding of the
// values with inferred slot types.
func ABIEncode(values []Value) (Bytes, error) {
	var args gethabi.Arguments
	var govs []any
	for _, v := range values {
		t, err := inferEncodeType(v)
		if err != nil {
			return nil, err
		}
		abiType, err := newABIType(t)
		if err != nil {
			return nil, err
		}
		gv, err := goValue(v, abiType)
		if err != nil {
			return nil, err
		}
		args = append(args, gethabi.Argument{Type: abiType})
		govs = append(govs, gv)
	}
	packed, err := args.Pack(govs...)
	if err != nil {
		return nil, TypeErrorf("abi encoding failed: %v", err)
	}
	return Bytes(packed), nil
}

// ABIEncodePacked implements abi.encodePacked: values are tightly
// concatenated at their natural widths with no padding.
func ABIEncodePacked(values []Value) (Bytes, error) {
	var out []byte
	for _, v := range values {
		switch val := v.(type) {
		case Int:
			width := val.T.Bits / 8
			b := make([]byte, width)
			x := val.X
			if x.Sign() < 0 {
				x = new(big.Int).Add(x, new(big.Int).Lsh(big.NewInt(1), uint(val.T.Bits)))
			}
			x.FillBytes(b)
			out = append(out, b...)
		case FixBytes:
			out = append(out, val.B...)
		case Bytes:
			out = append(out, val...)
		case Str:
			out = append(out, []byte(val)...)
		case Addr:
			out = append(out, val[:]...)
		case Bool:
			if val {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		default:
			return nil, TypeErrorf("cannot pack %s", v.Kind())
		}
	}
	return Bytes(out), nil
}

// ABIDecode implements abi.decode(data, (T1, ..., Tn)).
func ABIDecode(data []byte, target Tuple) (Value, error) {
	var args gethabi.Arguments
	for _, elem := range target.Elems {
		ref, ok := elem.(TypeRef)
		if !ok {
			return nil, TypeErrorf("decode target must be a tuple of types, got %s", elem.Kind())
		}
		abiType, err := newABIType(ref.T)
		if err != nil {
			return nil, err
		}
		args = append(args, gethabi.Argument{Type: abiType})
	}
	unpacked, err := args.Unpack(data)
	if err != nil {
		return nil, TypeErrorf("abi decoding failed: %v", err)
	}
	elems := make([]Value, len(unpacked))
	for i, gv := range unpacked {
		v, err := fromGoValue(gv)
		if err != nil {
			return nil, err
		}
		ref := target.Elems[i].(TypeRef)
		cast, err := ref.T.Cast(v)
		if err != nil {
			// Keep the decoded representation when the target is not
			// directly constructible from it (nested tuples).
			elems[i] = v
			continue
		}
		elems[i] = cast
	}
	if len(elems) == 1 {
		return elems[0], nil
	}
	return Tuple{Elems: elems}, nil
}

// EncodeCall packs calldata for an ABI method, coercing each argument to
// the declared parameter type.
func EncodeCall(contractABI *gethabi.ABI, method string, args []Value) ([]byte, error) {
	m, ok := contractABI.Methods[method]
	if !ok {
		return nil, NameErrorf("no function %s on contract", method)
	}
	if len(args) != len(m.Inputs) {
		return nil, ArityErrorf("%s expects %d arguments, got %d", method, len(m.Inputs), len(args))
	}
	govs := make([]any, len(args))
	for i, arg := range args {
		gv, err := goValue(arg, m.Inputs[i].Type)
		if err != nil {
			return nil, TypeErrorf("argument %d of %s: %v", i, method, err)
		}
		govs[i] = gv
	}
	data, err := contractABI.Pack(method, govs...)
	if err != nil {
		return nil, TypeErrorf("encoding call to %s failed: %v", method, err)
	}
	return data, nil
}

// DecodeReturn unpacks a method's return data into a value: a single
// value for one output, a tuple otherwise.
func DecodeReturn(m *gethabi.Method, data []byte) (Value, error) {
	if len(m.Outputs) == 0 {
		return Null{}, nil
	}
	unpacked, err := m.Outputs.Unpack(data)
	if err != nil {
		return nil, TypeErrorf("decoding return of %s failed: %v", m.Name, err)
	}
	values := make([]Value, len(unpacked))
	for i, gv := range unpacked {
		v, err := fromGoValue(gv)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	if len(values) == 1 {
		return values[0], nil
	}
	return Tuple{Elems: values}, nil
}

// DecodeCalldata unpacks calldata against a method, returning the
// canonical signature and the argument tuple.
func DecodeCalldata(m *gethabi.Method, data []byte) (Value, error) {
	if len(data) < 4 {
		return nil, TypeErrorf("calldata shorter than a selector")
	}
	unpacked, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, TypeErrorf("decoding calldata for %s failed: %v", m.Name, err)
	}
	values := make([]Value, len(unpacked))
	for i, gv := range unpacked {
		v, cerr := fromGoValue(gv)
		if cerr != nil {
			return nil, cerr
		}
		values[i] = v
	}
	return Tuple{Elems: []Value{Str(m.Sig), Tuple{Elems: values}}}, nil
}

// DecodeLog decodes a raw log against an event definition: indexed
// parameters come from topics, the rest from data. Dynamic indexed
// parameters stay as their topic hash.
func DecodeLog(event *gethabi.Event, log *types.Log) (NamedTuple, error) {
	var out NamedTuple
	topicIdx := 1
	var nonIndexed gethabi.Arguments
	for _, input := range event.Inputs {
		if !input.Indexed {
			nonIndexed = append(nonIndexed, input)
		}
	}
	var dataValues []Value
	if len(nonIndexed) > 0 {
		unpacked, err := nonIndexed.Unpack(log.Data)
		if err != nil {
			return NamedTuple{}, TypeErrorf("decoding %s data failed: %v", event.Name, err)
		}
		for _, gv := range unpacked {
			v, err := fromGoValue(gv)
			if err != nil {
				return NamedTuple{}, err
			}
			dataValues = append(dataValues, v)
		}
	}
	dataPos := 0
	for _, input := range event.Inputs {
		var v Value
		if input.Indexed {
			if topicIdx >= len(log.Topics) {
				return NamedTuple{}, TypeErrorf("log for %s is missing topics", event.Name)
			}
			topic := log.Topics[topicIdx]
			topicIdx++
			var err error
			v, err = decodeTopic(input.Type, topic)
			if err != nil {
				return NamedTuple{}, err
			}
		} else {
			v = dataValues[dataPos]
			dataPos++
		}
		name := input.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", len(out.Names))
		}
		out = out.WithField(name, v)
	}
	return out, nil
}

func decodeTopic(t gethabi.Type, topic common.Hash) (Value, error) {
	switch t.T {
	case gethabi.StringTy, gethabi.BytesTy, gethabi.SliceTy, gethabi.ArrayTy, gethabi.TupleTy:
		// Dynamic indexed values are stored hashed.
		return NewFixBytes(topic[:])
	}
	args := gethabi.Arguments{{Type: t}}
	unpacked, err := args.Unpack(topic[:])
	if err != nil {
		return nil, TypeErrorf("decoding topic failed: %v", err)
	}
	return fromGoValue(unpacked[0])
}

// DecodeMultisend parses the packed Safe multiSend blob: a concatenation
// of (uint8 op, address to, uint256 value, uint256 len, bytes[len])
// records.
func DecodeMultisend(data []byte) (Value, error) {
	var records []Value
	pos := 0
	for pos < len(data) {
		if pos+1+20+32+32 > len(data) {
			return nil, TypeErrorf("truncated multisend record at offset %d", pos)
		}
		op := data[pos]
		pos++
		to := common.BytesToAddress(data[pos : pos+20])
		pos += 20
		value := new(big.Int).SetBytes(data[pos : pos+32])
		pos += 32
		length := new(big.Int).SetBytes(data[pos : pos+32])
		pos += 32
		if !length.IsInt64() || pos+int(length.Int64()) > len(data) {
			return nil, TypeErrorf("truncated multisend record at offset %d", pos)
		}
		inner := data[pos : pos+int(length.Int64())]
		pos += int(length.Int64())

		opVal, err := NewUint(new(big.Int).SetUint64(uint64(op)), 8)
		if err != nil {
			return nil, err
		}
		valueVal, err := NewUint(value, 256)
		if err != nil {
			return nil, err
		}
		records = append(records, NamedTuple{
			Names: []string{"operation", "to", "value", "data"},
			Elems: []Value{opVal, Addr(to), valueVal, Bytes(append([]byte{}, inner...))},
		})
	}
	return NewArray(records), nil
}

// DecodeRevert tries to render revert returndata: the standard
// Error(string) and Panic(uint256) shapes first, then any error
// registered in the session's ABIs.
func DecodeRevert(data []byte, lookup func(sel [4]byte) (*gethabi.Error, bool)) string {
	if len(data) < 4 {
		return "0x" + common.Bytes2Hex(data)
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	switch common.Bytes2Hex(sel[:]) {
	case "08c379a0": // Error(string)
		args := gethabi.Arguments{{Type: mustNewABIType("string")}}
		if unpacked, err := args.Unpack(data[4:]); err == nil && len(unpacked) == 1 {
			return fmt.Sprintf("revert: %v", unpacked[0])
		}
	case "4e487b71": // Panic(uint256)
		args := gethabi.Arguments{{Type: mustNewABIType("uint256")}}
		if unpacked, err := args.Unpack(data[4:]); err == nil && len(unpacked) == 1 {
			return fmt.Sprintf("panic: %v", unpacked[0])
		}
	}
	if lookup != nil {
		if abiErr, ok := lookup(sel); ok {
			if unpacked, err := abiErr.Inputs.Unpack(data[4:]); err == nil {
				parts := make([]string, len(unpacked))
				for i, gv := range unpacked {
					parts[i] = fmt.Sprintf("%v", gv)
				}
				return fmt.Sprintf("revert: %s(%s)", abiErr.Name, strings.Join(parts, ", "))
			}
		}
	}
	return "revert data: 0x" + common.Bytes2Hex(data)
}

func mustNewABIType(s string) gethabi.Type {
	t, err := gethabi.NewType(s, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}
