package interp

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// Namespace is a fixed builtin namespace ("abi", "vm", ...). Members are
// resolved through the registry tables, never through the environment.
type Namespace string

func (Namespace) Kind() Kind       { return KindFunc }
func (n Namespace) String() string { return string(n) }

// Registry tables. Namespace properties evaluate on access; namespace
// functions and per-kind methods produce callable values.
type (
	propertyFn func(ip *Interp) (Value, error)
	builtinFn  func(ip *Interp, args []Value, opts map[string]Value) (Value, error)
	methodFn   func(ip *Interp, recv Value, args []Value, opts map[string]Value) (Value, error)
)

var (
	namespaceFuncs = map[string]map[string]builtinFn{}
	namespaceProps = map[string]map[string]propertyFn{}
	kindMethods    = map[Kind]map[string]methodFn{}
)

func registerFunc(ns, name string, fn builtinFn) {
	if namespaceFuncs[ns] == nil {
		namespaceFuncs[ns] = map[string]builtinFn{}
	}
	namespaceFuncs[ns][name] = fn
}

func registerProp(ns, name string, fn propertyFn) {
	if namespaceProps[ns] == nil {
		namespaceProps[ns] = map[string]propertyFn{}
	}
	namespaceProps[ns][name] = fn
}

func registerMethod(kind Kind, name string, fn methodFn) {
	if kindMethods[kind] == nil {
		kindMethods[kind] = map[string]methodFn{}
	}
	kindMethods[kind][name] = fn
}

// registerKindProp attaches a receiver-dependent property to a kind.
type kindPropFn func(ip *Interp, recv Value) (Value, error)

var kindRecvProps = map[Kind]map[string]kindPropFn{}

func registerKindProp(kind Kind, name string, fn kindPropFn) {
	if kindRecvProps[kind] == nil {
		kindRecvProps[kind] = map[string]kindPropFn{}
	}
	kindRecvProps[kind][name] = fn
}

// evalMember implements the member dispatch contract: per-kind tables
// first, then contract ABI entries, then type statics.
func (ip *Interp) evalMember(recv Value, name string) (Value, error) {
	if ns, ok := recv.(Namespace); ok {
		if prop, ok := namespaceProps[string(ns)][name]; ok {
			return prop(ip)
		}
		if fn, ok := namespaceFuncs[string(ns)][name]; ok {
			return &BuiltinFunc{Name: string(ns) + "." + name, Fn: fn}, nil
		}
		return nil, NameErrorf("no member %s on %s", name, ns)
	}

	if prop, ok := kindRecvProps[recv.Kind()][name]; ok {
		return prop(ip, recv)
	}
	if fn, ok := kindMethods[recv.Kind()][name]; ok {
		return &BoundMethod{Recv: recv, Name: name, Fn: fn}, nil
	}

	switch val := recv.(type) {
	case *ContractVal:
		if _, ok := val.ABI.Methods[name]; ok {
			return &ContractFunc{Contract: val, Method: name}, nil
		}
		if _, ok := val.ABI.Events[name]; ok {
			return &EventFunc{Contract: val, Event: name}, nil
		}

	case *ContractFunc:
		switch name {
		case "call":
			return val.WithMode(ModeCall), nil
		case "send":
			return val.WithMode(ModeSend), nil
		case "encode":
			return val.WithMode(ModeEncode), nil
		case "traceCall":
			return val.WithMode(ModeTrace), nil
		}

	case NamedTuple:
		if field, ok := val.Field(name); ok {
			return field, nil
		}

	case TypeRef:
		return ip.evalTypeStatic(val, name)
	}
	return nil, NameErrorf("no member %s on %s", name, TypeOf(recv).String())
}

// evalTypeStatic resolves static members on a type value.
func (ip *Interp) evalTypeStatic(ref TypeRef, name string) (Value, error) {
	inner := unwrapMeta(ref.T)
	switch t := inner.(type) {
	case IntType:
		switch name {
		case "max":
			return Int{X: t.Max(), T: IntType{Bits: 256, Signed: t.Signed}}, nil
		case "min":
			return Int{X: t.Min(), T: IntType{Bits: 256, Signed: t.Signed}}, nil
		}
	case ContractType:
		switch name {
		case "decode":
			contract := t
			return &BuiltinFunc{
				Name: t.Name + ".decode",
				Fn: func(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
					return contractDecode(contract, args, opts)
				},
			}, nil
		}
		// Events on the contract type query logs without a bound address.
		if event, ok := t.ABI.Events[name]; ok {
			abiRef := t.ABI
			eventName := event.Name
			return &BuiltinFunc{
				Name: t.Name + "." + name,
				Fn: func(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
					if len(args) > 0 {
						return nil, ArityErrorf("event fetch takes no positional arguments")
					}
					return ip.fetchEvents(nil, abiRef, eventName, opts)
				},
			}, nil
		}
	}
	return nil, NameErrorf("no member %s on %s", name, ref.T.String())
}

// contractDecode decodes calldata against one contract's ABI.
func contractDecode(t ContractType, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, ArityErrorf("%s.decode expects 1 argument, got %d", t.Name, len(args))
	}
	data, err := argBytes(args[0])
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, TypeErrorf("calldata shorter than a selector")
	}
	for name := range t.ABI.Methods {
		method := t.ABI.Methods[name]
		if string(method.ID) == string(data[:4]) {
			return DecodeCalldata(&method, data)
		}
	}
	return nil, NameErrorf("no function of %s matches selector 0x%x", t.Name, data[:4])
}

// argBytes accepts Bytes or FixedBytes arguments as raw bytes.
func argBytes(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Bytes:
		return val, nil
	case FixBytes:
		return val.B, nil
	case Str:
		return []byte(val), nil
	}
	return nil, TypeErrorf("expected bytes, got %s", v.Kind())
}

// ---- top-level builtins ----

func builtinKeccak256(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, ArityErrorf("keccak256 expects 1 argument, got %d", len(args))
	}
	data, err := argBytes(args[0])
	if err != nil {
		return nil, err
	}
	return NewFixBytes(crypto.Keccak256(data))
}

func builtinType(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, ArityErrorf("type expects 1 argument, got %d", len(args))
	}
	return TypeRef{T: TypeOf(args[0])}, nil
}

func builtinFormat(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	if len(args) < 1 || len(args) > 3 {
		return nil, ArityErrorf("format expects 1 to 3 arguments, got %d", len(args))
	}
	decimals, precision := 18, 2
	if len(args) > 1 {
		d, ok := args[1].(Int)
		if !ok || !d.X.IsInt64() {
			return nil, TypeErrorf("decimals must be an integer")
		}
		decimals = int(d.X.Int64())
	}
	if len(args) > 2 {
		p, ok := args[2].(Int)
		if !ok || !p.X.IsInt64() {
			return nil, TypeErrorf("precision must be an integer")
		}
		precision = int(p.X.Int64())
	}
	out, err := FormatValue(args[0], decimals, precision)
	if err != nil {
		return nil, err
	}
	return Str(out), nil
}

// argInt reads a positional argument as an integer.
func argInt(args []Value, i int, what string) (*big.Int, error) {
	if i >= len(args) {
		return nil, ArityErrorf("missing %s argument", what)
	}
	v, ok := args[i].(Int)
	if !ok {
		return nil, TypeErrorf("%s must be an integer, got %s", what, args[i].Kind())
	}
	return new(big.Int).Set(v.X), nil
}

// argStr reads a positional argument as a string.
func argStr(args []Value, i int, what string) (string, error) {
	if i >= len(args) {
		return "", ArityErrorf("missing %s argument", what)
	}
	v, ok := args[i].(Str)
	if !ok {
		return "", TypeErrorf("%s must be a string, got %s", what, args[i].Kind())
	}
	return string(v), nil
}

// argAddress reads a positional argument as an address, accepting
// contracts and 20-byte values.
func argAddress(args []Value, i int, what string) (Value, error) {
	if i >= len(args) {
		return nil, ArityErrorf("missing %s argument", what)
	}
	return AddressType{}.Cast(args[i])
}
