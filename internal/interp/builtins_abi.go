package interp

import (
	"os"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

func init() {
	registerFunc("abi", "load", abiLoad)
	registerFunc("abi", "fetch", abiFetch)
	registerFunc("abi", "encode", abiEncode)
	registerFunc("abi", "encodePacked", abiEncodePacked)
	registerFunc("abi", "decode", abiDecode)
	registerFunc("abi", "decodeData", abiDecodeData)
	registerFunc("abi", "decodeMultisend", abiDecodeMultisend)
	registerProp("abi", "loaded", abiLoaded)
}

// artifactABI extracts the ABI JSON from either a bare ABI array or a
// compiler artifact wrapping it in an "abi" field.
func artifactABI(raw []byte) (*gethabi.ABI, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(raw, &artifact); err != nil {
			return nil, TypeErrorf("invalid artifact JSON: %v", err)
		}
		if len(artifact.ABI) == 0 {
			return nil, TypeErrorf("artifact has no abi field")
		}
		trimmed = string(artifact.ABI)
	}
	parsed, err := gethabi.JSON(strings.NewReader(trimmed))
	if err != nil {
		return nil, TypeErrorf("invalid ABI JSON: %v", err)
	}
	return &parsed, nil
}

// abiLoad reads an ABI (or forge artifact) from disk and registers it
// under a contract name. Re-registering a name overwrites it.
func abiLoad(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	name, err := argStr(args, 0, "name")
	if err != nil {
		return nil, err
	}
	path, err := argStr(args, 1, "path")
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, IOError("reading "+path, err)
	}
	parsed, err := artifactABI(raw)
	if err != nil {
		return nil, err
	}
	ip.session.RegisterABI(name, parsed)
	ip.RegisterContract(name, ContractType{Name: name, ABI: parsed})
	return TypeRef{T: ContractType{Name: name, ABI: parsed}}, nil
}

// abiFetch downloads a verified ABI from the block explorer and
// registers it.
func abiFetch(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	name, err := argStr(args, 0, "name")
	if err != nil {
		return nil, err
	}
	addrVal, err := argAddress(args, 1, "address")
	if err != nil {
		return nil, err
	}
	addr := common.Address(addrVal.(Addr))
	parsed, err := ip.session.FetchABI(ip.ctx, name, addr)
	if err != nil {
		return nil, err
	}
	ip.session.RegisterABI(name, parsed)
	ip.RegisterContract(name, ContractType{Name: name, ABI: parsed})
	return &ContractVal{Name: name, ABI: parsed, Addr: addr, Bound: true}, nil
}

func abiLoaded(ip *Interp) (Value, error) {
	names := ip.session.ABINames()
	return NewArray(lo.Map(names, func(n string, _ int) Value { return Str(n) })), nil
}

func abiEncode(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	return ABIEncode(args)
}

func abiEncodePacked(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	return ABIEncodePacked(args)
}

func abiDecode(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, ArityErrorf("abi.decode expects 2 arguments, got %d", len(args))
	}
	data, err := argBytes(args[0])
	if err != nil {
		return nil, err
	}
	var target Tuple
	switch t := args[1].(type) {
	case Tuple:
		target = t
	case TypeRef:
		target = Tuple{Elems: []Value{t}}
	default:
		return nil, TypeErrorf("decode target must be a tuple of types, got %s", args[1].Kind())
	}
	return ABIDecode(data, target)
}

// abiDecodeData matches calldata against every registered ABI by 4-byte
// selector.
func abiDecodeData(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, ArityErrorf("abi.decodeData expects 1 argument, got %d", len(args))
	}
	data, err := argBytes(args[0])
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, TypeErrorf("calldata shorter than a selector")
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	method, _, ok := ip.session.FunctionBySelector(sel)
	if !ok {
		return nil, NameErrorf("no registered function matches selector 0x%x", sel)
	}
	return DecodeCalldata(method, data)
}

func abiDecodeMultisend(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, ArityErrorf("abi.decodeMultisend expects 1 argument, got %d", len(args))
	}
	data, err := argBytes(args[0])
	if err != nil {
		return nil, err
	}
	return DecodeMultisend(data)
}
