package interp

import (
	"bytes"
	"math/big"

	"github.com/goccy/go-json"
)

func init() {
	registerFunc("json", "parse", jsonParse)
	registerFunc("json", "stringify", jsonStringify)
}

func jsonParse(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	raw, err := argStr(args, 0, "json")
	if err != nil {
		return nil, err
	}
	return JSONToValue([]byte(raw))
}

func jsonStringify(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, ArityErrorf("json.stringify expects 1 argument, got %d", len(args))
	}
	encoded, err := json.Marshal(valueToJSON(args[0]))
	if err != nil {
		return nil, TypeErrorf("cannot stringify %s: %v", args[0].Kind(), err)
	}
	return Str(encoded), nil
}

// JSONToValue maps a JSON document onto runtime values: objects become
// named tuples with fields in sorted key order (the document's own key
// order is not kept), arrays become arrays, integral numbers become
// uint256 (int256 when negative) and other numbers keep their text.
func JSONToValue(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, TypeErrorf("invalid JSON: %v", err)
	}
	return jsonAnyToValue(doc)
}

func jsonAnyToValue(doc any) (Value, error) {
	switch v := doc.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(v), nil
	case string:
		return Str(v), nil
	case json.Number:
		if x, ok := new(big.Int).SetString(v.String(), 10); ok {
			if x.Sign() < 0 {
				return NewInt(x, 256)
			}
			return NewUint(x, 256)
		}
		// Non-integral numbers keep their textual form.
		return Str(v.String()), nil
	case []any:
		elems := make([]Value, len(v))
		for i, e := range v {
			elem, err := jsonAnyToValue(e)
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return NewArray(elems), nil
	case map[string]any:
		var out NamedTuple
		for _, key := range sortedKeys(v) {
			elem, err := jsonAnyToValue(v[key])
			if err != nil {
				return nil, err
			}
			out = out.WithField(key, elem)
		}
		return out, nil
	}
	return nil, TypeErrorf("unsupported JSON value %T", doc)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// valueToJSON maps runtime values to JSON-encodable Go values.
func valueToJSON(v Value) any {
	switch val := v.(type) {
	case Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		// Large integers serialize as strings to avoid precision loss.
		if val.X.IsInt64() {
			return val.X.Int64()
		}
		return val.X.String()
	case Str:
		return string(val)
	case Bytes:
		return val.String()
	case FixBytes:
		return val.String()
	case Addr:
		return val.String()
	case Array:
		out := make([]any, len(val.Elems))
		for i, e := range val.Elems {
			out[i] = valueToJSON(e)
		}
		return out
	case Tuple:
		out := make([]any, len(val.Elems))
		for i, e := range val.Elems {
			out[i] = valueToJSON(e)
		}
		return out
	case NamedTuple:
		out := make(map[string]any, len(val.Elems))
		for i, name := range val.Names {
			out[name] = valueToJSON(val.Elems[i])
		}
		return out
	case TxHash:
		return val.String()
	}
	return v.String()
}
