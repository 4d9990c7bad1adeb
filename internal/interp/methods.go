package interp

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func init() {
	// Collections.
	for _, kind := range []Kind{KindArray, KindTuple, KindNamedTuple} {
		registerKindProp(kind, "length", collectionLength)
		registerMethod(kind, "map", collectionMap)
	}
	registerMethod(KindArray, "filter", arrayFilter)
	registerMethod(KindArray, "reduce", arrayReduce)
	registerMethod(KindArray, "concat", arrayConcat)

	// Strings and byte sequences.
	registerKindProp(KindString, "length", func(ip *Interp, recv Value) (Value, error) {
		return NewUint(big.NewInt(int64(len(recv.(Str)))), 256)
	})
	registerKindProp(KindBytes, "length", func(ip *Interp, recv Value) (Value, error) {
		return NewUint(big.NewInt(int64(len(recv.(Bytes)))), 256)
	})
	registerKindProp(KindFixedBytes, "length", func(ip *Interp, recv Value) (Value, error) {
		return NewUint(big.NewInt(int64(len(recv.(FixBytes).B))), 256)
	})
	registerMethod(KindString, "concat", stringConcat)
	registerMethod(KindBytes, "concat", bytesConcat)

	// format as a method mirrors the top-level builtin.
	for _, kind := range []Kind{KindInt, KindString, KindBytes, KindFixedBytes, KindArray, KindTuple, KindNamedTuple} {
		registerMethod(kind, "format", func(ip *Interp, recv Value, args []Value, opts map[string]Value) (Value, error) {
			return builtinFormat(ip, append([]Value{recv}, args...), opts)
		})
	}

	// Scaled-number arithmetic.
	registerMethod(KindInt, "mul", intScaledMul)
	registerMethod(KindInt, "div", intScaledDiv)

	// Address balance.
	registerKindProp(KindAddress, "balance", func(ip *Interp, recv Value) (Value, error) {
		balance, err := ip.session.Balance(ip.ctx, common.Address(recv.(Addr)))
		if err != nil {
			return nil, wrapRPCErr(ip, err)
		}
		return NewUint(balance, 256)
	})

	// Transactions.
	registerMethod(KindTransaction, "getReceipt", txGetReceipt)

	// Contract instance address.
	registerKindProp(KindContract, "address", func(ip *Interp, recv Value) (Value, error) {
		contract := recv.(*ContractVal)
		if !contract.Bound {
			return nil, UsageErrorf("contract not bound to an address")
		}
		return Addr(contract.Addr), nil
	})
}

func collectionElems(v Value) []Value {
	switch val := v.(type) {
	case Array:
		return val.Elems
	case Tuple:
		return val.Elems
	case NamedTuple:
		return val.Elems
	}
	return nil
}

func collectionLength(ip *Interp, recv Value) (Value, error) {
	return NewUint(big.NewInt(int64(len(collectionElems(recv)))), 256)
}

// collectionMap maps a function over a collection, always producing an
// array (mapping a tuple does not preserve tupleness).
func collectionMap(ip *Interp, recv Value, args []Value, opts map[string]Value) (Value, error) {
	if len(args) != 1 {
		return nil, ArityErrorf("map expects 1 argument, got %d", len(args))
	}
	fn, ok := args[0].(Func)
	if !ok {
		return nil, TypeErrorf("map expects a function, got %s", args[0].Kind())
	}
	elems := collectionElems(recv)
	out := make([]Value, len(elems))
	for i, elem := range elems {
		mapped, err := fn.Call(ip, []Value{elem}, nil)
		if err != nil {
			return nil, err
		}
		out[i] = mapped
	}
	return NewArray(out), nil
}

func arrayFilter(ip *Interp, recv Value, args []Value, opts map[string]Value) (Value, error) {
	if len(args) != 1 {
		return nil, ArityErrorf("filter expects 1 argument, got %d", len(args))
	}
	fn, ok := args[0].(Func)
	if !ok {
		return nil, TypeErrorf("filter expects a function, got %s", args[0].Kind())
	}
	arr := recv.(Array)
	out := Array{Elem: arr.Elem}
	for _, elem := range arr.Elems {
		keep, err := fn.Call(ip, []Value{elem}, nil)
		if err != nil {
			return nil, err
		}
		ok, err := Truthy(keep)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Elems = append(out.Elems, elem)
		}
	}
	return out, nil
}

func arrayReduce(ip *Interp, recv Value, args []Value, opts map[string]Value) (Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, ArityErrorf("reduce expects 1 or 2 arguments, got %d", len(args))
	}
	fn, ok := args[0].(Func)
	if !ok {
		return nil, TypeErrorf("reduce expects a function, got %s", args[0].Kind())
	}
	arr := recv.(Array)
	elems := arr.Elems
	var acc Value
	if len(args) == 2 {
		acc = args[1]
	} else {
		if len(elems) == 0 {
			return nil, TypeErrorf("reduce of empty array with no initial value")
		}
		acc = elems[0]
		elems = elems[1:]
	}
	for _, elem := range elems {
		next, err := fn.Call(ip, []Value{acc, elem}, nil)
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

func arrayConcat(ip *Interp, recv Value, args []Value, opts map[string]Value) (Value, error) {
	if len(args) != 1 {
		return nil, ArityErrorf("concat expects 1 argument, got %d", len(args))
	}
	other, ok := args[0].(Array)
	if !ok {
		return nil, TypeErrorf("concat expects an array, got %s", args[0].Kind())
	}
	arr := recv.(Array)
	out := make([]Value, 0, len(arr.Elems)+len(other.Elems))
	out = append(out, arr.Elems...)
	out = append(out, other.Elems...)
	if err := checkHomogeneous(out); err != nil {
		return nil, err
	}
	return NewArray(out), nil
}

func stringConcat(ip *Interp, recv Value, args []Value, opts map[string]Value) (Value, error) {
	if len(args) != 1 {
		return nil, ArityErrorf("concat expects 1 argument, got %d", len(args))
	}
	other, ok := args[0].(Str)
	if !ok {
		return nil, TypeErrorf("concat expects a string, got %s", args[0].Kind())
	}
	return Str(string(recv.(Str)) + string(other)), nil
}

func bytesConcat(ip *Interp, recv Value, args []Value, opts map[string]Value) (Value, error) {
	if len(args) != 1 {
		return nil, ArityErrorf("concat expects 1 argument, got %d", len(args))
	}
	data, err := argBytes(args[0])
	if err != nil {
		return nil, err
	}
	return Bytes(append(append([]byte{}, recv.(Bytes)...), data...)), nil
}

func intScaledMul(ip *Interp, recv Value, args []Value, opts map[string]Value) (Value, error) {
	return intScaled(recv, args, ScaledMul)
}

func intScaledDiv(ip *Interp, recv Value, args []Value, opts map[string]Value) (Value, error) {
	return intScaled(recv, args, ScaledDiv)
}

func intScaled(recv Value, args []Value, op func(a, b Int, decimals int) (Value, error)) (Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, ArityErrorf("expected 1 or 2 arguments, got %d", len(args))
	}
	other, ok := args[0].(Int)
	if !ok {
		return nil, TypeErrorf("expected an integer, got %s", args[0].Kind())
	}
	decimals := 18
	if len(args) == 2 {
		d, ok := args[1].(Int)
		if !ok || !d.X.IsInt64() {
			return nil, TypeErrorf("decimals must be an integer")
		}
		decimals = int(d.X.Int64())
	}
	return op(recv.(Int), other, decimals)
}

func txGetReceipt(ip *Interp, recv Value, args []Value, opts map[string]Value) (Value, error) {
	timeout := 30 * time.Second
	if len(args) > 1 {
		return nil, ArityErrorf("getReceipt expects at most 1 argument, got %d", len(args))
	}
	if len(args) == 1 {
		seconds, err := argInt(args, 0, "timeout")
		if err != nil {
			return nil, err
		}
		timeout = time.Duration(seconds.Int64()) * time.Second
	}
	return ip.getReceiptValue(common.Hash(recv.(TxHash)), timeout)
}
