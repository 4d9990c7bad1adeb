package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/eclair-lang/eclair-cli/internal/lang"
)

// Interp reduces AST nodes to values against an environment and a
// session. It is single-threaded; RPC calls block until their future
// resolves or the context is cancelled.
type Interp struct {
	root    *Env
	env     *Env
	session Session
	ctx     context.Context
	Out     io.Writer
	log     *slog.Logger
}

// control-flow signals, threaded through the error return.
type ctrlReturn struct{ value Value }
type ctrlBreak struct{}
type ctrlContinue struct{}

func (ctrlReturn) Error() string   { return "return outside function" }
func (ctrlBreak) Error() string    { return "break outside loop" }
func (ctrlContinue) Error() string { return "continue outside loop" }

func New(session Session, log *slog.Logger) *Interp {
	ip := &Interp{
		session: session,
		ctx:     context.Background(),
		Out:     os.Stdout,
		log:     log,
	}
	ip.root = NewEnv()
	ip.env = ip.root
	seedRoot(ip.root)
	return ip
}

// SetContext installs the cancellation context for the next evaluation.
func (ip *Interp) SetContext(ctx context.Context) {
	ip.ctx = ctx
}

func (ip *Interp) Session() Session { return ip.session }

// Env returns the root environment.
func (ip *Interp) Env() *Env { return ip.root }

// RegisterContract makes a contract type available as a top-level name.
func (ip *Interp) RegisterContract(name string, contractABI ContractType) {
	ip.root.Define(name, TypeRef{T: contractABI})
}

// EvalLine evaluates one REPL line and updates the last-result binding
// for expressions that produced a value.
func (ip *Interp) EvalLine(line string) (Value, error) {
	stmt, err := lang.ParseLine(line)
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return Null{}, nil
	}
	return ip.EvalStmt(stmt)
}

// EvalProgram runs a parsed file, stopping at the first error.
func (ip *Interp) EvalProgram(stmts []lang.Stmt) (Value, error) {
	last := Value(Null{})
	for _, stmt := range stmts {
		v, err := ip.EvalStmt(stmt)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

// EvalStmt evaluates a top-level statement, maintaining `_`.
func (ip *Interp) EvalStmt(stmt lang.Stmt) (Value, error) {
	v, err := ip.evalStmt(stmt)
	if err != nil {
		switch err.(type) {
		case ctrlReturn, ctrlBreak, ctrlContinue:
			return nil, UsageErrorf("%s", err.Error())
		}
		return nil, err
	}
	if v.Kind() != KindNull {
		ip.root.Define("_", v)
	}
	return v, nil
}

func seedRoot(env *Env) {
	env.Define("_", Null{})
	for _, ns := range []string{"abi", "vm", "accounts", "block", "repl", "console", "json", "fs", "events"} {
		env.Define(ns, Namespace(ns))
	}
	env.Define("keccak256", &BuiltinFunc{Name: "keccak256", Fn: builtinKeccak256})
	env.Define("type", &BuiltinFunc{Name: "type", Fn: builtinType})
	env.Define("format", &BuiltinFunc{Name: "format", Fn: builtinFormat})
}

// ---- statements ----

func (ip *Interp) evalStmt(stmt lang.Stmt) (Value, error) {
	switch s := stmt.(type) {
	case *lang.ExprStmt:
		return ip.evalExpr(s.X)

	case *lang.VarDeclStmt:
		t, err := ip.resolveTypeExpr(s.Type)
		if err != nil {
			return nil, err
		}
		v, err := ip.evalExpr(s.Value)
		if err != nil {
			return nil, err
		}
		cast, err := t.Cast(v)
		if err != nil {
			return nil, err
		}
		ip.env.Set(s.Name, cast)
		return Null{}, nil

	case *lang.IfStmt:
		cond, err := ip.evalExpr(s.Cond)
		if err != nil {
			return nil, err
		}
		ok, err := Truthy(cond)
		if err != nil {
			return nil, err
		}
		// Branches run in the enclosing scope: bindings survive the if.
		if ok {
			if _, err := ip.evalStmt(s.Then); err != nil {
				return nil, err
			}
		} else if s.Else != nil {
			if _, err := ip.evalStmt(s.Else); err != nil {
				return nil, err
			}
		}
		return Null{}, nil

	case *lang.WhileStmt:
		for {
			cond, err := ip.evalExpr(s.Cond)
			if err != nil {
				return nil, err
			}
			ok, err := Truthy(cond)
			if err != nil {
				return nil, err
			}
			if !ok {
				return Null{}, nil
			}
			if _, err := ip.evalStmt(s.Body); err != nil {
				if _, isBreak := err.(ctrlBreak); isBreak {
					return Null{}, nil
				}
				if _, isCont := err.(ctrlContinue); isCont {
					continue
				}
				return nil, err
			}
		}

	case *lang.ForStmt:
		if s.Init != nil {
			if _, err := ip.evalStmt(s.Init); err != nil {
				return nil, err
			}
		}
		for {
			if s.Cond != nil {
				cond, err := ip.evalExpr(s.Cond)
				if err != nil {
					return nil, err
				}
				ok, err := Truthy(cond)
				if err != nil {
					return nil, err
				}
				if !ok {
					return Null{}, nil
				}
			}
			_, err := ip.evalStmt(s.Body)
			if err != nil {
				if _, isBreak := err.(ctrlBreak); isBreak {
					return Null{}, nil
				}
				if _, isCont := err.(ctrlContinue); !isCont {
					return nil, err
				}
			}
			if s.Post != nil {
				if _, err := ip.evalStmt(s.Post); err != nil {
					return nil, err
				}
			}
		}

	case *lang.BlockStmt:
		// Bare blocks share the enclosing scope.
		for _, inner := range s.Stmts {
			if _, err := ip.evalStmt(inner); err != nil {
				return nil, err
			}
		}
		return Null{}, nil

	case *lang.ReturnStmt:
		value := Value(Null{})
		if s.Value != nil {
			v, err := ip.evalExpr(s.Value)
			if err != nil {
				return nil, err
			}
			value = v
		}
		return nil, ctrlReturn{value: value}

	case *lang.BreakStmt:
		return nil, ctrlBreak{}

	case *lang.ContinueStmt:
		return nil, ctrlContinue{}

	case *lang.FunctionDef:
		fn := &UserFunc{Name: s.Name, Params: s.Params, Body: s.Body.Stmts, Env: ip.env}
		ip.env.Set(s.Name, fn)
		return Null{}, nil
	}
	return nil, UsageErrorf("statement not supported")
}

// RunBodyInRoot evaluates a zero-parameter user function body directly
// in the root scope, so its assignments persist as top-level bindings.
// Used for the startup script's setUp().
func (ip *Interp) RunBodyInRoot(f *UserFunc) error {
	if len(f.Params) != 0 {
		return ArityErrorf("setUp must take no parameters")
	}
	for _, stmt := range f.Body {
		if _, err := ip.evalStmt(stmt); err != nil {
			if _, ok := err.(ctrlReturn); ok {
				return nil
			}
			return err
		}
	}
	return nil
}

// callUser runs a user function body in a fresh scope chained to the
// closure environment.
func (ip *Interp) callUser(f *UserFunc, args []Value) (Value, error) {
	saved := ip.env
	ip.env = f.Env.Child()
	defer func() { ip.env = saved }()
	for i, param := range f.Params {
		ip.env.Define(param, args[i])
	}
	if f.Expr != nil {
		return ip.evalExpr(f.Expr)
	}
	for _, stmt := range f.Body {
		if _, err := ip.evalStmt(stmt); err != nil {
			if ret, ok := err.(ctrlReturn); ok {
				return ret.value, nil
			}
			return nil, err
		}
	}
	return Null{}, nil
}

// resolveTypeExpr evaluates a declaration type annotation.
func (ip *Interp) resolveTypeExpr(e lang.Expr) (Type, error) {
	switch te := e.(type) {
	case *lang.Ident:
		if t, ok := ParseElementaryType(te.Name); ok {
			return t, nil
		}
		if v, ok := ip.env.Get(te.Name); ok {
			if ref, isType := v.(TypeRef); isType {
				return ref.T, nil
			}
		}
		return nil, NameErrorf("unknown type %s", te.Name)
	case *lang.IndexExpr:
		if te.Index == nil {
			elem, err := ip.resolveTypeExpr(te.X)
			if err != nil {
				return nil, err
			}
			return ArrayType{Elem: elem}, nil
		}
	}
	return nil, TypeErrorf("invalid type annotation")
}

// ---- expressions ----

func (ip *Interp) evalExpr(e lang.Expr) (Value, error) {
	switch ex := e.(type) {
	case *lang.Ident:
		if v, ok := ip.env.Get(ex.Name); ok {
			return v, nil
		}
		if t, ok := ParseElementaryType(ex.Name); ok {
			return TypeRef{T: t}, nil
		}
		return nil, NameErrorf("%s is not defined", ex.Name)

	case *lang.NumberLit:
		return ParseNumberLiteral(ex.Mantissa, ex.Exp)

	case *lang.HexLit:
		return parseHexLiteral(ex.Nibbles)

	case *lang.StringLit:
		return Str(ex.Value), nil

	case *lang.BoolLit:
		return Bool(ex.Value), nil

	case *lang.ArrayLit:
		elems := make([]Value, len(ex.Elems))
		for i, elem := range ex.Elems {
			v, err := ip.evalExpr(elem)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		if err := checkHomogeneous(elems); err != nil {
			return nil, err
		}
		return NewArray(elems), nil

	case *lang.TupleLit:
		elems := make([]Value, len(ex.Elems))
		for i, elem := range ex.Elems {
			v, err := ip.evalExpr(elem)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return Tuple{Elems: elems}, nil

	case *lang.LambdaExpr:
		return &UserFunc{Params: ex.Params, Expr: ex.Body, Env: ip.env}, nil

	case *lang.MemberExpr:
		recv, err := ip.evalExpr(ex.X)
		if err != nil {
			return nil, err
		}
		return ip.evalMember(recv, ex.Name)

	case *lang.IndexExpr:
		return ip.evalIndex(ex)

	case *lang.SliceExpr:
		return ip.evalSlice(ex)

	case *lang.UnaryExpr:
		return ip.evalUnary(ex)

	case *lang.BinaryExpr:
		return ip.evalBinary(ex)

	case *lang.CondExpr:
		cond, err := ip.evalExpr(ex.Cond)
		if err != nil {
			return nil, err
		}
		ok, err := Truthy(cond)
		if err != nil {
			return nil, err
		}
		if ok {
			return ip.evalExpr(ex.Then)
		}
		return ip.evalExpr(ex.Else)

	case *lang.AssignExpr:
		return ip.evalAssign(ex)

	case *lang.CallExpr:
		return ip.evalCall(ex)
	}
	return nil, UsageErrorf("expression not supported")
}

func checkHomogeneous(elems []Value) error {
	if len(elems) < 2 {
		return nil
	}
	first := TypeOf(elems[0]).String()
	for _, e := range elems[1:] {
		if TypeOf(e).String() != first {
			return TypeErrorf("array elements must share a type, got %s and %s", first, TypeOf(e).String())
		}
	}
	return nil
}

// parseHexLiteral turns 0x-nibbles into an Address (40 nibbles; a
// mixed-case literal must carry a valid checksum), FixedBytes (up to 32
// bytes) or Bytes (longer).
func parseHexLiteral(nibbles string) (Value, error) {
	if len(nibbles) == 40 {
		full := "0x" + nibbles
		if hasMixedCase(nibbles) && common.HexToAddress(full).Hex() != full {
			return nil, TypeErrorf("invalid address checksum in %s", full)
		}
		return Addr(common.HexToAddress(full)), nil
	}
	if len(nibbles)%2 == 1 {
		nibbles = "0" + nibbles
	}
	b := common.Hex2Bytes(nibbles)
	if len(b) > 32 {
		return Bytes(b), nil
	}
	return NewFixBytes(b)
}

func hasMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}

func (ip *Interp) evalUnary(ex *lang.UnaryExpr) (Value, error) {
	v, err := ip.evalExpr(ex.X)
	if err != nil {
		return nil, err
	}
	switch ex.Op {
	case "-":
		i, ok := v.(Int)
		if !ok {
			return nil, TypeErrorf("cannot negate %s", v.Kind())
		}
		return Negate(i)
	case "!":
		b, ok := v.(Bool)
		if !ok {
			return nil, TypeErrorf("cannot apply ! to %s", v.Kind())
		}
		return Bool(!b), nil
	case "~":
		i, ok := v.(Int)
		if !ok {
			return nil, TypeErrorf("cannot apply ~ to %s", v.Kind())
		}
		mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(i.T.Bits)), big.NewInt(1))
		return Int{X: new(big.Int).Xor(i.X, mask), T: i.T}, nil
	}
	return nil, UsageErrorf("unary %s not supported", ex.Op)
}

func (ip *Interp) evalBinary(ex *lang.BinaryExpr) (Value, error) {
	// Short-circuit logic first.
	if ex.Op == "&&" || ex.Op == "||" {
		lhs, err := ip.evalExpr(ex.X)
		if err != nil {
			return nil, err
		}
		lb, err := Truthy(lhs)
		if err != nil {
			return nil, err
		}
		if (ex.Op == "&&" && !lb) || (ex.Op == "||" && lb) {
			return Bool(lb), nil
		}
		rhs, err := ip.evalExpr(ex.Y)
		if err != nil {
			return nil, err
		}
		rb, err := Truthy(rhs)
		if err != nil {
			return nil, err
		}
		return Bool(rb), nil
	}

	lhs, err := ip.evalExpr(ex.X)
	if err != nil {
		return nil, err
	}
	rhs, err := ip.evalExpr(ex.Y)
	if err != nil {
		return nil, err
	}
	return applyBinary(ex.Op, lhs, rhs)
}

func applyBinary(op string, lhs, rhs Value) (Value, error) {
	switch op {
	case "==":
		return Bool(Eq(lhs, rhs)), nil
	case "!=":
		return Bool(!Eq(lhs, rhs)), nil
	case "<", "<=", ">", ">=":
		cmp, err := Compare(lhs, rhs)
		if err != nil {
			return nil, err
		}
		switch op {
		case "<":
			return Bool(cmp < 0), nil
		case "<=":
			return Bool(cmp <= 0), nil
		case ">":
			return Bool(cmp > 0), nil
		default:
			return Bool(cmp >= 0), nil
		}
	}

	if li, lok := lhs.(Int); lok {
		if ri, rok := rhs.(Int); rok {
			return ArithOp(op, li, ri)
		}
	}
	if op == "+" {
		switch lv := lhs.(type) {
		case Str:
			if rv, ok := rhs.(Str); ok {
				return Str(string(lv) + string(rv)), nil
			}
		case Bytes:
			if rv, ok := rhs.(Bytes); ok {
				return Bytes(append(append([]byte{}, lv...), rv...)), nil
			}
		}
		return nil, TypeErrorf("cannot add %s and %s", TypeOf(lhs).String(), TypeOf(rhs).String())
	}
	return nil, TypeErrorf("operator %s not supported for %s and %s", op, lhs.Kind(), rhs.Kind())
}

func (ip *Interp) evalAssign(ex *lang.AssignExpr) (Value, error) {
	if ex.Op != "=" {
		// Compound assignment desugars to the binary operation.
		current, err := ip.evalExpr(ex.Target)
		if err != nil {
			return nil, err
		}
		rhs, err := ip.evalExpr(ex.Value)
		if err != nil {
			return nil, err
		}
		result, err := applyBinary(strings.TrimSuffix(ex.Op, "="), current, rhs)
		if err != nil {
			return nil, err
		}
		id := ex.Target.(*lang.Ident)
		ip.env.Set(id.Name, result)
		return result, nil
	}

	v, err := ip.evalExpr(ex.Value)
	if err != nil {
		return nil, err
	}
	switch target := ex.Target.(type) {
	case *lang.Ident:
		ip.env.Set(target.Name, v)
		return v, nil
	case *lang.TupleLit:
		var elems []Value
		switch val := v.(type) {
		case Tuple:
			elems = val.Elems
		case NamedTuple:
			elems = val.Elems
		default:
			return nil, TypeErrorf("cannot destructure %s", v.Kind())
		}
		if len(elems) != len(target.Elems) {
			return nil, ArityErrorf("cannot destructure %d values into %d names", len(elems), len(target.Elems))
		}
		for i, t := range target.Elems {
			ip.env.Set(t.(*lang.Ident).Name, elems[i])
		}
		return v, nil
	}
	return nil, TypeErrorf("invalid assignment target")
}

func (ip *Interp) evalIndex(ex *lang.IndexExpr) (Value, error) {
	recv, err := ip.evalExpr(ex.X)
	if err != nil {
		return nil, err
	}
	// T[] promotes a type value to its array type.
	if ex.Index == nil {
		if ref, ok := recv.(TypeRef); ok {
			return TypeRef{T: ArrayType{Elem: ref.T}}, nil
		}
		return nil, TypeErrorf("[] requires a type, got %s", recv.Kind())
	}
	idxVal, err := ip.evalExpr(ex.Index)
	if err != nil {
		return nil, err
	}
	idx, ok := idxVal.(Int)
	if !ok {
		return nil, TypeErrorf("index must be an integer, got %s", idxVal.Kind())
	}
	if !idx.X.IsInt64() {
		return nil, TypeErrorf("index %s out of range", idx.X)
	}
	i := int(idx.X.Int64())

	normalize := func(length int) (int, error) {
		n := i
		if n < 0 {
			n += length
		}
		if n < 0 || n >= length {
			return 0, TypeErrorf("index %d out of range for length %d", i, length)
		}
		return n, nil
	}

	switch val := recv.(type) {
	case Array:
		n, err := normalize(len(val.Elems))
		if err != nil {
			return nil, err
		}
		return val.Elems[n], nil
	case Tuple:
		n, err := normalize(len(val.Elems))
		if err != nil {
			return nil, err
		}
		return val.Elems[n], nil
	case Bytes:
		n, err := normalize(len(val))
		if err != nil {
			return nil, err
		}
		return NewFixBytes([]byte{val[n]})
	case FixBytes:
		n, err := normalize(len(val.B))
		if err != nil {
			return nil, err
		}
		return NewFixBytes([]byte{val.B[n]})
	case Str:
		n, err := normalize(len(val))
		if err != nil {
			return nil, err
		}
		return Str(val[n : n+1]), nil
	}
	return nil, TypeErrorf("cannot index %s", recv.Kind())
}

func (ip *Interp) evalSlice(ex *lang.SliceExpr) (Value, error) {
	recv, err := ip.evalExpr(ex.X)
	if err != nil {
		return nil, err
	}
	bound := func(e lang.Expr, def, length int) (int, error) {
		if e == nil {
			return def, nil
		}
		v, err := ip.evalExpr(e)
		if err != nil {
			return 0, err
		}
		i, ok := v.(Int)
		if !ok || !i.X.IsInt64() {
			return 0, TypeErrorf("slice bound must be an integer")
		}
		n := int(i.X.Int64())
		if n < 0 {
			n += length
		}
		if n < 0 {
			n = 0
		}
		if n > length {
			n = length
		}
		return n, nil
	}

	slice := func(length int) (int, int, error) {
		lo, err := bound(ex.Lo, 0, length)
		if err != nil {
			return 0, 0, err
		}
		hi, err := bound(ex.Hi, length, length)
		if err != nil {
			return 0, 0, err
		}
		if lo > hi {
			return 0, 0, TypeErrorf("slice bounds out of order")
		}
		return lo, hi, nil
	}

	switch val := recv.(type) {
	case Array:
		lo, hi, err := slice(len(val.Elems))
		if err != nil {
			return nil, err
		}
		return Array{Elems: append([]Value{}, val.Elems[lo:hi]...), Elem: val.Elem}, nil
	case Bytes:
		lo, hi, err := slice(len(val))
		if err != nil {
			return nil, err
		}
		return Bytes(append([]byte{}, val[lo:hi]...)), nil
	case FixBytes:
		lo, hi, err := slice(len(val.B))
		if err != nil {
			return nil, err
		}
		return Bytes(append([]byte{}, val.B[lo:hi]...)), nil
	case Str:
		lo, hi, err := slice(len(val))
		if err != nil {
			return nil, err
		}
		return Str(val[lo:hi]), nil
	}
	return nil, TypeErrorf("cannot slice %s", recv.Kind())
}

func (ip *Interp) evalCall(ex *lang.CallExpr) (Value, error) {
	callee, err := ip.evalExpr(ex.Callee)
	if err != nil {
		return nil, err
	}
	args := make([]Value, len(ex.Args))
	for i, arg := range ex.Args {
		v, err := ip.evalExpr(arg)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	opts := make(map[string]Value, len(ex.Opts))
	for _, opt := range ex.Opts {
		if _, dup := opts[opt.Key]; dup {
			return nil, ArityErrorf("duplicate option %q", opt.Key)
		}
		v, err := ip.evalExpr(opt.Value)
		if err != nil {
			return nil, err
		}
		opts[opt.Key] = v
	}

	switch c := callee.(type) {
	case Func:
		return c.Call(ip, args, opts)
	case TypeRef:
		if len(opts) > 0 {
			return nil, ArityErrorf("casts do not take call options")
		}
		if len(args) != 1 {
			return nil, ArityErrorf("%s constructor expects 1 argument, got %d", c.T.String(), len(args))
		}
		return c.T.Cast(args[0])
	}
	return nil, TypeErrorf("cannot call %s", callee.Kind())
}

// blockHeaderField reads one field of the current block header.
func (ip *Interp) blockHeaderField(pick func(h *types.Header) (Value, error)) (Value, error) {
	header, err := ip.session.BlockHeader(ip.ctx)
	if err != nil {
		return nil, RPCError("fetching block header", err)
	}
	return pick(header)
}

// receiptToValue converts a go-ethereum receipt into the fixed-shape
// named tuple, decoding logs against the registered ABIs.
func (ip *Interp) receiptToValue(receipt *types.Receipt) (Value, error) {
	logs := make([]Value, len(receipt.Logs))
	for i, logEntry := range receipt.Logs {
		logs[i] = ip.logToValue(logEntry)
	}
	blockNumber, err := NewUint(receipt.BlockNumber, 256)
	if err != nil {
		return nil, err
	}
	status, err := NewUint(new(big.Int).SetUint64(receipt.Status), 8)
	if err != nil {
		return nil, err
	}
	gasUsed, err := NewUint(new(big.Int).SetUint64(receipt.GasUsed), 256)
	if err != nil {
		return nil, err
	}
	price := receipt.EffectiveGasPrice
	if price == nil {
		price = new(big.Int)
	}
	effPrice, err := NewUint(price, 256)
	if err != nil {
		return nil, err
	}
	txHash, err := NewFixBytes(receipt.TxHash[:])
	if err != nil {
		return nil, err
	}
	blockHash, err := NewFixBytes(receipt.BlockHash[:])
	if err != nil {
		return nil, err
	}
	return NamedTuple{
		Names: []string{"tx_hash", "block_hash", "block_number", "status", "gas_used", "effective_gas_price", "logs"},
		Elems: []Value{txHash, blockHash, blockNumber, status, gasUsed, effPrice, NewArray(logs)},
	}, nil
}

// logToValue renders a raw log, attaching decoded args when the event is
// known to the session.
func (ip *Interp) logToValue(logEntry *types.Log) Value {
	topics := make([]Value, len(logEntry.Topics))
	for i, topic := range logEntry.Topics {
		fb, _ := NewFixBytes(topic[:])
		topics[i] = fb
	}
	out := NamedTuple{
		Names: []string{"address", "topics", "data"},
		Elems: []Value{Addr(logEntry.Address), NewArray(topics), Bytes(logEntry.Data)},
	}
	if len(logEntry.Topics) > 0 {
		if event, ok := ip.session.EventByTopic(logEntry.Topics[0]); ok {
			if args, err := DecodeLog(event, logEntry); err == nil {
				out = out.WithField("name", Str(event.Name))
				out = out.WithField("args", args)
			}
		}
	}
	return out
}

// callContract routes a bound ABI method call per its mode.
func (ip *Interp) callContract(f *ContractFunc, args []Value, opts map[string]Value) (Value, error) {
	method, ok := f.Contract.ABI.Methods[f.Method]
	if !ok {
		return nil, NameErrorf("no function %s on %s", f.Method, f.Contract.Name)
	}
	if !f.Contract.Bound {
		return nil, UsageErrorf("contract not bound to an address")
	}
	data, err := EncodeCall(f.Contract.ABI, f.Method, args)
	if err != nil {
		return nil, err
	}

	mode := f.Mode
	if mode == ModeAuto {
		if method.StateMutability == "view" || method.StateMutability == "pure" {
			mode = ModeCall
		} else {
			mode = ModeSend
		}
	}

	switch mode {
	case ModeEncode:
		if err := rejectUnknownOpts(opts); err != nil {
			return nil, err
		}
		return Bytes(data), nil

	case ModeCall, ModeTrace:
		if err := rejectUnknownOpts(opts, "block", "from", "value"); err != nil {
			return nil, err
		}
		params := CallParams{To: common.Address(f.Contract.Addr), Data: data}
		if from, err := optAddr(opts, "from"); err != nil {
			return nil, err
		} else if from != nil {
			params.From = from
		}
		if value, ok, err := optInt(opts, "value"); err != nil {
			return nil, err
		} else if ok {
			params.Value = value
		}
		if blockOpt, ok := opts["block"]; ok {
			params.Block = blockSelectorString(blockOpt)
		}
		if mode == ModeTrace {
			raw, err := ip.session.TraceCall(ip.ctx, params)
			if err != nil {
				return nil, wrapRPCErr(ip, err)
			}
			return JSONToValue(raw)
		}
		ret, err := ip.session.Call(ip.ctx, params)
		if err != nil {
			return nil, wrapRPCErr(ip, err)
		}
		return DecodeReturn(&method, ret)

	case ModeSend:
		if err := rejectUnknownOpts(opts, "value", "gasLimit", "maxFee", "priorityFee", "gasPrice"); err != nil {
			return nil, err
		}
		params := TxParams{To: common.Address(f.Contract.Addr), Data: data}
		if value, ok, err := optInt(opts, "value"); err != nil {
			return nil, err
		} else if ok {
			params.Value = value
		}
		if gasLimit, ok, err := optInt(opts, "gasLimit"); err != nil {
			return nil, err
		} else if ok {
			params.GasLimit = gasLimit.Uint64()
		}
		gasPrice, hasGasPrice, err := optInt(opts, "gasPrice")
		if err != nil {
			return nil, err
		}
		maxFee, hasMaxFee, err := optInt(opts, "maxFee")
		if err != nil {
			return nil, err
		}
		priorityFee, hasPriorityFee, err := optInt(opts, "priorityFee")
		if err != nil {
			return nil, err
		}
		if hasGasPrice && (hasMaxFee || hasPriorityFee) {
			return nil, ArityErrorf("gasPrice is mutually exclusive with maxFee/priorityFee")
		}
		params.GasPrice = gasPrice
		params.MaxFee = maxFee
		params.PriorityFee = priorityFee
		hash, err := ip.session.SendTx(ip.ctx, params)
		if err != nil {
			return nil, wrapRPCErr(ip, err)
		}
		return TxHash(hash), nil
	}
	return nil, UsageErrorf("unsupported call mode %s", mode)
}

// blockSelectorString renders a block option value for the RPC layer.
func blockSelectorString(v Value) string {
	switch val := v.(type) {
	case Int:
		return fmt.Sprintf("0x%x", val.X)
	case Str:
		return string(val)
	case FixBytes:
		return val.String()
	}
	return "latest"
}

// wrapRPCErr decorates RPC failures, decoding revert payloads against
// the registered error ABIs.
func wrapRPCErr(ip *Interp, err error) error {
	type dataErr interface {
		ErrorData() interface{}
	}
	var de dataErr
	if errors.As(err, &de) {
		if hexData, isStr := de.ErrorData().(string); isStr && strings.HasPrefix(hexData, "0x") {
			data := common.FromHex(hexData)
			return RPCError(DecodeRevert(data, ip.session.ErrorBySelector), err)
		}
	}
	return RPCError("rpc call failed", err)
}

// getReceiptValue polls for a receipt and converts it.
func (ip *Interp) getReceiptValue(hash common.Hash, timeout time.Duration) (Value, error) {
	receipt, err := ip.session.GetReceipt(ip.ctx, hash, timeout)
	if err != nil {
		return nil, wrapRPCErr(ip, err)
	}
	return ip.receiptToValue(receipt)
}
