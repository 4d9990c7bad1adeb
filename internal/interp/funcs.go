package interp

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eclair-lang/eclair-cli/internal/lang"
)

// BuiltinFunc is a native function from the builtins registry.
type BuiltinFunc struct {
	Name string
	Fn   func(ip *Interp, args []Value, opts map[string]Value) (Value, error)
}

func (*BuiltinFunc) Kind() Kind       { return KindFunc }
func (f *BuiltinFunc) String() string { return f.Name }

func (f *BuiltinFunc) Call(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	return f.Fn(ip, args, opts)
}

// BoundMethod is a per-kind method bound to its receiver.
type BoundMethod struct {
	Recv Value
	Name string
	Fn   func(ip *Interp, recv Value, args []Value, opts map[string]Value) (Value, error)
}

func (*BoundMethod) Kind() Kind       { return KindFunc }
func (m *BoundMethod) String() string { return fmt.Sprintf("%s.%s", m.Recv.Kind(), m.Name) }

func (m *BoundMethod) Call(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if len(opts) > 0 {
		return nil, ArityErrorf("%s does not take call options", m.Name)
	}
	return m.Fn(ip, m.Recv, args, opts)
}

// UserFunc is a user-defined function or lambda, closed over the scope it
// was defined in. A lambda carries an expression body, a named function a
// statement body.
type UserFunc struct {
	Name   string
	Params []string
	Body   []lang.Stmt
	Expr   lang.Expr // lambda body, exclusive with Body
	Env    *Env
}

func (*UserFunc) Kind() Kind { return KindFunc }
func (f *UserFunc) String() string {
	name := f.Name
	if name == "" {
		name = "<lambda>"
	}
	return fmt.Sprintf("function %s(%s)", name, strings.Join(f.Params, ", "))
}

func (f *UserFunc) Call(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if len(opts) > 0 {
		return nil, ArityErrorf("%s does not take call options", f.String())
	}
	if len(args) != len(f.Params) {
		return nil, ArityErrorf("%s expects %d arguments, got %d", f.String(), len(f.Params), len(args))
	}
	return ip.callUser(f, args)
}

// CallMode selects how a contract method call is routed.
type CallMode int

const (
	ModeAuto CallMode = iota // view/pure read, otherwise transact
	ModeCall
	ModeSend
	ModeEncode
	ModeTrace
)

func (m CallMode) String() string {
	switch m {
	case ModeCall:
		return "call"
	case ModeSend:
		return "send"
	case ModeEncode:
		return "encode"
	case ModeTrace:
		return "traceCall"
	}
	return "auto"
}

// ContractFunc is an ABI entry bound to a contract instance.
type ContractFunc struct {
	Contract *ContractVal
	Method   string
	Mode     CallMode
}

func (*ContractFunc) Kind() Kind { return KindFunc }
func (f *ContractFunc) String() string {
	return fmt.Sprintf("%s.%s", f.Contract.String(), f.Method)
}

// WithMode returns a copy routed through an explicit mode.
func (f *ContractFunc) WithMode(mode CallMode) *ContractFunc {
	return &ContractFunc{Contract: f.Contract, Method: f.Method, Mode: mode}
}

func (f *ContractFunc) Call(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	return ip.callContract(f, args, opts)
}

// EventFunc is an ABI event bound to a contract instance; calling it
// fetches matching logs.
type EventFunc struct {
	Contract *ContractVal
	Event    string
}

func (*EventFunc) Kind() Kind { return KindFunc }
func (f *EventFunc) String() string {
	return fmt.Sprintf("%s.%s", f.Contract.String(), f.Event)
}

func (f *EventFunc) Call(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if len(args) > 0 {
		return nil, ArityErrorf("event fetch takes no positional arguments")
	}
	if !f.Contract.Bound {
		return nil, UsageErrorf("contract not bound to an address")
	}
	addr := common.Address(f.Contract.Addr)
	return ip.fetchEvents(&addr, f.Contract.ABI, f.Event, opts)
}

// optInt reads an option value as a big integer.
func optInt(opts map[string]Value, key string) (*big.Int, bool, error) {
	v, ok := opts[key]
	if !ok {
		return nil, false, nil
	}
	i, ok := v.(Int)
	if !ok {
		return nil, false, TypeErrorf("option %s must be an integer, got %s", key, v.Kind())
	}
	return new(big.Int).Set(i.X), true, nil
}

func optAddr(opts map[string]Value, key string) (*common.Address, error) {
	v, ok := opts[key]
	if !ok {
		return nil, nil
	}
	cast, err := AddressType{}.Cast(v)
	if err != nil {
		return nil, TypeErrorf("option %s must be an address, got %s", key, v.Kind())
	}
	addr := common.Address(cast.(Addr))
	return &addr, nil
}

func rejectUnknownOpts(opts map[string]Value, allowed ...string) error {
	for key := range opts {
		found := false
		for _, a := range allowed {
			if key == a {
				found = true
				break
			}
		}
		if !found {
			return ArityErrorf("unknown option %q", key)
		}
	}
	return nil
}
