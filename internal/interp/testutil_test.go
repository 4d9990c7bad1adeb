package interp

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// mockSession implements Session for evaluator tests. Chain I/O methods
// can be stubbed per test; the ABI registry is real.
type mockSession struct {
	abis      map[string]*gethabi.ABI
	order     []string
	functions map[[4]byte]struct {
		method   *gethabi.Method
		contract string
	}
	events map[common.Hash]*gethabi.Event
	errs   map[[4]byte]*gethabi.Error

	callFn    func(params CallParams) ([]byte, error)
	sendFn    func(params TxParams) (common.Hash, error)
	balanceFn func(addr common.Address) (*big.Int, error)
	logsFn    func(query ethereum.FilterQuery) ([]types.Log, error)
	receiptFn func(hash common.Hash) (*types.Receipt, error)
}

func newMockSession() *mockSession {
	return &mockSession{
		abis: make(map[string]*gethabi.ABI),
		functions: make(map[[4]byte]struct {
			method   *gethabi.Method
			contract string
		}),
		events: make(map[common.Hash]*gethabi.Event),
		errs:   make(map[[4]byte]*gethabi.Error),
	}
}

func newTestInterp() (*Interp, *mockSession) {
	sess := newMockSession()
	ip := New(sess, slog.Default())
	return ip, sess
}

func (m *mockSession) RPCURL() string                                 { return "http://localhost:8545" }
func (m *mockSession) SetRPC(ctx context.Context, url string) error   { return nil }
func (m *mockSession) Connected(ctx context.Context) bool             { return false }
func (m *mockSession) ChainID(ctx context.Context) (*big.Int, error)  { return big.NewInt(1), nil }
func (m *mockSession) Fork(ctx context.Context, url string) (string, error) {
	return "", fmt.Errorf("not supported")
}
func (m *mockSession) StartPrank(ctx context.Context, addr common.Address) error { return nil }
func (m *mockSession) StopPrank(ctx context.Context) error                       { return nil }
func (m *mockSession) Deal(ctx context.Context, addr common.Address, amount *big.Int) error {
	return nil
}
func (m *mockSession) Mine(ctx context.Context, blocks uint64) error  { return nil }
func (m *mockSession) Skip(ctx context.Context, seconds uint64) error { return nil }
func (m *mockSession) SetBlock(selector string) error                 { return nil }
func (m *mockSession) CurrentBlock() string                           { return "latest" }
func (m *mockSession) BlockHeader(ctx context.Context) (*types.Header, error) {
	return nil, fmt.Errorf("not supported")
}
func (m *mockSession) LoadPrivateKey(hexKey, alias string) (common.Address, error) {
	return common.Address{}, fmt.Errorf("not supported")
}
func (m *mockSession) LoadKeystore(name, alias string) (common.Address, error) {
	return common.Address{}, fmt.Errorf("not supported")
}
func (m *mockSession) ListLedgers(ctx context.Context, count int) ([]common.Address, error) {
	return nil, fmt.Errorf("not supported")
}
func (m *mockSession) LoadLedger(ctx context.Context, index int, alias string) (common.Address, error) {
	return common.Address{}, fmt.Errorf("not supported")
}
func (m *mockSession) SelectAccount(addrOrAlias string) (common.Address, error) {
	return common.Address{}, fmt.Errorf("not supported")
}
func (m *mockSession) AliasAccount(addr common.Address, alias string) error { return nil }
func (m *mockSession) Accounts() []AccountInfo                              { return nil }
func (m *mockSession) CurrentAccount() (common.Address, bool)               { return common.Address{}, false }

func (m *mockSession) RegisterABI(name string, contractABI *gethabi.ABI) {
	if _, exists := m.abis[name]; !exists {
		m.order = append(m.order, name)
	}
	m.abis[name] = contractABI
	for methodName := range contractABI.Methods {
		method := contractABI.Methods[methodName]
		var sel [4]byte
		copy(sel[:], method.ID)
		m.functions[sel] = struct {
			method   *gethabi.Method
			contract string
		}{&method, name}
	}
	for eventName := range contractABI.Events {
		event := contractABI.Events[eventName]
		m.events[event.ID] = &event
	}
	for errName := range contractABI.Errors {
		abiErr := contractABI.Errors[errName]
		var sel [4]byte
		copy(sel[:], abiErr.ID[:4])
		m.errs[sel] = &abiErr
	}
}

func (m *mockSession) LookupABI(name string) (*gethabi.ABI, bool) {
	contractABI, ok := m.abis[name]
	return contractABI, ok
}

func (m *mockSession) ABINames() []string { return m.order }

func (m *mockSession) FunctionBySelector(sel [4]byte) (*gethabi.Method, string, bool) {
	entry, ok := m.functions[sel]
	if !ok {
		return nil, "", false
	}
	return entry.method, entry.contract, true
}

func (m *mockSession) EventByTopic(topic common.Hash) (*gethabi.Event, bool) {
	event, ok := m.events[topic]
	return event, ok
}

func (m *mockSession) ErrorBySelector(sel [4]byte) (*gethabi.Error, bool) {
	abiErr, ok := m.errs[sel]
	return abiErr, ok
}

func (m *mockSession) FetchABI(ctx context.Context, name string, addr common.Address) (*gethabi.ABI, error) {
	return nil, fmt.Errorf("not supported")
}

func (m *mockSession) Call(ctx context.Context, params CallParams) ([]byte, error) {
	if m.callFn == nil {
		return nil, fmt.Errorf("not supported")
	}
	return m.callFn(params)
}

func (m *mockSession) TraceCall(ctx context.Context, params CallParams) ([]byte, error) {
	return nil, fmt.Errorf("not supported")
}

func (m *mockSession) SendTx(ctx context.Context, params TxParams) (common.Hash, error) {
	if m.sendFn == nil {
		return common.Hash{}, fmt.Errorf("not supported")
	}
	return m.sendFn(params)
}

func (m *mockSession) GetReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	if m.receiptFn == nil {
		return nil, fmt.Errorf("not supported")
	}
	return m.receiptFn(hash)
}

func (m *mockSession) FetchLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	if m.logsFn == nil {
		return nil, fmt.Errorf("not supported")
	}
	return m.logsFn(query)
}

func (m *mockSession) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	if m.balanceFn == nil {
		return nil, fmt.Errorf("not supported")
	}
	return m.balanceFn(addr)
}

// evalAll runs several lines, returning the last result.
func evalAll(ip *Interp, lines ...string) (Value, error) {
	var last Value = Null{}
	for _, line := range lines {
		v, err := ip.EvalLine(line)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}
