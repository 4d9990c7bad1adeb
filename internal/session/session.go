// Package session holds the process-wide execution context shared by
// every expression in an interactive run: the RPC endpoint, the wallet
// set, the block selector, the prank state and the ABI registry.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goccy/go-json"

	"github.com/eclair-lang/eclair-cli/internal/config"
	"github.com/eclair-lang/eclair-cli/internal/etherscan"
	"github.com/eclair-lang/eclair-cli/internal/interp"
)

type selectorEntry struct {
	method   *gethabi.Method
	contract string
}

// Session implements interp.Session. All fields are owned by the single
// REPL goroutine and accessed without locking.
type Session struct {
	log *slog.Logger
	cfg *config.Config

	rpcURL  string
	client  *ethclient.Client
	raw     *rpc.Client
	chainID *big.Int
	isAnvil *bool

	blockSel string

	accounts []*Account
	current  int

	prank *common.Address

	abis      map[string]*gethabi.ABI
	abiOrder  []string
	functions map[[4]byte]selectorEntry
	events    map[common.Hash]*gethabi.Event
	errors    map[[4]byte]*gethabi.Error

	anvil *AnvilInstance
}

func New(cfg *config.Config, log *slog.Logger) *Session {
	return &Session{
		log:       log,
		cfg:       cfg,
		rpcURL:    cfg.RPCURL,
		blockSel:  "latest",
		current:   -1,
		abis:      make(map[string]*gethabi.ABI),
		functions: make(map[[4]byte]selectorEntry),
		events:    make(map[common.Hash]*gethabi.Event),
		errors:    make(map[[4]byte]*gethabi.Error),
	}
}

// Close tears down the forked node, if any.
func (s *Session) Close() {
	if s.anvil != nil {
		s.anvil.Stop()
		s.anvil = nil
	}
}

// ---- endpoint ----

func (s *Session) RPCURL() string { return s.rpcURL }

func (s *Session) SetRPC(ctx context.Context, urlOrAlias string) error {
	url := s.cfg.ResolveRPC(urlOrAlias)
	if url == "" {
		return interp.UsageErrorf("no RPC URL configured")
	}
	s.disconnect()
	s.rpcURL = url
	_, err := s.connect(ctx)
	return err
}

func (s *Session) disconnect() {
	if s.raw != nil {
		s.raw.Close()
	}
	s.raw = nil
	s.client = nil
	s.chainID = nil
	s.isAnvil = nil
}

// connect lazily establishes the RPC client.
func (s *Session) connect(ctx context.Context) (*ethclient.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	if s.rpcURL == "" {
		return nil, interp.UsageErrorf("no RPC endpoint set, use vm.rpc(url)")
	}
	raw, err := rpc.DialContext(ctx, s.rpcURL)
	if err != nil {
		return nil, interp.RPCError("connecting to "+s.rpcURL, err)
	}
	s.raw = raw
	s.client = ethclient.NewClient(raw)
	return s.client, nil
}

func (s *Session) Connected(ctx context.Context) bool {
	client, err := s.connect(ctx)
	if err != nil {
		return false
	}
	_, err = client.ChainID(ctx)
	return err == nil
}

// ChainID is cached until the endpoint changes.
func (s *Session) ChainID(ctx context.Context) (*big.Int, error) {
	if s.chainID != nil {
		return s.chainID, nil
	}
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	s.chainID = chainID
	return chainID, nil
}

// requireAnvil gates the anvil_*/evm_* methods on the node actually
// being an anvil instance.
func (s *Session) requireAnvil(ctx context.Context) error {
	if s.isAnvil == nil {
		if _, err := s.connect(ctx); err != nil {
			return err
		}
		var version string
		if err := s.raw.CallContext(ctx, &version, "web3_clientVersion"); err != nil {
			return interp.RPCError("querying client version", err)
		}
		anvil := strings.Contains(strings.ToLower(version), "anvil")
		s.isAnvil = &anvil
	}
	if !*s.isAnvil {
		return interp.UsageErrorf("this operation requires an anvil endpoint, try vm.fork()")
	}
	return nil
}

// Fork spawns a local anvil node forking the given (or current)
// endpoint and repoints the session at it.
func (s *Session) Fork(ctx context.Context, urlOrAlias string) (string, error) {
	upstream := s.rpcURL
	if urlOrAlias != "" {
		upstream = s.cfg.ResolveRPC(urlOrAlias)
	}
	instance, err := StartAnvil(ctx, upstream)
	if err != nil {
		return "", err
	}
	if s.anvil != nil {
		s.anvil.Stop()
	}
	s.anvil = instance
	s.disconnect()
	s.rpcURL = instance.Endpoint()
	if _, err := s.connect(ctx); err != nil {
		return "", err
	}
	s.log.Debug("forked", "endpoint", s.rpcURL, "upstream", upstream)
	return s.rpcURL, nil
}

// ---- anvil state manipulation ----

func (s *Session) StartPrank(ctx context.Context, addr common.Address) error {
	if err := s.requireAnvil(ctx); err != nil {
		return err
	}
	if err := s.raw.CallContext(ctx, nil, "anvil_impersonateAccount", addr); err != nil {
		return interp.RPCError("impersonating account", err)
	}
	// A new prank replaces the previous one.
	if s.prank != nil && *s.prank != addr {
		_ = s.raw.CallContext(ctx, nil, "anvil_stopImpersonatingAccount", *s.prank)
	}
	s.prank = &addr
	return nil
}

func (s *Session) StopPrank(ctx context.Context) error {
	if s.prank == nil {
		return nil
	}
	if err := s.raw.CallContext(ctx, nil, "anvil_stopImpersonatingAccount", *s.prank); err != nil {
		return interp.RPCError("stopping impersonation", err)
	}
	s.prank = nil
	return nil
}

func (s *Session) Deal(ctx context.Context, addr common.Address, amount *big.Int) error {
	if err := s.requireAnvil(ctx); err != nil {
		return err
	}
	if err := s.raw.CallContext(ctx, nil, "anvil_setBalance", addr, hexutil.EncodeBig(amount)); err != nil {
		return interp.RPCError("setting balance", err)
	}
	return nil
}

func (s *Session) Mine(ctx context.Context, blocks uint64) error {
	if err := s.requireAnvil(ctx); err != nil {
		return err
	}
	if err := s.raw.CallContext(ctx, nil, "anvil_mine", hexutil.EncodeUint64(blocks)); err != nil {
		return interp.RPCError("mining", err)
	}
	return nil
}

func (s *Session) Skip(ctx context.Context, seconds uint64) error {
	if err := s.requireAnvil(ctx); err != nil {
		return err
	}
	if err := s.raw.CallContext(ctx, nil, "evm_increaseTime", hexutil.EncodeUint64(seconds)); err != nil {
		return interp.RPCError("increasing time", err)
	}
	return nil
}

// ---- block selector ----

func (s *Session) SetBlock(selector string) error {
	switch {
	case selector == "latest" || selector == "earliest" || selector == "pending" ||
		selector == "safe" || selector == "finalized":
	case strings.HasPrefix(selector, "0x"):
	default:
		return interp.UsageErrorf("invalid block selector %q", selector)
	}
	s.blockSel = selector
	return nil
}

func (s *Session) CurrentBlock() string { return s.blockSel }

// blockParam renders a selector as the JSON-RPC block parameter. Hashes
// use the EIP-1898 object form.
func blockParam(selector string) any {
	if strings.HasPrefix(selector, "0x") && len(selector) == 66 {
		return map[string]any{"blockHash": selector}
	}
	return selector
}

func (s *Session) BlockHeader(ctx context.Context) (*types.Header, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	sel := s.blockSel
	if strings.HasPrefix(sel, "0x") && len(sel) == 66 {
		return client.HeaderByHash(ctx, common.HexToHash(sel))
	}
	var number *big.Int
	if strings.HasPrefix(sel, "0x") {
		parsed, err := hexutil.DecodeBig(sel)
		if err != nil {
			return nil, interp.UsageErrorf("invalid block selector %q", sel)
		}
		number = parsed
	}
	return client.HeaderByNumber(ctx, number)
}

// ---- ABI registry ----

// RegisterABI stores an ABI under a name and indexes its functions,
// events and errors by selector. Re-registering overwrites; colliding
// selectors follow last-loaded-wins.
func (s *Session) RegisterABI(name string, contractABI *gethabi.ABI) {
	if _, exists := s.abis[name]; !exists {
		s.abiOrder = append(s.abiOrder, name)
	} else {
		s.log.Warn("overwriting registered ABI", "name", name)
	}
	s.abis[name] = contractABI
	for methodName := range contractABI.Methods {
		method := contractABI.Methods[methodName]
		var sel [4]byte
		copy(sel[:], method.ID)
		s.functions[sel] = selectorEntry{method: &method, contract: name}
	}
	for eventName := range contractABI.Events {
		event := contractABI.Events[eventName]
		s.events[event.ID] = &event
	}
	for errName := range contractABI.Errors {
		abiErr := contractABI.Errors[errName]
		var sel [4]byte
		copy(sel[:], abiErr.ID[:4])
		s.errors[sel] = &abiErr
	}
}

func (s *Session) LookupABI(name string) (*gethabi.ABI, bool) {
	contractABI, ok := s.abis[name]
	return contractABI, ok
}

func (s *Session) ABINames() []string {
	return append([]string{}, s.abiOrder...)
}

func (s *Session) FunctionBySelector(sel [4]byte) (*gethabi.Method, string, bool) {
	entry, ok := s.functions[sel]
	if !ok {
		return nil, "", false
	}
	return entry.method, entry.contract, true
}

func (s *Session) EventByTopic(topic common.Hash) (*gethabi.Event, bool) {
	event, ok := s.events[topic]
	return event, ok
}

func (s *Session) ErrorBySelector(sel [4]byte) (*gethabi.Error, bool) {
	abiErr, ok := s.errors[sel]
	return abiErr, ok
}

// FetchABI resolves the explorer API key for the current chain and
// downloads the ABI.
func (s *Session) FetchABI(ctx context.Context, name string, addr common.Address) (*gethabi.ABI, error) {
	chainID, err := s.ChainID(ctx)
	if err != nil {
		return nil, interp.RPCError("resolving chain id", err)
	}
	client := etherscan.NewClient(s.cfg.EtherscanKey(chainID.Uint64()), chainID.Uint64())
	sp := newSpinner(fmt.Sprintf("fetching ABI for %s", name))
	defer sp.Stop()
	contractABI, err := client.FetchABI(ctx, addr)
	if err != nil {
		return nil, interp.RPCError("fetching ABI", err)
	}
	return contractABI, nil
}

// ---- chain I/O ----

// callArgs builds the eth_call parameter object, applying prank and
// current-account defaults to the from field.
func (s *Session) callArgs(params interp.CallParams) map[string]any {
	arg := map[string]any{
		"to":   params.To,
		"data": hexutil.Bytes(params.Data),
	}
	switch {
	case params.From != nil:
		arg["from"] = *params.From
	case s.prank != nil:
		arg["from"] = *s.prank
	case s.current >= 0:
		arg["from"] = s.accounts[s.current].Address
	}
	if params.Value != nil && params.Value.Sign() > 0 {
		arg["value"] = hexutil.EncodeBig(params.Value)
	}
	return arg
}

func (s *Session) Call(ctx context.Context, params interp.CallParams) ([]byte, error) {
	if _, err := s.connect(ctx); err != nil {
		return nil, err
	}
	sel := s.blockSel
	if params.Block != "" {
		sel = params.Block
	}
	var result hexutil.Bytes
	if err := s.raw.CallContext(ctx, &result, "eth_call", s.callArgs(params), blockParam(sel)); err != nil {
		return nil, err
	}
	return result, nil
}

// TraceCall runs debug_traceCall with the call tracer and returns the
// raw trace JSON.
func (s *Session) TraceCall(ctx context.Context, params interp.CallParams) ([]byte, error) {
	if _, err := s.connect(ctx); err != nil {
		return nil, err
	}
	sel := s.blockSel
	if params.Block != "" {
		sel = params.Block
	}
	var result json.RawMessage
	trace := map[string]any{"tracer": "callTracer"}
	if err := s.raw.CallContext(ctx, &result, "debug_traceCall", s.callArgs(params), blockParam(sel), trace); err != nil {
		return nil, err
	}
	return result, nil
}

// SendTx signs and submits a transaction. Under an active prank the
// transaction is submitted unsigned through the impersonated account.
func (s *Session) SendTx(ctx context.Context, params interp.TxParams) (common.Hash, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	if s.prank != nil {
		return s.sendImpersonated(ctx, params)
	}

	if s.current < 0 {
		return common.Hash{}, interp.SignerErrorf("no wallet loaded, use accounts.loadPrivateKey or accounts.loadKeystore")
	}
	account := s.accounts[s.current]

	chainID, err := s.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := client.PendingNonceAt(ctx, account.Address)
	if err != nil {
		return common.Hash{}, err
	}
	value := params.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit := params.GasLimit
	if gasLimit == 0 {
		msg := ethereum.CallMsg{From: account.Address, To: &params.To, Value: value, Data: params.Data}
		gasLimit, err = client.EstimateGas(ctx, msg)
		if err != nil {
			return common.Hash{}, err
		}
	}

	var tx *types.Transaction
	if params.GasPrice != nil {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: params.GasPrice,
			Gas:      gasLimit,
			To:       &params.To,
			Value:    value,
			Data:     params.Data,
		})
	} else {
		tip := params.PriorityFee
		if tip == nil {
			tip, err = client.SuggestGasTipCap(ctx)
			if err != nil {
				return common.Hash{}, err
			}
		}
		maxFee := params.MaxFee
		if maxFee == nil {
			head, err := client.HeaderByNumber(ctx, nil)
			if err != nil {
				return common.Hash{}, err
			}
			baseFee := head.BaseFee
			if baseFee == nil {
				baseFee = new(big.Int)
			}
			maxFee = new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)
		}
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: maxFee,
			Gas:       gasLimit,
			To:        &params.To,
			Value:     value,
			Data:      params.Data,
		})
	}

	signed, err := account.SignTx(tx, chainID)
	if err != nil {
		return common.Hash{}, interp.SignerErrorf("signing transaction: %v", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	s.log.Debug("transaction sent", "hash", signed.Hash())
	return signed.Hash(), nil
}

// sendImpersonated submits through eth_sendTransaction, which anvil
// accepts for impersonated accounts.
func (s *Session) sendImpersonated(ctx context.Context, params interp.TxParams) (common.Hash, error) {
	if err := s.requireAnvil(ctx); err != nil {
		return common.Hash{}, err
	}
	arg := map[string]any{
		"from": *s.prank,
		"to":   params.To,
		"data": hexutil.Bytes(params.Data),
	}
	if params.Value != nil {
		arg["value"] = hexutil.EncodeBig(params.Value)
	}
	if params.GasLimit != 0 {
		arg["gas"] = hexutil.EncodeUint64(params.GasLimit)
	}
	if params.GasPrice != nil {
		arg["gasPrice"] = hexutil.EncodeBig(params.GasPrice)
	}
	var hash common.Hash
	if err := s.raw.CallContext(ctx, &hash, "eth_sendTransaction", arg); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// GetReceipt polls until the transaction is mined or the timeout
// elapses.
func (s *Session) GetReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sp := newSpinner("waiting for receipt")
	defer sp.Stop()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if err != ethereum.NotFound {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for receipt of %s", hash.Hex())
		case <-ticker.C:
		}
	}
}

func (s *Session) FetchLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	return client.FilterLogs(ctx, query)
}

func (s *Session) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	if _, err := s.connect(ctx); err != nil {
		return nil, err
	}
	var result hexutil.Big
	if err := s.raw.CallContext(ctx, &result, "eth_getBalance", addr, blockParam(s.blockSel)); err != nil {
		return nil, err
	}
	return (*big.Int)(&result), nil
}

func newSpinner(message string) *spinner.Spinner {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithSuffix(" "+message))
	sp.Start()
	return sp
}
