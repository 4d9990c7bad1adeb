package session

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclair-lang/eclair-cli/internal/config"
	"github.com/eclair-lang/eclair-cli/internal/interp"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// stubNode is a minimal JSON-RPC server recording requests.
type stubNode struct {
	server        *httptest.Server
	clientVersion string
	handlers      map[string]func(params []json.RawMessage) any
	calls         []rpcRequest
}

func newStubNode(t *testing.T) *stubNode {
	t.Helper()
	node := &stubNode{
		clientVersion: "anvil/v0.2.0",
		handlers:      map[string]func(params []json.RawMessage) any{},
	}
	node.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req rpcRequest
		require.NoError(t, json.Unmarshal(body, &req))
		node.calls = append(node.calls, req)

		var result any
		switch req.Method {
		case "eth_chainId":
			result = "0x1"
		case "web3_clientVersion":
			result = node.clientVersion
		default:
			if handler, ok := node.handlers[req.Method]; ok {
				result = handler(req.Params)
			} else {
				result = nil
			}
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": json.RawMessage(req.ID), "result": result}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(node.server.Close)
	return node
}

func (n *stubNode) requests(method string) []rpcRequest {
	var out []rpcRequest
	for _, call := range n.calls {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

func newTestSession(t *testing.T, node *stubNode) *Session {
	t.Helper()
	cfg := &config.Config{
		RPCURL:       node.server.URL,
		RpcEndpoints: map[string]string{"testnet": node.server.URL},
		Etherscan:    map[string]config.EtherscanConfig{},
	}
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestChainIDCaching(t *testing.T) {
	node := newStubNode(t)
	sess := newTestSession(t, node)
	ctx := context.Background()

	chainID, err := sess.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), chainID.Int64())

	_, err = sess.ChainID(ctx)
	require.NoError(t, err)
	assert.Len(t, node.requests("eth_chainId"), 1, "second lookup must hit the cache")
}

func TestSetRPCResolvesAliases(t *testing.T) {
	node := newStubNode(t)
	sess := newTestSession(t, node)

	require.NoError(t, sess.SetRPC(context.Background(), "testnet"))
	assert.Equal(t, node.server.URL, sess.RPCURL())
}

func TestCallUsesBlockSelector(t *testing.T) {
	node := newStubNode(t)
	node.handlers["eth_call"] = func(params []json.RawMessage) any { return "0x01" }
	sess := newTestSession(t, node)

	require.NoError(t, sess.SetBlock("0x10"))
	_, err := sess.Call(context.Background(), interp.CallParams{
		To:   common.HexToAddress("0x0000000000000000000000000000000000000001"),
		Data: []byte{0xde, 0xad},
	})
	require.NoError(t, err)

	calls := node.requests("eth_call")
	require.Len(t, calls, 1)
	var blockParam string
	require.NoError(t, json.Unmarshal(calls[0].Params[1], &blockParam))
	assert.Equal(t, "0x10", blockParam)

	// A per-call override wins.
	_, err = sess.Call(context.Background(), interp.CallParams{
		To:    common.HexToAddress("0x0000000000000000000000000000000000000001"),
		Block: "latest",
	})
	require.NoError(t, err)
	calls = node.requests("eth_call")
	require.Len(t, calls, 2)
	require.NoError(t, json.Unmarshal(calls[1].Params[1], &blockParam))
	assert.Equal(t, "latest", blockParam)
}

func TestSetBlockValidation(t *testing.T) {
	node := newStubNode(t)
	sess := newTestSession(t, node)

	require.NoError(t, sess.SetBlock("latest"))
	require.NoError(t, sess.SetBlock("0x1234"))
	require.Error(t, sess.SetBlock("nonsense"))
}

func TestAnvilGating(t *testing.T) {
	node := newStubNode(t)
	node.clientVersion = "Geth/v1.14.0"
	sess := newTestSession(t, node)

	err := sess.Mine(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, interp.UsageErr, interp.KindOf(err))

	err = sess.Deal(context.Background(), common.Address{}, bigOne())
	require.Error(t, err)
}

func TestAnvilOperations(t *testing.T) {
	node := newStubNode(t)
	sess := newTestSession(t, node)
	ctx := context.Background()

	require.NoError(t, sess.Mine(ctx, 3))
	require.Len(t, node.requests("anvil_mine"), 1)

	require.NoError(t, sess.Skip(ctx, 60))
	require.Len(t, node.requests("evm_increaseTime"), 1)

	addr := common.HexToAddress("0x0000000000000000000000000000000000000009")
	require.NoError(t, sess.StartPrank(ctx, addr))
	require.Len(t, node.requests("anvil_impersonateAccount"), 1)

	require.NoError(t, sess.StopPrank(ctx))
	require.Len(t, node.requests("anvil_stopImpersonatingAccount"), 1)
}

func TestPrankOverridesCallFrom(t *testing.T) {
	node := newStubNode(t)
	node.handlers["eth_call"] = func(params []json.RawMessage) any { return "0x" }
	sess := newTestSession(t, node)
	ctx := context.Background()

	prankAddr := common.HexToAddress("0x0000000000000000000000000000000000000007")
	require.NoError(t, sess.StartPrank(ctx, prankAddr))

	_, err := sess.Call(ctx, interp.CallParams{To: common.Address{}})
	require.NoError(t, err)

	calls := node.requests("eth_call")
	require.Len(t, calls, 1)
	var arg map[string]any
	require.NoError(t, json.Unmarshal(calls[0].Params[0], &arg))
	assert.Equal(t, strings.ToLower(prankAddr.Hex()), arg["from"])
}

func TestSendTxRequiresWallet(t *testing.T) {
	node := newStubNode(t)
	sess := newTestSession(t, node)

	_, err := sess.SendTx(context.Background(), interp.TxParams{})
	require.Error(t, err)
	assert.Equal(t, interp.SignerErr, interp.KindOf(err))
}

func TestLoadPrivateKeyAndSelect(t *testing.T) {
	node := newStubNode(t)
	sess := newTestSession(t, node)

	// A well-known anvil dev key.
	addr, err := sess.LoadPrivateKey("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", "deployer")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), addr)

	current, ok := sess.CurrentAccount()
	require.True(t, ok)
	assert.Equal(t, addr, current)

	// A second key becomes current; select switches back by alias.
	_, err = sess.LoadPrivateKey("0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d", "")
	require.NoError(t, err)
	current, _ = sess.CurrentAccount()
	assert.NotEqual(t, addr, current)

	selected, err := sess.SelectAccount("deployer")
	require.NoError(t, err)
	assert.Equal(t, addr, selected)

	infos := sess.Accounts()
	require.Len(t, infos, 2)
	assert.True(t, infos[0].Current)

	_, err = sess.SelectAccount("nobody")
	require.Error(t, err)
}

func TestRegisterABISelectorIndexes(t *testing.T) {
	const abiJSON = `[
		{"type":"function","name":"transfer","stateMutability":"nonpayable",
		 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
		{"type":"event","name":"Transfer","anonymous":false,
		 "inputs":[{"name":"from","type":"address","indexed":true}]},
		{"type":"error","name":"InsufficientBalance",
		 "inputs":[{"name":"needed","type":"uint256"}]}
	]`
	parsed, err := gethabi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)

	node := newStubNode(t)
	sess := newTestSession(t, node)
	sess.RegisterABI("Token", &parsed)

	var sel [4]byte
	copy(sel[:], parsed.Methods["transfer"].ID)
	method, contract, ok := sess.FunctionBySelector(sel)
	require.True(t, ok)
	assert.Equal(t, "transfer", method.Name)
	assert.Equal(t, "Token", contract)

	_, ok = sess.EventByTopic(parsed.Events["Transfer"].ID)
	assert.True(t, ok)

	var errSel [4]byte
	insufficientBalanceErr := parsed.Errors["InsufficientBalance"]
	copy(errSel[:], insufficientBalanceErr.ID[:4])
	_, ok = sess.ErrorBySelector(errSel)
	assert.True(t, ok)

	// Re-registration overwrites, names stay unique in the listing.
	sess.RegisterABI("Token", &parsed)
	assert.Equal(t, []string{"Token"}, sess.ABINames())
}

func TestBlockParam(t *testing.T) {
	assert.Equal(t, "latest", blockParam("latest"))
	assert.Equal(t, "0x10", blockParam("0x10"))
	hash := "0x" + strings.Repeat("ab", 32)
	param, ok := blockParam(hash).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, hash, param["blockHash"])
}

func bigOne() *big.Int { return big.NewInt(1) }
