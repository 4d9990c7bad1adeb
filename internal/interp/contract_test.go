package interp

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenAddr = "0x789f8F7B547183Ab8E99A5e0E6D567E90e0EB03B"

func bindToken(t *testing.T, ip *Interp, sess *mockSession) {
	t.Helper()
	loadERC20(t, ip, sess)
	_, err := ip.EvalLine("token = ERC20(" + tokenAddr + ")")
	require.NoError(t, err)
}

func TestContractConstructor(t *testing.T) {
	ip, sess := newTestInterp()
	loadERC20(t, ip, sess)

	v, err := ip.EvalLine("ERC20(" + tokenAddr + ")")
	require.NoError(t, err)
	contract, ok := v.(*ContractVal)
	require.True(t, ok)
	assert.True(t, contract.Bound)
	assert.Equal(t, "ERC20("+tokenAddr+")", v.String())

	addr, err := ip.EvalLine("_.address")
	require.NoError(t, err)
	assert.Equal(t, tokenAddr, addr.String())
}

func TestViewCallRoutesToEthCall(t *testing.T) {
	ip, sess := newTestInterp()
	bindToken(t, ip, sess)

	var captured CallParams
	sess.callFn = func(params CallParams) ([]byte, error) {
		captured = params
		return common.LeftPadBytes(big.NewInt(12345).Bytes(), 32), nil
	}

	v, err := ip.EvalLine("token.balanceOf(" + tokenAddr + ")")
	require.NoError(t, err)
	assert.Equal(t, "12345", v.String())
	assert.Equal(t, common.HexToAddress(tokenAddr), captured.To)
	assert.Len(t, captured.Data, 4+32)
}

func TestCallOptions(t *testing.T) {
	ip, sess := newTestInterp()
	bindToken(t, ip, sess)

	var captured CallParams
	sess.callFn = func(params CallParams) ([]byte, error) {
		captured = params
		return common.LeftPadBytes([]byte{1}, 32), nil
	}

	_, err := ip.EvalLine("token.balanceOf{from: 0x0000000000000000000000000000000000000009, block: 123}(" + tokenAddr + ")")
	require.NoError(t, err)
	require.NotNil(t, captured.From)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000000009"), *captured.From)
	assert.Equal(t, "0x7b", captured.Block)

	// Unknown option keys are rejected.
	_, err = ip.EvalLine("token.balanceOf{bogus: 1}(" + tokenAddr + ")")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown option "bogus"`)
}

func TestStateChangingCallSendsTx(t *testing.T) {
	ip, sess := newTestInterp()
	bindToken(t, ip, sess)

	var captured TxParams
	sess.sendFn = func(params TxParams) (common.Hash, error) {
		captured = params
		return common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000001"), nil
	}

	v, err := ip.EvalLine("token.transfer{value: 5, gasLimit: 100000}(" + tokenAddr + ", 1e18)")
	require.NoError(t, err)
	assert.Equal(t, KindTransaction, v.Kind())
	assert.Equal(t, big.NewInt(5), captured.Value)
	assert.Equal(t, uint64(100000), captured.GasLimit)
}

func TestExplicitModes(t *testing.T) {
	ip, sess := newTestInterp()
	bindToken(t, ip, sess)

	t.Run("encode returns calldata", func(t *testing.T) {
		v, err := ip.EvalLine("token.transfer.encode(" + tokenAddr + ", 1e18)")
		require.NoError(t, err)
		data, ok := v.(Bytes)
		require.True(t, ok)
		assert.Equal(t, "a9059cbb", common.Bytes2Hex(data[:4]))
	})

	t.Run("call forces eth_call on state-changing method", func(t *testing.T) {
		sess.callFn = func(params CallParams) ([]byte, error) {
			return common.LeftPadBytes([]byte{1}, 32), nil
		}
		v, err := ip.EvalLine("token.transfer.call(" + tokenAddr + ", 1e18)")
		require.NoError(t, err)
		assert.Equal(t, "true", v.String())
	})

	t.Run("send forces transaction on view method", func(t *testing.T) {
		sess.sendFn = func(params TxParams) (common.Hash, error) {
			return common.Hash{0x01}, nil
		}
		v, err := ip.EvalLine("token.balanceOf.send(" + tokenAddr + ")")
		require.NoError(t, err)
		assert.Equal(t, KindTransaction, v.Kind())
	})

	t.Run("gasPrice excludes fee cap pair", func(t *testing.T) {
		_, err := ip.EvalLine("token.transfer{gasPrice: 1, maxFee: 2}(" + tokenAddr + ", 1)")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})
}

func TestUnboundContract(t *testing.T) {
	ip, sess := newTestInterp()
	loadERC20(t, ip, sess)

	// The registered name is a type: usable for decode, not for calls.
	_, err := ip.EvalLine("ERC20.decode(0xa9059cbb)")
	require.Error(t, err) // truncated calldata, but dispatch works
	assert.Contains(t, err.Error(), "decoding calldata")
}

func TestGetReceiptDecodesLogs(t *testing.T) {
	ip, sess := newTestInterp()
	bindToken(t, ip, sess)

	from := common.HexToAddress("0x0000000000000000000000000000000000000001")
	to := common.HexToAddress("0x0000000000000000000000000000000000000002")
	transferTopic := sessEventID(t, sess)

	sess.sendFn = func(params TxParams) (common.Hash, error) {
		return common.Hash{0xaa}, nil
	}
	sess.receiptFn = func(hash common.Hash) (*types.Receipt, error) {
		return &types.Receipt{
			Status:            1,
			GasUsed:           21000,
			BlockNumber:       big.NewInt(100),
			EffectiveGasPrice: big.NewInt(7),
			TxHash:            hash,
			Logs: []*types.Log{{
				Address: common.HexToAddress(tokenAddr),
				Topics: []common.Hash{
					transferTopic,
					common.BytesToHash(from.Bytes()),
					common.BytesToHash(to.Bytes()),
				},
				Data: common.LeftPadBytes(big.NewInt(1000).Bytes(), 32),
			}},
		}, nil
	}

	v, err := evalAll(ip,
		"tx = token.transfer("+tokenAddr+", 1e18)",
		"tx.getReceipt()",
	)
	require.NoError(t, err)
	receipt, ok := v.(NamedTuple)
	require.True(t, ok)

	status, _ := receipt.Field("status")
	assert.Equal(t, "1", status.String())
	gasUsed, _ := receipt.Field("gas_used")
	assert.Equal(t, "21000", gasUsed.String())

	logsVal, _ := receipt.Field("logs")
	logs := logsVal.(Array)
	require.Len(t, logs.Elems, 1)
	logEntry := logs.Elems[0].(NamedTuple)
	name, _ := logEntry.Field("name")
	assert.Equal(t, `"Transfer"`, name.String())
	args, ok := logEntry.Field("args")
	require.True(t, ok)
	argsTuple := args.(NamedTuple)
	fromArg, _ := argsTuple.Field("from")
	assert.Equal(t, from.Hex(), fromArg.String())
	valueArg, _ := argsTuple.Field("value")
	assert.Equal(t, "1000", valueArg.String())
}

func sessEventID(t *testing.T, sess *mockSession) common.Hash {
	t.Helper()
	contractABI, ok := sess.LookupABI("ERC20")
	require.True(t, ok)
	return contractABI.Events["Transfer"].ID
}

func TestEventsFetch(t *testing.T) {
	ip, sess := newTestInterp()
	bindToken(t, ip, sess)

	var captured ethereum.FilterQuery
	sess.logsFn = func(query ethereum.FilterQuery) ([]types.Log, error) {
		captured = query
		return nil, nil
	}

	_, err := ip.EvalLine("events.fetch{fromBlock: 10, toBlock: 20}(token, \"Transfer\")")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10), captured.FromBlock)
	assert.Equal(t, big.NewInt(20), captured.ToBlock)
	require.Len(t, captured.Addresses, 1)
	assert.Equal(t, common.HexToAddress(tokenAddr), captured.Addresses[0])
	require.Len(t, captured.Topics, 1)
	assert.Equal(t, sessEventID(t, sess), captured.Topics[0][0])
}

func TestBalanceProperty(t *testing.T) {
	ip, sess := newTestInterp()
	sess.balanceFn = func(addr common.Address) (*big.Int, error) {
		return big.NewInt(42), nil
	}
	v, err := ip.EvalLine(tokenAddr + ".balance")
	require.NoError(t, err)
	assert.Equal(t, "42", v.String())
}
