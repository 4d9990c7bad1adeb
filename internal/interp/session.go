package interp

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CallParams describes a read call.
type CallParams struct {
	To    common.Address
	Data  []byte
	From  *common.Address
	Value *big.Int
	Block string // overrides the session block selector when non-empty
}

// TxParams describes a transaction to sign and submit.
type TxParams struct {
	To          common.Address
	Data        []byte
	Value       *big.Int
	GasLimit    uint64
	GasPrice    *big.Int // legacy, mutually exclusive with the fee cap pair
	MaxFee      *big.Int
	PriorityFee *big.Int
}

// AccountInfo is a loaded wallet as shown to the user.
type AccountInfo struct {
	Address common.Address
	Alias   string
	Kind    string // "key", "keystore", "ledger"
	Current bool
}

// Session is the process-wide execution context behind the evaluator:
// RPC endpoint, wallets, block selector, prank state and the ABI
// registry. Implemented by the session package.
type Session interface {
	// Endpoint management.
	RPCURL() string
	SetRPC(ctx context.Context, urlOrAlias string) error
	Connected(ctx context.Context) bool
	ChainID(ctx context.Context) (*big.Int, error)
	Fork(ctx context.Context, urlOrAlias string) (string, error)

	// Anvil-only state manipulation.
	StartPrank(ctx context.Context, addr common.Address) error
	StopPrank(ctx context.Context) error
	Deal(ctx context.Context, addr common.Address, amount *big.Int) error
	Mine(ctx context.Context, blocks uint64) error
	Skip(ctx context.Context, seconds uint64) error

	// Block selector for read calls.
	SetBlock(selector string) error
	CurrentBlock() string
	BlockHeader(ctx context.Context) (*types.Header, error)

	// Wallets.
	LoadPrivateKey(hexKey, alias string) (common.Address, error)
	LoadKeystore(name, alias string) (common.Address, error)
	ListLedgers(ctx context.Context, count int) ([]common.Address, error)
	LoadLedger(ctx context.Context, index int, alias string) (common.Address, error)
	SelectAccount(addrOrAlias string) (common.Address, error)
	AliasAccount(addr common.Address, alias string) error
	Accounts() []AccountInfo
	CurrentAccount() (common.Address, bool)

	// ABI registry.
	RegisterABI(name string, contractABI *gethabi.ABI)
	LookupABI(name string) (*gethabi.ABI, bool)
	ABINames() []string
	FunctionBySelector(sel [4]byte) (*gethabi.Method, string, bool)
	EventByTopic(topic common.Hash) (*gethabi.Event, bool)
	ErrorBySelector(sel [4]byte) (*gethabi.Error, bool)
	FetchABI(ctx context.Context, name string, addr common.Address) (*gethabi.ABI, error)

	// Chain I/O.
	Call(ctx context.Context, params CallParams) ([]byte, error)
	TraceCall(ctx context.Context, params CallParams) ([]byte, error)
	SendTx(ctx context.Context, params TxParams) (common.Hash, error)
	GetReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error)
	FetchLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
}
