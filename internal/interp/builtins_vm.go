package interp

import (
	"github.com/ethereum/go-ethereum/common"
)

func init() {
	registerFunc("vm", "rpc", vmRPC)
	registerFunc("vm", "chainId", vmChainID)
	registerFunc("vm", "fork", vmFork)
	registerFunc("vm", "startPrank", vmStartPrank)
	registerFunc("vm", "stopPrank", vmStopPrank)
	registerFunc("vm", "deal", vmDeal)
	registerFunc("vm", "mine", vmMine)
	registerFunc("vm", "skip", vmSkip)
	registerFunc("vm", "block", vmBlock)
	registerProp("vm", "connected", vmConnected)
}

// vmRPC reads the current endpoint or, with an argument, switches to a
// URL or a foundry.toml alias.
func vmRPC(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	switch len(args) {
	case 0:
		return Str(ip.session.RPCURL()), nil
	case 1:
		url, err := argStr(args, 0, "url")
		if err != nil {
			return nil, err
		}
		if err := ip.session.SetRPC(ip.ctx, url); err != nil {
			return nil, err
		}
		return Null{}, nil
	}
	return nil, ArityErrorf("vm.rpc expects 0 or 1 arguments, got %d", len(args))
}

func vmConnected(ip *Interp) (Value, error) {
	return Bool(ip.session.Connected(ip.ctx)), nil
}

func vmChainID(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	chainID, err := ip.session.ChainID(ip.ctx)
	if err != nil {
		return nil, wrapRPCErr(ip, err)
	}
	return NewUint(chainID, 256)
}

// vmFork spawns a local anvil fork of the given (or current) endpoint
// and repoints the session at it.
func vmFork(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	upstream := ""
	if len(args) > 1 {
		return nil, ArityErrorf("vm.fork expects 0 or 1 arguments, got %d", len(args))
	}
	if len(args) == 1 {
		url, err := argStr(args, 0, "url")
		if err != nil {
			return nil, err
		}
		upstream = url
	}
	endpoint, err := ip.session.Fork(ip.ctx, upstream)
	if err != nil {
		return nil, err
	}
	return Str(endpoint), nil
}

func vmStartPrank(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	addrVal, err := argAddress(args, 0, "address")
	if err != nil {
		return nil, err
	}
	if err := ip.session.StartPrank(ip.ctx, common.Address(addrVal.(Addr))); err != nil {
		return nil, err
	}
	return Null{}, nil
}

func vmStopPrank(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	if err := ip.session.StopPrank(ip.ctx); err != nil {
		return nil, err
	}
	return Null{}, nil
}

func vmDeal(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	addrVal, err := argAddress(args, 0, "address")
	if err != nil {
		return nil, err
	}
	amount, err := argInt(args, 1, "amount")
	if err != nil {
		return nil, err
	}
	if err := ip.session.Deal(ip.ctx, common.Address(addrVal.(Addr)), amount); err != nil {
		return nil, err
	}
	return Null{}, nil
}

func vmMine(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	blocks := uint64(1)
	if len(args) == 1 {
		n, err := argInt(args, 0, "blocks")
		if err != nil {
			return nil, err
		}
		blocks = n.Uint64()
	}
	if err := ip.session.Mine(ip.ctx, blocks); err != nil {
		return nil, err
	}
	return Null{}, nil
}

func vmSkip(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	seconds, err := argInt(args, 0, "seconds")
	if err != nil {
		return nil, err
	}
	if err := ip.session.Skip(ip.ctx, seconds.Uint64()); err != nil {
		return nil, err
	}
	return Null{}, nil
}

// vmBlock reads or sets the block selector used for read calls. The
// selector accepts a number, a tag ("latest", "safe", ...) or a block
// hash.
func vmBlock(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	switch len(args) {
	case 0:
		return Str(ip.session.CurrentBlock()), nil
	case 1:
		if err := ip.session.SetBlock(blockSelectorString(args[0])); err != nil {
			return nil, err
		}
		return Null{}, nil
	}
	return nil, ArityErrorf("vm.block expects 0 or 1 arguments, got %d", len(args))
}
