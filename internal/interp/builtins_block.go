package interp

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

func init() {
	registerProp("block", "number", blockNumber)
	registerProp("block", "timestamp", blockTimestamp)
	registerProp("block", "basefee", blockBasefee)
	registerProp("block", "chainid", blockChainID)
}

func blockNumber(ip *Interp) (Value, error) {
	return ip.blockHeaderField(func(h *types.Header) (Value, error) {
		return NewUint(h.Number, 256)
	})
}

func blockTimestamp(ip *Interp) (Value, error) {
	return ip.blockHeaderField(func(h *types.Header) (Value, error) {
		return NewUint(new(big.Int).SetUint64(h.Time), 256)
	})
}

func blockBasefee(ip *Interp) (Value, error) {
	return ip.blockHeaderField(func(h *types.Header) (Value, error) {
		fee := h.BaseFee
		if fee == nil {
			fee = new(big.Int)
		}
		return NewUint(fee, 256)
	})
}

func blockChainID(ip *Interp) (Value, error) {
	chainID, err := ip.session.ChainID(ip.ctx)
	if err != nil {
		return nil, wrapRPCErr(ip, err)
	}
	return NewUint(chainID, 256)
}
