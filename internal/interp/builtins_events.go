package interp

import (
	"math/big"

	"github.com/ethereum/go-ethereum"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

func init() {
	registerFunc("events", "fetch", eventsFetch)
}

// eventsFetch queries logs. The target may be a bound contract (whose
// ABI drives decoding), a plain address, or omitted entirely when only
// topic filters are given.
func eventsFetch(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	var addr *common.Address
	var contractABI *gethabi.ABI
	eventName := ""
	switch len(args) {
	case 0:
	case 1, 2:
		switch target := args[0].(type) {
		case *ContractVal:
			if !target.Bound {
				return nil, UsageErrorf("contract not bound to an address")
			}
			a := common.Address(target.Addr)
			addr = &a
			contractABI = target.ABI
		case Addr:
			a := common.Address(target)
			addr = &a
		default:
			return nil, TypeErrorf("events.fetch expects a contract or address, got %s", target.Kind())
		}
		if len(args) == 2 {
			name, err := argStr(args, 1, "event name")
			if err != nil {
				return nil, err
			}
			eventName = name
		}
	default:
		return nil, ArityErrorf("events.fetch expects at most 2 arguments, got %d", len(args))
	}
	return ip.fetchEvents(addr, contractABI, eventName, opts)
}

// fetchEvents builds the filter query from call options and decodes the
// returned logs against the registered ABIs.
func (ip *Interp) fetchEvents(addr *common.Address, contractABI *gethabi.ABI, eventName string, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts, "fromBlock", "toBlock", "topic0", "topic1", "topic2", "topic3"); err != nil {
		return nil, err
	}
	query := ethereum.FilterQuery{}
	if addr != nil {
		query.Addresses = []common.Address{*addr}
	}
	if from, ok, err := optInt(opts, "fromBlock"); err != nil {
		return nil, err
	} else if ok {
		query.FromBlock = from
	}
	if to, ok, err := optInt(opts, "toBlock"); err != nil {
		return nil, err
	} else if ok {
		query.ToBlock = to
	}

	topics := make([][]common.Hash, 0, 4)
	if eventName != "" {
		if contractABI == nil {
			return nil, UsageErrorf("event name filter requires a contract target")
		}
		event, ok := contractABI.Events[eventName]
		if !ok {
			return nil, NameErrorf("no event %s in ABI", eventName)
		}
		topics = append(topics, []common.Hash{event.ID})
	}
	for i, key := range []string{"topic0", "topic1", "topic2", "topic3"} {
		v, ok := opts[key]
		if !ok {
			continue
		}
		topic, err := topicHash(v)
		if err != nil {
			return nil, TypeErrorf("option %s: %v", key, err)
		}
		for len(topics) < i {
			topics = append(topics, nil)
		}
		if len(topics) == i {
			topics = append(topics, []common.Hash{topic})
		} else {
			topics[i] = append(topics[i], topic)
		}
	}
	if len(topics) > 0 {
		query.Topics = topics
	}

	logs, err := ip.session.FetchLogs(ip.ctx, query)
	if err != nil {
		return nil, wrapRPCErr(ip, err)
	}
	out := make([]Value, len(logs))
	for i := range logs {
		out[i] = ip.logToValue(&logs[i])
	}
	return NewArray(out), nil
}

// topicHash renders a filter value as a 32-byte topic.
func topicHash(v Value) (common.Hash, error) {
	switch val := v.(type) {
	case FixBytes:
		return common.Hash(val.Word()), nil
	case Addr:
		return common.BytesToHash(common.Address(val).Bytes()), nil
	case Int:
		if val.X.Sign() < 0 {
			return common.Hash{}, TypeErrorf("negative topic value")
		}
		return common.BigToHash(new(big.Int).Set(val.X)), nil
	case Bytes:
		if len(val) == 32 {
			return common.BytesToHash(val), nil
		}
	}
	return common.Hash{}, TypeErrorf("expected a 32-byte value, got %s", v.Kind())
}
