package interp

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

func init() {
	registerFunc("accounts", "loadPrivateKey", accountsLoadPrivateKey)
	registerFunc("accounts", "loadKeystore", accountsLoadKeystore)
	registerFunc("accounts", "listLedgers", accountsListLedgers)
	registerFunc("accounts", "loadLedger", accountsLoadLedger)
	registerFunc("accounts", "select", accountsSelect)
	registerFunc("accounts", "alias", accountsAlias)
	registerProp("accounts", "loaded", accountsLoaded)
	registerProp("accounts", "current", accountsCurrent)
}

// optionalAlias reads an optional trailing alias argument.
func optionalAlias(args []Value, i int) (string, error) {
	if i >= len(args) {
		return "", nil
	}
	return argStr(args, i, "alias")
}

func accountsLoadPrivateKey(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	key, err := argStr(args, 0, "private key")
	if err != nil {
		return nil, err
	}
	alias, err := optionalAlias(args, 1)
	if err != nil {
		return nil, err
	}
	addr, err := ip.session.LoadPrivateKey(key, alias)
	if err != nil {
		return nil, err
	}
	return Addr(addr), nil
}

// accountsLoadKeystore decrypts a named keystore from
// ~/.foundry/keystore, prompting for the passphrase.
func accountsLoadKeystore(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	name, err := argStr(args, 0, "keystore name")
	if err != nil {
		return nil, err
	}
	alias, err := optionalAlias(args, 1)
	if err != nil {
		return nil, err
	}
	addr, err := ip.session.LoadKeystore(name, alias)
	if err != nil {
		return nil, err
	}
	return Addr(addr), nil
}

func accountsListLedgers(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	count := 5
	if len(args) == 1 {
		n, err := argInt(args, 0, "count")
		if err != nil {
			return nil, err
		}
		count = int(n.Int64())
	}
	addrs, err := ip.session.ListLedgers(ip.ctx, count)
	if err != nil {
		return nil, err
	}
	return NewArray(lo.Map(addrs, func(a common.Address, _ int) Value { return Addr(a) })), nil
}

func accountsLoadLedger(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	index, err := argInt(args, 0, "derivation index")
	if err != nil {
		return nil, err
	}
	alias, err := optionalAlias(args, 1)
	if err != nil {
		return nil, err
	}
	addr, err := ip.session.LoadLedger(ip.ctx, int(index.Int64()), alias)
	if err != nil {
		return nil, err
	}
	return Addr(addr), nil
}

// accountsSelect marks a loaded account (by address or alias) as the
// transaction signer.
func accountsSelect(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, ArityErrorf("accounts.select expects 1 argument, got %d", len(args))
	}
	var key string
	switch v := args[0].(type) {
	case Str:
		key = string(v)
	case Addr:
		key = common.Address(v).Hex()
	default:
		return nil, TypeErrorf("accounts.select expects an address or alias, got %s", v.Kind())
	}
	addr, err := ip.session.SelectAccount(key)
	if err != nil {
		return nil, err
	}
	return Addr(addr), nil
}

func accountsAlias(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	addrVal, err := argAddress(args, 0, "address")
	if err != nil {
		return nil, err
	}
	alias, err := argStr(args, 1, "alias")
	if err != nil {
		return nil, err
	}
	if err := ip.session.AliasAccount(common.Address(addrVal.(Addr)), alias); err != nil {
		return nil, err
	}
	return Null{}, nil
}

func accountsLoaded(ip *Interp) (Value, error) {
	infos := ip.session.Accounts()
	return NewArray(lo.Map(infos, func(info AccountInfo, _ int) Value {
		return NamedTuple{
			Names: []string{"address", "alias", "kind", "current"},
			Elems: []Value{Addr(info.Address), Str(info.Alias), Str(info.Kind), Bool(info.Current)},
		}
	})), nil
}

func accountsCurrent(ip *Interp) (Value, error) {
	addr, ok := ip.session.CurrentAccount()
	if !ok {
		return Null{}, nil
	}
	return Addr(addr), nil
}
