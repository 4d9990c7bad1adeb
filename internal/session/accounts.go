package session

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/accounts/usbwallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/manifoldco/promptui"

	"github.com/eclair-lang/eclair-cli/internal/interp"
)

// Account is one loaded wallet. Exactly one of key or wallet is set.
type Account struct {
	Address common.Address
	Alias   string
	Kind    string

	key    *ecdsa.PrivateKey
	wallet accounts.Wallet
	acct   accounts.Account
}

// SignTx signs with the account's backend.
func (a *Account) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if a.key != nil {
		return types.SignTx(tx, types.LatestSignerForChainID(chainID), a.key)
	}
	return a.wallet.SignTx(a.acct, tx, chainID)
}

// addAccount registers a wallet and makes it current.
func (s *Session) addAccount(account *Account) {
	for i, existing := range s.accounts {
		if existing.Address == account.Address {
			if account.Alias == "" {
				account.Alias = existing.Alias
			}
			s.accounts[i] = account
			s.current = i
			return
		}
	}
	s.accounts = append(s.accounts, account)
	s.current = len(s.accounts) - 1
}

func (s *Session) LoadPrivateKey(hexKey, alias string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return common.Address{}, interp.SignerErrorf("invalid private key: %v", err)
	}
	account := &Account{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		Alias:   alias,
		Kind:    "key",
		key:     key,
	}
	s.addAccount(account)
	return account.Address, nil
}

// LoadKeystore decrypts ~/.foundry/keystore/<name>, prompting for the
// passphrase.
func (s *Session) LoadKeystore(name, alias string) (common.Address, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return common.Address{}, interp.IOError("resolving home directory", err)
	}
	path := filepath.Join(home, ".foundry", "keystore", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return common.Address{}, interp.IOError("reading keystore "+path, err)
	}
	prompt := promptui.Prompt{
		Label: "Enter password for keystore " + name,
		Mask:  '*',
	}
	password, err := prompt.Run()
	if err != nil {
		return common.Address{}, interp.SignerErrorf("password prompt aborted")
	}
	decrypted, err := keystore.DecryptKey(raw, password)
	if err != nil {
		return common.Address{}, interp.SignerErrorf("decrypting keystore %s: %v", name, err)
	}
	account := &Account{
		Address: crypto.PubkeyToAddress(decrypted.PrivateKey.PublicKey),
		Alias:   alias,
		Kind:    "keystore",
		key:     decrypted.PrivateKey,
	}
	s.addAccount(account)
	return account.Address, nil
}

// ledgerLivePath is the BIP-44 derivation used by Ledger Live:
// m/44'/60'/index'/0/0.
func ledgerLivePath(index int) accounts.DerivationPath {
	return accounts.DerivationPath{
		0x80000000 + 44,
		0x80000000 + 60,
		0x80000000 + uint32(index),
		0,
		0,
	}
}

func (s *Session) openLedger() (accounts.Wallet, error) {
	hub, err := usbwallet.NewLedgerHub()
	if err != nil {
		return nil, interp.SignerErrorf("starting ledger hub: %v", err)
	}
	wallets := hub.Wallets()
	if len(wallets) == 0 {
		return nil, interp.SignerErrorf("no ledger device found")
	}
	wallet := wallets[0]
	if err := wallet.Open(""); err != nil && !strings.Contains(err.Error(), "already open") {
		return nil, interp.SignerErrorf("opening ledger: %v", err)
	}
	return wallet, nil
}

// ListLedgers derives the first count ledger-live addresses.
func (s *Session) ListLedgers(ctx context.Context, count int) ([]common.Address, error) {
	wallet, err := s.openLedger()
	if err != nil {
		return nil, err
	}
	addrs := make([]common.Address, 0, count)
	for i := 0; i < count; i++ {
		acct, err := wallet.Derive(ledgerLivePath(i), false)
		if err != nil {
			return nil, interp.SignerErrorf("deriving ledger account %d: %v", i, err)
		}
		addrs = append(addrs, acct.Address)
	}
	return addrs, nil
}

func (s *Session) LoadLedger(ctx context.Context, index int, alias string) (common.Address, error) {
	wallet, err := s.openLedger()
	if err != nil {
		return common.Address{}, err
	}
	acct, err := wallet.Derive(ledgerLivePath(index), true)
	if err != nil {
		return common.Address{}, interp.SignerErrorf("deriving ledger account %d: %v", index, err)
	}
	account := &Account{
		Address: acct.Address,
		Alias:   alias,
		Kind:    "ledger",
		wallet:  wallet,
		acct:    acct,
	}
	s.addAccount(account)
	return account.Address, nil
}

// SelectAccount switches the current signer by address or alias.
func (s *Session) SelectAccount(addrOrAlias string) (common.Address, error) {
	for i, account := range s.accounts {
		if account.Alias != "" && account.Alias == addrOrAlias {
			s.current = i
			return account.Address, nil
		}
		if common.IsHexAddress(addrOrAlias) && account.Address == common.HexToAddress(addrOrAlias) {
			s.current = i
			return account.Address, nil
		}
	}
	return common.Address{}, interp.SignerErrorf("no loaded account matches %q", addrOrAlias)
}

func (s *Session) AliasAccount(addr common.Address, alias string) error {
	for _, account := range s.accounts {
		if account.Address == addr {
			account.Alias = alias
			return nil
		}
	}
	return interp.SignerErrorf("no loaded account with address %s", addr.Hex())
}

func (s *Session) Accounts() []interp.AccountInfo {
	infos := make([]interp.AccountInfo, len(s.accounts))
	for i, account := range s.accounts {
		infos[i] = interp.AccountInfo{
			Address: account.Address,
			Alias:   account.Alias,
			Kind:    account.Kind,
			Current: i == s.current,
		}
	}
	return infos
}

func (s *Session) CurrentAccount() (common.Address, bool) {
	if s.current < 0 || s.current >= len(s.accounts) {
		return common.Address{}, false
	}
	return s.accounts[s.current].Address, true
}
