package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
)

// Manager reads accounts from an encrypted geth keystore directory.
type Manager struct {
	ks         *keystore.KeyStore
	passphrase string
}

func NewManager(dir string, passphrase string) (*Manager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("keystore dir is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("keystore dir: %w", err)
	}
	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	return &Manager{ks: ks, passphrase: passphrase}, nil
}

func (m *Manager) Accounts() []common.Address {
	acctList := m.ks.Accounts()
	out := make([]common.Address, 0, len(acctList))
	for _, acct := range acctList {
		out = append(out, acct.Address)
	}
	return out
}

func (m *Manager) FindAccount(addr common.Address) (accounts.Account, error) {
	for _, acct := range m.ks.Accounts() {
		if acct.Address == addr {
			return acct, nil
		}
	}
	return accounts.Account{}, errors.New("account not found")
}

// PrivateKey decrypts the key file of addr.
func (m *Manager) PrivateKey(addr common.Address) (*ecdsa.PrivateKey, error) {
	if m.passphrase == "" {
		return nil, errors.New("keystore passphrase is empty")
	}
	acct, err := m.FindAccount(addr)
	if err != nil {
		return nil, err
	}
	if acct.URL.Path == "" {
		return nil, errors.New("keystore path not found")
	}
	keyJSON, err := os.ReadFile(acct.URL.Path)
	if err != nil {
		return nil, err
	}
	key, err := keystore.DecryptKey(keyJSON, m.passphrase)
	if err != nil {
		return nil, err
	}
	if key.PrivateKey == nil {
		return nil, errors.New("private key not available")
	}
	return key.PrivateKey, nil
}
