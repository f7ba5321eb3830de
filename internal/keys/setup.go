package keys

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"ethhelper/internal/txbuilder"
)

type NodeAccounts interface {
	Accounts(ctx context.Context) ([]common.Address, error)
}

// Source says where the sending account comes from. KeyJSON wins over
// KeystoreDir; with neither the node's own account at Index is used.
type Source struct {
	KeyJSON     string
	KeystoreDir string
	Passphrase  string
	Index       int
}

// SetupSendingAccount resolves the sender. The returned key is nil when the
// node signs.
func SetupSendingAccount(ctx context.Context, src Source, node NodeAccounts, logger *slog.Logger) (common.Address, *ecdsa.PrivateKey, error) {
	if logger == nil {
		logger = slog.Default()
	}
	addr, key, err := resolveAccount(ctx, src, node)
	if err != nil {
		return common.Address{}, nil, err
	}
	if key != nil {
		if derived := crypto.PubkeyToAddress(key.PublicKey); derived != addr {
			return common.Address{}, nil, &txbuilder.KeyMismatchError{Expected: addr, Derived: derived}
		}
	}
	logger.Info("sending account", "address", addr.Hex(), "local_key", key != nil)
	return addr, key, nil
}

func resolveAccount(ctx context.Context, src Source, node NodeAccounts) (common.Address, *ecdsa.PrivateKey, error) {
	switch {
	case src.KeyJSON != "":
		return LoadAccountCredentials(src.KeyJSON, src.Index)
	case src.KeystoreDir != "":
		m, err := NewManager(src.KeystoreDir, src.Passphrase)
		if err != nil {
			return common.Address{}, nil, err
		}
		accts := m.Accounts()
		if src.Index < 0 || src.Index >= len(accts) {
			return common.Address{}, nil, fmt.Errorf("cannot find keystore account at index %d", src.Index)
		}
		key, err := m.PrivateKey(accts[src.Index])
		if err != nil {
			return common.Address{}, nil, err
		}
		return accts[src.Index], key, nil
	default:
		accts, err := node.Accounts(ctx)
		if err != nil {
			return common.Address{}, nil, err
		}
		if src.Index < 0 || src.Index >= len(accts) {
			return common.Address{}, nil, fmt.Errorf("node has no account at index %d", src.Index)
		}
		return accts[src.Index], nil, nil
	}
}
