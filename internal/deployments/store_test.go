package deployments

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestStoreMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "none.json"))
	recs, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, recs)
	_, ok := s.Latest("Counter")
	require.False(t, ok)
}

func TestStoreAppendAndLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deployments.json")
	s := New(path)
	_, err := s.Load()
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := Record{Contract: "Counter", Address: common.HexToAddress("0x01"), Block: 3, DeployedAt: at}
	other := Record{Contract: "Token", Address: common.HexToAddress("0x02"), Block: 4, DeployedAt: at}
	second := Record{Contract: "Counter", Address: common.HexToAddress("0x03"), Block: 5, Release: "v1.0.0", DeployedAt: at}
	for _, r := range []Record{first, other, second} {
		require.NoError(t, s.Append(r))
	}

	got, ok := s.Latest("Counter")
	require.True(t, ok)
	require.Equal(t, second, got)

	reloaded := New(path)
	recs, err := reloaded.Load()
	require.NoError(t, err)
	require.Equal(t, []Record{first, other, second}, recs)
	got, ok = reloaded.Latest("Token")
	require.True(t, ok)
	require.Equal(t, other.Address, got.Address)

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployments.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := New(path).Load()
	require.Error(t, err)
}
