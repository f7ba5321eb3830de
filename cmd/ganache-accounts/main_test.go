package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksumCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "keys.json")
	out := filepath.Join(dir, "keys.checksum.json")
	addr := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	body := `{"addresses": {"` + addr + `": "` + addr + `"}, "private_keys": {"` + addr + `": "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"}}`
	require.NoError(t, os.WriteFile(in, []byte(body), 0o600))

	app := newApp()
	app.ErrWriter = io.Discard
	require.NoError(t, app.Run([]string{"ganache-accounts", "checksum", "-i", in, "-o", out}))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, 3, strings.Count(string(b), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	require.NotContains(t, string(b), addr)

	app = newApp()
	app.ErrWriter = io.Discard
	require.Error(t, app.Run([]string{"ganache-accounts", "checksum", "-i", in}))
}
