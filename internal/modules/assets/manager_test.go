package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAsset(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func setupAssets(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeAsset(t, root, "ETFs/core.yml", "tickers:\n  - SPY\n  - AGG\n")
	writeAsset(t, root, "ETFs/extra.yml", "tickers: [GLD, SPY]\n")
	writeAsset(t, root, "ETFs/broken.yml", "tickers: [unterminated\n")
	writeAsset(t, root, "ETFs/readme.txt", "tickers: [IGNORED]\n")
	writeAsset(t, root, "Stocks/tech.yml", "tickers:\n  - AAPL\n  - MSFT\n")
	writeAsset(t, root, "Stocks/empty.yml", "name: nothing here\n")
	return root
}

func TestLoadTickers(t *testing.T) {
	m := NewManager(setupAssets(t), zerolog.Nop())

	etfs, err := m.LoadTickers("ETFs")
	require.NoError(t, err)
	assert.Equal(t, []string{"AGG", "GLD", "SPY"}, etfs)

	all, err := m.LoadTickers("")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "AGG", "GLD", "MSFT", "SPY"}, all)
}

func TestLoadTickers_UnknownCategory(t *testing.T) {
	m := NewManager(setupAssets(t), zerolog.Nop())

	_, err := m.LoadTickers("Bonds")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = m.LoadTickers("../etc")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestDiscover(t *testing.T) {
	m := NewManager(setupAssets(t), zerolog.Nop())

	got, err := m.Discover()
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"ETFs":   {"AGG", "GLD", "SPY"},
		"Stocks": {"AAPL", "MSFT"},
	}, got)
}

func TestDiscover_MissingDirectory(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing"), zerolog.Nop())

	got, err := m.Discover()
	require.NoError(t, err)
	assert.Empty(t, got)

	all, err := m.LoadTickers("")
	require.NoError(t, err)
	assert.Empty(t, all)
}
