package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumsystem/nft-bbs-sub001/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groups.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[node]
api_base = "https://node.example.org"
wake_socket = "wss://node.example.org/ws"

[[groups]]
id = "g1"
name = "Main group"
main = "feed-main"
comment = "feed-comment"

[[groups]]
id = "g2"
main = "feed-solo"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://node.example.org", cfg.Node.APIBase)
	assert.Equal(t, "wss://node.example.org/ws", cfg.Node.WakeSocket)
	require.Len(t, cfg.Groups, 2)

	g1 := cfg.Groups[0]
	assert.Equal(t, "feed-main", g1.MainEndpoint)
	assert.Equal(t, "feed-comment", g1.CommentEndpoint)
	// Roles without a dedicated endpoint fall back to the main feed
	assert.Equal(t, "feed-main", g1.CounterEndpoint)
	assert.Equal(t, "feed-main", g1.ProfileEndpoint)

	g2 := cfg.Groups[1]
	assert.Equal(t, "feed-solo", g2.CommentEndpoint)
	assert.Equal(t, "feed-solo", g2.CounterEndpoint)
	assert.Equal(t, "feed-solo", g2.ProfileEndpoint)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing node",
			content: `
[[groups]]
id = "g1"
main = "feed-main"
`,
		},
		{
			name: "no groups",
			content: `
[node]
api_base = "https://node.example.org"
`,
		},
		{
			name: "group without id",
			content: `
[node]
api_base = "https://node.example.org"

[[groups]]
main = "feed-main"
`,
		},
		{
			name: "group without main endpoint",
			content: `
[node]
api_base = "https://node.example.org"

[[groups]]
id = "g1"
`,
		},
		{
			name: "duplicate group ids",
			content: `
[node]
api_base = "https://node.example.org"

[[groups]]
id = "g1"
main = "feed-a"

[[groups]]
id = "g1"
main = "feed-b"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
