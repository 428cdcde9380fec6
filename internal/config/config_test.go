package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sorter/internal/common"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("SORTER_TEST_DIR", "/data")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/sorter.db", want: filepath.Join(home, "sorter.db")},
		{in: "$SORTER_TEST_DIR/sorter.db", want: "/data/sorter.db"},
		{in: "/abs/path.db", want: "/abs/path.db"},
		{in: ":memory:", want: ":memory:"},
		{in: "~other/sorter.db", want: "~other/sorter.db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func loadYAML(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadYAML(t, "")
	require.NoError(t, err)

	assert.Equal(t, ExpandPath(DefaultDatabasePath), cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.True(t, cfg.Reclassify.Checkpoint)
	assert.Positive(t, cfg.Reclassify.Workers)
}

func TestLoad_File(t *testing.T) {
	cfg, err := loadYAML(t, `
database:
  path: ":memory:"
logging:
  level: debug
  format: json
server:
  addr: "127.0.0.1:9000"
  cors_origins: ["http://localhost:5173"]
reclassify:
  workers: 2
  checkpoint: false
classifier:
  aliases:
    - pattern: '^ESSELUNGA\b'
      replacement: ESSELUNGA
      collapse: true
`)
	require.NoError(t, err)

	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2, cfg.Reclassify.Workers)
	assert.False(t, cfg.Reclassify.Checkpoint)
	require.Len(t, cfg.Classifier.Aliases, 1)

	n, err := cfg.Normalizer()
	require.NoError(t, err)
	assert.Equal(t, "ESSELUNGA", n.Normalize("Esselunga Via Roma 12"))
	assert.Equal(t, "AMAZON", n.Normalize("AMZN Mktp"), "built-in aliases still apply")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "level", yaml: "logging:\n  level: loud\n"},
		{name: "format", yaml: "logging:\n  format: xml\n"},
		{name: "workers", yaml: "reclassify:\n  workers: 0\n"},
		{name: "alias", yaml: "classifier:\n  aliases:\n    - pattern: '^X'\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadYAML(t, tt.yaml)
			require.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}

	cfg, err := loadYAML(t, "classifier:\n  aliases:\n    - pattern: '('\n      replacement: X\n")
	require.NoError(t, err)
	_, err = cfg.Normalizer()
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestSetup_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: /tmp/file.db\nreclassify:\n  workers: 2\n"), 0o600))
	t.Setenv("SORTER_RECLASSIFY_WORKERS", "3")

	v := viper.New()
	require.NoError(t, Setup(v, path))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/file.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.Reclassify.Workers, "environment beats the file")
}
