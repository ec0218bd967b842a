package nlu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppsDefaults(t *testing.T) {
	table, err := LoadApps("")
	require.NoError(t, err)
	assert.Equal(t, DefaultApps(), table)
}

func TestLoadAppsMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[apps.terminal]
command = "alacritty"
keyword = "alacritty"

[apps."Code"]
command = "code"
`), 0o644))

	table, err := LoadApps(path)
	require.NoError(t, err)

	assert.Equal(t, AppDescriptor{"alacritty", "alacritty"}, table["terminal"])
	assert.Equal(t, AppDescriptor{"code", "Code"}, table["code"])
	assert.Equal(t, AppDescriptor{"nemo", "home"}, table["files"])
}

func TestLoadAppsRejectsEmptyCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.toml")
	require.NoError(t, os.WriteFile(path, []byte("[apps.broken]\nkeyword = \"x\"\n"), 0o644))

	_, err := LoadApps(path)
	assert.Error(t, err)
}
