package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/nycingest/configs"
	"github.com/Aman-CERP/nycingest/internal/config"
)

func TestConfigCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	configCmd, _, err := cmd.Find([]string{"config"})
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, sc := range configCmd.Commands() {
		names[sc.Name()] = true
	}
	assert.True(t, names["init"])
	assert.True(t, names["show"])
	assert.True(t, names["path"])
}

func TestConfigPathCmd_OutputsPath(t *testing.T) {
	// Given: isolated environment
	testEnv(t)

	// When: running config path
	stdout, _, err := executeCmd(t, "config", "path")

	// Then: the XDG user config path is printed
	require.NoError(t, err)
	assert.Equal(t, config.GetUserConfigPath()+"\n", stdout)
	assert.Contains(t, stdout, filepath.Join("nycingest", "config.yaml"))
}

func TestConfigInitCmd_NewFile(t *testing.T) {
	// Given: no user config
	testEnv(t)

	// When: running config init
	stdout, _, err := executeCmd(t, "config", "init")

	// Then: the template is written
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created")
	data, err := os.ReadFile(config.GetUserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, configs.ConfigTemplate, string(data))
}

func TestConfigInitCmd_AlreadyExists(t *testing.T) {
	// Given: an existing user config
	testEnv(t)
	path := config.GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("index:\n  name: mine\n"), 0644))

	// When: running config init without --force
	stdout, _, err := executeCmd(t, "config", "init")

	// Then: it warns and leaves the file alone
	require.NoError(t, err)
	assert.Contains(t, stdout, "already exists")
	assert.Contains(t, stdout, "--force")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "index:\n  name: mine\n", string(data))
}

func TestConfigInitCmd_ForceBacksUp(t *testing.T) {
	// Given: an existing user config
	testEnv(t)
	path := config.GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("index:\n  name: mine\n"), 0644))

	// When: running config init --force
	stdout, _, err := executeCmd(t, "config", "init", "--force")

	// Then: the old file is backed up and replaced
	require.NoError(t, err)
	assert.Contains(t, stdout, "Backup:")
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	old, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "index:\n  name: mine\n", string(old))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, configs.ConfigTemplate, string(data))
}

func TestConfigShowCmd_MergedMasksAppKey(t *testing.T) {
	// Given: an app key and an index override in the environment
	testEnv(t)
	t.Setenv("APP_KEY", "super-secret")
	t.Setenv(config.EnvIndexName, "from-env")

	// When: showing merged config as JSON
	stdout, _, err := executeCmd(t, "config", "show", "--json")

	// Then: overrides are visible and the key is not
	require.NoError(t, err)
	assert.NotContains(t, stdout, "super-secret")
	var shown map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &shown))
	assert.Equal(t, "from-env", shown["index"]["name"])
}

func TestConfigShowCmd_YAMLMasksAppKey(t *testing.T) {
	testEnv(t)
	t.Setenv("APP_KEY", "super-secret")

	stdout, _, err := executeCmd(t, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, stdout, "merged")
	assert.Contains(t, stdout, "********")
	assert.NotContains(t, stdout, "super-secret")
}

func TestConfigShowCmd_Sources(t *testing.T) {
	// Given: only a project config
	dir := testEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ProjectFileName),
		[]byte("index:\n  name: project-index\n"), 0644))

	// When/Then: each source shows what it holds
	stdout, _, err := executeCmd(t, "config", "show", "--source", "project")
	require.NoError(t, err)
	assert.Contains(t, stdout, "name: project-index")

	stdout, _, err = executeCmd(t, "config", "show", "--source", "user")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No user configuration file found")

	stdout, _, err = executeCmd(t, "config", "show", "--source", "defaults")
	require.NoError(t, err)
	assert.Contains(t, stdout, "name: nycproject")

	_, _, err = executeCmd(t, "config", "show", "--source", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid source")
}
