package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/appdata/api"
	"github.com/agentic-research/appdata/internal/config"
)

// runCLI executes a fresh root command and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// writeTestConfig writes a disk-backed config into a temp dir.
func writeTestConfig(t *testing.T, mutate func(*config.Config)) (path, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.InstanceID = "abc123"
	cfg.DataDir = filepath.Join(dir, "data")
	if mutate != nil {
		mutate(cfg)
	}
	path = filepath.Join(dir, "appdata.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path, cfg.DataDir
}

func TestInit_WritesInstanceID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appdata.yaml")

	out, err := runCLI(t, "init", "--config", path, "--backend", "sqlite")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	assert.Regexp(t, `^oc[0-9a-f]{10}$`, id)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, id, cfg.InstanceID)
	assert.Equal(t, config.BackendSQLite, cfg.Backend)

	_, err = runCLI(t, "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	out, err = runCLI(t, "init", "--config", path, "--force")
	require.NoError(t, err)
	assert.NotEqual(t, id, strings.TrimSpace(out))
}

func TestGet_CreatesAppFolderOnDisk(t *testing.T) {
	cfgPath, dataDir := writeTestConfig(t, nil)

	out, err := runCLI(t, "get", "contacts", "--config", cfgPath, "--json")
	require.NoError(t, err)

	var info api.FolderInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "contacts", info.AppID)
	assert.Equal(t, "appdata_abc123/contacts", info.Path)

	st, err := os.Stat(filepath.Join(dataDir, "appdata_abc123", "contacts"))
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestNewThenLs(t *testing.T) {
	cfgPath, _ := writeTestConfig(t, nil)

	for _, name := range []string{"exports", "avatars"} {
		_, err := runCLI(t, "new", "contacts", name, "--config", cfgPath)
		require.NoError(t, err)
	}

	out, err := runCLI(t, "ls", "contacts", "--config", cfgPath, "--json")
	require.NoError(t, err)
	var infos []api.FolderInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "avatars", infos[0].Name, "disk listings are ordered by name")
	assert.Equal(t, "exports", infos[1].Name)

	out, err = runCLI(t, "ls", "contacts", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "appdata_abc123/contacts/avatars")
}

func TestGet_MissingFolder(t *testing.T) {
	cfgPath, _ := writeTestConfig(t, nil)

	_, err := runCLI(t, "get", "contacts", "avatars", "--config", cfgPath)
	assert.ErrorContains(t, err, "not found")
}

func TestID_StableAcrossInvocations(t *testing.T) {
	cfgPath, _ := writeTestConfig(t, func(c *config.Config) { c.Backend = config.BackendSQLite })

	first, err := runCLI(t, "id", "contacts", "--config", cfgPath)
	require.NoError(t, err)
	second, err := runCLI(t, "id", "contacts", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, strings.TrimSpace(first))
}

func TestCustomRootRedirection(t *testing.T) {
	customDir := filepath.Join(t.TempDir(), "custom")
	cfgPath, dataDir := writeTestConfig(t, func(c *config.Config) { c.AppDataRoot = customDir })

	out, err := runCLI(t, "get", "contacts", "--config", cfgPath, "--json")
	require.NoError(t, err)
	var info api.FolderInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "appdataroot/appdata_abc123/contacts", info.Path)

	_, err = os.Stat(filepath.Join(customDir, "appdata_abc123", "contacts"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dataDir, "appdata_abc123"))
	assert.True(t, os.IsNotExist(err), "default root stays untouched")
}

func TestMissingInstanceID(t *testing.T) {
	cfgPath, _ := writeTestConfig(t, func(c *config.Config) { c.InstanceID = "" })

	_, err := runCLI(t, "get", "contacts", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "appdata init")
}

func TestExportsRegistry(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	live := &ExportMetadata{PID: os.Getpid(), InstanceID: "abc123", Port: 2049, Started: time.Now()}
	_, err := saveExport(live)
	require.NoError(t, err)

	// PIDs are bounded well below this on Linux and macOS.
	dead := &ExportMetadata{PID: 1 << 30, InstanceID: "abc123", Port: 2050, Started: time.Now()}
	deadPath, err := saveExport(dead)
	require.NoError(t, err)

	exports, err := listExports()
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, 2049, exports[0].Port)

	_, err = os.Stat(deadPath)
	assert.True(t, os.IsNotExist(err), "stale sidecars are removed")

	cfgPath, _ := writeTestConfig(t, nil)
	out, err := runCLI(t, "exports", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "port 2049")
}
