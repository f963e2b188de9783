package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jgfinder/internal/database"
	"jgfinder/internal/extensions"
	"jgfinder/internal/installer"
	"jgfinder/internal/logging"
	"jgfinder/internal/messages"
)

type cliEnv struct {
	dir        string
	pluginsDir string
	dbDir      string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	for _, key := range []string{"PLUGINS_DIR", "DATABASE_DIR", "HOST_VERSION", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return &cliEnv{dir: dir, pluginsDir: filepath.Join(dir, "plugins"), dbDir: filepath.Join(dir, "data")}
}

func (e *cliEnv) manifest(t *testing.T, version string, autoactivate bool) string {
	t.Helper()
	path := filepath.Join(e.dir, "pkg_"+version+".xml")
	m := &installer.Manifest{Type: "package", Name: "pkg_joomfinderplugin", Version: version, AutoActivate: autoactivate}
	require.NoError(t, installer.WriteManifest(path, m))
	return path
}

func (e *cliEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	args = append(args, "--plugins-dir", e.pluginsDir, "--database-dir", e.dbDir)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliEnv) enabled(t *testing.T, k extensions.Key) bool {
	t.Helper()
	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(e.dbDir, "jgfinder.db"))
	require.NoError(t, err)
	defer db.Close()
	enabled, err := extensions.NewRegistry(db).IsEnabled(ctx, k)
	require.NoError(t, err)
	return enabled
}

func TestInstallThenUpdate(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.execute(t, "install", "--manifest", e.manifest(t, "3.0.0", false), "--host-version", "4.4.0")
	require.NoError(t, err)
	assert.Equal(t, "[info] Smart search plugins for the gallery installed (version 3.0.0)\n", out)
	assert.False(t, e.enabled(t, extensions.FinderPlugin))

	out, err = e.execute(t, "update", "--manifest", e.manifest(t, "3.1.0", true), "--host-version", installer.BuggyHostVersion)
	require.NoError(t, err)
	assert.Contains(t, out, "[info] Smart search plugins for the gallery updated to 3.1.0\n")
	assert.Contains(t, out, "["+messages.TypeWarning+"] "+installer.MsgHostBugTitle)
	assert.NotContains(t, out, messages.TypeError)

	for _, k := range []extensions.Key{extensions.FinderPlugin, extensions.GalleryPlugin, extensions.SystemPlugin} {
		assert.True(t, e.enabled(t, k), k.Element)
	}
}

func TestUpdateWithoutInstalledPluginsReportsAndContinues(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.execute(t, "update", "--manifest", e.manifest(t, "0.9.0", false))
	require.NoError(t, err)
	assert.Contains(t, out, "[error] "+installer.MsgPluginMissing+"\n")
	assert.Contains(t, out, "[warning] "+installer.MsgPreviewTitle+": "+installer.MsgPreview+"\n")

	_, err = os.Stat(installer.ManifestPath(e.pluginsDir, extensions.SystemPlugin))
	assert.NoError(t, err)
}

func TestInstallRequiresManifest(t *testing.T) {
	e := newCLIEnv(t)

	_, err := e.execute(t, "install")
	assert.Error(t, err)

	_, err = e.execute(t, "install", "--manifest", filepath.Join(e.dir, "missing.xml"))
	assert.ErrorContains(t, err, "read package manifest")
}

func TestUninstall(t *testing.T) {
	e := newCLIEnv(t)
	out, err := e.execute(t, "uninstall")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLogLevelFromEnvironment(t *testing.T) {
	e := newCLIEnv(t)
	t.Setenv("LOG_LEVEL", "warn")
	t.Cleanup(func() { logging.Configure(os.Stdout, "", logging.LevelInfo) })

	_, err := e.execute(t, "uninstall")
	require.NoError(t, err)
	assert.Equal(t, logging.LevelWarn, logging.GetLevel())
}
