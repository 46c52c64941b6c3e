package phpruntime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/envcheck/pkg/check"
)

var _ check.Runtime = (*Snapshot)(nil)

const fixture = `{
  "version": "7.4.3-4ubuntu2.19",
  "extensions": ["Core", "json", "PDO", "gd", "curl"],
  "functions": ["curl_init", "curl_version", "session_save_path", "gd_info"],
  "ini": {"memory_limit": "128M", "file_uploads": "1", "open_basedir": null},
  "constants": {"LIBXML_DOTTED_VERSION": "2.9.10", "PHP_OS": "Linux"},
  "info": "PHP Version => 7.4.3",
  "gd": {"GD Version": "2.2.5", "JPEG Support": "1", "FreeType Support": ""},
  "curl": "7.68.0",
  "session_save_path": "/var/lib/php/sessions",
  "include_path_extendable": true
}`

func TestDecode(t *testing.T) {
	snap, err := Decode([]byte(fixture))
	require.NoError(t, err)

	assert.Equal(t, "7.4.3-4ubuntu2.19", snap.Version())
	assert.True(t, snap.ExtensionLoaded("pdo"))
	assert.True(t, snap.ExtensionLoaded("JSON"))
	assert.False(t, snap.ExtensionLoaded("zip"))
	assert.True(t, snap.FunctionExists("CURL_INIT"))
	assert.False(t, snap.FunctionExists("get_magic_quotes_gpc"))

	v, ok := snap.Setting("memory_limit")
	assert.True(t, ok)
	assert.Equal(t, "128M", v)

	v, ok = snap.Setting("open_basedir")
	assert.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = snap.Setting("safe_mode")
	assert.False(t, ok)

	c, ok := snap.Constant("LIBXML_DOTTED_VERSION")
	assert.True(t, ok)
	assert.Equal(t, "2.9.10", c)

	gd, ok := snap.GDInfo()
	assert.True(t, ok)
	assert.Equal(t, "2.2.5", gd["GD Version"])

	curl, ok := snap.CurlVersion()
	assert.True(t, ok)
	assert.Equal(t, "7.68.0", curl)

	assert.Equal(t, "/var/lib/php/sessions", snap.SessionSavePath())
	assert.True(t, snap.IncludePathExtendable())
	assert.Contains(t, snap.Info(), "PHP Version")
}

func TestDecodeMissingOptionalParts(t *testing.T) {
	snap, err := Decode([]byte(`{"version": "8.2.0", "gd": null, "curl": null, "session_save_path": null}`))
	require.NoError(t, err)

	_, ok := snap.GDInfo()
	assert.False(t, ok)
	_, ok = snap.CurlVersion()
	assert.False(t, ok)
	assert.Equal(t, "", snap.SessionSavePath())
	assert.False(t, snap.IncludePathExtendable())
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("PHP Warning: something broke"))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"extensions": []}`))
	assert.ErrorContains(t, err, "missing version")
}

func TestDiskFreeSpace(t *testing.T) {
	snap := &Snapshot{DiskPath: "/data"}
	var measured string
	snap.diskFree = func(path string) (float64, error) {
		measured = path
		return 2048, nil
	}

	free, ok := snap.DiskFreeSpace()
	assert.True(t, ok)
	assert.Equal(t, float64(2048), free)
	assert.Equal(t, "/data", measured)

	snap.diskFree = func(string) (float64, error) { return 0, errors.New("no such device") }
	_, ok = snap.DiskFreeSpace()
	assert.False(t, ok)
}

func TestFreeSpaceOnTempDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("free space is not measured on windows")
	}
	free, err := freeSpace(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, free)
}

func writeFakePHP(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a unix shell")
	}
	path := filepath.Join(t.TempDir(), "php")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestCollect(t *testing.T) {
	bin := writeFakePHP(t, "cat > /dev/null\ncat <<'JSON'\n"+fixture+"\nJSON\n")

	snap, err := Collect(context.Background(), Options{Binary: bin, DiskPath: "/srv"})
	require.NoError(t, err)
	assert.Equal(t, "7.4.3-4ubuntu2.19", snap.Version())
	assert.Equal(t, "/srv", snap.DiskPath)
}

func TestCollectFailure(t *testing.T) {
	bin := writeFakePHP(t, "echo 'fatal: broken install' >&2\nexit 255\n")

	_, err := Collect(context.Background(), Options{Binary: bin})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken install")
}

func TestCollectMissingBinary(t *testing.T) {
	_, err := Collect(context.Background(), Options{Binary: filepath.Join(t.TempDir(), "nope")})
	assert.ErrorContains(t, err, "locate php binary")
}
