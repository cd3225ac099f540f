package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIni = `
[Default]
debug = true
console = false
fb_width = 640
fb_height = 480
driver_timeout = 250ms
max_list = 65536

[Drivers]
home = /home/user
tmp = /tmp
`

func TestNewConfigFromIni(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "kvfs.ini")
	require.NoError(t, os.WriteFile(file, []byte(testIni), 0644))

	cfg := NewConfigFromArgs([]string{filepath.Join(dir, "missing.ini"), file}, []string{})

	assert.True(t, cfg.Debug)
	assert.False(t, cfg.Console)
	assert.Equal(t, 640, cfg.FbWidth)
	assert.Equal(t, 480, cfg.FbHeight)
	assert.Equal(t, 250*time.Millisecond, cfg.DriverTimeout)
	assert.Equal(t, 4096, cfg.ListBuffer)
	assert.Equal(t, 65536, cfg.MaxList)
	assert.Equal(t, map[string]string{"home": "/home/user", "tmp": "/tmp"}, cfg.Drivers)
}

func TestFlagsOverrideIni(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "kvfs.ini")
	require.NoError(t, os.WriteFile(file, []byte(testIni), 0644))

	cfg := NewConfigFromArgs([]string{file}, []string{"--debug=false", "--driver_timeout=0", "--stats_addr="})

	assert.False(t, cfg.Debug)
	assert.Zero(t, cfg.DriverTimeout)
	assert.Empty(t, cfg.StatsAddr)
}

func TestDefaults(t *testing.T) {
	cfg := NewConfigFromArgs(nil, []string{})

	assert.True(t, cfg.Console)
	assert.Equal(t, 5*time.Second, cfg.DriverTimeout)
	assert.Empty(t, cfg.Drivers)
	assert.Zero(t, cfg.FbWidth)
}
