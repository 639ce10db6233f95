package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
jobs:
  - https://rezka.ag/films/fiction/981-matrica-1999.html
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "./films", cfg.Download.OutDir)
	assert.Equal(t, DefaultQuality, cfg.Download.Quality)
	assert.Equal(t, DefaultBandwidthMB, cfg.Download.BandwidthMB)
	assert.Equal(t, ".mp4", cfg.Download.Extension)
	assert.Equal(t, 35*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 60*time.Second, cfg.Browser.CaptureTimeout)
	assert.Equal(t, "pljsquality", cfg.Browser.QualityKey)
	assert.True(t, cfg.Browser.Headless)
	assert.Len(t, cfg.Jobs, 1)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
download:
  out_dir: /data/films
  quality: 720p
  bandwidth_mb: 7
  extension: mkv
browser:
  capture_timeout: 90s
jobs:
  - https://a.example/1.html
  - https://a.example/2.html
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/data/films", cfg.Download.OutDir)
	assert.Equal(t, "720p", cfg.Download.Quality)
	assert.Equal(t, int64(7*1024*1024), cfg.Download.BandwidthBytes())
	assert.Equal(t, ".mkv", cfg.Download.Extension)
	assert.Equal(t, 90*time.Second, cfg.Browser.CaptureTimeout)
	assert.Equal(t, []string{"https://a.example/1.html", "https://a.example/2.html"}, cfg.Jobs)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "jobs: [\"https://a.example/1.html\"]\n")
	t.Setenv("STREAMGRAB_DOWNLOAD_QUALITY", "480p")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "480p", cfg.Download.Quality)
}

func TestLoad_RequiresJobs(t *testing.T) {
	path := writeConfig(t, "download:\n  quality: 720p\n")

	_, err := Load(path)

	assert.ErrorContains(t, err, "jobs")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.ErrorContains(t, err, "config file not found")
}

func TestApplyArgs(t *testing.T) {
	cfg := &Config{Download: DownloadConfig{Quality: DefaultQuality, BandwidthMB: DefaultBandwidthMB}}

	require.NoError(t, cfg.ApplyArgs(nil))
	assert.Equal(t, DefaultQuality, cfg.Download.Quality)

	require.NoError(t, cfg.ApplyArgs([]string{"720p"}))
	assert.Equal(t, "720p", cfg.Download.Quality)
	assert.Equal(t, DefaultBandwidthMB, cfg.Download.BandwidthMB)

	require.NoError(t, cfg.ApplyArgs([]string{"4K", "2.5"}))
	assert.Equal(t, "4K", cfg.Download.Quality)
	assert.Equal(t, 2.5, cfg.Download.BandwidthMB)

	require.NoError(t, cfg.ApplyArgs([]string{"4K", "0"}))
	assert.Zero(t, cfg.Download.BandwidthBytes())

	for _, bad := range []string{"fast", "-1", "NaN", "Inf", "-Inf", "+Inf", "0.0000001", "1e300"} {
		cfg.Download.BandwidthMB = 3
		assert.Error(t, cfg.ApplyArgs([]string{"720p", bad}), bad)
		assert.Equal(t, 3.0, cfg.Download.BandwidthMB, "%s must not replace the cap", bad)
	}
}

func TestLoad_RejectsUnusableBandwidth(t *testing.T) {
	for _, bad := range []string{"-2", ".nan", ".inf", "0.0000001"} {
		path := writeConfig(t, "download:\n  bandwidth_mb: "+bad+"\njobs:\n  - https://a.example/1.html\n")

		_, err := Load(path)

		assert.ErrorContains(t, err, "download.bandwidth_mb", bad)
	}
}

func TestLoad_RejectsUnusableBandwidthFromEnv(t *testing.T) {
	path := writeConfig(t, "jobs: [\"https://a.example/1.html\"]\n")
	t.Setenv("STREAMGRAB_DOWNLOAD_BANDWIDTH_MB", "NaN")

	_, err := Load(path)

	assert.ErrorContains(t, err, "download.bandwidth_mb")
}
