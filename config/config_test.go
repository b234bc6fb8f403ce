package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Skryldev/image-converter/config"
)

func TestLoadWithEnv_Defaults(t *testing.T) {
	cfg, err := config.LoadWithEnv(map[string]string{})
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	cfg, err := config.LoadWithEnv(map[string]string{
		"IMGCONV_BACKEND":              "vips",
		"IMGCONV_DEFAULT_QUALITY":      "75",
		"IMGCONV_MAX_INPUT_BYTES":      "1048576",
		"IMGCONV_INIT_TIMEOUT":         "5s",
		"IMGCONV_STORE":                "local",
		"IMGCONV_LOCAL_ROOT_DIR":       "/tmp/out",
		"IMGCONV_MEMORY_MAX_BYTES":     "4096",
		"IMGCONV_NATIVE_WEBP_METHOD":   "6",
		"IMGCONV_NATIVE_FLATTEN_ALPHA": "false",
		"IMGCONV_VIPS_CONCURRENCY":     "2",
		"IMGCONV_LOG_FORMAT":           "json",
		"IMGCONV_WEBP_LOSSLESS":        "true",
		"IMGCONV_INTERLACE":            "true",
	})
	require.NoError(t, err)
	require.Equal(t, config.BackendVips, cfg.Backend)
	require.Equal(t, 75, cfg.DefaultQuality)
	require.Equal(t, int64(1<<20), cfg.MaxInputBytes)
	require.Equal(t, 5*time.Second, cfg.InitTimeout)
	require.Equal(t, config.StoreLocal, cfg.Store)
	require.Equal(t, "/tmp/out", cfg.Local.RootDir)
	require.Equal(t, int64(4096), cfg.Memory.MaxBytes)
	require.Equal(t, 6, cfg.Native.WebPMethod)
	require.False(t, cfg.Native.FlattenAlpha)
	require.Equal(t, 2, cfg.Vips.Concurrency)
	require.Equal(t, "json", cfg.LogFormat)
	require.True(t, cfg.WebPLossless)
	require.True(t, cfg.Interlace)
}

func TestLoadWithEnv_Invalid(t *testing.T) {
	_, err := config.LoadWithEnv(map[string]string{"IMGCONV_DEFAULT_QUALITY": "150"})
	require.Error(t, err)

	_, err = config.LoadWithEnv(map[string]string{"IMGCONV_CHUNK_SIZE": "many"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"quality", func(c *config.Config) { c.DefaultQuality = -1 }},
		{"chunk", func(c *config.Config) { c.ChunkSize = 0 }},
		{"max input", func(c *config.Config) { c.MaxInputBytes = -5 }},
		{"backend", func(c *config.Config) { c.Backend = "magick" }},
		{"store", func(c *config.Config) { c.Store = "s3" }},
		{"local root", func(c *config.Config) { c.Store = config.StoreLocal; c.Local.RootDir = "" }},
		{"webp method", func(c *config.Config) { c.Native.WebPMethod = 7 }},
		{"png compression", func(c *config.Config) { c.Native.PNGCompression = 9 }},
	}
	require.NoError(t, config.Validate(config.Default()))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			require.Error(t, config.Validate(cfg))
		})
	}
}
