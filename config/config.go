package config

import (
	"errors"
	"fmt"
	"time"
)

// Backend selects the codec runtime.
type Backend string

const (
	BackendNative Backend = "native"
	BackendVips   Backend = "vips"
)

// StoreKind selects where assembled outputs are kept.
type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreLocal  StoreKind = "local"
)

// Config is the top-level configuration struct.  Default returns usable values
// for every field; Load additionally reads IMGCONV_* environment variables.
type Config struct {
	Backend Backend `env:"BACKEND" envDefault:"native"`

	// Quality used when a target does not carry one.  0-100.
	DefaultQuality int  `env:"DEFAULT_QUALITY" envDefault:"90"`
	StripMetadata  bool `env:"STRIP_METADATA" envDefault:"true"`

	// WebPLossless makes webp targets lossless; quality then trades effort for size.
	WebPLossless bool `env:"WEBP_LOSSLESS" envDefault:"false"`

	// Interlace requests progressive jpeg and interlaced png where the backend supports it.
	Interlace bool `env:"INTERLACE" envDefault:"false"`

	// Input limits.
	MaxInputBytes int64 `env:"MAX_INPUT_BYTES" envDefault:"0"` // 0 = no limit
	ChunkSize     int   `env:"CHUNK_SIZE" envDefault:"32768"`

	// Upper bound on a single runtime initialisation attempt; 0 = none.
	InitTimeout time.Duration `env:"INIT_TIMEOUT" envDefault:"30s"`

	Store  StoreKind    `env:"STORE" envDefault:"memory"`
	Memory MemoryConfig `envPrefix:"MEMORY_"`
	Local  LocalConfig  `envPrefix:"LOCAL_"`

	Native NativeConfig `envPrefix:"NATIVE_"`
	Vips   VipsConfig   `envPrefix:"VIPS_"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`      // debug, info, warn, error
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"` // console, json
}

// MemoryConfig configures the in-memory output store.
type MemoryConfig struct {
	MaxBytes int64 `env:"MAX_BYTES" envDefault:"0"` // 0 = unbounded
}

// LocalConfig configures the filesystem output store.
type LocalConfig struct {
	RootDir     string `env:"ROOT_DIR" envDefault:"./converted"`
	Permissions uint32 `env:"PERMISSIONS" envDefault:"420"` // 0644
}

// NativeConfig tunes the pure-Go runtime.
type NativeConfig struct {
	PNGCompression int  `env:"PNG_COMPRESSION" envDefault:"0"` // png.CompressionLevel, 0 = default
	WebPMethod     int  `env:"WEBP_METHOD" envDefault:"4"`     // 0 (fast) - 6 (slower, smaller)
	FlattenAlpha   bool `env:"FLATTEN_ALPHA" envDefault:"true"`
}

// VipsConfig tunes the libvips runtime.
type VipsConfig struct {
	Concurrency  int  `env:"CONCURRENCY" envDefault:"0"` // 0 = NumCPU
	MaxCacheSize int  `env:"MAX_CACHE_SIZE" envDefault:"0"`
	ReportLeaks  bool `env:"REPORT_LEAKS" envDefault:"false"`
}

// Default returns a Config populated with the same values Load uses when no
// environment variables are set.
func Default() Config {
	return Config{
		Backend:        BackendNative,
		DefaultQuality: 90,
		StripMetadata:  true,
		ChunkSize:      32 * 1024,
		InitTimeout:    30 * time.Second,
		Store:          StoreMemory,
		Local: LocalConfig{
			RootDir:     "./converted",
			Permissions: 0o644,
		},
		Native: NativeConfig{
			WebPMethod:   4,
			FlattenAlpha: true,
		},
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.DefaultQuality < 0 || c.DefaultQuality > 100 {
		return errors.New("config: DefaultQuality must be between 0 and 100")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	if c.MaxInputBytes < 0 {
		return errors.New("config: MaxInputBytes must not be negative")
	}
	switch c.Backend {
	case BackendNative, BackendVips:
	default:
		return fmt.Errorf("config: unknown Backend %q", c.Backend)
	}
	switch c.Store {
	case StoreMemory:
	case StoreLocal:
		if c.Local.RootDir == "" {
			return errors.New("config: Local.RootDir is required for the local store")
		}
	default:
		return fmt.Errorf("config: unknown Store %q", c.Store)
	}
	if c.Native.WebPMethod < 0 || c.Native.WebPMethod > 6 {
		return errors.New("config: Native.WebPMethod must be between 0 and 6")
	}
	if c.Native.PNGCompression < -3 || c.Native.PNGCompression > 0 {
		return errors.New("config: Native.PNGCompression must be a png.CompressionLevel (-3..0)")
	}
	return nil
}
