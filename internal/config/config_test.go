package config

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered at their
// defaults and parses args into it.
func newFlagBinder(t *testing.T, defaults Config, args ...string) *fakeBinder {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return &fakeBinder{fs: fs}
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Kernel.BlockSize != 1024 {
		t.Errorf("Kernel.BlockSize = %d; want 1024", cfg.Kernel.BlockSize)
	}

	if cfg.Kernel.Workers != runtime.NumCPU() {
		t.Errorf("Kernel.Workers = %d; want %d", cfg.Kernel.Workers, runtime.NumCPU())
	}

	if cfg.Bench.MinExp != 12 || cfg.Bench.MaxExp != 27 {
		t.Errorf("Bench exponents = [%d, %d]; want [12, 27]", cfg.Bench.MinExp, cfg.Bench.MaxExp)
	}

	if !reflect.DeepEqual(cfg.Bench.Providers, []string{"kernel", "reference"}) {
		t.Errorf("Bench.Providers = %v; want [kernel reference]", cfg.Bench.Providers)
	}

	if cfg.Bench.Warmup != 25*time.Millisecond || cfg.Bench.Rep != 100*time.Millisecond {
		t.Errorf("Bench budgets = %v/%v; want 25ms/100ms", cfg.Bench.Warmup, cfg.Bench.Rep)
	}

	if cfg.Bench.Format != "table" {
		t.Errorf("Bench.Format = %q; want %q", cfg.Bench.Format, "table")
	}

	if cfg.Bench.FlushCache != 64<<20 {
		t.Errorf("Bench.FlushCache = %d; want %d", cfg.Bench.FlushCache, 64<<20)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"kernel-block-size", "1024"},
		{"block-size", "1024"},
		{"bench-min-exp", "12"},
		{"bench-max-exp", "27"},
		{"bench-providers", "[kernel,reference]"},
		{"bench-warmup", "25ms"},
		{"bench-rep", "100ms"},
		{"bench-dtype", "float32"},
		{"seed", "0"},
		{"save-path", ""},
		{"bench-session-log", "benchmark_logs"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !reflect.DeepEqual(cfg, defaults) {
		t.Errorf("Load() = %+v; want %+v", cfg, defaults)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(t, defaults,
		"--block-size=256",
		"--bench-max-exp=16",
		"--bench-providers=kernel",
		"--bench-rep=1s",
		"--dtype=float64",
		"--seed=7",
	)

	cfg, err := Load(LoadOptions{
		Cmd:      binder,
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Kernel.BlockSize != 256 {
		t.Errorf("Kernel.BlockSize = %d; want 256", cfg.Kernel.BlockSize)
	}

	if cfg.Bench.MaxExp != 16 {
		t.Errorf("Bench.MaxExp = %d; want 16", cfg.Bench.MaxExp)
	}

	if !reflect.DeepEqual(cfg.Bench.Providers, []string{"kernel"}) {
		t.Errorf("Bench.Providers = %v; want [kernel]", cfg.Bench.Providers)
	}

	if cfg.Bench.Rep != time.Second {
		t.Errorf("Bench.Rep = %v; want 1s", cfg.Bench.Rep)
	}

	if cfg.Bench.DType != "float64" {
		t.Errorf("Bench.DType = %q; want %q", cfg.Bench.DType, "float64")
	}

	if cfg.Bench.Seed != 7 {
		t.Errorf("Bench.Seed = %d; want 7", cfg.Bench.Seed)
	}
}

func TestLoad_CanonicalFlagBeatsUnsetAlias(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(t, defaults, "--bench-save-path=out")

	cfg, err := Load(LoadOptions{
		Cmd:      binder,
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bench.SavePath != "out" {
		t.Errorf("Bench.SavePath = %q; want %q", cfg.Bench.SavePath, "out")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("VECADD_KERNEL_BLOCK_SIZE", "64")
	t.Setenv("VECADD_BENCH_FORMAT", "json")

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Kernel.BlockSize != 64 {
		t.Errorf("Kernel.BlockSize = %d; want 64", cfg.Kernel.BlockSize)
	}

	if cfg.Bench.Format != "json" {
		t.Errorf("Bench.Format = %q; want %q", cfg.Bench.Format, "json")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "vecadd.yaml")

	content := `
kernel:
  block_size: 512
bench:
  min_exp: 10
  max_exp: 14
  warmup: 5ms
`

	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()
	// Flags set on the command line still win over the file.
	binder := newFlagBinder(t, defaults, "--bench-max-exp=15")

	cfg, err := Load(LoadOptions{
		Cmd:        binder,
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Kernel.BlockSize != 512 {
		t.Errorf("Kernel.BlockSize = %d; want 512", cfg.Kernel.BlockSize)
	}

	if cfg.Bench.MinExp != 10 {
		t.Errorf("Bench.MinExp = %d; want 10", cfg.Bench.MinExp)
	}

	if cfg.Bench.MaxExp != 15 {
		t.Errorf("Bench.MaxExp = %d; want 15", cfg.Bench.MaxExp)
	}

	if cfg.Bench.Warmup != 5*time.Millisecond {
		t.Errorf("Bench.Warmup = %v; want 5ms", cfg.Bench.Warmup)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bad.yaml")
	// Write invalid YAML
	err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/vecadd.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

// --- Validate ---

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"block size not power of two", func(c *Config) { c.Kernel.BlockSize = 1000 }},
		{"block size zero", func(c *Config) { c.Kernel.BlockSize = 0 }},
		{"negative workers", func(c *Config) { c.Kernel.Workers = -1 }},
		{"exponents reversed", func(c *Config) { c.Bench.MinExp, c.Bench.MaxExp = 20, 10 }},
		{"exponent too large", func(c *Config) { c.Bench.MaxExp = 31 }},
		{"no providers", func(c *Config) { c.Bench.Providers = nil }},
		{"unknown provider", func(c *Config) { c.Bench.Providers = []string{"torch"} }},
		{"unknown dtype", func(c *Config) { c.Bench.DType = "int8" }},
		{"unknown format", func(c *Config) { c.Bench.Format = "xml" }},
		{"zero rep", func(c *Config) { c.Bench.Rep = 0 }},
		{"negative cache flush", func(c *Config) { c.Bench.FlushCache = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil; want error")
			}
		})
	}
}
