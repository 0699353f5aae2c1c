package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/LynnColeArt/vecadd"
)

type Config struct {
	Kernel KernelConfig `mapstructure:"kernel"`
	Bench  BenchConfig  `mapstructure:"bench"`
}

type KernelConfig struct {
	BlockSize int `mapstructure:"block_size"`
	Workers   int `mapstructure:"workers"`
}

type BenchConfig struct {
	MinExp     int           `mapstructure:"min_exp"`
	MaxExp     int           `mapstructure:"max_exp"`
	Providers  []string      `mapstructure:"providers"`
	Warmup     time.Duration `mapstructure:"warmup"`
	Rep        time.Duration `mapstructure:"rep"`
	DType      string        `mapstructure:"dtype"`
	Seed       uint64        `mapstructure:"seed"`
	SavePath   string        `mapstructure:"save_path"`
	Format     string        `mapstructure:"format"`
	SessionLog string        `mapstructure:"session_log"`
	FlushCache int           `mapstructure:"flush_cache"`
}

// Providers known to the benchmark.
const (
	ProviderKernel    = "kernel"
	ProviderReference = "reference"
)

// Output formats of the benchmark report.
var Formats = []string{"table", "json", "csv"}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Kernel: KernelConfig{
			BlockSize: vecadd.DefaultBlockSize,
			Workers:   runtime.NumCPU(),
		},
		Bench: BenchConfig{
			MinExp:     12,
			MaxExp:     27,
			Providers:  []string{ProviderKernel, ProviderReference},
			Warmup:     25 * time.Millisecond,
			Rep:        100 * time.Millisecond,
			DType:      "float32",
			Seed:       0,
			SavePath:   "",
			Format:     "table",
			SessionLog: "benchmark_logs",
			FlushCache: 64 << 20,
		},
	}
}

// flagKeys maps every flag to the config key it sets.
var flagKeys = []struct{ flag, key string }{
	{"kernel-block-size", "kernel.block_size"},
	{"block-size", "kernel.block_size"},
	{"kernel-workers", "kernel.workers"},
	{"bench-min-exp", "bench.min_exp"},
	{"bench-max-exp", "bench.max_exp"},
	{"bench-providers", "bench.providers"},
	{"bench-warmup", "bench.warmup"},
	{"bench-rep", "bench.rep"},
	{"bench-dtype", "bench.dtype"},
	{"dtype", "bench.dtype"},
	{"bench-seed", "bench.seed"},
	{"seed", "bench.seed"},
	{"bench-save-path", "bench.save_path"},
	{"save-path", "bench.save_path"},
	{"bench-format", "bench.format"},
	{"bench-session-log", "bench.session_log"},
	{"bench-flush-cache", "bench.flush_cache"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.Int("kernel-block-size", defaults.Kernel.BlockSize, "Elements per program (power of two)")
	fs.Int("block-size", defaults.Kernel.BlockSize, "Elements per program (alias for --kernel-block-size)")
	fs.Int("kernel-workers", defaults.Kernel.Workers, "Maximum goroutines per launch")
	fs.Int("bench-min-exp", defaults.Bench.MinExp, "Smallest benchmarked size as a power of two")
	fs.Int("bench-max-exp", defaults.Bench.MaxExp, "Largest benchmarked size as a power of two")
	fs.StringSlice("bench-providers", defaults.Bench.Providers, "Providers to benchmark (kernel, reference)")
	fs.Duration("bench-warmup", defaults.Bench.Warmup, "Warmup time budget per measurement")
	fs.Duration("bench-rep", defaults.Bench.Rep, "Measured time budget per measurement")
	fs.String("bench-dtype", defaults.Bench.DType, "Element type: float32, float64 or float16")
	fs.String("dtype", defaults.Bench.DType, "Element type (alias for --bench-dtype)")
	fs.Uint64("bench-seed", defaults.Bench.Seed, "Seed of the random inputs")
	fs.Uint64("seed", defaults.Bench.Seed, "Seed of the random inputs (alias for --bench-seed)")
	fs.String("bench-save-path", defaults.Bench.SavePath, "Directory for plot, CSV and JSON artifacts")
	fs.String("save-path", defaults.Bench.SavePath, "Artifact directory (alias for --bench-save-path)")
	fs.String("bench-format", defaults.Bench.Format, "Report format: table, json or csv")
	fs.String("bench-session-log", defaults.Bench.SessionLog, "Directory of the benchmark session log (empty disables)")
	fs.Int("bench-flush-cache", defaults.Bench.FlushCache, "Bytes written before every timed call to evict the CPU caches (0 disables)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("VECADD")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("vecadd")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("kernel.block_size", c.Kernel.BlockSize)
	v.SetDefault("kernel.workers", c.Kernel.Workers)
	v.SetDefault("bench.min_exp", c.Bench.MinExp)
	v.SetDefault("bench.max_exp", c.Bench.MaxExp)
	v.SetDefault("bench.providers", c.Bench.Providers)
	v.SetDefault("bench.warmup", c.Bench.Warmup)
	v.SetDefault("bench.rep", c.Bench.Rep)
	v.SetDefault("bench.dtype", c.Bench.DType)
	v.SetDefault("bench.seed", c.Bench.Seed)
	v.SetDefault("bench.save_path", c.Bench.SavePath)
	v.SetDefault("bench.format", c.Bench.Format)
	v.SetDefault("bench.session_log", c.Bench.SessionLog)
	v.SetDefault("bench.flush_cache", c.Bench.FlushCache)
}

// bindFlags binds each registered flag to its key. When a key has two
// flags, the one set on the command line wins.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if bound := fs.Lookup(boundFlag(fk.key)); bound != nil && bound.Changed && !f.Changed {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", fk.flag, err)
		}
	}
	return nil
}

// boundFlag returns the canonical flag name of key.
func boundFlag(key string) string {
	return strings.NewReplacer(".", "-", "_", "-").Replace(key)
}

// Validate checks the settings the kernel and the benchmark depend on.
func (c Config) Validate() error {
	if _, err := vecadd.ParseDType(c.Bench.DType); err != nil {
		return err
	}
	if c.Kernel.BlockSize <= 0 || c.Kernel.BlockSize&(c.Kernel.BlockSize-1) != 0 || c.Kernel.BlockSize > vecadd.MaxBlockSize {
		return fmt.Errorf("kernel.block_size %d: %w", c.Kernel.BlockSize, vecadd.ErrInvalidBlockSize)
	}
	if c.Kernel.Workers < 0 {
		return fmt.Errorf("kernel.workers must not be negative, got %d", c.Kernel.Workers)
	}
	if c.Bench.MinExp < 0 || c.Bench.MaxExp < c.Bench.MinExp || c.Bench.MaxExp > 30 {
		return fmt.Errorf("bench exponents must satisfy 0 <= min_exp (%d) <= max_exp (%d) <= 30",
			c.Bench.MinExp, c.Bench.MaxExp)
	}
	if len(c.Bench.Providers) == 0 {
		return fmt.Errorf("bench.providers must name at least one provider")
	}
	for _, p := range c.Bench.Providers {
		if p != ProviderKernel && p != ProviderReference {
			return fmt.Errorf("unknown provider %q (want %s or %s)", p, ProviderKernel, ProviderReference)
		}
	}
	if !slices.Contains(Formats, c.Bench.Format) {
		return fmt.Errorf("unknown format %q (want one of %s)", c.Bench.Format, strings.Join(Formats, ", "))
	}
	if c.Bench.FlushCache < 0 {
		return fmt.Errorf("bench.flush_cache must not be negative, got %d", c.Bench.FlushCache)
	}
	if c.Bench.Warmup < 0 || c.Bench.Rep <= 0 {
		return fmt.Errorf("bench.warmup must be >= 0 and bench.rep > 0")
	}
	return nil
}
