package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/ortprobe/internal/ort"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	Probe    ProbeConfig   `mapstructure:"probe"`
	LogLevel string        `mapstructure:"log_level"`
}

type PathsConfig struct {
	ModelPath string `mapstructure:"model_path"`
	ModelsDir string `mapstructure:"models_dir"`
}

type RuntimeConfig struct {
	ORTLibraryPath    string `mapstructure:"ort_library_path"`
	ORTVersion        string `mapstructure:"ort_version"`
	APIVersion        uint32 `mapstructure:"api_version"`
	Threads           int    `mapstructure:"threads"`
	GraphOptimization string `mapstructure:"graph_optimization"`
	EngineLogLevel    string `mapstructure:"engine_log_level"`
	LogID             string `mapstructure:"log_id"`
}

type ProbeConfig struct {
	Seed    uint64 `mapstructure:"seed"`
	Preview int    `mapstructure:"preview"`
	Strict  bool   `mapstructure:"strict"`
}

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
		Paths: PathsConfig{
			ModelPath: "models/mnist_model.onnx",
			ModelsDir: "models",
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath:    "",
			ORTVersion:        "",
			APIVersion:        ort.DefaultAPIVersion,
			Threads:           1,
			GraphOptimization: "basic",
			EngineLogLevel:    "warning",
			LogID:             "mnist_model",
		},
		Probe: ProbeConfig{
			Seed:    42,
			Preview: 10,
			Strict:  false,
		},
		LogLevel: "info",
	}
}

// flagKeys maps each command-line flag to the config key it sets.
var flagKeys = []struct{ flag, key string }{
	{"model", "paths.model_path"},
	{"models-dir", "paths.models_dir"},
	{"ort-lib", "runtime.ort_library_path"},
	{"ort-version", "runtime.ort_version"},
	{"api-version", "runtime.api_version"},
	{"threads", "runtime.threads"},
	{"graph-optimization", "runtime.graph_optimization"},
	{"engine-log-level", "runtime.engine_log_level"},
	{"log-id", "runtime.log_id"},
	{"seed", "probe.seed"},
	{"preview", "probe.preview"},
	{"strict", "probe.strict"},
	{"log-level", "log_level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("model", defaults.Paths.ModelPath, "Path to ONNX model")
	fs.String("models-dir", defaults.Paths.ModelsDir, "Directory for downloaded models")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (auto-detected when empty)")
	fs.String("ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.Uint32("api-version", defaults.Runtime.APIVersion, "ONNX Runtime C API version to request")
	fs.Int("threads", defaults.Runtime.Threads, "ONNX Runtime intra-op thread count (0 keeps the engine default)")
	fs.String("graph-optimization", defaults.Runtime.GraphOptimization, "Graph optimization level: disable|basic|extended|all")
	fs.String("engine-log-level", defaults.Runtime.EngineLogLevel, "ONNX Runtime log level: verbose|info|warning|error|fatal")
	fs.String("log-id", defaults.Runtime.LogID, "ONNX Runtime environment log identifier")
	fs.Uint64("seed", defaults.Probe.Seed, "Seed for the placeholder input")
	fs.Int("preview", defaults.Probe.Preview, "Number of output values to print")
	fs.Bool("strict", defaults.Probe.Strict, "Exit non-zero when the probe stops after the session is open")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("ORTPROBE")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "ORTPROBE_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ortprobe")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects values no run could use.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.ModelPath) == "" {
		return errors.New("paths.model_path must not be empty")
	}
	if c.Runtime.Threads < 0 {
		return fmt.Errorf("runtime.threads must be >= 0, got %d", c.Runtime.Threads)
	}
	if c.Probe.Preview < 0 {
		return fmt.Errorf("probe.preview must be >= 0, got %d", c.Probe.Preview)
	}
	if _, err := ParseGraphOptimization(c.Runtime.GraphOptimization); err != nil {
		return err
	}
	if _, err := ParseEngineLogLevel(c.Runtime.EngineLogLevel); err != nil {
		return err
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.model_path", c.Paths.ModelPath)
	v.SetDefault("paths.models_dir", c.Paths.ModelsDir)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("runtime.api_version", c.Runtime.APIVersion)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("runtime.graph_optimization", c.Runtime.GraphOptimization)
	v.SetDefault("runtime.engine_log_level", c.Runtime.EngineLogLevel)
	v.SetDefault("runtime.log_id", c.Runtime.LogID)
	v.SetDefault("probe.seed", c.Probe.Seed)
	v.SetDefault("probe.preview", c.Probe.Preview)
	v.SetDefault("probe.strict", c.Probe.Strict)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds every registered flag to its config key. Flags a command
// did not register are skipped.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", fk.flag, err)
		}
	}

	return nil
}
