package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Packages       []Package        `yaml:"packages"`
	SystemPackages []SystemPackages `yaml:"system_packages,omitempty"`
	Matrix         MatrixConfig     `yaml:"matrix"`
	Build          BuildConfig      `yaml:"build"`
	Logging        LoggingConfig    `yaml:"logging"`
	Metrics        MetricsConfig    `yaml:"metrics"`
	Output         OutputConfig     `yaml:"output"`
}

// SystemPackages declares prerequisite system-level packages for a set of
// target systems, installed into the build environment before any package build.
type SystemPackages struct {
	Systems        []string `yaml:"systems"`
	PackageManager string   `yaml:"package_manager"` // "apt", "yum", "apk"
	Packages       []string `yaml:"packages"`
}

// BuildConfig holds knobs for the build executor.
type BuildConfig struct {
	Jobs              int    `yaml:"jobs,omitempty"`                // parallel make jobs; 0 = min(4, NumCPU)
	MaxRetries        *int   `yaml:"max_retries,omitempty"`         // clone retry attempts after the first failure; nil = default, 0 = no retries
	RetryBackoff      string `yaml:"retry_backoff,omitempty"`       // fixed|linear|exponential
	RetryInitialDelay string `yaml:"retry_initial_delay,omitempty"` // duration string
	RetryMaxDelay     string `yaml:"retry_max_delay,omitempty"`     // duration string
	CellTimeout       string `yaml:"cell_timeout,omitempty"`        // per-cell wall clock bound
	EmulationFactor   int    `yaml:"emulation_factor,omitempty"`    // timeout multiplier for emulated architectures
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug|info|warn|error
	Format string `yaml:"format,omitempty"` // text|json
}

// MetricsConfig toggles Prometheus metrics collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// OutputConfig represents output locations for artifacts, reports and logs.
type OutputConfig struct {
	Directory string `yaml:"directory"`      // root for per-cell install prefixes and archives
	LogsDir   string `yaml:"logs_directory"` // root for per-cell build logs and reports
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyDefaults fills zero-value fields with their documented defaults.
// Exported so tests can build configs without going through a file.
func (c *Config) ApplyDefaults() {
	if c.Output.Directory == "" {
		c.Output.Directory = "./output"
	}
	if c.Output.LogsDir == "" {
		c.Output.LogsDir = "./output_logs"
	}
	// nil means the key was absent; an explicit 0 disables clone retries.
	if c.Build.MaxRetries == nil {
		defaultRetries := 2
		c.Build.MaxRetries = &defaultRetries
	}
	if c.Build.RetryBackoff == "" {
		c.Build.RetryBackoff = string(RetryBackoffFixed)
	}
	if c.Build.RetryInitialDelay == "" {
		c.Build.RetryInitialDelay = "5s"
	}
	if c.Build.RetryMaxDelay == "" {
		c.Build.RetryMaxDelay = "30s"
	}
	if c.Build.EmulationFactor <= 0 {
		c.Build.EmulationFactor = 4
	}
	if c.Logging.Level == "" {
		c.Logging.Level = string(LogLevelInfo)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = string(LogFormatText)
	}
	for i := range c.Packages {
		p := &c.Packages[i]
		if p.Revision == "" {
			p.Revision = "master"
		}
		if p.BuildType == "" {
			p.BuildType = string(BuildTypeRelease)
		}
	}
	if len(c.Matrix.Cells) == 0 {
		c.Matrix.Cells = DefaultCells()
	}
}

// Validate checks structural invariants that must hold before any build starts.
// Dependency resolution (missing refs, cycles) is the resolver's job, not ours.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Packages))
	for _, p := range c.Packages {
		name := p.EffectiveName()
		if name == "" {
			return fmt.Errorf("package with empty name (url %q)", p.URL)
		}
		if p.URL == "" {
			return fmt.Errorf("package %s: source url is required", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate package name: %s", name)
		}
		seen[name] = true
	}
	for _, cell := range c.Matrix.Cells {
		if cell.System == "" || cell.Arch == "" {
			return fmt.Errorf("matrix cell with empty system or arch")
		}
	}
	return nil
}

// SystemPackagesFor returns the prerequisite package set for a system name,
// falling back to substring matching for system aliases (e.g. "ubuntu22.04-test").
func (c *Config) SystemPackagesFor(system string) *SystemPackages {
	for i := range c.SystemPackages {
		for _, s := range c.SystemPackages[i].Systems {
			if s == system {
				return &c.SystemPackages[i]
			}
		}
	}
	for i := range c.SystemPackages {
		for _, s := range c.SystemPackages[i].Systems {
			if strings.Contains(system, s) || strings.Contains(s, system) {
				return &c.SystemPackages[i]
			}
		}
	}
	return nil
}

// loadEnvFile loads a .env file from the current directory when present.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		return err
	}
	return godotenv.Load()
}
