package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentstation/lbmap/pkg/constants"
	"github.com/agentstation/lbmap/pkg/errors"
)

// EnvPrefix prefixes every environment variable lbmap reads.
const EnvPrefix = "LBMAP"

// Config holds the application configuration loaded from flags, environment
// variables, .env files and the config file.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Store
	Store     string
	StorePath string

	// Reconciliation and rendering
	Table       string
	Concurrency int
	Template    string
	BackendPort int
	BindPort    int

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration in order of precedence:
//  1. Command-line flags (applied later by UpdateFromFlags)
//  2. LBMAP_* environment variables
//  3. .env and .env.local
//  4. Config file (configFile, or ~/.lbmap.yaml / ./.lbmap.yaml)
//  5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", "memory")
	v.SetDefault("table", constants.DefaultTable)
	v.SetDefault("concurrency", constants.DefaultWriteConcurrency)
	v.SetDefault("backend_port", constants.DefaultBackendPort)
	v.SetDefault("bind_port", constants.DefaultBindPort)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "cannot read "+configFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".lbmap")
		// A missing default config file is fine.
		_ = v.ReadInConfig()
	}

	return &Config{
		Verbose:     v.GetBool("verbose"),
		Quiet:       v.GetBool("quiet"),
		NoColor:     v.GetBool("no_color"),
		Format:      v.GetString("format"),
		ConfigFile:  v.ConfigFileUsed(),
		Store:       v.GetString("store"),
		StorePath:   v.GetString("store_path"),
		Table:       v.GetString("table"),
		Concurrency: v.GetInt("concurrency"),
		Template:    v.GetString("template"),
		BackendPort: v.GetInt("backend_port"),
		BindPort:    v.GetInt("bind_port"),
		LogLevel:    v.GetString("log_level"),
		LogFormat:   v.GetString("log_format"),
		LogOutput:   v.GetString("log_output"),
	}, nil
}

// UpdateFromFlags copies every flag the user set explicitly, so flags win
// over the environment and config file.
func (c *Config) UpdateFromFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}

	boolean("verbose", &c.Verbose)
	boolean("quiet", &c.Quiet)
	boolean("no-color", &c.NoColor)
	str("format", &c.Format)
	str("log-level", &c.LogLevel)
	str("store", &c.Store)
	str("store-path", &c.StorePath)
	str("table", &c.Table)
	str("template", &c.Template)
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env; neither overrides the real environment.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
