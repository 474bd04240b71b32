package flags

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const (
	// Env vars
	EnvVarConfigFile = "MCPREG_CONFIG_FILE"
	EnvVarLogPath    = "MCPREG_LOG_PATH"
	EnvVarLogLevel   = "MCPREG_LOG_LEVEL"

	// Defaults
	DefaultConfigFile = ".mcpreg.toml"
	DefaultLogPath    = ""
	DefaultLogLevel   = "info"

	// Flag names
	FlagNameConfigFile = "config-file"
	FlagNameLogPath    = "log-path"
	FlagNameLogLevel   = "log-level"
)

var (
	ConfigFile string
	LogPath    string
	LogLevel   string
)

// validLogLevels are the levels accepted by --log-level.
var validLogLevels = []string{"trace", "debug", "info", "warn", "error", "off"}

// InitFlags registers the global flags on fs, seeding defaults from the environment.
func InitFlags(fs *pflag.FlagSet) {
	initConfigFile(fs)
	initLogger(fs)
}

func initConfigFile(fs *pflag.FlagSet) {
	if ConfigFile == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarConfigFile)); env != "" {
			ConfigFile = env
		} else {
			ConfigFile = DefaultConfigFile
		}
	}
	fs.StringVar(
		&ConfigFile,
		FlagNameConfigFile,
		ConfigFile,
		"path to config file (.toml, .yaml or .yml), can also be set via "+EnvVarConfigFile,
	)
}

func initLogger(fs *pflag.FlagSet) {
	if LogPath == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarLogPath)); env != "" {
			LogPath = env
		} else {
			LogPath = DefaultLogPath
		}
	}
	fs.StringVar(
		&LogPath,
		FlagNameLogPath,
		LogPath,
		"path to log file, logs go to stderr when empty, can also be set via "+EnvVarLogPath,
	)

	if LogLevel == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarLogLevel)); env != "" {
			LogLevel = strings.ToLower(env)
		} else {
			LogLevel = DefaultLogLevel
		}
	}
	fs.StringVar(
		&LogLevel,
		FlagNameLogLevel,
		LogLevel,
		"log level ("+strings.Join(validLogLevels, ", ")+"), can also be set via "+EnvVarLogLevel,
	)
}

// NormalizeLogLevel returns level lower-cased when it is a known level, otherwise the default.
func NormalizeLogLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	for _, l := range validLogLevels {
		if l == level {
			return level
		}
	}
	return DefaultLogLevel
}
