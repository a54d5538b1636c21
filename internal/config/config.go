// Package config is a thin wrapper over viper. Initialize locates the
// project's .roadmap/config.yaml by walking up from the working
// directory, binds RDM_* environment variables, and sets the defaults
// every other package reads through the typed getters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/untoldecay/roadmap/internal/debug"
)

var v *viper.Viper

// DirName is the managed directory each initialized project carries.
const DirName = ".roadmap"

// Initialize sets up the viper configuration singleton. Call once at
// startup, before any getter.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	// Precedence: project .roadmap/config.yaml, then the user config
	// directory, then ~/.roadmap/config.yaml.
	configFileSet := false

	if root := findProjectRoot(); root != "" {
		configPath := filepath.Join(root, DirName, "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			configFileSet = true
		}
	}
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "rdm", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}
	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, DirName, "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// Environment variables beat the config file: RDM_GITHUB_OWNER
	// maps to github.owner, RDM_SYNC_REBUILD_THRESHOLD to
	// sync.rebuild_threshold, and so on.
	v.SetEnvPrefix("RDM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Remote backend
	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.api_url", "https://api.github.com")
	v.SetDefault("sync_backend", "github")

	// Attribution for comments and merges
	v.SetDefault("user.name", "")
	v.SetDefault("user.email", "")

	// Sync engine
	v.SetDefault("sync.rebuild_threshold", 0.5)
	v.SetDefault("sync.auto_merge", true)
	v.SetDefault("sync.auto_resolve_threshold", 0.95)

	// Duplicate detection. The fuzzy pass is opt-in: at 0.90 the ratio
	// starts uniting numbered siblings ("Issue 1" vs "Issue 10").
	v.SetDefault("dedup.enable_fuzzy_matching", false)
	v.SetDefault("dedup.title_similarity_threshold", 0.90)
	v.SetDefault("dedup.enable_content_matching", false)
	v.SetDefault("dedup.content_similarity_threshold", 0.85)

	v.SetDefault("db.path", "")
	v.SetDefault("issue_prefix", "")
	v.SetDefault("debug", false)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
		debug.Logf("config: loaded %s", v.ConfigFileUsed())
	} else {
		debug.Logf("config: no config.yaml found; using defaults and environment")
	}
	return nil
}

// findProjectRoot walks up from the working directory to the first
// directory containing .roadmap/, "" when none exists.
func findProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		if info, err := os.Stat(filepath.Join(dir, DirName)); err == nil && info.IsDir() {
			return dir
		}
		if dir == filepath.Dir(dir) {
			return ""
		}
	}
}

// DBPath returns the effective database path: db.path when configured,
// otherwise ~/.roadmap/roadmap.db. The store mirrors one managed tree
// at a time, so users juggling several projects set db.path per
// project.
func DBPath() string {
	if p := GetString("db.path"); p != "" {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(DirName, "roadmap.db")
	}
	return filepath.Join(homeDir, DirName, "roadmap.db")
}

// ProjectRoot returns the directory containing .roadmap/, walking up
// from the working directory. Empty when the project is uninitialized.
func ProjectRoot() string {
	return findProjectRoot()
}

// RoadmapDir returns the project's .roadmap directory, empty when the
// project is uninitialized.
func RoadmapDir() string {
	root := findProjectRoot()
	if root == "" {
		return ""
	}
	return filepath.Join(root, DirName)
}

// Token returns the remote API credential: GITHUB_TOKEN, falling back
// to RDM_GITHUB_TOKEN. Tokens live in the environment, not the file.
func Token() string {
	if t := os.Getenv("GITHUB_TOKEN"); t != "" {
		return t
	}
	return os.Getenv("RDM_GITHUB_TOKEN")
}

// Source names where a configuration value came from.
type Source string

const (
	SourceDefault    Source = "default"
	SourceConfigFile Source = "config_file"
	SourceEnvVar     Source = "env_var"
)

// ValueSource reports the source of a configuration value. Priority
// mirrors viper's: env var, then config file, then default.
func ValueSource(key string) Source {
	if v == nil {
		return SourceDefault
	}
	envKey := "RDM_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	if os.Getenv(envKey) != "" {
		return SourceEnvVar
	}
	if v.InConfig(key) {
		return SourceConfigFile
	}
	return SourceDefault
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetFloat64 retrieves a float configuration value.
func GetFloat64(key string) float64 {
	if v == nil {
		return 0
	}
	return v.GetFloat64(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a configuration value for the process, typically from
// a CLI flag.
func Set(key string, value any) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns every effective setting.
func AllSettings() map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v.AllSettings()
}
