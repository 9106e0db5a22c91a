package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configurable droidrec settings.
type Config struct {
	ADBPath             string        `mapstructure:"adb_path"`
	AAPTPath            string        `mapstructure:"aapt_path"`
	HarnessPackage      string        `mapstructure:"harness_package"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	ProbeTimeout        time.Duration `mapstructure:"probe_timeout"`
	SyncTimeout         time.Duration `mapstructure:"sync_timeout"` // 0 waits until the device answers
	BootWait            time.Duration `mapstructure:"boot_wait"`
	AVDName             string        `mapstructure:"avd_name"`
	AVDTarget           string        `mapstructure:"avd_target"`
	TestCasesDir        string        `mapstructure:"test_cases_dir"`
	APKDir              string        `mapstructure:"apk_dir"`
	ResignCommand       string        `mapstructure:"resign_command"`
	UIDCommand          string        `mapstructure:"uid_command"`
	HarnessBuildCommand string        `mapstructure:"harness_build_command"`
	LogLevel            string        `mapstructure:"log_level"`
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		ADBPath:        "adb",
		AAPTPath:       "aapt",
		HarnessPackage: "umd.troyd",
		PollInterval:   2 * time.Second,
		ProbeTimeout:   6 * time.Second,
		BootWait:       6 * time.Second,
		AVDName:        "testAVD",
		AVDTarget:      "android-10",
		TestCasesDir:   toolRelative("testcases"),
		APKDir:         toolRelative("apks"),
		LogLevel:       "INFO",
	}
}

// toolRelative resolves name next to the directory holding the droidrec
// binary, i.e. <bin>/../name.
func toolRelative(name string) string {
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), "..", name)
}

// GlobalPath returns ~/.config/droidrec/config.json.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "droidrec", "config.json"), nil
}

// LoadGlobal reads ~/.config/droidrec/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads .droidrec.json in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".droidrec.json", false)
}

// loadFile reads and parses a config file at path. The format follows the
// file extension (json, toml, yaml).
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	apply(&result, global)
	apply(&result, project)
	return result
}

// Load reads the global and project files and merges them.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, fmt.Errorf("loading global config: %w", err)
	}
	project, err := LoadProject()
	if err != nil {
		return Config{}, fmt.Errorf("loading project config: %w", err)
	}
	return Merge(global, project), nil
}

// apply copies every non-zero field of src over dst.
func apply(dst, src *Config) {
	if src == nil {
		return
	}
	str := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	dur := func(d *time.Duration, s time.Duration) {
		if s > 0 {
			*d = s
		}
	}
	str(&dst.ADBPath, src.ADBPath)
	str(&dst.AAPTPath, src.AAPTPath)
	str(&dst.HarnessPackage, src.HarnessPackage)
	dur(&dst.PollInterval, src.PollInterval)
	dur(&dst.ProbeTimeout, src.ProbeTimeout)
	dur(&dst.SyncTimeout, src.SyncTimeout)
	dur(&dst.BootWait, src.BootWait)
	str(&dst.AVDName, src.AVDName)
	str(&dst.AVDTarget, src.AVDTarget)
	str(&dst.TestCasesDir, src.TestCasesDir)
	str(&dst.APKDir, src.APKDir)
	str(&dst.ResignCommand, src.ResignCommand)
	str(&dst.UIDCommand, src.UIDCommand)
	str(&dst.HarnessBuildCommand, src.HarnessBuildCommand)
	str(&dst.LogLevel, src.LogLevel)
}

// DataDir returns the droidrec-specific XDG data directory:
// $XDG_DATA_HOME/droidrec or ~/.local/share/droidrec.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "droidrec"), nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
