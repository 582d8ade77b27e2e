// Package config loads Stencil runtime configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DefaultBranchPrefix is the fixed prefix for change branches. The full
// branch name is a deterministic function of this prefix and the
// application name.
const DefaultBranchPrefix = "automation/stencil-templates"

type SCM struct {
	// APIBase is the REST endpoint base. Public hosting uses
	// https://api.github.com; enterprise hosts use
	// https://<host>/api/v3.
	APIBase string `yaml:"api_base"`

	// Token is the bearer/legacy credential. Usually supplied via the
	// STENCIL_SCM_TOKEN environment variable rather than the file.
	Token string `yaml:"token"`

	// TokenEnv names the environment variable consulted when Token is
	// empty.
	TokenEnv string `yaml:"token_env"`
}

type Git struct {
	BranchPrefix  string `yaml:"branch_prefix"`
	CommitMessage string `yaml:"commit_message"`
}

type Workspace struct {
	// Root is the directory holding per-application clone workspaces.
	// Empty means a fresh temp directory per run, left for inspection.
	Root string `yaml:"root"`
}

type Exec struct {
	// Timeout bounds any single subprocess step.
	Timeout time.Duration `yaml:"timeout"`
}

type Build struct {
	// Skip disables the local mvn/docker/helm steps for every row.
	Skip bool `yaml:"skip"`

	// DockerAPIVersion pins the Docker Engine API version; empty means
	// negotiate.
	DockerAPIVersion string `yaml:"docker_api_version"`
}

type Resources struct {
	CPURequest    string `yaml:"cpu_request"`
	CPULimit      string `yaml:"cpu_limit"`
	MemoryRequest string `yaml:"memory_request"`
	MemoryLimit   string `yaml:"memory_limit"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	SCM       SCM       `yaml:"scm"`
	Git       Git       `yaml:"git"`
	Workspace Workspace `yaml:"workspace"`
	Exec      Exec      `yaml:"exec"`
	Build     Build     `yaml:"build"`
	Profile   string    `yaml:"profile"`
	Resources Resources `yaml:"resources"`
	Log       Log       `yaml:"log"`

	// DataDir holds the run journal.
	DataDir string `yaml:"data_dir"`

	// TemplatesDir overrides the embedded template set when non-empty.
	TemplatesDir string `yaml:"templates_dir"`
}

func Default() *Config {
	return &Config{
		SCM: SCM{
			APIBase:  "https://api.github.com",
			TokenEnv: "STENCIL_SCM_TOKEN",
		},
		Git: Git{
			BranchPrefix:  DefaultBranchPrefix,
			CommitMessage: "chore: add standardized CI/CD templates for %s",
		},
		Exec: Exec{
			Timeout: 10 * time.Minute,
		},
		Profile:   "standard",
		Resources: Resources{CPURequest: "100m", CPULimit: "500m", MemoryRequest: "256Mi", MemoryLimit: "512Mi"},
		Log:       Log{Level: "info", Format: "text"},
		DataDir:   defaultDataDir(),
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "stencil")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	return filepath.Join(home, ".stencil")
}

// Load reads configuration from path, or from the default search path when
// path is empty. A missing config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stencil")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil && home != "" {
			v.AddConfigPath(filepath.Join(home, ".stencil"))
		}
	}

	cfg := Default()
	if err := v.ReadInConfig(); err == nil {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv resolves the SCM token from the configured environment variable
// when the file does not carry one.
func (c *Config) applyEnv() {
	if c.SCM.Token == "" && c.SCM.TokenEnv != "" {
		c.SCM.Token = os.Getenv(c.SCM.TokenEnv)
	}
}
