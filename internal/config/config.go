package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider identifies the hosting service behind a repository URL.
// It is derived for display purposes only and never stored.
type Provider string

const (
	ProviderGitHub  Provider = "github"
	ProviderGitLab  Provider = "gitlab"
	ProviderUnknown Provider = "unknown"
)

var (
	// ErrNotFound is returned when the configuration file does not exist.
	ErrNotFound = errors.New("config file not found")

	// ErrMalformed is returned when the configuration file cannot be
	// parsed into the expected shape.
	ErrMalformed = errors.New("config file malformed")
)

// Config represents the complete dotmirror configuration
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	Files      []Mapping        `yaml:"files"`
	Paths      PathsConfig      `yaml:"paths"`
}

// RepositoryConfig configures the remote git repository target
type RepositoryConfig struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch"`
}

// Mapping declares one (source, destination) pair tracked by the tool.
// Source is resolved to an absolute path at load time; Dest is always
// relative to the mirror root.
type Mapping struct {
	Source string `yaml:"source"`
	Dest   string `yaml:"dest"`
}

// PathsConfig configures local filesystem paths
type PathsConfig struct {
	MirrorDir string `yaml:"mirror_dir"`
}

// Load reads and parses the configuration file. Tilde-prefixed paths are
// expanded against the invoking user's home directory at load time, not
// authoring time, so the same document is portable across machines that
// share layout conventions.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a configuration document. Unknown fields and documents
// outside the expected two-level shape are rejected rather than
// generically parsed.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &cfg, nil
}

// expandPaths expands environment variables and the tilde marker in all
// path fields.
func (c *Config) expandPaths() error {
	var err error
	c.Repository.URL = os.ExpandEnv(c.Repository.URL)

	if c.Paths.MirrorDir, err = expandTilde(os.ExpandEnv(c.Paths.MirrorDir)); err != nil {
		return fmt.Errorf("expanding paths.mirror_dir: %w", err)
	}

	for i := range c.Files {
		src, err := expandTilde(os.ExpandEnv(c.Files[i].Source))
		if err != nil {
			return fmt.Errorf("expanding files[%d].source: %w", i, err)
		}
		c.Files[i].Source = src
	}

	return nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Repository.Branch == "" {
		c.Repository.Branch = "main"
	}
	if c.Paths.MirrorDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Paths.MirrorDir = filepath.Join(home, ".dotmirror", "mirror")
		}
	}
	for i := range c.Files {
		if c.Files[i].Dest == "" {
			c.Files[i].Dest = filepath.Base(c.Files[i].Source)
		}
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Repository.URL == "" {
		return fmt.Errorf("repository.url is required")
	}
	if len(c.Files) == 0 {
		return fmt.Errorf("files section is required and must not be empty")
	}
	if c.Paths.MirrorDir == "" {
		return fmt.Errorf("paths.mirror_dir could not be resolved")
	}

	seen := make(map[string]int)
	for i, m := range c.Files {
		if m.Source == "" {
			return fmt.Errorf("files[%d]: source is required", i)
		}
		if filepath.IsAbs(m.Dest) {
			return fmt.Errorf("files[%d]: dest must be relative to the mirror root: %s", i, m.Dest)
		}
		dest := filepath.Clean(m.Dest)
		if dest == ".." || strings.HasPrefix(dest, ".."+string(filepath.Separator)) {
			return fmt.Errorf("files[%d]: dest must not escape the mirror root: %s", i, m.Dest)
		}
		if prev, dup := seen[dest]; dup {
			return fmt.Errorf("files[%d]: dest %q already used by files[%d]", i, m.Dest, prev)
		}
		seen[dest] = i
	}

	return nil
}

// Provider classifies the repository URL by hosting service. Display only;
// it never affects control flow.
func (r RepositoryConfig) Provider() Provider {
	switch {
	case strings.Contains(r.URL, "github.com"):
		return ProviderGitHub
	case strings.Contains(r.URL, "gitlab.com"):
		return ProviderGitLab
	default:
		return ProviderUnknown
	}
}

// MirrorPath returns the absolute mirror path for a mapping's destination.
func (c *Config) MirrorPath(m Mapping) string {
	return filepath.Join(c.Paths.MirrorDir, m.Dest)
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}

	if path == "~" {
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:]), nil
	}

	// ~user form is not supported
	return "", fmt.Errorf("unsupported tilde expansion: %s", path)
}
