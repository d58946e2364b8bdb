package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	content := `
# dotmirror configuration

repository:
  url: "git@github.com:test/dotfiles.git"
  branch: "trunk"

paths:
  mirror_dir: "` + filepath.Join(tmpDir, "mirror") + `"

files:
  # shell setup
  - source: "/home/user/.zshrc"
    dest: ".zshrc"

  - source: "/home/user/.config/nvim"
    dest: "nvim"
`
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Repository.URL != "git@github.com:test/dotfiles.git" {
		t.Errorf("unexpected URL: %s", cfg.Repository.URL)
	}
	if cfg.Repository.Branch != "trunk" {
		t.Errorf("expected branch trunk, got %s", cfg.Repository.Branch)
	}
	if len(cfg.Files) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(cfg.Files))
	}
	if cfg.Files[1].Dest != "nvim" {
		t.Errorf("unexpected dest: %s", cfg.Files[1].Dest)
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
repository:
  url: "https://gitlab.com/test/dotfiles.git"
files:
  - source: "/home/user/.gitconfig"
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Repository.Branch != "main" {
		t.Errorf("expected default branch main, got %s", cfg.Repository.Branch)
	}
	if cfg.Files[0].Dest != ".gitconfig" {
		t.Errorf("expected dest to default to basename, got %s", cfg.Files[0].Dest)
	}
	if cfg.Paths.MirrorDir == "" {
		t.Error("expected mirror_dir to default to a home-relative path")
	}
}

func TestParse_TildeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Parse([]byte(`
repository:
  url: "git@github.com:test/dotfiles.git"
paths:
  mirror_dir: "~/.dotfiles"
files:
  - source: "~/.zshrc"
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Files[0].Source != filepath.Join(home, ".zshrc") {
		t.Errorf("tilde not expanded: %s", cfg.Files[0].Source)
	}
	if cfg.Paths.MirrorDir != filepath.Join(home, ".dotfiles") {
		t.Errorf("tilde not expanded in mirror_dir: %s", cfg.Paths.MirrorDir)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "not yaml",
			doc:  "repository: [unclosed",
		},
		{
			name: "unknown top-level section",
			doc: `
repository:
  url: "git@github.com:test/dotfiles.git"
files:
  - source: "/a"
bogus:
  key: value
`,
		},
		{
			name: "missing files section",
			doc: `
repository:
  url: "git@github.com:test/dotfiles.git"
`,
		},
		{
			name: "missing repository url",
			doc: `
repository:
  branch: main
files:
  - source: "/a"
`,
		},
		{
			name: "entry missing source",
			doc: `
repository:
  url: "git@github.com:test/dotfiles.git"
files:
  - dest: ".zshrc"
`,
		},
		{
			name: "absolute dest",
			doc: `
repository:
  url: "git@github.com:test/dotfiles.git"
files:
  - source: "/a"
    dest: "/etc/a"
`,
		},
		{
			name: "dest escapes mirror root",
			doc: `
repository:
  url: "git@github.com:test/dotfiles.git"
files:
  - source: "/a"
    dest: "../escape"
`,
		},
		{
			name: "dest escapes mirror root after cleaning",
			doc: `
repository:
  url: "git@github.com:test/dotfiles.git"
files:
  - source: "/a"
    dest: "sub/../../escape"
`,
		},
		{
			name: "duplicate dest",
			doc: `
repository:
  url: "git@github.com:test/dotfiles.git"
files:
  - source: "/a"
    dest: "same"
  - source: "/b"
    dest: "same"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestProvider(t *testing.T) {
	tests := []struct {
		url  string
		want Provider
	}{
		{url: "git@github.com:user/dotfiles.git", want: ProviderGitHub},
		{url: "https://github.com/user/dotfiles.git", want: ProviderGitHub},
		{url: "https://gitlab.com/user/dotfiles.git", want: ProviderGitLab},
		{url: "https://git.sr.ht/~user/dotfiles", want: ProviderUnknown},
		{url: "", want: ProviderUnknown},
	}

	for _, tt := range tests {
		got := RepositoryConfig{URL: tt.url}.Provider()
		if got != tt.want {
			t.Errorf("Provider(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}

func TestMirrorPath(t *testing.T) {
	cfg := &Config{Paths: PathsConfig{MirrorDir: "/mirror"}}
	got := cfg.MirrorPath(Mapping{Source: "/home/user/.zshrc", Dest: ".zshrc"})
	if got != "/mirror/.zshrc" {
		t.Errorf("unexpected mirror path: %s", got)
	}
}

func TestExpandTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare tilde", input: "~", want: home},
		{name: "home-relative", input: "~/.vimrc", want: filepath.Join(home, ".vimrc")},
		{name: "absolute untouched", input: "/etc/hosts", want: "/etc/hosts"},
		{name: "empty untouched", input: "", want: ""},
		{name: "user form rejected", input: "~other/file", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandTilde(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandTilde(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("expandTilde(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
