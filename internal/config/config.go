package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// OpenAI holds the live-source credentials.
type OpenAI struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// Config is the only persisted config file schema.
type Config struct {
	// Theme is the glamour style for prose blocks ("auto", "dark", ...).
	Theme string `toml:"theme"`
	// CodeTheme is the chroma style for code blocks.
	CodeTheme string `toml:"code_theme"`
	// DiagramTags overrides the fence tags routed to the diagram renderer.
	DiagramTags []string `toml:"diagram_tags"`
	// Width is the render width; 0 follows the terminal.
	Width int `toml:"width"`
	// LogPath overrides the default log file location.
	LogPath string `toml:"log_path"`

	OpenAI OpenAI `toml:"openai"`

	Source string `toml:"-"`
}

func Default() Config {
	return Config{
		Theme:     "auto",
		CodeTheme: "monokai",
	}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".streammark", "config.toml")
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(cfg), nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return cfg, err
	}
	return applyEnv(cfg), nil
}

// applyEnv 让环境变量覆盖配置文件，便于临时切换而不动磁盘配置。
func applyEnv(cfg Config) Config {
	if env := strings.TrimSpace(os.Getenv("STREAMMARK_THEME")); env != "" {
		cfg.Theme = env
	}
	if env := strings.TrimSpace(os.Getenv("STREAMMARK_CODE_THEME")); env != "" {
		cfg.CodeTheme = env
	}
	if env := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); env != "" {
		cfg.OpenAI.APIKey = env
	}
	if env := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); env != "" {
		cfg.OpenAI.BaseURL = env
	}
	return cfg
}
