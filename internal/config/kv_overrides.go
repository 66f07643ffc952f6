package config

import (
	"strconv"
	"strings"
)

// ApplyKVOverrides applies free-form -c key=value overrides.
func ApplyKVOverrides(cfg Config, overrides []string) Config {
	if len(overrides) == 0 {
		return cfg
	}
	for _, raw := range overrides {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		switch key {
		case "theme":
			cfg.Theme = val
		case "code_theme":
			cfg.CodeTheme = val
		case "width":
			if n, err := strconv.Atoi(val); err == nil && n >= 0 {
				cfg.Width = n
			}
		case "log_path":
			cfg.LogPath = val
		case "diagram_tags":
			var tags []string
			for _, tag := range strings.Split(val, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					tags = append(tags, tag)
				}
			}
			cfg.DiagramTags = tags
		case "openai.api_key":
			cfg.OpenAI.APIKey = val
		case "openai.base_url":
			cfg.OpenAI.BaseURL = val
		case "openai.model", "model":
			cfg.OpenAI.Model = val
		}
	}
	return cfg
}
