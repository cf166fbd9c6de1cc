package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// toolConfig holds the tool-identity settings an optional featctl.toml can
// override; command-line flags win over both.
type toolConfig struct {
	// BuildTool is the driven build command.
	BuildTool string
	// ToolchainTool manages toolchain installation and listing.
	ToolchainTool string
	// DevSection is the manifest table stripped by --no-dev-deps.
	DevSection string
	// Subcommand is the default build subcommand when none is given
	// after "--".
	Subcommand []string
	LogLevel   string
}

func defaultToolConfig() toolConfig {
	return toolConfig{
		BuildTool:     "cargo",
		ToolchainTool: "rustup",
		DevSection:    "dev-dependencies",
		Subcommand:    []string{"check"},
	}
}

type fileConfig struct {
	BuildTool     string   `toml:"build_tool"`
	ToolchainTool string   `toml:"toolchain_tool"`
	DevSection    string   `toml:"dev_section"`
	Subcommand    []string `toml:"subcommand"`
	LogLevel      string   `toml:"log_level"`
}

// loadToolConfig overlays the file's defined keys onto cfg. Only keys
// present in the document override.
func loadToolConfig(path string, cfg toolConfig) (toolConfig, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return toolConfig{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("build_tool") {
		if v := strings.TrimSpace(raw.BuildTool); v != "" {
			cfg.BuildTool = v
		}
	}
	if meta.IsDefined("toolchain_tool") {
		if v := strings.TrimSpace(raw.ToolchainTool); v != "" {
			cfg.ToolchainTool = v
		}
	}
	if meta.IsDefined("dev_section") {
		if v := strings.TrimSpace(raw.DevSection); v != "" {
			cfg.DevSection = v
		}
	}
	if meta.IsDefined("subcommand") && len(raw.Subcommand) > 0 {
		cfg.Subcommand = raw.Subcommand
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return cfg, nil
}
