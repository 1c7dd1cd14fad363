// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - The config command: show, get and set settings.

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/tidyrun/internal/config"
)

const configUsage = "tidyrun config [show|get <key>|set <key> <value>|path]"

// HandleConfig handles "tidyrun config".
func HandleConfig(args Args, w io.Writer) error {
	path, err := configPath(args)
	if err != nil {
		return err
	}

	p := NewArgParser(args.Raw)
	switch args.Subcommand {
	case "path":
		if args.JSON {
			return NewJSONResponse("config path", map[string]string{"path": path}).Print(w)
		}
		fmt.Fprintln(w, path)
		return nil

	case "", "show":
		cfg, err := loadConfig(args.ConfigPath)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config show", cfg.Redacted()).Print(w)
		}
		printConfig(w, cfg, path)
		return nil

	case "get":
		key, err := requirePositional(p, 1, "key", configUsage)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(args.ConfigPath)
		if err != nil {
			return err
		}
		val, err := cfg.Get(key)
		if err != nil {
			return &UsageError{Message: err.Error()}
		}
		if config.IsSecret(key) && fmt.Sprint(val) != "" {
			val = "[REDACTED]"
		}
		if args.JSON {
			return NewJSONResponse("config get", map[string]any{"key": key, "value": val}).Print(w)
		}
		fmt.Fprintln(w, val)
		return nil

	case "set":
		key, err := requirePositional(p, 1, "key", configUsage)
		if err != nil {
			return err
		}
		value, err := requirePositional(p, 2, "value", configUsage)
		if err != nil {
			return err
		}
		cfg, err := loadForEdit(path)
		if err != nil {
			return err
		}
		if err := cfg.Set(key, value); err != nil {
			return &UsageError{Message: err.Error()}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.SaveTOML(cfg, path); err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config set", map[string]string{"key": key, "path": path}).Print(w)
		}
		fmt.Fprintf(w, "%s %s updated in %s\n", RenderStatus("ok"), key, path)
		return nil
	}

	return &UsageError{Message: fmt.Sprintf("unknown config subcommand %q\nUsage: %s", args.Subcommand, configUsage)}
}

func configPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

// loadForEdit reads the file at path without environment overrides, so
// values taken from the environment are not written back.
func loadForEdit(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if strings.HasSuffix(path, ".json") {
		return nil, &UsageError{Message: "config set writes TOML; use a .toml config file"}
	}
	if err := config.LoadTOML(cfg, path); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

func printConfig(w io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(w, TitleStyle.Render("Configuration"))
	fmt.Fprintf(w, "%s %s\n", RenderLabel("File"), DimStyle.Render(path))
	fmt.Fprintln(w, RenderSeparator())

	section := ""
	for _, key := range config.GetAllKeys() {
		sec, _, found := strings.Cut(key, ".")
		if found && sec != section {
			section = sec
			fmt.Fprintln(w, SectionStyle.Render("["+sec+"]"))
		}
		val, err := cfg.Get(key)
		if err != nil {
			continue
		}
		shown := fmt.Sprint(val)
		if config.IsSecret(key) && shown != "" {
			shown = "[REDACTED]"
		}
		fmt.Fprintf(w, "  %-32s %s\n", key, ValueStyle.Render(shown))
	}
}
