package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/metalagman/stepforge/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a stepforge project",
		Long:  "Initialize a stepforge project by creating the .stepforge directory and installing a default config.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			return initProject(repoRoot)
		},
	}
}

func initProject(repoRoot string) error {
	configPath := filepath.Join(repoRoot, config.DefaultPath)
	log.Info().Str("dir", filepath.Dir(configPath)).Msg("creating stepforge directory")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create stepforge dir: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		log.Info().Msg("config.yaml already exists, skipping")
		return nil
	}
	log.Info().Str("path", configPath).Msg("installing default config")
	defaultConfig := map[string]any{
		"store": map[string]any{
			"path": filepath.Join(".stepforge", "stepforge.db"),
			"save": false,
		},
		"output": map[string]any{
			"format": "yaml",
		},
	}
	data, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
