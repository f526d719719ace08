package main

import (
	"os"
	"path/filepath"

	"github.com/metalagman/stepforge/internal/app"
	"github.com/metalagman/stepforge/internal/config"
	"github.com/metalagman/stepforge/internal/db"
	"github.com/spf13/viper"
)

func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// loadConfig reads the --config file, or the default one if present.
func loadConfig(repoRoot string) (config.Config, error) {
	path := viper.GetString("config")
	required := path != ""
	if !required {
		path = config.DefaultPath
	}
	return config.Load(viper.New(), resolvePath(repoRoot, path), required)
}

func loadServices() (*app.Services, string, error) {
	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return nil, "", err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return nil, "", err
	}
	return svc, repoRoot, nil
}

func openStore(repoRoot string, cfg config.Config) (*db.Store, func(), error) {
	storeDB, err := db.Open(resolvePath(repoRoot, cfg.Store.Path))
	if err != nil {
		return nil, func() {}, err
	}
	return db.NewStore(storeDB), func() { _ = storeDB.Close() }, nil
}
