package main

import (
	"fmt"

	"github.com/parlane/switchyard/internal/config"
	"github.com/parlane/switchyard/internal/db"
	"github.com/parlane/switchyard/internal/directory"
	"github.com/parlane/switchyard/internal/provenance"
	"github.com/parlane/switchyard/internal/resources"
	"github.com/parlane/switchyard/internal/router"
	"gorm.io/gorm"
)

const defaultConfigPath = "switchyard.yaml"

// connectFromConfig loads config and returns a GORM DB connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	return cfg, gormDB, nil
}

func buildDirectory(gormDB *gorm.DB) (*directory.Directory, error) {
	return directory.New(directory.Opts{DB: gormDB})
}

func buildRouter(cfg *config.Config, gormDB *gorm.DB) (*router.Router, error) {
	dir, err := buildDirectory(gormDB)
	if err != nil {
		return nil, err
	}
	return router.New(router.Opts{
		DB:           gormDB,
		Directory:    dir,
		Window:       cfg.RateLimit.Window.Std(),
		MaxPerWindow: cfg.RateLimit.MaxPerWindow,
	})
}

func buildLedger(gormDB *gorm.DB) (*provenance.Ledger, error) {
	dir, err := buildDirectory(gormDB)
	if err != nil {
		return nil, err
	}
	return provenance.New(provenance.Opts{DB: gormDB, Directory: dir})
}

func buildRegistry(gormDB *gorm.DB) (*resources.Registry, error) {
	dir, err := buildDirectory(gormDB)
	if err != nil {
		return nil, err
	}
	return resources.New(resources.Opts{DB: gormDB, Directory: dir})
}
