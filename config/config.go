// Package config loads env-tagged configuration structs.
//
// A .env file in the working directory, when present, is loaded once before
// the first parse; variables already set in the environment win. Parsing
// is done by caarlos0/env, so struct fields use `env` and `envDefault` tags:
//
//	type Config struct {
//		Addr string `env:"HTTPD_ADDR" envDefault:"127.0.0.1:8080"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once
	dotenvErr  error
)

// Load fills cfg from the environment.
func Load[T any](cfg *T) error {
	if err := loadDotenv(); err != nil {
		return err
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse environment: %w", err)
	}
	return nil
}

// MustLoad is Load that panics on error, for use during startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// LoadFiles loads the given dotenv files, without overriding variables that
// are already set, then fills cfg.
func LoadFiles[T any](cfg *T, files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("config: load %v: %w", files, err)
	}
	return Load(cfg)
}

func loadDotenv() error {
	dotenvOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			dotenvErr = fmt.Errorf("config: load .env: %w", err)
		}
	})
	return dotenvErr
}
