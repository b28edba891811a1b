package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	_ "time/tzdata" // profile timezones must resolve on hosts without zoneinfo

	"sms-notify-server/internal/config"
	"sms-notify-server/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	// Initialize logger
	if err := logger.InitWithOptions(logger.Options{
		Level:   cfg.Logging.Level,
		Path:    cfg.Logging.Path,
		Console: cfg.Logging.Console,
	}); err != nil {
		panic(err)
	}
	defer logger.Info("Server shutting down")

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup and start server
	srv, err := SetupServer(cfg)
	if err != nil {
		logger.Fatal("Failed to setup server", zap.Error(err))
	}

	if err := StartServer(srv); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

// loadConfig resolves settings in order: defaults, config file, .env file,
// environment, then command-line flags.
func loadConfig(args []string) (*config.Config, error) {
	var (
		configPath string
		envFile    string
		port       int
	)

	flagSet := pflag.NewFlagSet("sms-notify-server", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a JSON or YAML config file")
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file to load into the environment, if present")
	flagSet.IntVarP(&port, "port", "p", 0, "listen port, overrides config and SERVER_PORT")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	// Existing environment variables win over the dotenv file.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg := config.DefaultConfig()
	if configPath != "" {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		loaded, err := config.LoadConfig(absPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
