package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/chrissnell/isohydro/internal/app"
	"github.com/chrissnell/isohydro/internal/log"
	"github.com/chrissnell/isohydro/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	// A missing .env is normal; the environment and flags still apply.
	envErr := godotenv.Load()

	cfgFile := flag.String("config", getenvDefault("ISOHYDRO_CONFIG", "config.yaml"), "Path to configuration source:\n\t\t\t  YAML: config.yaml\n\t\t\t  SQLite: config.db\n\t\t\t  Use 'config-convert' tool to convert YAML→SQLite")
	cfgBackend := flag.String("config-backend", getenvDefault("ISOHYDRO_CONFIG_BACKEND", "yaml"), "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	modeFlag := flag.String("mode", "all", "Jobs to run: runoff, calibrate, hypercube or all")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("isohydro %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envErr != nil {
		log.Debugf("no .env file loaded: %v", envErr)
	}

	mode, err := app.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Load configuration
	cfgData, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		log.Sync()
		os.Exit(1)
	}

	log.Infow("starting isohydro", "version", version, "mode", mode, "config", *cfgFile, "backend", *cfgBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create and run the application
	application := app.New(cfgData, log.Named("app"))
	if err := application.Run(ctx, mode); err != nil {
		log.Errorf("Application error: %v", err)
		stop()
		log.Sync()
		os.Exit(1)
	}
}

func loadConfig(cfgFile, cfgBackend string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider
	var err error

	switch cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		provider, err = config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
	defer provider.Close()

	cfgData, err := config.Load(provider)
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	return cfgData, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
