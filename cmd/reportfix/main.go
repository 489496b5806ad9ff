package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/config"
	"github.com/i-machine-things/JobDocs-sub000/internal/server"
	"github.com/i-machine-things/JobDocs-sub000/internal/util"
)

var (
	port        = flag.Int("port", 0, "server port (config.toml wins when it sets one explicitly)")
	devMode     = flag.Bool("dev", false, "development mode")
	dataDir     = flag.String("dataDir", "", "data directory (overrides config file)")
	customerDir = flag.String("customerDir", "", "customer files directory (overrides config file)")
)

func main() {
	flag.Parse()

	fmt.Println("==========================================")
	fmt.Println("  JobDocs Report Fixer")
	fmt.Println("==========================================")

	cfg, info, err := config.LoadConfigWithInfo()
	if err != nil {
		log.Printf("config load failed, using defaults: %v", err)
		cfg = config.DefaultConfig()
		info = config.LoadConfigInfo{}
	}

	if *port > 0 && !info.PortSpecified {
		cfg.Server.Port = *port
	}
	if *devMode {
		cfg.Server.DevMode = true
	}
	if *dataDir != "" {
		cfg.Data.DataDir = *dataDir
	}
	if *customerDir != "" {
		cfg.Report.CustomerFilesDir = *customerDir
	}

	logger, err := newLogger(cfg.Server.DevMode)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	dataPath, err := config.EnsureDataDir(cfg)
	if err != nil {
		logger.Warn("could not create data directory", zap.Error(err))
	} else {
		fmt.Printf("data directory: %s\n", dataPath)
	}

	srv := server.NewServer(cfg, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	url := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)

	go func() {
		fmt.Printf("listening on port %d ...\n", cfg.Server.Port)
		if err := srv.Run(addr); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	if !cfg.Server.DevMode {
		fmt.Printf("opening browser: %s\n", url)
		if err := util.OpenBrowserWithFallback(url); err != nil {
			fmt.Printf("could not open a browser, visit %s manually\n", url)
		}
	} else {
		fmt.Printf("dev mode: visit %s\n", url)
	}

	fmt.Println("\npress Ctrl+C to stop...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nshutting down...")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
