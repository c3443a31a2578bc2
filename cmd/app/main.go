package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/debug"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/di"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/config"
)

func main() {
	var (
		configPath  = flag.String("config", "config/config.yaml", "config file path")
		showVersion = flag.Bool("version", false, "print build info and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(buildVersion())
		return
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	// Plain log until the DI graph brings up the structured logger.
	log.Printf("starting env=%s port=%d symbols=%v timeframes=%v",
		cfg.Environment, cfg.Server.Port, cfg.MarketData.Symbols, cfg.Pipeline.Timeframes)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run blocks until SIGINT or SIGTERM and drains the pipeline on the way
	// out.
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "devel"
}
