package main

import (
	"flag"
	"os"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/config"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/logger"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/sidebarservice"
)

func main() {
	// Optional build-target flag override (local | cloud)
	buildTarget := flag.String("build-target", "", "Override BUILD_TARGET (local, cloud)")
	flag.Parse()

	log := logger.New("sidebar-service")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *buildTarget != "" {
		cfg.BuildTarget = *buildTarget
		cfg.DBDriver = "auto"
		if err := cfg.ResolveDefaults(); err != nil {
			log.Fatal().Err(err).Msg("Invalid build-target override")
		}
	}

	if err := sidebarservice.Run(cfg); err != nil {
		os.Exit(1)
	}
}
