package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/mogaika/mmd_browser/config"
	"github.com/mogaika/mmd_browser/utils"
	"github.com/mogaika/mmd_browser/web"
)

func main() {
	var settingsPath, addr, dir, logLevel, webPath string
	var watch, physics, check bool
	var workers int
	flag.StringVar(&settingsPath, "config", "", "Path to yaml or toml settings")
	flag.StringVar(&addr, "i", "", "Address of server")
	flag.StringVar(&dir, "dir", "", "Path to directory with pmd and pmx models")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error")
	flag.StringVar(&webPath, "web", "web", "Path to folder with static data")
	flag.BoolVar(&watch, "watch", false, "Reload models when files change")
	flag.BoolVar(&physics, "physics", false, "Enable physics on server side poses")
	flag.BoolVar(&check, "check", false, "Load every model of -dir, report failures and exit")
	flag.IntVar(&workers, "workers", -1, "Parallel workers, 0 means sequential")
	flag.Parse()

	log := utils.Logger("main")

	settings := config.DefaultSettings()
	if settingsPath != "" {
		var err error
		if settings, err = config.LoadSettings(settingsPath); err != nil {
			log.Fatal(err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			settings.Addr = addr
		case "dir":
			settings.LibraryDir = dir
		case "log":
			settings.LogLevel = logLevel
		case "watch":
			settings.Watch = watch
		case "physics":
			settings.Physics = physics
		case "workers":
			settings.ParallelWorkers = workers
		}
	})
	if err := settings.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := utils.SetLogLevel(settings.LogLevel); err != nil {
		log.Fatal(err)
	}

	library := web.NewLibrary(settings, config.DefaultEncoding(), nil)

	if check {
		if failed := parseCheck(library, os.Stdout); failed != 0 {
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := web.StartServer(ctx, settings, library, webPath); err != nil {
		log.Fatal(err)
	}
}
