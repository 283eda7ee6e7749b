package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/mortu/Controllable-Mobs-API/internal/app"
	"github.com/mortu/Controllable-Mobs-API/internal/observability"
)

func main() {
	var (
		tuningPath string
		demo       bool
		pprof      bool
	)
	flag.StringVar(&tuningPath, "tuning", "", "path to a YAML tuning file")
	flag.BoolVar(&demo, "demo", false, "stage scripted controller commands after spawning")
	flag.BoolVar(&pprof, "pprof", false, "mount net/http/pprof under /debug/pprof/")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := app.Run(ctx, app.Config{
		Logger:        logger,
		Observability: observability.Config{EnablePprofTrace: pprof},
		TuningPath:    tuningPath,
		Demo:          demo,
	})
	if err != nil {
		logger.Fatalf("%v", err)
	}
}
