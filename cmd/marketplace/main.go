package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/americavendas/marketplace/internal/pkg/bootstrap"
	"github.com/americavendas/marketplace/internal/pkg/config"
	"github.com/americavendas/marketplace/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Main] invalid configuration: %v", err)
	}

	rt, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{Background: true})
	if err != nil {
		log.Fatalf("[Main] startup failed: %v", err)
	}
	rt.Manager.Start()

	go func() {
		if err := rt.App.Listen(fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)); err != nil {
			log.Errorf("[Main] server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("[Main] shutting down")
	if err := rt.App.ShutdownWithTimeout(15 * time.Second); err != nil {
		log.Errorf("[Main] shutdown: %v", err)
	}
	rt.Close()
}
