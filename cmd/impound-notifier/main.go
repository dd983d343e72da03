package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FieldReport/ImpoundBox/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	f := defaultNotifierFactories()
	n := buildNotifier(cfg, f)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		err := runNotifierHTTPServer(ctx, notifierHTTPOpts{
			httpAddr:    cfg.ImpoundBox.NotifierHTTPAddr,
			swaggerPath: os.Getenv("swaggerPath"),
			notifier:    n,
			cfg:         cfg,
		})
		if err != nil && err != context.Canceled {
			slog.Error("notifier http server", "error", err.Error())
		}
	}()

	if err := RunImpoundNotifier(ctx, cfg, f, n); err != nil && err != context.Canceled {
		panic(err)
	}
}
