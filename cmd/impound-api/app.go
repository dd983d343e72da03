package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	inspectionsapi "github.com/FieldReport/ImpoundBox/internal/api/inspections_api"
	"github.com/FieldReport/ImpoundBox/internal/broker/messages"
	"github.com/FieldReport/ImpoundBox/internal/services/inspections"
	"github.com/FieldReport/ImpoundBox/internal/services/releases"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type impoundAPIOpts struct {
	httpAddr    string
	swaggerPath string

	resultTopic   string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(topic string, key, value []byte) error) error
}

func runImpoundAPI(ctx context.Context, opts impoundAPIOpts, insp *inspections.Service, rel *releases.Service, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	api := inspectionsapi.New(insp, rel)

	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}

	if opts.onListen != nil {
		opts.onListen(httpLis.Addr().String())
	}

	// Итоги СМС-доставки приходят от нотификатора и оседают в notify-полях.
	go func() {
		slog.Info("kafka consumer started", "topic", opts.resultTopic, "group", opts.consumerGroup)
		_ = consumer.Consume(ctx, func(_topic string, _key, value []byte) error {
			var m messages.NotificationResult
			if err := json.Unmarshal(value, &m); err != nil {
				return err
			}
			return insp.ApplyNotificationResult(ctx, m)
		})
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, httpLis, api, opts.swaggerPath)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, api *inspectionsapi.InspectionsAPI, swaggerPath string) error {
	r := chi.NewRouter()
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, swaggerPath)
	})

	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Mount("/v1", api.Routes())

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
