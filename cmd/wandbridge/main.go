package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wandbridge/internal/api"
	"wandbridge/internal/ble"
	"wandbridge/internal/bridge"
	"wandbridge/internal/config"
	"wandbridge/internal/detector"
	"wandbridge/internal/events"
	"wandbridge/internal/history"
	"wandbridge/internal/logging"
	"wandbridge/internal/mqtt"
	"wandbridge/internal/storage"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logs := logging.NewLogrus(cfg.LogLevel(), os.Stdout)
	log := logs.Get("main")

	log.WithField("version", version).Info("wandbridge starting")
	if cfg.NoAuth() {
		log.Warn("Authentication is DISABLED")
	}
	if cfg.ProxyURL() == "" {
		log.Fatal("BLE proxy URL is required (proxy.url or WANDBRIDGE_PROXY_URL)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistent stores
	store, err := storage.NewBoltStorage(cfg.StoragePath())
	if err != nil {
		log.WithError(err).Fatal("Failed to open storage")
	}
	defer store.Close()

	hist, err := history.NewStore(cfg.HistoryPath())
	if err != nil {
		log.WithError(err).Fatal("Failed to open cast history")
	}
	defer hist.Close()

	eventStore := events.NewStore(100) // Keep last 100 events in memory

	// MQTT
	mqttClient, err := mqtt.New(mqtt.Config{
		Broker:   cfg.MQTTBroker(),
		ClientID: cfg.MQTTClientID(),
		Username: cfg.MQTTUsername(),
		Password: cfg.MQTTPassword(),
		Prefix:   cfg.MQTTPrefix(),
		UseTLS:   cfg.MQTTUseTLS(),
	}, logs.Get("mqtt"))
	if err != nil {
		log.WithError(err).Fatal("Failed to create MQTT client")
	}
	if err := mqttClient.Connect(); err != nil {
		// The paho client keeps reconnecting in the background.
		log.WithError(err).Warn("MQTT broker unreachable, continuing")
	}
	defer mqttClient.Disconnect()

	publisher := mqtt.NewPublisher(mqttClient, logs.Get("mqtt"))
	discovery := mqtt.NewDiscoveryManager(mqttClient, logs.Get("discovery"), store)

	// Spell detector
	deps := bridge.Deps{
		Transport: nil, // set below
		Publisher: publisher,
		Discovery: discovery,
		History:   hist,
		Events:    eventStore,
		Store:     store,
	}
	if det := setupDetector(ctx, cfg, logs); det != nil {
		deps.Detector = det
	}

	// BLE proxy and bridge
	proxy := ble.NewProxy(cfg.ProxyURL(), logs.Get("ble"))
	deps.Transport = proxy

	br := bridge.New(cfg, deps, logs.Get("bridge"))
	br.Bind(proxy)

	go func() {
		if err := proxy.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("BLE proxy stopped")
		}
	}()

	if err := br.Start(ctx); err != nil {
		log.WithError(err).Warn("Initial scan failed, proxy will retry")
	}

	// HTTP API
	server := api.NewServer(cfg, br, hist, eventStore, version)
	httpSrv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP shutdown failed")
		}
	}()

	log.WithField("addr", cfg.Addr()).Info("HTTP server listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Server failed")
	}

	log.Info("wandbridge stopped")
}

// setupDetector wires the TFLite detection service when configured.
// Returns nil when server-side detection is disabled; the bridge then
// relies on the wand's built-in detection only.
func setupDetector(ctx context.Context, cfg *config.Config, logs *logging.Logrus) *detector.Client {
	log := logs.Get("detector")

	if cfg.DetectorURL() == "" || cfg.ModelPath() == "" {
		log.Info("Server-side detection disabled (no detector URL or model path)")
		return nil
	}

	// Verify the model file before shipping it to the detection service.
	if keyStr := cfg.DetectorPublicKey(); keyStr != "" {
		pubKey, err := detector.ParsePublicKey(keyStr)
		if err != nil {
			log.WithError(err).Fatal("Invalid detector public key")
		}
		if err := detector.VerifyModelSignature(cfg.ModelPath(), cfg.SignaturePath(), pubKey); err != nil {
			log.WithError(err).Fatal("Model signature verification failed")
		}
		log.Info("Model signature verified")
	}

	det, err := detector.New(cfg.DetectorURL(), cfg.ModelPath(), log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create detector client")
	}

	if !det.Healthy(ctx) {
		log.Warn("Detection service unreachable at startup")
		return det
	}
	if err := det.UploadModel(ctx); err != nil {
		log.WithError(err).Warn("Model upload failed")
	}
	return det
}
