// maintscan is the barcode-driven maintenance tracking service for the
// shop: scan a printed QR or type a maintenance number, pick a transition,
// and the item's status moves through the workshop workflow.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maintscan/internal/auth"
	"maintscan/internal/config"
	"maintscan/internal/events"
	"maintscan/internal/httpapi"
	"maintscan/internal/scan"
	"maintscan/internal/store"
	"maintscan/internal/store/postgres"
	"maintscan/internal/store/sqlite"
	"maintscan/internal/websocket"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config.yaml")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	dsn := flag.String("dsn", "", "Postgres DSN; selects the postgres driver")
	hashKey := flag.String("hash-key", "", "Print the bcrypt hash for a new API key secret and exit")
	flag.Parse()

	if *hashKey != "" {
		hash, err := auth.HashKey(*hashKey)
		if err != nil {
			log.Fatal("hash key:", err)
		}
		fmt.Println(hash)
		return
	}

	cfg := config.Defaults()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.Fatal("config:", err)
		}
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = *dbPath
	}
	if *dsn != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = *dsn
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	var err error
	switch cfg.Database.Driver {
	case "postgres":
		st, err = postgres.Connect(ctx, cfg.Database.DSN)
	default:
		st, err = sqlite.Open(cfg.Database.Path)
	}
	if err != nil {
		log.Fatal("store init failed:", err)
	}
	defer st.Close()
	log.Printf("store: %s ready", cfg.Database.Driver)

	var pub events.Publisher = events.Nop{}
	if cfg.RabbitMQ.URL != "" {
		amqpPub, err := events.DialAMQP(cfg.RabbitMQ.URL)
		if err != nil {
			log.Fatal("rabbitmq:", err)
		}
		defer amqpPub.Close()
		pub = amqpPub
		log.Print("events: rabbitmq publisher connected")
	}

	hub := websocket.NewHub()
	session := scan.NewSession(st, pub, hub.BroadcastScan)
	keyring := auth.NewKeyring(cfg.APIKeys)
	if keyring.Open() {
		log.Print("auth: no api keys configured, running open")
	}

	handler := httpapi.New(st, session, hub, pub, keyring)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Routes(),
	}

	go func() {
		log.Printf("maintscan listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server:", err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Print("shutdown:", err)
	}
}
