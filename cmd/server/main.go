package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/acollard/roomgate/internal/api"
	"github.com/acollard/roomgate/internal/config"
	"github.com/acollard/roomgate/internal/server"
	"github.com/acollard/roomgate/internal/stats"
)

const defaultSigningKey = "5M1J3vX2sYhc4jmRgkCEudxyUZIqKbBL3p0zPlVn9sQ="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	signingKey     string
	portRetries    int
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.IntVar(&portRetries, "port-retries", 5, "additional ports to try when the configured one is taken")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[roomgate] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, signingKey, allowedOrigins, portRetries)
	if err != nil {
		logger.Fatal("config:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	app, err := api.NewApp(mux, logger, chatServer, statsUpdater, cfg)
	if err != nil {
		logger.Fatal("new app:", err)
	}

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := app.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
