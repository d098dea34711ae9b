package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sketchpilot/internal/assistant"
	"sketchpilot/internal/catalog"
	"sketchpilot/internal/config"
	"sketchpilot/internal/history"
	"sketchpilot/internal/prompt"
	"sketchpilot/internal/proxy"
	"sketchpilot/internal/rpc"
	"sketchpilot/internal/runner"
	"sketchpilot/internal/sketch"
	"sketchpilot/internal/toolchain"
)

func main() {
	configPath := flag.String("config", "sketchpilot.toml", "path to config file")
	sketchPath := flag.String("sketch", "", "sketch file to open")
	fqbn := flag.String("fqbn", "", "board FQBN for compile/upload")
	port := flag.String("port", "", "serial port for upload")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	turns, err := history.Open(cfg.HistoryPath, cfg.HistoryWindow)
	if err != nil {
		log.Fatalf("Failed to open history: %v", err)
	}
	defer turns.Close()

	// The document: open the given sketch or start empty.
	var doc *sketch.Document
	if *sketchPath != "" {
		doc, err = sketch.Load(*sketchPath)
		if err != nil {
			log.Fatalf("Failed to open sketch: %v", err)
		}
	} else if cfg.SketchPath != "" {
		if doc, err = sketch.Load(cfg.SketchPath); err != nil {
			doc = sketch.NewDocument(cfg.SketchPath)
		}
	} else {
		doc = sketch.NewDocument("")
	}

	client := proxy.NewClient(cfg.ProxyURL, cfg.ProxySecret, cfg.RequestTimeoutValue(), cfg.RateLimitRPM, turns)
	builder := prompt.NewBuilder(cfg.MaxPromptLength, turns)
	snippetRunner := runner.New(cfg.RunnerCommand).
		WithTimeout(cfg.RunnerTimeoutValue()).
		WithMaxOutputBytes(cfg.RunnerMaxOutput)

	// One surface per role, all sharing the document and the log.
	surfaces := make(map[prompt.Role]*assistant.Surface)
	for _, role := range prompt.Roles() {
		surfaces[role] = assistant.NewSurface(role, builder, client, doc, snippetRunner)
	}

	cat := catalog.Load(context.Background(), cfg.CatalogURL)
	chain := toolchain.New(cfg.ArduinoCLI, *fqbn, *port)

	server := rpc.NewServer(surfaces, doc, cat, chain, cfg.BuildFolder)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(os.Stdin, os.Stdout)
	}()

	log.Printf("sketchpilot started with %d assistant surfaces", len(surfaces))

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down gracefully...", sig)
	case err := <-serveErr:
		if err != nil {
			log.Printf("Server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if err := turns.Checkpoint(); err != nil {
		log.Printf("WAL checkpoint error: %v", err)
	}

	log.Println("Graceful shutdown completed")
}
