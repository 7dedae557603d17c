package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/AgentOS/preview/internal/config"
	"github.com/GriffinCanCode/AgentOS/preview/internal/server"
)

func main() {
	cfg := config.LoadOrDefault()

	// Flags override environment variables
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Listen host")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	sanitize := flag.Bool("sanitize", cfg.Preview.Sanitize, "Sanitize rendered HTML")
	debounce := flag.Duration("debounce", cfg.Preview.Debounce, "Live preview debounce")
	timeout := flag.Duration("timeout", cfg.Preview.Timeout, "Evaluation timeout")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Logging.Development = *dev
	if *dev {
		cfg.Logging.Level = "debug"
	}
	cfg.Preview.Sanitize = *sanitize
	cfg.Preview.Debounce = *debounce
	cfg.Preview.Timeout = *timeout

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
		<-errChan
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}
}
