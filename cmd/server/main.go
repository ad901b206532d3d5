package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"analysis-backend/pkg/auth"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	issueToken := flag.String("issue-token", "", "print a signed API token for the given subject and exit")
	flag.Parse()

	// .env 可选
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	if *issueToken != "" {
		if err := printToken(*configPath, *issueToken); err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := InitializeApp(ConfigPath(*configPath))
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func printToken(configPath, subject string) error {
	cfg, err := provideConfig(ConfigPath(configPath))
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}

	issuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	token, err := issuer.Issue(subject, time.Now())
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

