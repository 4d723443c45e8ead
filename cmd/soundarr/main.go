package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"soundarr/internal/app"
)

func main() {
	// missing .env is fine, the environment may be set directly
	_ = godotenv.Load()

	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
	if os.Getenv("DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}

	application, err := app.New()
	if err != nil {
		log.WithField("error", err).Fatal("failed to initialize application")
	}

	if err := application.Run(context.Background()); err != nil {
		log.WithField("error", err).Fatal("application exited with error")
	}
}
