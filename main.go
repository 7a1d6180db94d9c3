package main

// main.go

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	confFilepath := "config.json"
	if len(os.Args) == 2 {
		confFilepath = os.Args[1]
	}

	if conf, err := loadConfig(confFilepath); err == nil {
		runServer(conf)
	} else {
		Log.WithField("error", err).Error("failed to load config")
		os.Exit(1)
	}
}
