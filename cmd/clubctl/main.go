// Package main provides the clubctl CLI entrypoint.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/campusclubs/club-engine/cmd/clubctl/commands"
)

func main() {
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
