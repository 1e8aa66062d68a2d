package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/smithers-cli/smithers/cmd"
)

func main() {
	// A missing .env is fine; OLLAMA_HOST and SMITHERS_* may come from the environment.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
