/*
Copyright © 2025 tieubaoca
*/
package main

import (
	"github.com/joho/godotenv"
	"github.com/tieubaoca/knowledge-be/cmd"
)

func main() {
	// Missing .env is fine outside local development; config falls back to
	// real environment variables.
	godotenv.Load()
	cmd.Execute()
}
