// Command cable-sub is a CLI client for an ActionCable-style cable server.
package main

import (
	"fmt"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, relying on process environment")
	}
	Execute()
}
