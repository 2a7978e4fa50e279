package main

import (
	"os"

	"github.com/madlen/chat-backend/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
