package main

import (
	"os"

	"waitlist-server/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
