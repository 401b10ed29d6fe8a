package main

import (
	"os"

	"github.com/jayshah5696/sagg/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
