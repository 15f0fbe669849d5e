package main

import (
	"os"

	"github.com/claudia-sync/claudia/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
