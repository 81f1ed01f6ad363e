package main

import (
	"os"

	"github.com/plandes/pamauth/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
