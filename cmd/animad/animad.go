package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/kiosk404/anima/internal/animad"
)

func main() {
	if err := animad.NewAppCommand("animad").Execute(); err != nil {
		os.Exit(1)
	}
}
