package anima

import (
	"github.com/kiosk404/anima/internal/anima/config"
)

// Run builds the API server from the configuration and blocks serving it.
func Run(cfg *config.Config) error {
	server, err := createAPIServer(cfg)
	if err != nil {
		return err
	}

	return server.PrepareRun().Run()
}
