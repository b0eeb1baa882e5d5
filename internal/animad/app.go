package animad

import (
	"errors"
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiosk404/anima/internal/anima"
	"github.com/kiosk404/anima/internal/anima/config"
	"github.com/kiosk404/anima/internal/anima/options"
	"github.com/kiosk404/anima/pkg/logger"
)

const bannerText = `
     _          _
    / \   _ __ (_)_ __ ___   __ _
   / _ \ | '_ \| | '_ ` + "`" + ` _ \ / _` + "`" + ` |
  / ___ \| | | | | | | | | | (_| |
 /_/   \_\_| |_|_|_| |_| |_|\__,_|

      Persistent Role-Play Agent
`

// NewAppCommand builds the animad root command.
func NewAppCommand(basename string) *cobra.Command {
	opts := options.NewOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:   basename,
		Short: "animad runs a persistent conversational role-play agent",
		Long: heredoc.Doc(`
			animad hosts a single long-lived character: layered memory over
			sqlite, a base-knowledge fact layer, emotion tracking, environment
			state, a schedule engine and an event-driven task graph, served
			over a small HTTP API.

			Configuration comes from a yaml file plus command line overrides.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			color.Cyan(bannerText)

			if err := loadConfig(configFile, opts); err != nil {
				return err
			}
			if err := opts.Complete(); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}

			if err := logger.InitLog(fmt.Sprintf("%s.log", basename)); err != nil {
				return err
			}
			defer logger.FlushLog()

			cfg, err := config.CreateConfigFromOptions(opts)
			if err != nil {
				return err
			}
			return anima.Run(cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the animad configuration file.")
	opts.AddFlags(cmd.Flags())
	_ = viper.BindPFlags(cmd.Flags())

	return cmd
}

// loadConfig merges the yaml file, when one is given or found, into opts.
// Flags already bound to viper keep precedence over file values.
func loadConfig(path string, opts *options.Options) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("animad")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.anima")
		}
	}
	viper.SetEnvPrefix("ANIMA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("animad: read config: %w", err)
	}
	if err := viper.Unmarshal(opts); err != nil {
		return fmt.Errorf("animad: unmarshal config: %w", err)
	}
	return nil
}
