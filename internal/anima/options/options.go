package options

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/pkg/utils/jsonx"
)

// ServerOptions configures the HTTP surface.
type ServerOptions struct {
	BindAddress string `json:"bind_address" mapstructure:"bind_address"`
	BindPort    int    `json:"bind_port"    mapstructure:"bind_port"`
	Healthz     bool   `json:"healthz"      mapstructure:"healthz"`
	Pprof       bool   `json:"pprof"        mapstructure:"pprof"`
}

// StoreOptions configures persistence paths.
type StoreOptions struct {
	DBPath         string `json:"db_path"         mapstructure:"db_path"`
	CheckpointPath string `json:"checkpoint_path" mapstructure:"checkpoint_path"`
}

// CharacterOptions identifies the played character.
type CharacterOptions struct {
	Name        string `json:"name"        mapstructure:"name"`
	Profile     string `json:"profile"     mapstructure:"profile"`
	World       string `json:"world"       mapstructure:"world"`
	Personality string `json:"personality" mapstructure:"personality"`
	Hobbies     string `json:"hobbies"     mapstructure:"hobbies"`
}

// MemoryOptions tunes the layered memory and analysis intervals.
type MemoryOptions struct {
	MaxShortTermRounds      int `json:"max_short_term_rounds"     mapstructure:"max_short_term_rounds"`
	ExtractionInterval      int `json:"extraction_interval"       mapstructure:"extraction_interval"`
	ExpressionLearnInterval int `json:"expression_learn_interval" mapstructure:"expression_learn_interval"`
	EmotionFirstRounds      int `json:"emotion_first_rounds"      mapstructure:"emotion_first_rounds"`
	EmotionInterval         int `json:"emotion_interval"          mapstructure:"emotion_interval"`
}

// Options is the full runnable configuration of the anima service.
type Options struct {
	Server    *ServerOptions    `json:"server"    mapstructure:"server"`
	Store     *StoreOptions     `json:"store"     mapstructure:"store"`
	Character *CharacterOptions `json:"character" mapstructure:"character"`
	Memory    *MemoryOptions    `json:"memory"    mapstructure:"memory"`
	PromptDir string            `json:"prompt_dir" mapstructure:"prompt_dir"`
	Models    llm.Tiers         `json:"models"    mapstructure:"models"`
}

// NewOptions returns the defaults.
func NewOptions() *Options {
	return &Options{
		Server: &ServerOptions{
			BindAddress: "127.0.0.1",
			BindPort:    11799,
			Healthz:     true,
		},
		Store: &StoreOptions{
			DBPath:         "anima.db",
			CheckpointPath: "anima-checkpoints.db",
		},
		Character: &CharacterOptions{Name: "Anima"},
		Memory:    &MemoryOptions{},
		PromptDir: "configs/prompts",
		Models:    llm.Tiers{},
	}
}

// AddFlags registers command line overrides for the most common options.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Server.BindAddress, "bind-address", o.Server.BindAddress, "Address the HTTP server listens on.")
	fs.IntVar(&o.Server.BindPort, "bind-port", o.Server.BindPort, "Port the HTTP server listens on.")
	fs.BoolVar(&o.Server.Pprof, "pprof", o.Server.Pprof, "Expose pprof profiling routes.")
	fs.StringVar(&o.Store.DBPath, "db-path", o.Store.DBPath, "Path to the sqlite database file.")
	fs.StringVar(&o.Store.CheckpointPath, "checkpoint-path", o.Store.CheckpointPath, "Path to the task checkpoint database.")
	fs.StringVar(&o.PromptDir, "prompt-dir", o.PromptDir, "Root directory of the prompt templates.")
	fs.StringVar(&o.Character.Name, "character-name", o.Character.Name, "Name of the played character.")
}

// Complete fills derived defaults.
func (o *Options) Complete() error {
	if o.Server == nil || o.Store == nil || o.Character == nil || o.Memory == nil {
		return fmt.Errorf("options: incomplete configuration")
	}
	return nil
}

// Validate checks the configuration for obvious mistakes.
func (o *Options) Validate() error {
	if o.Server.BindPort <= 0 || o.Server.BindPort > 65535 {
		return fmt.Errorf("options: invalid bind port %d", o.Server.BindPort)
	}
	if _, ok := o.Models[llm.TierMain]; !ok {
		return fmt.Errorf("options: models.main must be configured")
	}
	return nil
}

func (o *Options) String() string {
	data, _ := jsonx.Marshal(o)
	return string(data)
}
