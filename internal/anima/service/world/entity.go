package world

import "time"

// Environment is a single described place. At most one environment is
// active at a time; the store enforces that on write.
type Environment struct {
	UUID               string    `json:"uuid"`
	Name               string    `json:"name"`
	OverallDescription string    `json:"overall_description"`
	Atmosphere         string    `json:"atmosphere"`
	Lighting           string    `json:"lighting"`
	Sounds             string    `json:"sounds"`
	Smells             string    `json:"smells"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
}

// Domain is a region grouping environments. DefaultEnvironmentUUID gives
// "go to <domain>" a concrete target.
type Domain struct {
	UUID                   string    `json:"uuid"`
	Name                   string    `json:"name"`
	Description            string    `json:"description"`
	DefaultEnvironmentUUID string    `json:"default_environment_uuid"`
	CreatedAt              time.Time `json:"created_at"`
}

// SwitchIntent is the environment-switch classification result.
type SwitchIntent struct {
	FromEnv   string `json:"from_env"`
	ToEnv     string `json:"to_env"`
	ToEnvUUID string `json:"-"`
	CanSwitch bool   `json:"can_switch"`
}

// VisionContext describes what the character currently perceives.
type VisionContext struct {
	Environment *Environment `json:"environment"`
	Domain      *Domain      `json:"domain,omitempty"`
	ObjectCount int          `json:"object_count"`
	Narration   string       `json:"narration"`
}
