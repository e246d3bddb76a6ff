package state

import (
	"trender/internal/components"
	"trender/internal/config"
	"trender/internal/core"
)

// State is everything a running process holds after the loader wires it together.
type State struct {
	Config   *config.Config
	Registry *components.Registry
	Engine   *core.Engine
	Bot      *core.Bot
}

func NewState(cfg *config.Config, registry *components.Registry, engine *core.Engine, bot *core.Bot) *State {
	return &State{
		Config:   cfg,
		Registry: registry,
		Engine:   engine,
		Bot:      bot,
	}
}
