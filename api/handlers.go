package api

import (
	"github.com/voxform/voxform/ai"
	"github.com/voxform/voxform/cleanup"
	"github.com/voxform/voxform/reconnect"
	"github.com/voxform/voxform/session"
	"github.com/voxform/voxform/telemetry"
	"github.com/voxform/voxform/tools"
)

// Handlers holds references to the components the REST surface operates on
type Handlers struct {
	sessions  *session.Manager
	ledger    *reconnect.Ledger
	tracker   *tools.Tracker
	streams   *ai.StreamRegistry
	cleanup   *cleanup.Orchestrator
	voice     *ai.Provider
	telemetry *telemetry.Emitter
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	sessions *session.Manager,
	ledger *reconnect.Ledger,
	tracker *tools.Tracker,
	streams *ai.StreamRegistry,
	orchestrator *cleanup.Orchestrator,
	voice *ai.Provider,
	emitter *telemetry.Emitter,
) *Handlers {
	return &Handlers{
		sessions:  sessions,
		ledger:    ledger,
		tracker:   tracker,
		streams:   streams,
		cleanup:   orchestrator,
		voice:     voice,
		telemetry: emitter,
	}
}
