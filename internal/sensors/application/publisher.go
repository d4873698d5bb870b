package application

import (
	"context"

	sensors "agro-simulator/internal/sensors/domain"
)

// CommandHandler receives decoded force commands. A nil command means the command
// record was removed.
type CommandHandler func(cmd *sensors.ForceCommand)

// Publisher delivers snapshots and panel overlays to the external store and relays
// commands from it.
type Publisher interface {
	TestConnection(ctx context.Context) error
	PublishSnapshot(ctx context.Context, snapshot sensors.Snapshot) error
	// SubscribeCommands blocks until ctx is cancelled.
	SubscribeCommands(ctx context.Context, handler CommandHandler) error
	SetOverlay(ctx context.Context, overlay sensors.PanelOverlay) error
	ClearOverlay(ctx context.Context) error
}

// SnapshotNotifier receives every snapshot built by the simulator.
type SnapshotNotifier interface {
	Notify(snapshot sensors.Snapshot)
}
