package interfaces

import (
	"context"
	"errors"
	"log"

	"agro-simulator/internal/sensors/application"
	sensors "agro-simulator/internal/sensors/domain"
)

// LoggingPublisher logs snapshots and overlay changes instead of delivering them.
type LoggingPublisher struct {
	logger *log.Logger
}

var _ application.Publisher = (*LoggingPublisher)(nil)

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *log.Logger) *LoggingPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// TestConnection always succeeds.
func (p *LoggingPublisher) TestConnection(ctx context.Context) error {
	if p == nil {
		return errors.New("sensors publisher: nil publisher")
	}
	p.logger.Printf("log publisher: dry run, nothing is delivered")
	return ctx.Err()
}

// PublishSnapshot logs the snapshot.
func (p *LoggingPublisher) PublishSnapshot(ctx context.Context, snapshot sensors.Snapshot) error {
	_ = ctx
	if p == nil {
		return errors.New("sensors publisher: nil publisher")
	}
	p.logger.Printf("snapshot: panel=%s manual=%v readings=%d at=%d", snapshot.Panel, snapshot.Manual, len(snapshot.Readings), snapshot.At.UnixMilli())
	return nil
}

// SubscribeCommands never delivers commands; it blocks until ctx is cancelled.
func (p *LoggingPublisher) SubscribeCommands(ctx context.Context, handler application.CommandHandler) error {
	_ = handler
	<-ctx.Done()
	return nil
}

// SetOverlay logs the forced panel.
func (p *LoggingPublisher) SetOverlay(ctx context.Context, overlay sensors.PanelOverlay) error {
	_ = ctx
	if p == nil {
		return errors.New("sensors publisher: nil publisher")
	}
	p.logger.Printf("overlay set: estado=%s at=%d", overlay.State, overlay.At.UnixMilli())
	return nil
}

// ClearOverlay logs the release of the forced panel.
func (p *LoggingPublisher) ClearOverlay(ctx context.Context) error {
	_ = ctx
	if p == nil {
		return errors.New("sensors publisher: nil publisher")
	}
	p.logger.Printf("overlay cleared")
	return nil
}
