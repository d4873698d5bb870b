package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"agro-simulator/internal/sensors/application"
	sensors "agro-simulator/internal/sensors/domain"
)

const (
	DefaultDeviceID = "algodao"
	commandChannel  = "panel_commands"

	defaultReconnectDelay = 5 * time.Second
)

// Publisher stores the latest snapshot and forced panel per device and listens for
// commands inserted into panel_commands.
type Publisher struct {
	db             *sql.DB
	dsn            string
	deviceID       string
	reconnectDelay time.Duration
	logger         *log.Logger
}

var _ application.Publisher = (*Publisher)(nil)

// NewPublisher constructs a Postgres publisher. dsn is used for the dedicated LISTEN
// connection.
func NewPublisher(db *sql.DB, dsn, deviceID string, logger *log.Logger) (*Publisher, error) {
	if db == nil {
		return nil, errors.New("postgres: nil db")
	}
	if dsn == "" {
		return nil, errors.New("postgres: empty dsn")
	}
	if deviceID == "" {
		deviceID = DefaultDeviceID
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{
		db:             db,
		dsn:            dsn,
		deviceID:       deviceID,
		reconnectDelay: defaultReconnectDelay,
		logger:         logger,
	}, nil
}

// TestConnection pings the database.
func (p *Publisher) TestConnection(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// PublishSnapshot upserts the latest snapshot of the device.
func (p *Publisher) PublishSnapshot(ctx context.Context, snapshot sensors.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
INSERT INTO sensor_snapshots (
	device_id,
	painel,
	manual,
	payload,
	observed_at,
	updated_at
) VALUES (
	$1, $2, $3, $4, $5, NOW()
)
ON CONFLICT (device_id)
DO UPDATE SET
	painel = EXCLUDED.painel,
	manual = EXCLUDED.manual,
	payload = EXCLUDED.payload,
	observed_at = EXCLUDED.observed_at,
	updated_at = NOW()`,
		p.deviceID, string(snapshot.Panel), snapshot.Manual, payload, snapshot.At.UTC())
	return err
}

// SetOverlay upserts the forced panel.
func (p *Publisher) SetOverlay(ctx context.Context, overlay sensors.PanelOverlay) error {
	_, err := p.db.ExecContext(ctx, `
INSERT INTO panel_overlays (device_id, estado, forced_at)
VALUES ($1, $2, $3)
ON CONFLICT (device_id)
DO UPDATE SET estado = EXCLUDED.estado, forced_at = EXCLUDED.forced_at`,
		p.deviceID, string(overlay.State), overlay.At.UTC())
	return err
}

// ClearOverlay removes the forced panel.
func (p *Publisher) ClearOverlay(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM panel_overlays WHERE device_id = $1`, p.deviceID)
	return err
}

type commandNotification struct {
	DeviceID string  `json:"device_id"`
	State    *string `json:"forcar_estado"`
}

// SubscribeCommands listens on the panel_commands channel until ctx is cancelled,
// reconnecting after connection failures.
func (p *Publisher) SubscribeCommands(ctx context.Context, handler application.CommandHandler) error {
	for {
		err := p.listen(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		p.logger.Printf("postgres: command listener stopped: %v; reconnecting in %s", err, p.reconnectDelay)
		timer := time.NewTimer(p.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (p *Publisher) listen(ctx context.Context, handler application.CommandHandler) error {
	conn, err := pgx.Connect(ctx, p.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+commandChannel); err != nil {
		return err
	}
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		cmd, ok, err := decodeNotification(notification.Payload, p.deviceID)
		if err != nil {
			p.logger.Printf("postgres: malformed command notification: %v", err)
			continue
		}
		if ok {
			handler(cmd)
		}
	}
}

// decodeNotification returns the command addressed to deviceID, if any. A null
// forcar_estado is a command to release the panel.
func decodeNotification(payload, deviceID string) (*sensors.ForceCommand, bool, error) {
	var n commandNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, false, err
	}
	if n.DeviceID != deviceID {
		return nil, false, nil
	}
	cmd := &sensors.ForceCommand{}
	if n.State != nil {
		cmd.State = *n.State
	}
	return cmd, true, nil
}
