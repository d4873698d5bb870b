package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	sensors "agro-simulator/internal/sensors/domain"
)

func TestDecodeNotification(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		ok      bool
		state   string
		wantErr bool
	}{
		{"matching device", `{"device_id":"algodao","forcar_estado":"VERMELHO"}`, true, "VERMELHO", false},
		{"null state", `{"device_id":"algodao","forcar_estado":null}`, true, "", false},
		{"other device", `{"device_id":"soja","forcar_estado":"VERDE"}`, false, "", false},
		{"malformed", `{`, false, "", true},
	}
	for _, tc := range cases {
		cmd, ok, err := decodeNotification(tc.payload, "algodao")
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if ok != tc.ok {
			t.Fatalf("%s: expected ok=%v, got %v", tc.name, tc.ok, ok)
		}
		if ok && cmd.State != tc.state {
			t.Fatalf("%s: expected state %q, got %q", tc.name, tc.state, cmd.State)
		}
	}
}

func TestNewPublisher_Validation(t *testing.T) {
	if _, err := NewPublisher(nil, "postgres://x", "", nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestPublisher_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if !tableExists(db, "sensor_snapshots") || !tableExists(db, "panel_overlays") || !tableExists(db, "panel_commands") {
		t.Skip("missing tables; run migrations")
	}

	deviceID := "device-it-agro"
	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM sensor_snapshots WHERE device_id = $1", deviceID)
	_, _ = db.ExecContext(ctx, "DELETE FROM panel_overlays WHERE device_id = $1", deviceID)

	pub, err := NewPublisher(db, dsn, deviceID, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	pub.reconnectDelay = 50 * time.Millisecond
	if err := pub.TestConnection(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	at := time.UnixMilli(1714564800000)
	snap := sensors.Snapshot{
		Readings: []sensors.NamedReading{
			{Name: "ph", Reading: sensors.Reading{Value: 4.2, Status: sensors.StatusCritico, At: at}},
		},
		Panel: sensors.PanelVermelho,
		At:    at,
	}
	for i := 0; i < 2; i++ {
		if err := pub.PublishSnapshot(ctx, snap); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	var painel string
	var payload []byte
	if err := db.QueryRowContext(ctx, "SELECT painel, payload FROM sensor_snapshots WHERE device_id = $1", deviceID).Scan(&painel, &payload); err != nil {
		t.Fatalf("select snapshot: %v", err)
	}
	if painel != "VERMELHO" {
		t.Fatalf("expected VERMELHO, got %s", painel)
	}
	var record map[string]json.RawMessage
	if err := json.Unmarshal(payload, &record); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if _, ok := record["ph"]; !ok {
		t.Fatalf("expected ph in payload")
	}

	if err := pub.SetOverlay(ctx, sensors.PanelOverlay{State: sensors.PanelAmarelo, At: at}); err != nil {
		t.Fatalf("set overlay: %v", err)
	}
	var estado string
	if err := db.QueryRowContext(ctx, "SELECT estado FROM panel_overlays WHERE device_id = $1", deviceID).Scan(&estado); err != nil {
		t.Fatalf("select overlay: %v", err)
	}
	if estado != "AMARELO" {
		t.Fatalf("expected AMARELO, got %s", estado)
	}
	if err := pub.ClearOverlay(ctx); err != nil {
		t.Fatalf("clear overlay: %v", err)
	}
	var count int
	_ = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM panel_overlays WHERE device_id = $1", deviceID).Scan(&count)
	if count != 0 {
		t.Fatalf("expected overlay removed, got %d rows", count)
	}

	listenCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	got := make(chan string, 1)
	go func() {
		_ = pub.SubscribeCommands(listenCtx, func(cmd *sensors.ForceCommand) {
			select {
			case got <- cmd.State:
			default:
			}
		})
	}()
	deadline := time.After(4 * time.Second)
	for {
		if _, err := db.ExecContext(ctx, "INSERT INTO panel_commands (device_id, forcar_estado) VALUES ($1, $2)", deviceID, "VERDE"); err != nil {
			t.Fatalf("insert command: %v", err)
		}
		select {
		case state := <-got:
			if state != "VERDE" {
				t.Fatalf("expected VERDE, got %s", state)
			}
			return
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for command notification")
		}
	}
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
