package application

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	sensors "agro-simulator/internal/sensors/domain"
)

type stubPublisher struct {
	mu        sync.Mutex
	snapshots []sensors.Snapshot
	overlays  []sensors.PanelOverlay
	clears    int
	failFirst bool
	published chan struct{}
	commands  []*sensors.ForceCommand
}

func newStubPublisher() *stubPublisher {
	return &stubPublisher{published: make(chan struct{}, 16)}
}

func (p *stubPublisher) TestConnection(ctx context.Context) error { return nil }

func (p *stubPublisher) PublishSnapshot(ctx context.Context, snapshot sensors.Snapshot) error {
	p.mu.Lock()
	fail := p.failFirst
	p.failFirst = false
	if !fail {
		p.snapshots = append(p.snapshots, snapshot)
	}
	p.mu.Unlock()
	select {
	case p.published <- struct{}{}:
	default:
	}
	if fail {
		return errors.New("store unavailable")
	}
	return nil
}

func (p *stubPublisher) SubscribeCommands(ctx context.Context, handler CommandHandler) error {
	for _, cmd := range p.commands {
		handler(cmd)
	}
	<-ctx.Done()
	return nil
}

func (p *stubPublisher) SetOverlay(ctx context.Context, overlay sensors.PanelOverlay) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overlays = append(p.overlays, overlay)
	return nil
}

func (p *stubPublisher) ClearOverlay(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
	return nil
}

func newTestSimulator(t *testing.T, publisher Publisher, random float64) *Simulator {
	t.Helper()
	registry, err := DefaultConfig().Registry(sensors.WithRandom(func() float64 { return random }))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	logger := log.New(io.Discard, "", 0)
	board, err := NewVirtualBoard(registry, logger)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if err := board.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	sim, err := NewSimulator(board, publisher, 10*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("simulator: %v", err)
	}
	return sim
}

func TestSimulatorTick_PanelFromStatuses(t *testing.T) {
	// 0.5 puts every default sensor near its midpoint: temperatura 28.5 OK, luminosidade 550 OK,
	// umidade 62.5 OK, umidade_solo 60 OK, ph 6.5 OK, pressao 1000 OK.
	sim := newTestSimulator(t, newStubPublisher(), 0.5)
	snap, err := sim.Tick()
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if snap.Panel != sensors.PanelVerde {
		t.Fatalf("expected VERDE, got %s", snap.Panel)
	}
	if len(snap.Readings) != 6 || snap.Readings[0].Name != "temperatura" || snap.Readings[5].Name != "pressao" {
		t.Fatalf("unexpected readings %+v", snap.Readings)
	}

	if _, err := sim.SetOverride("temperatura", 40); err != nil {
		t.Fatalf("override: %v", err)
	}
	snap, _ = sim.Tick()
	if snap.Panel != sensors.PanelVermelho || !snap.Manual {
		t.Fatalf("expected VERMELHO manual, got %s manual=%v", snap.Panel, snap.Manual)
	}
	if r, _ := snap.Reading("temperatura"); r.Value != 40 || r.Status != sensors.StatusCritico {
		t.Fatalf("expected temperatura 40 CRITICO, got %+v", r)
	}

	if _, err := sim.SetOverride("temperatura", 32); err != nil {
		t.Fatalf("override: %v", err)
	}
	snap, _ = sim.Tick()
	if snap.Panel != sensors.PanelAmarelo {
		t.Fatalf("expected AMARELO, got %s", snap.Panel)
	}

	sim.ClearOverrides()
	snap, _ = sim.Tick()
	if snap.Panel != sensors.PanelVerde || snap.Manual || sim.IsManualMode() {
		t.Fatalf("expected automatic VERDE after clear, got %s manual=%v", snap.Panel, snap.Manual)
	}
	last, ok := sim.LastSnapshot()
	if !ok || !last.At.Equal(snap.At) {
		t.Fatalf("expected last snapshot to match latest tick")
	}
}

func TestSimulatorSetOverride_UnknownSensor(t *testing.T) {
	sim := newTestSimulator(t, newStubPublisher(), 0.5)
	if _, err := sim.SetOverride("vento", 3); !errors.Is(err, sensors.ErrUnknownSensor) {
		t.Fatalf("expected ErrUnknownSensor, got %v", err)
	}
	if sim.IsManualMode() {
		t.Fatalf("expected no manual sensors")
	}
}

func TestSimulatorTick_BoardNotReady(t *testing.T) {
	registry, _ := DefaultConfig().Registry()
	board, _ := NewVirtualBoard(registry, log.New(io.Discard, "", 0))
	sim, err := NewSimulator(board, newStubPublisher(), time.Second, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("simulator: %v", err)
	}
	if sim.Ready() {
		t.Fatalf("expected simulator not ready before initialize")
	}
	if _, err := sim.Tick(); !errors.Is(err, sensors.ErrBoardNotReady) {
		t.Fatalf("expected ErrBoardNotReady, got %v", err)
	}
	if _, ok := sim.LastSnapshot(); ok {
		t.Fatalf("expected no snapshot")
	}
}

func TestSimulatorStatuses(t *testing.T) {
	sim := newTestSimulator(t, newStubPublisher(), 0.5)
	_, _ = sim.SetOverride("ph", 4.5)
	statuses, err := sim.Statuses()
	if err != nil {
		t.Fatalf("statuses: %v", err)
	}
	for _, st := range statuses {
		want := sensors.ModeAutomatic
		if st.Name == "ph" {
			want = sensors.ModeManual
		}
		if st.Mode != want {
			t.Fatalf("%s: expected mode %s, got %s", st.Name, want, st.Mode)
		}
	}
	if got := sim.ManualSensors(); len(got) != 1 || got[0] != "ph" {
		t.Fatalf("expected [ph], got %v", got)
	}
}

func TestSimulatorRun_PublishFailureDoesNotStopLoop(t *testing.T) {
	pub := newStubPublisher()
	pub.failFirst = true
	sim := newTestSimulator(t, pub, 0.5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-pub.published:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for publish %d", i+1)
		}
	}
	cancel()
	<-done
	sim.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.snapshots) < 2 {
		t.Fatalf("expected publishes after failure, got %d", len(pub.snapshots))
	}
}

type notifierFunc func(sensors.Snapshot)

func (f notifierFunc) Notify(s sensors.Snapshot) { f(s) }

func TestSimulatorNotifier(t *testing.T) {
	sim := newTestSimulator(t, newStubPublisher(), 0.5)
	var got []sensors.Panel
	sim.SetNotifier(notifierFunc(func(s sensors.Snapshot) { got = append(got, s.Panel) }))
	_, _ = sim.Tick()
	if len(got) != 1 || got[0] != sensors.PanelVerde {
		t.Fatalf("expected one VERDE notification, got %v", got)
	}
}

func TestSimulatorHandleCommand(t *testing.T) {
	pub := newStubPublisher()
	sim := newTestSimulator(t, pub, 0.5)
	now := time.UnixMilli(1714564800000)
	sim.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if err := sim.HandleCommand(ctx, &sensors.ForceCommand{State: "VERMELHO"}); err != nil {
		t.Fatalf("force: %v", err)
	}
	if err := sim.HandleCommand(ctx, &sensors.ForceCommand{State: "AUTO"}); err != nil {
		t.Fatalf("auto: %v", err)
	}
	if err := sim.HandleCommand(ctx, nil); err != nil {
		t.Fatalf("nil: %v", err)
	}
	if err := sim.HandleCommand(ctx, &sensors.ForceCommand{State: "ROXO"}); !errors.Is(err, sensors.ErrInvalidForceState) {
		t.Fatalf("expected ErrInvalidForceState, got %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.overlays) != 1 || pub.overlays[0].State != sensors.PanelVermelho || !pub.overlays[0].At.Equal(now) {
		t.Fatalf("unexpected overlays %+v", pub.overlays)
	}
	if pub.clears != 1 {
		t.Fatalf("expected 1 clear, got %d", pub.clears)
	}
}

func TestSimulatorHandleCommand_IgnoredAfterCancel(t *testing.T) {
	pub := newStubPublisher()
	sim := newTestSimulator(t, pub, 0.5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sim.HandleCommand(ctx, &sensors.ForceCommand{State: "VERDE"}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(pub.overlays) != 0 {
		t.Fatalf("expected no overlay after cancel")
	}
}

func TestSimulatorListen(t *testing.T) {
	pub := newStubPublisher()
	pub.commands = []*sensors.ForceCommand{{State: "AMARELO"}, nil, {State: ""}}
	sim := newTestSimulator(t, pub, 0.5)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sim.Listen(ctx); err != nil {
		t.Fatalf("listen: %v", err)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.overlays) != 1 || pub.clears != 1 {
		t.Fatalf("expected 1 overlay and 1 clear, got %d and %d", len(pub.overlays), pub.clears)
	}
}
