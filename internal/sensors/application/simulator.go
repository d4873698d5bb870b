package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"agro-simulator/internal/observability/metrics"
	sensors "agro-simulator/internal/sensors/domain"
)

var allPanels = []string{
	string(sensors.PanelVerde),
	string(sensors.PanelAmarelo),
	string(sensors.PanelVermelho),
}

// SensorStatus is the current reading and mode of one sensor.
type SensorStatus struct {
	Name    string          `json:"sensor"`
	Reading sensors.Reading `json:"leitura"`
	Mode    sensors.Mode    `json:"modo"`
}

// Simulator runs the simulation cycle: it builds a snapshot per tick, publishes it and
// reacts to force commands. Every board access goes through mu.
type Simulator struct {
	board     Board
	publisher Publisher
	interval  time.Duration
	logger    *log.Logger
	now       func() time.Time
	notifier  SnapshotNotifier

	mu   sync.Mutex
	last *sensors.Snapshot

	commandMu sync.Mutex
	inflight  sync.WaitGroup
}

// NewSimulator constructs a simulator.
func NewSimulator(board Board, publisher Publisher, interval time.Duration, logger *log.Logger) (*Simulator, error) {
	if board == nil {
		return nil, errors.New("application: nil board")
	}
	if publisher == nil {
		return nil, errors.New("application: nil publisher")
	}
	if interval <= 0 {
		return nil, errors.New("application: interval must be positive")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Simulator{
		board:     board,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// SetNotifier registers a receiver for built snapshots.
func (s *Simulator) SetNotifier(notifier SnapshotNotifier) {
	s.notifier = notifier
}

// SetClock overrides the time source.
func (s *Simulator) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Interval returns the tick interval.
func (s *Simulator) Interval() time.Duration { return s.interval }

// Tick reads every sensor and builds a consolidated snapshot.
func (s *Simulator) Tick() (sensors.Snapshot, error) {
	s.mu.Lock()
	readings, err := s.board.ReadAll()
	if err != nil {
		s.mu.Unlock()
		metrics.IncTick(metrics.ResultError)
		return sensors.Snapshot{}, err
	}
	snapshot := sensors.Snapshot{
		Readings: readings,
		At:       s.now(),
		Manual:   s.board.HasManual(),
	}
	snapshot.Panel = sensors.Consolidate(snapshot.Statuses())
	s.last = &snapshot
	manualCount := len(s.board.ManualSensors())
	s.mu.Unlock()

	metrics.IncTick(metrics.ResultSuccess)
	metrics.SetManualSensors(manualCount)
	metrics.SetPanel(string(snapshot.Panel), allPanels)
	for _, r := range readings {
		metrics.SetSensorValue(r.Name, r.Reading.Unit, r.Reading.Value)
	}
	if s.notifier != nil {
		s.notifier.Notify(snapshot)
	}
	return snapshot, nil
}

// LastSnapshot returns the most recent snapshot built by Tick.
func (s *Simulator) LastSnapshot() (sensors.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return sensors.Snapshot{}, false
	}
	return *s.last, true
}

// SetOverride fixes a sensor at value and returns the resulting reading.
func (s *Simulator) SetOverride(name string, value float64) (sensors.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.SetSensorValue(name, value)
}

// ClearOverrides returns every sensor to automatic mode.
func (s *Simulator) ClearOverrides() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board.SetAutomatic()
}

// Ready reports whether the board has been initialized.
func (s *Simulator) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Ready()
}

// IsManualMode reports whether any sensor is overridden.
func (s *Simulator) IsManualMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.HasManual()
}

// ManualSensors lists overridden sensors.
func (s *Simulator) ManualSensors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.ManualSensors()
}

// SensorNames lists sensors in display order.
func (s *Simulator) SensorNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.SensorNames()
}

// Statuses takes a fresh reading of every sensor with its mode.
func (s *Simulator) Statuses() ([]SensorStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	readings, err := s.board.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]SensorStatus, 0, len(readings))
	for _, r := range readings {
		mode, _ := s.board.Mode(r.Name)
		out = append(out, SensorStatus{Name: r.Name, Reading: r.Reading, Mode: mode})
	}
	return out, nil
}

// Run ticks at the configured interval until ctx is cancelled. Each snapshot is published
// on its own goroutine; publish failures are logged and do not stop the loop.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Printf("simulator: publishing every %s", s.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot, err := s.Tick()
			if err != nil {
				s.logger.Printf("simulator: tick failed: %v", err)
				continue
			}
			s.inflight.Add(1)
			go func() {
				defer s.inflight.Done()
				s.publish(ctx, snapshot)
			}()
		}
	}
}

// Wait blocks until in-flight publishes return.
func (s *Simulator) Wait() {
	s.inflight.Wait()
}

func (s *Simulator) publish(ctx context.Context, snapshot sensors.Snapshot) {
	start := time.Now()
	if err := s.publisher.PublishSnapshot(ctx, snapshot); err != nil {
		metrics.ObservePublish(metrics.ResultError, time.Since(start))
		s.logger.Printf("simulator: publish failed: %v", err)
		return
	}
	metrics.ObservePublish(metrics.ResultSuccess, time.Since(start))
	s.logger.Printf("%s sent panel=%s %s", snapshot.ModeLabel(), snapshot.Panel, summarize(snapshot))
}

// HandleCommand reconciles a force command and applies its effect. Commands arriving after
// ctx is cancelled are ignored.
func (s *Simulator) HandleCommand(ctx context.Context, cmd *sensors.ForceCommand) error {
	if ctx.Err() != nil {
		return nil
	}
	s.commandMu.Lock()
	defer s.commandMu.Unlock()

	effect, err := sensors.Reconcile(cmd, s.now())
	if err != nil {
		metrics.IncCommand("invalid")
		s.logger.Printf("command: rejected: %v", err)
		return err
	}
	metrics.IncCommand(string(effect.Kind))

	switch effect.Kind {
	case sensors.EffectSetOverlay:
		s.logger.Printf("command: force panel %s", effect.Overlay.State)
		if err := s.publisher.SetOverlay(ctx, effect.Overlay); err != nil {
			return fmt.Errorf("set overlay: %w", err)
		}
	case sensors.EffectClearOverlay:
		s.logger.Printf("command: panel back to AUTO")
		if err := s.publisher.ClearOverlay(ctx); err != nil {
			return fmt.Errorf("clear overlay: %w", err)
		}
	}
	return nil
}

// Listen relays publisher commands to HandleCommand until ctx is cancelled.
func (s *Simulator) Listen(ctx context.Context) error {
	return s.publisher.SubscribeCommands(ctx, func(cmd *sensors.ForceCommand) {
		if err := s.HandleCommand(ctx, cmd); err != nil && !errors.Is(err, sensors.ErrInvalidForceState) {
			s.logger.Printf("command: %v", err)
		}
	})
}

func summarize(snapshot sensors.Snapshot) string {
	parts := make([]string, 0, len(snapshot.Readings))
	for _, r := range snapshot.Readings {
		parts = append(parts, fmt.Sprintf("%s=%v%s(%s)", r.Name, r.Reading.Value, r.Reading.Unit, r.Reading.Status))
	}
	return strings.Join(parts, " ")
}
