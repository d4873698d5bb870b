package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	gobotmqtt "gobot.io/x/gobot/v2/platforms/mqtt"

	sensors "agro-simulator/internal/sensors/domain"
)

type message struct {
	topic   string
	payload []byte
	retain  bool
}

type fakeBroker struct {
	mu         sync.Mutex
	connects   int
	messages   []message
	handlers   map[string]func(gobotmqtt.Message)
	rejectPubs bool
}

func (b *fakeBroker) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connects++
	return nil
}

func (b *fakeBroker) Finalize() error { return nil }

func (b *fakeBroker) Publish(topic string, payload []byte) bool {
	return b.record(topic, payload, false)
}

func (b *fakeBroker) PublishAndRetain(topic string, payload []byte) bool {
	return b.record(topic, payload, true)
}

func (b *fakeBroker) record(topic string, payload []byte, retain bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectPubs {
		return false
	}
	b.messages = append(b.messages, message{topic: topic, payload: payload, retain: retain})
	return true
}

func (b *fakeBroker) On(topic string, f func(gobotmqtt.Message)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[string]func(gobotmqtt.Message))
	}
	b.handlers[topic] = f
	return true
}

func (b *fakeBroker) deliver(topic string, payload string) bool {
	b.mu.Lock()
	f := b.handlers[topic]
	b.mu.Unlock()
	if f == nil {
		return false
	}
	f(inbound{topic: topic, payload: []byte(payload)})
	return true
}

type inbound struct {
	topic   string
	payload []byte
}

func (m inbound) Duplicate() bool   { return false }
func (m inbound) Qos() byte         { return 0 }
func (m inbound) Retained() bool    { return false }
func (m inbound) Topic() string     { return m.topic }
func (m inbound) MessageID() uint16 { return 0 }
func (m inbound) Payload() []byte   { return m.payload }
func (m inbound) Ack()              {}

func newTestPublisher(t *testing.T, b *fakeBroker) *Publisher {
	t.Helper()
	p, err := newPublisher(b, "/fazenda/lote1/", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	return p
}

func TestPublisher_Topics(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(t, b)
	ctx := context.Background()
	if err := p.TestConnection(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := p.TestConnection(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if b.connects != 1 {
		t.Fatalf("expected 1 connect, got %d", b.connects)
	}

	snap := sensors.Snapshot{Panel: sensors.PanelAmarelo, At: time.UnixMilli(7)}
	if err := p.PublishSnapshot(ctx, snap); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.SetOverlay(ctx, sensors.PanelOverlay{State: sensors.PanelVerde, At: time.UnixMilli(8)}); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if err := p.ClearOverlay(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if len(b.messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(b.messages))
	}
	if b.messages[0].topic != "fazenda/lote1/sensores" || b.messages[0].retain {
		t.Fatalf("unexpected snapshot message %+v", b.messages[0])
	}
	var record map[string]any
	if err := json.Unmarshal(b.messages[0].payload, &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record["painel"] != "AMARELO" {
		t.Fatalf("expected painel AMARELO, got %v", record["painel"])
	}
	if b.messages[1].topic != "fazenda/lote1/painel_forcado" || !b.messages[1].retain {
		t.Fatalf("unexpected overlay message %+v", b.messages[1])
	}
	if len(b.messages[2].payload) != 0 || !b.messages[2].retain {
		t.Fatalf("expected empty retained clear, got %+v", b.messages[2])
	}
}

func TestPublisher_Rejected(t *testing.T) {
	b := &fakeBroker{rejectPubs: true}
	p := newTestPublisher(t, b)
	err := p.PublishSnapshot(context.Background(), sensors.Snapshot{})
	if !errors.Is(err, ErrPublishRejected) {
		t.Fatalf("expected ErrPublishRejected, got %v", err)
	}
}

func TestPublisher_SubscribeCommands(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(t, b)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- p.SubscribeCommands(ctx, func(cmd *sensors.ForceCommand) {
			got <- cmd.State
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !b.deliver("fazenda/lote1/comandos", `{"forcar_estado":"VERMELHO"}`) {
		if time.Now().After(deadline) {
			t.Fatalf("subscription not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	b.deliver("fazenda/lote1/comandos", "")
	b.deliver("fazenda/lote1/comandos", "null")
	b.deliver("fazenda/lote1/comandos", "{broken")
	b.deliver("fazenda/lote1/comandos", `{"forcar_estado":"AUTO"}`)

	for _, want := range []string{"VERMELHO", "AUTO"} {
		select {
		case state := <-got:
			if state != want {
				t.Fatalf("expected %s, got %s", want, state)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected nil on cancel, got %v", err)
	}
	select {
	case extra := <-got:
		t.Fatalf("unexpected extra command %q", extra)
	default:
	}
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := decodeCommand([]byte("  "))
	if err != nil || cmd != nil {
		t.Fatalf("expected nil command, got %+v %v", cmd, err)
	}
	cmd, err = decodeCommand([]byte(`{"forcar_estado":"verde"}`))
	if err != nil || cmd == nil || cmd.State != "verde" {
		t.Fatalf("unexpected decode %+v %v", cmd, err)
	}
}
