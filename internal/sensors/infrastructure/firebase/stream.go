package firebase

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"agro-simulator/internal/sensors/application"
	sensors "agro-simulator/internal/sensors/domain"
)

const (
	eventPut         = "put"
	eventPatch       = "patch"
	eventKeepAlive   = "keep-alive"
	eventCancel      = "cancel"
	eventAuthRevoked = "auth_revoked"

	commandField = "forcar_estado"
)

var (
	errStreamCancelled = errors.New("firebase: stream cancelled by server")
	errAuthRevoked     = errors.New("firebase: stream auth revoked")
)

type streamEvent struct {
	name string
	data string
}

type streamPayload struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// SubscribeCommands streams the commands node and calls handler whenever it holds a
// record. It reconnects after failures and returns when ctx is cancelled.
func (c *Client) SubscribeCommands(ctx context.Context, handler application.CommandHandler) error {
	for {
		err := c.streamOnce(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, errAuthRevoked) && c.tokens != nil {
			c.tokens.invalidate()
		}
		c.logger.Printf("firebase: command stream closed: %v; reconnecting in %s", err, c.reconnectDelay)
		timer := time.NewTimer(c.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (c *Client) streamOnce(ctx context.Context, handler application.CommandHandler) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.commandsPath, nil), nil)
	if err != nil {
		return err
	}
	if err := c.authorize(req); err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusError(http.MethodGet, c.commandsPath, resp); err != nil {
		return err
	}

	node := &commandNode{}
	return readEvents(resp.Body, func(ev streamEvent) error {
		switch ev.name {
		case eventKeepAlive:
			return nil
		case eventCancel:
			return errStreamCancelled
		case eventAuthRevoked:
			return errAuthRevoked
		case eventPut, eventPatch:
			var payload streamPayload
			if err := json.Unmarshal([]byte(ev.data), &payload); err != nil {
				c.logger.Printf("firebase: malformed %s event: %v", ev.name, err)
				return nil
			}
			if err := node.apply(ev.name, payload); err != nil {
				c.logger.Printf("firebase: ignoring %s at %s: %v", ev.name, payload.Path, err)
				return nil
			}
			if cmd := node.command(); cmd != nil {
				handler(cmd)
			}
		}
		return nil
	})
}

// readEvents parses a text/event-stream body and calls fn per dispatched event.
func readEvents(r io.Reader, fn func(streamEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var (
		ev   streamEvent
		data []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if ev.name != "" || len(data) > 0 {
				ev.data = strings.Join(data, "\n")
				if err := fn(ev); err != nil {
					return err
				}
			}
			ev, data = streamEvent{}, nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

// commandNode mirrors the streamed commands node.
type commandNode struct {
	fields map[string]json.RawMessage
}

func (n *commandNode) apply(event string, payload streamPayload) error {
	key := strings.Trim(payload.Path, "/")
	if strings.Contains(key, "/") {
		return errors.New("nested path")
	}
	isNull := len(payload.Data) == 0 || string(payload.Data) == "null"

	if key == "" {
		if event == eventPut {
			n.fields = nil
		}
		if isNull {
			return nil
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(payload.Data, &fields); err != nil {
			return err
		}
		if n.fields == nil {
			n.fields = make(map[string]json.RawMessage, len(fields))
		}
		for k, v := range fields {
			if string(v) == "null" {
				delete(n.fields, k)
				continue
			}
			n.fields[k] = v
		}
		return nil
	}

	if isNull {
		delete(n.fields, key)
		return nil
	}
	if n.fields == nil {
		n.fields = make(map[string]json.RawMessage)
	}
	n.fields[key] = payload.Data
	return nil
}

// command returns the current record, or nil when the node is empty.
func (n *commandNode) command() *sensors.ForceCommand {
	if len(n.fields) == 0 {
		return nil
	}
	cmd := &sensors.ForceCommand{}
	if raw, ok := n.fields[commandField]; ok {
		var state string
		if err := json.Unmarshal(raw, &state); err == nil {
			cmd.State = state
		}
	}
	return cmd
}
