package sensors

import "strings"

// Status is the classification of a single reading.
type Status string

const (
	StatusOK      Status = "OK"
	StatusAlerta  Status = "ALERTA"
	StatusCritico Status = "CRITICO"
)

// Panel is the aggregate color shown for a snapshot.
type Panel string

const (
	PanelVerde    Panel = "VERDE"
	PanelAmarelo  Panel = "AMARELO"
	PanelVermelho Panel = "VERMELHO"
)

func (s Status) severity() int {
	switch s {
	case StatusCritico:
		return 2
	case StatusAlerta:
		return 1
	default:
		return 0
	}
}

// Consolidate reduces statuses to a panel color: any CRITICO gives VERMELHO, else any
// ALERTA gives AMARELO, else VERDE. An empty input is VERDE.
func Consolidate(statuses []Status) Panel {
	worst := StatusOK
	for _, status := range statuses {
		if status.severity() > worst.severity() {
			worst = status
		}
	}
	switch worst {
	case StatusCritico:
		return PanelVermelho
	case StatusAlerta:
		return PanelAmarelo
	default:
		return PanelVerde
	}
}

// ParsePanel normalizes a panel name.
func ParsePanel(value string) (Panel, bool) {
	switch Panel(strings.ToUpper(strings.TrimSpace(value))) {
	case PanelVerde:
		return PanelVerde, true
	case PanelAmarelo:
		return PanelAmarelo, true
	case PanelVermelho:
		return PanelVermelho, true
	default:
		return "", false
	}
}
