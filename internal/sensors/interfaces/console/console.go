// Package console implements the interactive operator console.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"agro-simulator/internal/observability/metrics"
	"agro-simulator/internal/sensors/application"
	sensors "agro-simulator/internal/sensors/domain"
)

// ErrExit is returned by Run when the operator asks to leave.
var ErrExit = errors.New("console: exit requested")

const ruleWidth = 70

// Controller is the part of the simulator the console drives.
type Controller interface {
	SetOverride(name string, value float64) (sensors.Reading, error)
	ClearOverrides()
	Statuses() ([]application.SensorStatus, error)
	ManualSensors() []string
	SensorNames() []string
}

var aliases = map[string]string{
	"temp":         "temperatura",
	"temperatura":  "temperatura",
	"luz":          "luminosidade",
	"luminosidade": "luminosidade",
	"umidade":      "umidade",
	"solo":         "umidade_solo",
	"umidade_solo": "umidade_solo",
	"ph":           "ph",
	"pressao":      "pressao",
}

type styles struct {
	title   lipgloss.Style
	ok      lipgloss.Style
	alerta  lipgloss.Style
	critico lipgloss.Style
	errText lipgloss.Style
	dim     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("42")),
		alerta:  r.NewStyle().Foreground(lipgloss.Color("220")),
		critico: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		errText: r.NewStyle().Foreground(lipgloss.Color("203")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("243")),
	}
}

func (s styles) status(status sensors.Status) lipgloss.Style {
	switch status {
	case sensors.StatusCritico:
		return s.critico
	case sensors.StatusAlerta:
		return s.alerta
	default:
		return s.ok
	}
}

// Console reads operator commands line by line and applies them to the simulator.
type Console struct {
	ctrl   Controller
	in     io.Reader
	out    io.Writer
	styles styles
}

// New constructs a console. Styling is dropped automatically when out is not a terminal.
func New(ctrl Controller, in io.Reader, out io.Writer) (*Console, error) {
	if ctrl == nil {
		return nil, errors.New("console: nil controller")
	}
	if in == nil || out == nil {
		return nil, errors.New("console: nil input or output")
	}
	return &Console{
		ctrl:   ctrl,
		in:     in,
		out:    out,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}, nil
}

// Run shows the menu and processes input until ctx is cancelled, input ends, or the
// operator types exit. It returns ErrExit in the last case.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.ShowMenu()
	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if exit := c.Execute(line); exit {
				return ErrExit
			}
			c.prompt()
		}
	}
}

// Execute runs one command line and reports whether the operator asked to exit.
func (c *Console) Execute(line string) bool {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "auto":
		c.ctrl.ClearOverrides()
		c.printf("[OK] Modo automático ativado para todos os sensores\n")
	case "status":
		c.showStatus()
	case "help", "ajuda":
		c.ShowMenu()
	case "exit", "sair":
		c.printf("[INFO] Encerrando simulador...\n")
		return true
	default:
		name, ok := c.resolve(cmd)
		if !ok {
			c.errorf("Comando não reconhecido. Digite \"help\" para ver os comandos.")
			return false
		}
		value := ""
		if len(args) > 0 {
			value = args[0]
		}
		c.setSensor(name, value)
	}
	return false
}

func (c *Console) resolve(cmd string) (string, bool) {
	if name, ok := aliases[cmd]; ok {
		return name, true
	}
	for _, name := range c.ctrl.SensorNames() {
		if strings.EqualFold(name, cmd) {
			return name, true
		}
	}
	return "", false
}

func (c *Console) setSensor(name, raw string) {
	if raw == "" {
		c.errorf("Use: %s <valor>", name)
		return
	}
	value, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		c.errorf("Valor inválido")
		return
	}
	reading, err := c.ctrl.SetOverride(name, value)
	switch {
	case errors.Is(err, sensors.ErrUnknownSensor):
		c.errorf("Sensor %q não encontrado", name)
		return
	case err != nil:
		c.errorf("%v", err)
		return
	}
	metrics.IncOverride("console")
	status := c.styles.status(reading.Status).Render(string(reading.Status))
	c.printf("[OK] %s = %s%s (%s) [MANUAL]\n", name, formatValue(reading.Value), reading.Unit, status)
}

func (c *Console) showStatus() {
	statuses, err := c.ctrl.Statuses()
	if err != nil {
		c.errorf("%v", err)
		return
	}
	c.printf("\n%s\n", c.styles.title.Render("[STATUS] Leituras atuais:"))
	c.printf("%s\n", strings.Repeat("=", ruleWidth))
	for _, st := range statuses {
		mode := "[AUTO]"
		if st.Mode == sensors.ModeManual {
			mode = "[MANUAL]"
		}
		value := fmt.Sprintf("%-12s", formatValue(st.Reading.Value)+st.Reading.Unit)
		status := c.styles.status(st.Reading.Status).Render(fmt.Sprintf("%-8s", st.Reading.Status))
		c.printf("  %-20s %s %s %s\n", st.Name, value, status, mode)
	}
	c.printf("%s\n", strings.Repeat("=", ruleWidth))
}

// ShowMenu prints the command summary and the current mode.
func (c *Console) ShowMenu() {
	rule := strings.Repeat("=", ruleWidth)
	c.printf("\n%s\n%s\n%s\n", rule, c.styles.title.Render("ARDUINO SIMULADO - CONTROLE INTERATIVO"), rule)
	c.printf("Comandos disponíveis:\n")
	entries := [][2]string{
		{"temp <valor>", "Define temperatura manual (ex: temp 32)"},
		{"luz <valor>", "Define luminosidade manual (ex: luz 450)"},
		{"umidade <valor>", "Define umidade do ar (ex: umidade 65)"},
		{"solo <valor>", "Define umidade do solo (ex: solo 75)"},
		{"ph <valor>", "Define pH do solo (ex: ph 6.5)"},
		{"pressao <valor>", "Define pressão (ex: pressao 1013)"},
		{"auto", "Volta ao modo automático (aleatório)"},
		{"status", "Mostra valores atuais"},
		{"help", "Mostra este menu"},
		{"exit", "Sai do programa"},
	}
	for _, e := range entries {
		c.printf("  %-21s %s\n", e[0], c.styles.dim.Render("- "+e[1]))
	}
	c.printf("%s\n", rule)
	if manual := c.ctrl.ManualSensors(); len(manual) > 0 {
		c.printf("Sensores em modo MANUAL: %s\n", strings.Join(manual, ", "))
	} else {
		c.printf("Modo atual: AUTOMÁTICO (todos os sensores)\n")
	}
	c.printf("%s\n", rule)
}

func (c *Console) prompt() {
	c.printf("\n> ")
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *Console) errorf(format string, args ...any) {
	c.printf("%s\n", c.styles.errText.Render("[ERRO] "+fmt.Sprintf(format, args...)))
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
