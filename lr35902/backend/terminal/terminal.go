package terminal

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-lr35902/lr35902/backend"
	"github.com/valerio/go-lr35902/lr35902/backend/terminal/render"
	"github.com/valerio/go-lr35902/lr35902/debug"
)

const (
	registerHeight = 9
	disasmHeight   = 12
	memoryRowBytes = 8
	logCapacity    = 200
	minTermWidth   = 80
	minTermHeight  = 24
)

var levels = []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

// Backend implements the Backend interface as an interactive step debugger
// drawn with tcell.
type Backend struct {
	screen    tcell.Screen
	config    backend.Config
	logBuffer *render.LogBuffer
	logLevel  slog.Level // minimum level shown in the log pane
	handler   *render.LogBufferHandler
	commands  []backend.Command
	signals   chan os.Signal
}

// Option configures a terminal backend.
type Option func(*Backend)

// WithScreen draws on s instead of the process terminal.
func WithScreen(s tcell.Screen) Option { return func(t *Backend) { t.screen = s } }

// New creates a new terminal backend. Its log buffer starts capturing right
// away, so loggers built from Logger before Init are not lost.
func New(opts ...Option) *Backend {
	t := &Backend{
		logBuffer: render.NewLogBuffer(logCapacity),
		logLevel:  slog.LevelInfo,
	}
	t.handler = render.NewLogBufferHandler(t.logBuffer, slog.LevelDebug)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Logger returns a logger writing into the log pane.
func (t *Backend) Logger() *slog.Logger {
	return slog.New(t.handler)
}

// Init takes over the terminal and routes the default logger to the log pane.
func (t *Backend) Init(config backend.Config) error {
	t.config = config

	if t.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to initialize terminal: %w", err)
		}
		t.screen = screen
	}
	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}

	slog.SetDefault(t.Logger())

	t.signals = make(chan os.Signal, 1)
	signal.Notify(t.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	slog.Info("Terminal debugger initialized", "title", config.Title)
	return nil
}

// Update processes pending key presses and redraws the screen.
func (t *Backend) Update(data *debug.Data) ([]backend.Command, error) {
	select {
	case sig := <-t.signals:
		slog.Info("Received signal, quitting", "signal", sig)
		t.commands = append(t.commands, backend.CommandQuit)
	default:
	}

	for t.screen.HasPendingEvent() {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			t.processKeyEvent(ev)
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}

	t.render(data)
	t.screen.Show()

	commands := t.commands
	t.commands = nil
	return commands, nil
}

// Cleanup restores the terminal.
func (t *Backend) Cleanup() error {
	if t.signals != nil {
		signal.Stop(t.signals)
	}
	if t.screen != nil {
		t.screen.Fini()
	}
	return nil
}

var keyMapping = map[tcell.Key]backend.Command{
	tcell.KeyEscape: backend.CommandQuit,
	tcell.KeyCtrlC:  backend.CommandQuit,
	tcell.KeyEnter:  backend.CommandStep,
}

var runeMapping = map[rune]backend.Command{
	'n': backend.CommandStep,
	' ': backend.CommandStep,
	'r': backend.CommandRunToggle,
	's': backend.CommandCPUToggle,
	'q': backend.CommandQuit,
}

func (t *Backend) processKeyEvent(ev *tcell.EventKey) {
	cmd, ok := keyMapping[ev.Key()]
	if !ok && ev.Key() == tcell.KeyRune {
		switch ev.Rune() {
		case '+', '=':
			t.changeLogLevel(-1)
			return
		case '-', '_':
			t.changeLogLevel(1)
			return
		}
		cmd, ok = runeMapping[ev.Rune()]
	}
	if !ok {
		return
	}

	slog.Debug("Key event", "key", ev.Name(), "command", cmd)
	t.commands = append(t.commands, cmd)
}

// changeLogLevel moves the log filter; a negative direction shows more.
func (t *Backend) changeLogLevel(direction int) {
	i := 0
	for i < len(levels) && levels[i] != t.logLevel {
		i++
	}
	next := i + direction
	if next < 0 || next >= len(levels) {
		return
	}
	slog.Info("Log filter changed", "from", t.logLevel, "to", levels[next])
	t.logLevel = levels[next]
}

func (t *Backend) render(data *debug.Data) {
	t.screen.Clear()

	termWidth, termHeight := t.screen.Size()
	if termWidth < minTermWidth || termHeight < minTermHeight {
		msg := fmt.Sprintf("Terminal too small: %dx%d, need %dx%d", termWidth, termHeight, minTermWidth, minTermHeight)
		t.drawText(0, 0, termWidth, msg, tcell.StyleDefault.Foreground(tcell.ColorRed))
		return
	}

	dividerX := termWidth / 2
	t.drawHeader(termWidth, data)
	t.drawBorders(termWidth, termHeight, dividerX)

	y := 2
	y = t.drawRegisters(1, y, dividerX-2, data)
	y = t.drawDisassembly(1, y+1, dividerX-2, data)
	t.drawMemory(1, y+1, dividerX-2, termHeight-2, data)
	t.drawLogs(dividerX+2, 2, termWidth-dividerX-3, termHeight-2)

	help := "n/space: step  r: run/pause  s: stop/start CPU  +/-: log level  q: quit"
	t.drawText(1, termHeight-1, termWidth-2, help, tcell.StyleDefault.Foreground(tcell.ColorGray))
}

func (t *Backend) drawHeader(width int, data *debug.Data) {
	status := "PAUSED"
	if data != nil && data.Executing {
		status = "RUNNING"
	}
	if data != nil && data.CPU != nil {
		switch {
		case !data.CPU.Running:
			status = "STOPPED"
		case data.CPU.Halted:
			status += " (HALT)"
		}
	}

	title := t.config.Title
	if data != nil && data.Cartridge != nil && data.Cartridge.Title != "" {
		title = data.Cartridge.Title
	}

	header := fmt.Sprintf(" %s | %s ", title, status)
	t.drawText(0, 0, width, header, tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite).Bold(true))
}

func (t *Backend) drawBorders(termWidth, termHeight, dividerX int) {
	style := tcell.StyleDefault.Foreground(tcell.ColorGray)
	for x := 0; x < termWidth; x++ {
		t.screen.SetContent(x, 1, tcell.RuneHLine, nil, style)
		t.screen.SetContent(x, termHeight-2, tcell.RuneHLine, nil, style)
	}
	for y := 2; y < termHeight-2; y++ {
		t.screen.SetContent(dividerX, y, tcell.RuneVLine, nil, style)
	}
	t.screen.SetContent(dividerX, 1, tcell.RuneTTee, nil, style)
	t.screen.SetContent(dividerX, termHeight-2, tcell.RuneBTee, nil, style)
}

func (t *Backend) drawRegisters(startX, startY, width int, data *debug.Data) int {
	if data == nil || data.CPU == nil {
		return startY
	}
	lines := registerLines(data.CPU)
	if data.LastError != "" {
		lines = append(lines, "Error: "+data.LastError)
	}

	style := tcell.StyleDefault.Foreground(tcell.ColorBlue)
	for i, line := range lines {
		if i >= registerHeight {
			break
		}
		if strings.HasPrefix(line, "Error:") {
			style = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
		}
		t.drawText(startX, startY+i, width, line, style)
	}
	return startY + registerHeight
}

func registerLines(cpu *debug.CPUState) []string {
	onOff := map[bool]string{true: "ON", false: "OFF"}
	return []string{
		fmt.Sprintf("A: 0x%02X  F: 0x%02X  [%s]", cpu.A, cpu.F, cpu.Flags),
		fmt.Sprintf("B: 0x%02X  C: 0x%02X", cpu.B, cpu.C),
		fmt.Sprintf("D: 0x%02X  E: 0x%02X", cpu.D, cpu.E),
		fmt.Sprintf("H: 0x%02X  L: 0x%02X", cpu.H, cpu.L),
		fmt.Sprintf("SP: 0x%04X  PC: 0x%04X", cpu.SP, cpu.PC),
		fmt.Sprintf("IME: %s  HALT: %s", onOff[cpu.IME], onOff[cpu.Halted]),
		fmt.Sprintf("Cycles: %d (M: %d)", cpu.ClockCycles, cpu.MachineCycles),
	}
}

func (t *Backend) drawDisassembly(startX, startY, width int, data *debug.Data) int {
	if data == nil || data.CPU == nil {
		return startY
	}

	style := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	currentStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)

	for i, line := range data.Disassembly {
		if i >= disasmHeight {
			break
		}
		marker, useStyle := " ", style
		if line.Address == data.CPU.PC {
			marker, useStyle = ">", currentStyle
		}
		text := fmt.Sprintf("%s 0x%04X: %-12s %s", marker, line.Address, hexBytes(line.Bytes), line.Instruction)
		t.drawText(startX, startY+i, width, text, useStyle)
	}
	return startY + disasmHeight
}

func (t *Backend) drawMemory(startX, startY, width, endY int, data *debug.Data) {
	if data == nil || data.Memory == nil {
		return
	}
	style := tcell.StyleDefault.Foreground(tcell.ColorTeal)
	mem := data.Memory
	for row := 0; row*memoryRowBytes < len(mem.Bytes) && startY+row < endY; row++ {
		from := row * memoryRowBytes
		to := min(from+memoryRowBytes, len(mem.Bytes))
		text := fmt.Sprintf("0x%04X: %s", mem.StartAddr+uint16(from), hexBytes(mem.Bytes[from:to]))
		t.drawText(startX, startY+row, width, text, style)
	}
}

func hexBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}

func (t *Backend) drawLogs(startX, startY, width, endY int) {
	height := endY - startY
	if width <= 0 || height <= 0 {
		return
	}

	styles := map[slog.Level]tcell.Style{
		slog.LevelDebug: tcell.StyleDefault.Foreground(tcell.ColorGray),
		slog.LevelInfo:  tcell.StyleDefault.Foreground(tcell.ColorBlue),
		slog.LevelWarn:  tcell.StyleDefault.Foreground(tcell.ColorYellow),
		slog.LevelError: tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
	}

	// newest entry at the bottom
	logs := t.logBuffer.GetRecent(height, t.logLevel)
	for i, entry := range logs {
		y := startY + len(logs) - 1 - i
		text := render.FormatLogEntry(entry)
		if runes := []rune(text); len(runes) > width && width > 3 {
			text = string(runes[:width-3]) + "..."
		}
		t.drawText(startX, y, width, text, styles[entry.Level])
	}
}

func (t *Backend) drawText(x, y, width int, text string, style tcell.Style) {
	i := 0
	for _, ch := range text {
		if i >= width {
			break
		}
		t.screen.SetContent(x+i, y, ch, nil, style)
		i++
	}
}
