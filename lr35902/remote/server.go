// Package remote exposes an emulator over a websocket so external tools can
// drive and inspect it.
package remote

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/valerio/go-lr35902/lr35902"
	"github.com/valerio/go-lr35902/lr35902/debug"
	"github.com/valerio/go-lr35902/lr35902/disasm"
)

const (
	maxStepsPerRequest = 1 << 20
	maxDisasmLines     = 256
)

// Request is a single command sent by a client.
type Request struct {
	Cmd   string `json:"cmd"`
	Count int    `json:"count,omitempty"`
	PC    uint16 `json:"pc,omitempty"`
	Addr  uint16 `json:"addr,omitempty"`
}

// Response answers a Request. Error is set when the command failed, State
// always carries the emulator state after the command ran.
type Response struct {
	Cmd         string                   `json:"cmd"`
	Steps       int                      `json:"steps,omitempty"`
	Error       string                   `json:"error,omitempty"`
	Header      string                   `json:"header,omitempty"`
	Disassembly []disasm.DisassemblyLine `json:"disassembly,omitempty"`
	State       *debug.Data              `json:"state"`
}

var errUnknownCommand = errors.New("unknown command")

// Server is an http.Handler upgrading every request to a websocket session.
// All sessions share the emulator, commands are serialized.
type Server struct {
	mu       sync.Mutex
	emu      *lr35902.Emulator
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a server driving emu.
func NewServer(emu *lr35902.Emulator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		emu:    emu,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("Debugger client connected", "remote", r.RemoteAddr)
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Client read failed", "remote", r.RemoteAddr, "error", err)
			}
			s.logger.Info("Debugger client disconnected", "remote", r.RemoteAddr)
			return
		}

		if err := conn.WriteJSON(s.Handle(req)); err != nil {
			s.logger.Warn("Client write failed", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

// Handle runs a single request against the emulator.
func (s *Server) Handle(req Request) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := Response{Cmd: req.Cmd}
	var err error

	switch req.Cmd {
	case "step":
		count := req.Count
		if count <= 0 {
			count = 1
		}
		resp.Steps, err = s.emu.RunSteps(min(count, maxStepsPerRequest))
	case "run-until":
		limit := req.Count
		if limit <= 0 || limit > maxStepsPerRequest {
			limit = maxStepsPerRequest
		}
		resp.Steps, err = s.emu.RunUntil(req.PC, limit)
	case "stop":
		s.emu.Stop()
	case "start":
		s.emu.Start()
	case "state":
	case "header":
		resp.Header = s.emu.Cartridge().Header().String()
	case "disassemble":
		count := req.Count
		if count <= 0 || count > maxDisasmLines {
			count = maxDisasmLines
		}
		resp.Disassembly = disasm.DisassembleRange(req.Addr, count, disasm.ReaderFunc(s.emu.MMU().Peek))
	default:
		err = fmt.Errorf("%w: %q", errUnknownCommand, req.Cmd)
	}

	if err != nil {
		resp.Error = err.Error()
	}
	resp.State = s.emu.ExtractDebugData()
	return resp
}
