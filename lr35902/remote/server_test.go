package remote

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-lr35902/lr35902"
	"github.com/valerio/go-lr35902/lr35902/cartridge/cartridgetest"
)

// countdown: LD B, 3; DEC B; JR NZ, -3; HALT
var countdown = []byte{0x06, 0x03, 0x05, 0x20, 0xFD, 0x76}

func newTestServer(t *testing.T, opts ...lr35902.Option) *Server {
	t.Helper()
	cart := cartridgetest.Cartridge(t, cartridgetest.Program(0x8000, 0x0100, countdown...))
	return NewServer(lr35902.New(cart, opts...), nil)
}

func TestServer_Handle(t *testing.T) {
	testCases := []struct {
		desc     string
		requests []Request
		wantPC   uint16
		steps    int
		errMsg   string
	}{
		{desc: "state", requests: []Request{{Cmd: "state"}}, wantPC: 0x0100},
		{desc: "single step", requests: []Request{{Cmd: "step"}}, wantPC: 0x0102, steps: 1},
		{desc: "many steps", requests: []Request{{Cmd: "step", Count: 8}}, wantPC: 0x0106, steps: 8},
		{desc: "run until", requests: []Request{{Cmd: "run-until", PC: 0x0105, Count: 100}}, wantPC: 0x0105, steps: 7},
		{desc: "run until limit", requests: []Request{{Cmd: "run-until", PC: 0x0200, Count: 3}}, wantPC: 0x0102, steps: 3, errMsg: "step limit reached"},
		{desc: "stopped", requests: []Request{{Cmd: "stop"}, {Cmd: "step"}}, wantPC: 0x0100, errMsg: "cpu is stopped"},
		{desc: "restarted", requests: []Request{{Cmd: "stop"}, {Cmd: "start"}, {Cmd: "step"}}, wantPC: 0x0102, steps: 1},
		{desc: "unknown", requests: []Request{{Cmd: "reset"}}, wantPC: 0x0100, errMsg: `unknown command: "reset"`},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			s := newTestServer(t)

			var resp Response
			for _, req := range tC.requests {
				resp = s.Handle(req)
			}

			require.NotNil(t, resp.State)
			assert.Equal(t, tC.wantPC, resp.State.CPU.PC)
			assert.Equal(t, tC.steps, resp.Steps)
			if tC.errMsg == "" {
				assert.Empty(t, resp.Error)
			} else {
				assert.Contains(t, resp.Error, tC.errMsg)
			}
		})
	}
}

func TestServer_HandleHeaderAndDisassembly(t *testing.T) {
	s := newTestServer(t)

	resp := s.Handle(Request{Cmd: "header"})
	assert.True(t, strings.HasPrefix(resp.Header, "TEST | ROM ONLY"), resp.Header)

	resp = s.Handle(Request{Cmd: "disassemble", Addr: 0x0100, Count: 4})
	require.Len(t, resp.Disassembly, 4)
	assert.Equal(t, "LD B, $03", resp.Disassembly[0].Instruction)
	assert.Equal(t, "JR NZ, -3 ; $0102", resp.Disassembly[2].Instruction)
	assert.Equal(t, "HALT", resp.Disassembly[3].Instruction)
}

func TestServer_Websocket(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Request{Cmd: "step", Count: 2}))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))

	assert.Equal(t, "step", resp.Cmd)
	assert.Equal(t, 2, resp.Steps)
	require.NotNil(t, resp.State.CPU)
	assert.Equal(t, uint8(0x02), resp.State.CPU.B)
	assert.Equal(t, uint16(0x0103), resp.State.CPU.PC)
	assert.Equal(t, "TEST", resp.State.Cartridge.Title)

	require.NoError(t, conn.WriteJSON(Request{Cmd: "bogus"}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Contains(t, resp.Error, "unknown command")
}
