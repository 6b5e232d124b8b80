package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/sheetsync/sheetsync/internal/daemon"
	syncpkg "github.com/sheetsync/sheetsync/internal/sync"
)

type fixedStatus daemon.Status

func (f fixedStatus) Status() daemon.Status { return daemon.Status(f) }

type fixedPending struct {
	n   int
	err error
}

func (f fixedPending) CountChanges(ctx context.Context) (int, error) { return f.n, f.err }

func startServer(t *testing.T) *Server {
	t.Helper()

	server := NewServer(zaptest.NewLogger(t), &Config{Addr: "127.0.0.1:0"}, nil, nil)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestRoot_Liveness(t *testing.T) {
	server := NewServer(zaptest.NewLogger(t), nil, nil, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "Synchronization Server is UP!!" {
		t.Errorf("GET / body = %q", body)
	}
}

func TestHealth(t *testing.T) {
	lastImport := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		status      StatusSource
		pending     PendingCounter
		wantStatus  string
		wantPending *int
		wantImport  bool
		wantError   string
	}{
		{
			name:       "bare",
			wantStatus: "ok",
		},
		{
			name:        "with scheduler",
			status:      fixedStatus{LastImport: lastImport, LastError: "quota"},
			pending:     fixedPending{n: 4},
			wantStatus:  "ok",
			wantPending: intPtr(4),
			wantImport:  true,
			wantError:   "quota",
		},
		{
			name:       "store down",
			pending:    fixedPending{err: errors.New("closed")},
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer(zaptest.NewLogger(t), nil, tt.status, tt.pending)

			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode /health: %v", err)
			}

			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if (resp.PendingChanges == nil) != (tt.wantPending == nil) ||
				(resp.PendingChanges != nil && *resp.PendingChanges != *tt.wantPending) {
				t.Errorf("pending_changes = %v, want %v", resp.PendingChanges, tt.wantPending)
			}
			if (resp.LastImport != nil) != tt.wantImport {
				t.Errorf("last_import = %v, want set=%v", resp.LastImport, tt.wantImport)
			}
			if resp.LastExport != nil {
				t.Errorf("last_export = %v, want unset", resp.LastExport)
			}
			if resp.LastError != tt.wantError {
				t.Errorf("last_error = %q, want %q", resp.LastError, tt.wantError)
			}
		})
	}
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(zaptest.NewLogger(t), &Config{Addr: "127.0.0.1:0"}, nil, nil)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if server.GetAddr() == "127.0.0.1:0" {
		t.Error("GetAddr() should return the bound port")
	}

	resp, err := http.Get("http://" + server.GetAddr() + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	resp.Body.Close()

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocket_HelloAndBroadcast(t *testing.T) {
	server := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeHello {
		t.Fatalf("first message type = %s, want %s", msg.Type, MessageTypeHello)
	}
	if count := server.ClientCount(); count != 1 {
		t.Errorf("ClientCount() = %d, want 1", count)
	}

	handler := NewHandler(zaptest.NewLogger(t), server)
	handler.Notify(daemon.Event{
		ID:        "cycle-1",
		Direction: daemon.DirectionImport,
		Started:   time.Now(),
		Import:    &syncpkg.ImportResult{Rows: 2, Inserted: 2},
	})

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeImportComplete {
		t.Fatalf("message type = %s, want %s", msg.Type, MessageTypeImportComplete)
	}
	var data ImportCompleteData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Failed to unmarshal data: %v", err)
	}
	if data.Cycle != "cycle-1" || data.Inserted != 2 {
		t.Errorf("unexpected import data: %+v", data)
	}
}

func TestHandler_Format(t *testing.T) {
	h := NewHandler(zaptest.NewLogger(t), nil)
	now := time.Now()

	tests := []struct {
		name     string
		ev       daemon.Event
		wantType MessageType
		wantSend bool
	}{
		{
			name:     "import",
			ev:       daemon.Event{Direction: daemon.DirectionImport, Started: now, Import: &syncpkg.ImportResult{}},
			wantType: MessageTypeImportComplete,
			wantSend: true,
		},
		{
			name:     "export with changes",
			ev:       daemon.Event{Direction: daemon.DirectionExport, Started: now, Export: &syncpkg.ExportResult{Drained: 2}},
			wantType: MessageTypeExportComplete,
			wantSend: true,
		},
		{
			name:     "idle export",
			ev:       daemon.Event{Direction: daemon.DirectionExport, Started: now, Export: &syncpkg.ExportResult{}},
			wantSend: false,
		},
		{
			name:     "failure",
			ev:       daemon.Event{Direction: daemon.DirectionExport, Started: now, Err: errors.New("boom")},
			wantType: MessageTypeCycleError,
			wantSend: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := h.format(tt.ev)
			if ok != tt.wantSend {
				t.Fatalf("format() sent = %v, want %v", ok, tt.wantSend)
			}
			if ok && msg.Type != tt.wantType {
				t.Errorf("format() type = %s, want %s", msg.Type, tt.wantType)
			}
		})
	}
}

func intPtr(n int) *int { return &n }
