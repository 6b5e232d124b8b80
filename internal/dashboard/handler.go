package dashboard

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sheetsync/sheetsync/internal/daemon"
)

// ImportCompleteData describes a finished import cycle.
type ImportCompleteData struct {
	Cycle    string        `json:"cycle"`
	Rows     int           `json:"rows"`
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Deleted  int           `json:"deleted"`
	Added    []string      `json:"columns_added,omitempty"`
	Dropped  []string      `json:"columns_dropped,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ExportCompleteData describes a finished export cycle.
type ExportCompleteData struct {
	Cycle    string        `json:"cycle"`
	Drained  int           `json:"drained"`
	Appended int           `json:"appended"`
	Updated  int           `json:"updated"`
	Blanked  int           `json:"blanked"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// CycleErrorData describes a failed cycle.
type CycleErrorData struct {
	Cycle     string `json:"cycle"`
	Direction string `json:"direction"`
	Error     string `json:"error"`
}

// Handler turns scheduler events into dashboard messages.
type Handler struct {
	log    *zap.Logger
	server *Server
}

var _ daemon.Notifier = (*Handler)(nil)

// NewHandler creates a handler broadcasting through server.
func NewHandler(log *zap.Logger, server *Server) *Handler {
	return &Handler{log: log, server: server}
}

// Notify implements daemon.Notifier.
func (h *Handler) Notify(ev daemon.Event) {
	msg, ok := h.format(ev)
	if !ok {
		return
	}
	h.server.Broadcast(msg)
}

func (h *Handler) format(ev daemon.Event) (Message, bool) {
	var (
		typ  MessageType
		data interface{}
	)

	switch {
	case ev.Err != nil:
		typ = MessageTypeCycleError
		data = CycleErrorData{Cycle: ev.ID, Direction: string(ev.Direction), Error: ev.Err.Error()}

	case ev.Direction == daemon.DirectionImport && ev.Import != nil:
		typ = MessageTypeImportComplete
		data = ImportCompleteData{
			Cycle:    ev.ID,
			Rows:     ev.Import.Rows,
			Inserted: ev.Import.Inserted,
			Updated:  ev.Import.Updated,
			Deleted:  ev.Import.Deleted,
			Added:    ev.Import.Reconcile.Added,
			Dropped:  ev.Import.Reconcile.Dropped,
			Duration: ev.Duration,
		}

	case ev.Direction == daemon.DirectionExport && ev.Export != nil:
		// Idle export cycles are not broadcast.
		if ev.Export.Drained == 0 {
			return Message{}, false
		}
		typ = MessageTypeExportComplete
		data = ExportCompleteData{
			Cycle:    ev.ID,
			Drained:  ev.Export.Drained,
			Appended: ev.Export.Appended,
			Updated:  ev.Export.Updated,
			Blanked:  ev.Export.Blanked,
			Skipped:  ev.Export.Skipped,
			Duration: ev.Duration,
		}

	default:
		return Message{}, false
	}

	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Error("failed to marshal event data", zap.Error(err))
		return Message{}, false
	}
	return Message{Type: typ, Timestamp: ev.Started, Data: raw}, true
}
