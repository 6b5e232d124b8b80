package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	syncpkg "github.com/sheetsync/sheetsync/internal/sync"
)

var (
	// Error is the error class for the scheduler.
	Error = errs.Class("daemon")
	mon   = monkit.Package()
)

// Direction names a sync direction.
type Direction string

const (
	// DirectionImport is sheet → table.
	DirectionImport Direction = "import"

	// DirectionExport is table → sheet.
	DirectionExport Direction = "export"
)

// Config holds configuration for the scheduler.
type Config struct {
	// ImportInterval is the period of the sheet → table cycle.
	ImportInterval time.Duration

	// ExportInterval is the period of the table → sheet cycle.
	ExportInterval time.Duration

	// Exclusive serializes the two directions.
	Exclusive bool
}

// DefaultConfig runs both directions every eight seconds.
func DefaultConfig() *Config {
	return &Config{
		ImportInterval: 8 * time.Second,
		ExportInterval: 8 * time.Second,
		Exclusive:      true,
	}
}

// Importer runs one sheet → table pass.
type Importer interface {
	Import(ctx context.Context) (syncpkg.ImportResult, error)
}

// Exporter runs one table → sheet pass.
type Exporter interface {
	Export(ctx context.Context) (syncpkg.ExportResult, error)
}

// Event describes one finished cycle.
type Event struct {
	ID        string
	Direction Direction
	Started   time.Time
	Duration  time.Duration

	// Import or Export is set according to Direction.
	Import *syncpkg.ImportResult
	Export *syncpkg.ExportResult

	// Err is the failure of the cycle, nil on success.
	Err error
}

// Notifier receives cycle events. Notify must not block.
type Notifier interface {
	Notify(ev Event)
}

// Status is the last known outcome of each direction.
type Status struct {
	LastImport  time.Time
	LastExport  time.Time
	LastError   string
	LastErrorAt time.Time
	Cycles      int64
}

// Scheduler runs the import and export cycles.
type Scheduler struct {
	log      *zap.Logger
	importer Importer
	exporter Exporter
	config   *Config

	// exclusive is held for the length of a cycle when Config.Exclusive is set.
	exclusive sync.Mutex

	mu       sync.Mutex
	notifier Notifier
	status   Status

	importPeriod chan time.Duration
	exportPeriod chan time.Duration
}

// New creates a scheduler. A nil config uses DefaultConfig.
func New(log *zap.Logger, importer Importer, exporter Exporter, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scheduler{
		log:          log,
		importer:     importer,
		exporter:     exporter,
		config:       config,
		importPeriod: make(chan time.Duration, 1),
		exportPeriod: make(chan time.Duration, 1),
	}
}

// SetNotifier registers the receiver of cycle events.
func (s *Scheduler) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifier = n
}

// Status returns a snapshot of the cycle outcomes.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// SetIntervals changes the cycle periods. Zero keeps a period unchanged.
func (s *Scheduler) SetIntervals(importInterval, exportInterval time.Duration) {
	if importInterval > 0 {
		replace(s.importPeriod, importInterval)
	}
	if exportInterval > 0 {
		replace(s.exportPeriod, exportInterval)
	}
}

// Start runs both loops until ctx is cancelled. An in-flight cycle sees the
// cancellation on its next I/O call.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.config.ImportInterval <= 0 || s.config.ExportInterval <= 0 {
		return Error.New("cycle intervals must be positive")
	}

	s.log.Info("starting scheduler",
		zap.Duration("import_interval", s.config.ImportInterval),
		zap.Duration("export_interval", s.config.ExportInterval),
		zap.Bool("exclusive", s.config.Exclusive))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.loop(ctx, s.config.ImportInterval, s.importPeriod, s.RunImport)
		return nil
	})
	group.Go(func() error {
		s.loop(ctx, s.config.ExportInterval, s.exportPeriod, s.RunExport)
		return nil
	})
	err := group.Wait()

	s.log.Info("scheduler stopped")
	return err
}

// loop calls cycle every period until ctx is done.
func (s *Scheduler) loop(ctx context.Context, period time.Duration, periods <-chan time.Duration, cycle func(context.Context) error) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case p := <-periods:
			ticker.Reset(p)

		case <-ticker.C:
			_ = cycle(ctx)
		}
	}
}

// RunImport runs one import cycle. The error is logged and reported to the
// notifier before it is returned.
func (s *Scheduler) RunImport(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	return s.run(ctx, DirectionImport, func(ctx context.Context, ev *Event) error {
		result, err := s.importer.Import(ctx)
		ev.Import = &result
		return err
	})
}

// RunExport runs one export cycle. The error is logged and reported to the
// notifier before it is returned.
func (s *Scheduler) RunExport(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	return s.run(ctx, DirectionExport, func(ctx context.Context, ev *Event) error {
		result, err := s.exporter.Export(ctx)
		ev.Export = &result
		return err
	})
}

func (s *Scheduler) run(ctx context.Context, dir Direction, pass func(context.Context, *Event) error) error {
	if s.config.Exclusive {
		s.exclusive.Lock()
		defer s.exclusive.Unlock()
	}

	ev := Event{
		ID:        uuid.NewString(),
		Direction: dir,
		Started:   time.Now(),
	}
	log := s.log.With(zap.String("cycle", ev.ID), zap.String("direction", string(dir)))

	ev.Err = pass(ctx, &ev)
	ev.Duration = time.Since(ev.Started)

	if ev.Err != nil {
		log.Error("cycle failed", zap.Duration("duration", ev.Duration), zap.Error(ev.Err))
	} else {
		log.Debug("cycle complete", zap.Duration("duration", ev.Duration))
	}

	s.record(ev)
	return ev.Err
}

func (s *Scheduler) record(ev Event) {
	s.mu.Lock()
	s.status.Cycles++
	if ev.Err != nil {
		s.status.LastError = ev.Err.Error()
		s.status.LastErrorAt = ev.Started
	} else if ev.Direction == DirectionImport {
		s.status.LastImport = ev.Started
	} else {
		s.status.LastExport = ev.Started
	}
	notifier := s.notifier
	s.mu.Unlock()

	if notifier != nil {
		notifier.Notify(ev)
	}
}

// replace puts v into a one-slot channel, discarding a stale value.
func replace(ch chan time.Duration, v time.Duration) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
