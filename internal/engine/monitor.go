// Package engine implements the monitor polling loop, fetch fan-out,
// cross-variant checks, and bounded notification hand-off described in
// §4.4.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/brinkwave/hlswatch/internal/checks"
	"github.com/brinkwave/hlswatch/internal/clock"
	"github.com/brinkwave/hlswatch/internal/finding"
	"github.com/brinkwave/hlswatch/internal/httpfetch"
	"github.com/brinkwave/hlswatch/internal/notifier"
	"github.com/brinkwave/hlswatch/internal/telemetry"
)

// RunState is a Monitor's lifecycle phase.
type RunState int

const (
	Idle RunState = iota
	Running
	Stopping
)

func (s RunState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ErrAlreadyRunning is returned by Start on a non-Idle monitor.
var ErrAlreadyRunning = fmt.Errorf("monitor is already running")

// ErrNotRunning reports a lifecycle operation on a monitor that is not
// running. No current operation returns it: Stop on an Idle monitor is a
// no-op (§4.4).
var ErrNotRunning = fmt.Errorf("monitor is not running")

// Option customizes a Monitor's collaborators; used by tests to substitute
// fakes for the HTTP fetcher and clock.
type Option func(*Monitor)

// WithFetcher overrides the HTTP fetch capability.
func WithFetcher(f httpfetch.Fetcher) Option {
	return func(m *Monitor) { m.fetcher = f }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLogger overrides the monitor's logger.
func WithLogger(l hclog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// Monitor is a single named polling engine over a set of streams, per §3.
type Monitor struct {
	id  string
	cfg Config

	logger    hclog.Logger
	fetcher   httpfetch.Fetcher
	clock     clock.Clock
	notifier  *notifier.Notifier
	telemetry *telemetry.Recorder

	// mu guards every field below. Critical sections never await; fetches
	// and HMAC signing happen outside the lock (§5, §9).
	mu        sync.Mutex
	runState  RunState
	streams   map[string]*stream
	errorRing *ring
	eventRing *ring

	cancel   context.CancelFunc
	loopDone chan struct{}
}

// New constructs a Monitor in the Idle state. cfg must already have passed
// Validate.
func New(id string, cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		id:        id,
		cfg:       cfg,
		logger:    hclog.NewNullLogger(),
		fetcher:   httpfetch.NewClient(),
		clock:     clock.Real{},
		notifier:  notifier.New(hclog.NewNullLogger()),
		telemetry: telemetry.NewRecorder(),
		runState:  Idle,
		streams:   make(map[string]*stream),
		errorRing: newRing(cfg.ErrorLimit),
		eventRing: newRing(cfg.EventLimit),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("monitor." + id)
	return m
}

// ID returns the monitor's stable identifier.
func (m *Monitor) ID() string { return m.id }

// checksConfig is a convenience accessor so poll.go doesn't reach into cfg
// directly from outside this package's other files.
func (m *Monitor) checksConfig() checks.Config { return m.cfg.checksConfig() }

// Start transitions Idle -> Running, emits MonitorStarted, and spawns the
// polling loop.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.runState != Idle {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.runState = Running
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.loopDone = make(chan struct{})
	m.appendLocked(finding.New(m.clock.Now(), m.id, nil, nil, finding.KindMonitorStarted, "monitor started", nil))
	m.mu.Unlock()

	go m.loop(ctx)
	return nil
}

// Stop transitions Running -> Stopping, cancels in-flight fetches, awaits
// the loop, and transitions to Idle. A no-op on an Idle monitor.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if m.runState == Idle {
		m.mu.Unlock()
		return nil
	}
	m.runState = Stopping
	cancel := m.cancel
	done := m.loopDone
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	m.runState = Idle
	m.appendLocked(finding.New(m.clock.Now(), m.id, nil, nil, finding.KindMonitorStopped, "monitor stopped", nil))
	m.mu.Unlock()

	m.notifier.Close()
	return nil
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.clock.After(m.cfg.PollInterval):
		}

		m.mu.Lock()
		running := m.runState == Running
		m.mu.Unlock()
		if !running {
			return
		}

		findings := m.pollCycle(ctx, true)
		if ctx.Err() != nil {
			// Cancellation mid-cycle discards the cycle's findings (§5).
			return
		}

		m.mu.Lock()
		for _, f := range findings {
			m.appendLocked(f)
		}
		m.mu.Unlock()

		for _, f := range findings {
			m.notifier.Notify(f)
		}
	}
}

// PollOnce executes one poll cycle (§4.4 steps 2-4) with staleness checks
// disabled and without lifecycle findings, the shared entry point used by
// the one-shot validator mode. Results are appended to this monitor's rings
// and handed to the notifier exactly as a scheduled cycle would be.
func (m *Monitor) PollOnce(ctx context.Context) []finding.Finding {
	findings := m.pollCycle(ctx, false)
	if ctx.Err() != nil {
		return nil
	}
	m.mu.Lock()
	for _, f := range findings {
		m.appendLocked(f)
	}
	m.mu.Unlock()
	for _, f := range findings {
		m.notifier.Notify(f)
	}
	return findings
}

func (m *Monitor) appendLocked(f finding.Finding) {
	if f.Severity == finding.SeverityError {
		m.errorRing.push(f)
	} else {
		m.eventRing.push(f)
	}
	m.telemetry.Incr("findings." + string(f.Kind))
}

// SnapshotErrors returns a copy of the error ring.
func (m *Monitor) SnapshotErrors() []finding.Finding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errorRing.snapshot()
}

// ClearErrors empties the error ring without affecting the drop counter's
// history.
func (m *Monitor) ClearErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorRing.clear()
}

// SnapshotEvents returns a copy of the event ring.
func (m *Monitor) SnapshotEvents() []finding.Finding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventRing.snapshot()
}

// Status is the result of SnapshotStatus.
type Status struct {
	ID            string
	RunState      string
	StreamCount   int
	VariantCount  int
	ErrorsDropped int
	EventsDropped int
	ErrorRingSize int
	EventRingSize int
	FindingCounts map[string]float64
}

// SnapshotStatus reports the monitor's current lifecycle and ring state.
func (m *Monitor) SnapshotStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	variantCount := 0
	for _, s := range m.streams {
		variantCount += len(s.variants)
	}

	counts := make(map[string]float64)
	for k := range allKinds {
		if v := m.telemetry.Counter("findings." + k); v > 0 {
			counts[k] = v
		}
	}

	return Status{
		ID:            m.id,
		RunState:      m.runState.String(),
		StreamCount:   len(m.streams),
		VariantCount:  variantCount,
		ErrorsDropped: m.errorRing.dropped,
		EventsDropped: m.eventRing.dropped,
		ErrorRingSize: len(m.errorRing.entries),
		EventRingSize: len(m.eventRing.entries),
		FindingCounts: counts,
	}
}

// AddStream registers a new stream for this monitor. If id is empty, a
// short random id is generated. Serialized against the polling loop by mu.
func (m *Monitor) AddStream(url string, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = randomStreamID()
	}
	if _, exists := m.streams[id]; exists {
		return "", fmt.Errorf("stream id %q already exists", id)
	}
	m.streams[id] = newStream(id, url)
	return id, nil
}

// RemoveStream drops a stream and the rolling state of every variant it
// resolved to.
func (m *Monitor) RemoveStream(streamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.streams[streamID]; !ok {
		return fmt.Errorf("stream %q not found", streamID)
	}
	delete(m.streams, streamID)
	return nil
}

// SetDestinations configures this monitor's webhook destinations.
func (m *Monitor) SetDestinations(dests []notifier.Destination) {
	m.notifier.SetDestinations(dests)
}

func randomStreamID() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

var allKinds = map[string]struct{}{
	string(finding.KindTargetDurationExceeded):      {},
	string(finding.KindSegmentDurationAnomaly):      {},
	string(finding.KindPlaylistGap):                 {},
	string(finding.KindPlaylistTypeViolation):       {},
	string(finding.KindVersionViolation):            {},
	string(finding.KindMediaSequenceRegression):     {},
	string(finding.KindMediaSequenceGap):            {},
	string(finding.KindDiscontinuitySequenceMismatch): {},
	string(finding.KindSegmentContinuityBreak):      {},
	string(finding.KindPlaylistSizeShrank):          {},
	string(finding.KindPlaylistContentChanged):      {},
	string(finding.KindProgramDateTimeJump):         {},
	string(finding.KindDateRangeViolation):          {},
	string(finding.KindStaleManifest):               {},
	string(finding.KindVariantUnavailable):          {},
	string(finding.KindVariantSyncDrift):            {},
	string(finding.KindScte35OrphanCueIn):           {},
	string(finding.KindScte35UnclosedCueOut):        {},
	string(finding.KindScte35MissingContinuation):   {},
	string(finding.KindFetchError):                  {},
	string(finding.KindVariantRecovered):             {},
	string(finding.KindMonitorStarted):               {},
	string(finding.KindMonitorStopped):                {},
	string(finding.KindMasterRefreshed):               {},
}
