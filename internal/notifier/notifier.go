// Package notifier delivers findings to configured webhook destinations:
// filtered by kind, HMAC-signed, retried with backoff, and decoupled from
// the polling loop by a bounded per-destination queue (§4.5).
package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/brinkwave/hlswatch/internal/finding"
)

// queueCapacity is the bounded size of each destination's pending queue
// (§4.5); beyond it the oldest pending notification is dropped.
const queueCapacity = 256

// maxAttempts bounds webhook delivery attempts; retries use exponential
// backoff, waiting 1s before the second attempt and 2s before the third.
const maxAttempts = 3

// Destination is one webhook target.
type Destination struct {
	ID           string
	URL          string
	EventsFilter map[finding.Kind]bool // empty/nil matches every kind
	Secret       string
}

func (d Destination) matches(k finding.Kind) bool {
	if len(d.EventsFilter) == 0 {
		return true
	}
	return d.EventsFilter[k]
}

// Sender performs the HTTP POST for a signed webhook body; production code
// uses httpSender, tests substitute a fake to avoid real network calls.
type Sender interface {
	Send(ctx context.Context, url string, body []byte, headers map[string]string) (status int, err error)
}

type httpSender struct {
	client *http.Client
}

func (h httpSender) Send(ctx context.Context, url string, body []byte, headers map[string]string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// Stats exposes per-destination delivery counters for status snapshots.
type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
}

type destinationQueue struct {
	dest    Destination
	logger  hclog.Logger
	sender  Sender
	mu      sync.Mutex
	pending []finding.Finding
	notify  chan struct{}
	stats   Stats
}

// Notifier owns one goroutine per destination, each draining its own bounded
// FIFO queue.
type Notifier struct {
	logger hclog.Logger
	sender Sender

	mu    sync.Mutex
	queue map[string]*destinationQueue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Notifier ready to accept destinations. Call Close to stop
// all per-destination workers.
func New(logger hclog.Logger) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		logger: logger,
		sender: httpSender{client: &http.Client{Timeout: 10 * time.Second}},
		queue:  make(map[string]*destinationQueue),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetDestinations replaces the full set of destinations a monitor notifies.
// Destinations removed from the new set stop receiving further findings;
// their worker still delivers what was already queued and exits only when
// Close is called.
func (n *Notifier) SetDestinations(dests []Destination) {
	n.mu.Lock()
	defer n.mu.Unlock()

	keep := make(map[string]bool, len(dests))
	for _, d := range dests {
		keep[d.ID] = true
		if _, ok := n.queue[d.ID]; ok {
			continue
		}
		dq := &destinationQueue{dest: d, logger: n.logger.Named(d.ID), sender: n.sender, notify: make(chan struct{}, 1)}
		n.queue[d.ID] = dq
		n.wg.Add(1)
		go n.drain(dq)
	}
	for id := range n.queue {
		if !keep[id] {
			delete(n.queue, id)
		}
	}
}

// Notify enqueues a finding for every destination whose filter matches.
// Fire-and-forget: the caller's polling loop never blocks on delivery.
func (n *Notifier) Notify(f finding.Finding) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, dq := range n.queue {
		if !dq.dest.matches(f.Kind) {
			continue
		}
		dq.enqueue(f)
	}
}

func (dq *destinationQueue) enqueue(f finding.Finding) {
	dq.mu.Lock()
	if len(dq.pending) >= queueCapacity {
		dq.pending = dq.pending[1:]
		dq.stats.Dropped++
	}
	dq.pending = append(dq.pending, f)
	dq.mu.Unlock()

	select {
	case dq.notify <- struct{}{}:
	default:
	}
}

func (dq *destinationQueue) pop() (finding.Finding, bool) {
	dq.mu.Lock()
	defer dq.mu.Unlock()
	if len(dq.pending) == 0 {
		return finding.Finding{}, false
	}
	f := dq.pending[0]
	dq.pending = dq.pending[1:]
	return f, true
}

func (n *Notifier) drain(dq *destinationQueue) {
	defer n.wg.Done()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-dq.notify:
		}
		for {
			f, ok := dq.pop()
			if !ok {
				break
			}
			if err := deliver(n.ctx, dq.sender, dq.dest, f); err != nil {
				dq.mu.Lock()
				dq.stats.Failed++
				dq.mu.Unlock()
				dq.logger.Warn("webhook delivery failed", "url", dq.dest.URL, "kind", f.Kind, "error", err)
				continue
			}
			dq.mu.Lock()
			dq.stats.Delivered++
			dq.mu.Unlock()
		}
	}
}

func deliver(ctx context.Context, sender Sender, dest Destination, f finding.Finding) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal finding: %w", err)
	}

	headers := map[string]string{}
	if dest.Secret != "" {
		headers["X-HLS-Signature-256"] = sign(dest.Secret, body)
	}

	policy := backoff.WithMaxRetries(newExponential(), maxAttempts-1)

	return backoff.Retry(func() error {
		status, err := sender.Send(ctx, dest.URL, body, headers)
		if err != nil {
			return err // network error: retryable
		}
		if status >= 200 && status < 300 {
			return nil
		}
		if status >= 400 && status < 500 {
			return backoff.Permanent(fmt.Errorf("webhook %s returned %d", dest.URL, status))
		}
		return fmt.Errorf("webhook %s returned %d", dest.URL, status)
	}, policy)
}

func newExponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return b
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Close stops every destination worker, discarding undelivered findings.
func (n *Notifier) Close() {
	n.cancel()
	n.wg.Wait()
}

// StatsFor returns a copy of a destination's delivery counters.
func (n *Notifier) StatsFor(id string) (Stats, bool) {
	n.mu.Lock()
	dq, ok := n.queue[id]
	n.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	dq.mu.Lock()
	defer dq.mu.Unlock()
	return dq.stats, true
}
