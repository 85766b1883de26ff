package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/brinkwave/hlswatch/internal/finding"
)

// fakeSender records every call and replays a scripted sequence of
// (status, error) outcomes per URL, cycling to the last entry once
// exhausted.
type fakeSender struct {
	mu      sync.Mutex
	calls   []call
	outcome map[string][]outcome
}

type call struct {
	url     string
	body    []byte
	headers map[string]string
}

type outcome struct {
	status int
	err    error
}

func newFakeSender() *fakeSender {
	return &fakeSender{outcome: make(map[string][]outcome)}
}

func (f *fakeSender) script(url string, os ...outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcome[url] = os
}

func (f *fakeSender) Send(_ context.Context, url string, body []byte, headers map[string]string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{url: url, body: body, headers: headers})
	os := f.outcome[url]
	if len(os) == 0 {
		return 200, nil
	}
	idx := 0
	for i, c := range f.calls {
		if c.url == url {
			idx = i
		}
	}
	n := 0
	for _, c := range f.calls {
		if c.url == url {
			n++
		}
	}
	_ = idx
	step := n - 1
	if step >= len(os) {
		step = len(os) - 1
	}
	return os[step].status, os[step].err
}

func (f *fakeSender) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.url == url {
			n++
		}
	}
	return n
}

func (f *fakeSender) lastHeaders(url string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var h map[string]string
	for _, c := range f.calls {
		if c.url == url {
			h = c.headers
		}
	}
	return h
}

func testFinding(k finding.Kind) finding.Finding {
	return finding.Finding{
		MonitorID: "m1",
		Kind:      k,
		Severity:  finding.SeverityOf(k),
		Timestamp: time.Now().UTC(),
		Message:   "test",
	}
}

func TestNotify_FiltersByDestination(t *testing.T) {
	sender := newFakeSender()
	n := New(hclog.NewNullLogger())
	n.sender = sender
	defer n.Close()

	n.SetDestinations([]Destination{
		{ID: "all", URL: "https://a.example/hook"},
		{ID: "errors-only", URL: "https://b.example/hook", EventsFilter: map[finding.Kind]bool{
			finding.KindFetchError: true,
		}},
	})

	n.Notify(testFinding(finding.KindFetchError))
	n.Notify(testFinding(finding.KindMonitorStarted))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sender.callCount("https://a.example/hook") == 2 && sender.callCount("https://b.example/hook") == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := sender.callCount("https://a.example/hook"); got != 2 {
		t.Errorf("expected 2 deliveries to unfiltered destination, got %d", got)
	}
	if got := sender.callCount("https://b.example/hook"); got != 1 {
		t.Errorf("expected 1 delivery to filtered destination, got %d", got)
	}
}

func TestDeliver_SignsBodyWhenSecretSet(t *testing.T) {
	sender := newFakeSender()
	n := New(hclog.NewNullLogger())
	n.sender = sender
	defer n.Close()

	n.SetDestinations([]Destination{
		{ID: "signed", URL: "https://signed.example/hook", Secret: "shh"},
	})

	f := testFinding(finding.KindFetchError)
	n.Notify(f)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sender.callCount("https://signed.example/hook") == 0 {
		time.Sleep(10 * time.Millisecond)
	}

	headers := sender.lastHeaders("https://signed.example/hook")
	sig, ok := headers["X-HLS-Signature-256"]
	if !ok {
		t.Fatal("expected X-HLS-Signature-256 header to be set")
	}

	body, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write(body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if sig != want {
		t.Errorf("signature mismatch: got %s want %s", sig, want)
	}
}

func TestDeliver_RetriesOnServerErrorThenSucceeds(t *testing.T) {
	sender := newFakeSender()
	sender.script("https://flaky.example/hook", outcome{status: 500}, outcome{status: 200})

	n := New(hclog.NewNullLogger())
	n.sender = sender
	defer n.Close()
	n.SetDestinations([]Destination{{ID: "flaky", URL: "https://flaky.example/hook"}})

	n.Notify(testFinding(finding.KindFetchError))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if stats, ok := n.StatsFor("flaky"); ok && stats.Delivered == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	stats, _ := n.StatsFor("flaky")
	if stats.Delivered != 1 {
		t.Fatalf("expected 1 delivered after retry, got %+v", stats)
	}
	if got := sender.callCount("https://flaky.example/hook"); got != 2 {
		t.Errorf("expected 2 attempts (1 failure + 1 success), got %d", got)
	}
}

func TestDeliver_PermanentOn4xx(t *testing.T) {
	sender := newFakeSender()
	sender.script("https://bad.example/hook", outcome{status: 404})

	n := New(hclog.NewNullLogger())
	n.sender = sender
	defer n.Close()
	n.SetDestinations([]Destination{{ID: "bad", URL: "https://bad.example/hook"}})

	n.Notify(testFinding(finding.KindFetchError))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if stats, ok := n.StatsFor("bad"); ok && stats.Failed == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := sender.callCount("https://bad.example/hook"); got != 1 {
		t.Errorf("expected no retry on 4xx, got %d attempts", got)
	}
	stats, _ := n.StatsFor("bad")
	if stats.Failed != 1 {
		t.Errorf("expected 1 permanent failure recorded, got %+v", stats)
	}
}

func TestQueue_DropsOldestAtCapacity(t *testing.T) {
	dq := &destinationQueue{
		dest:   Destination{ID: "d"},
		notify: make(chan struct{}, 1),
	}
	for i := 0; i < queueCapacity+5; i++ {
		dq.enqueue(testFinding(finding.Kind(fmt.Sprintf("k%d", i))))
	}
	dq.mu.Lock()
	n := len(dq.pending)
	dropped := dq.stats.Dropped
	dq.mu.Unlock()
	if n != queueCapacity {
		t.Errorf("expected queue capped at %d, got %d", queueCapacity, n)
	}
	if dropped != 5 {
		t.Errorf("expected 5 dropped, got %d", dropped)
	}
}
