package safetypole

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestMonitor_EndToEndWarning feeds one firmware line through the whole
// pipeline and checks the committed state and the alert.
func TestMonitor_EndToEndWarning(t *testing.T) {
	pr, pw := io.Pipe()
	src, err := ReaderSource(pr)
	if err != nil {
		t.Fatalf("ReaderSource() error = %v", err)
	}

	snapshots := make(chan Snapshot, 4)
	alerts := make(chan Alert, 4)

	m, err := New(
		WithSource(src),
		WithPort(19201),
		WithLogger(testLogger()),
		WithSnapshotCallback(func(s Snapshot) { snapshots <- s }),
		WithAlertCallback(func(a Alert) { alerts <- a }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := runMonitor(t, m)
	defer stop()

	if _, err := io.WriteString(pw, "E-Field:900|Current:200\n"); err != nil {
		t.Fatalf("write feed line: %v", err)
	}

	var snap Snapshot
	select {
	case snap = <-snapshots:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for snapshot callback")
	}

	if snap.Status != StatusWarning {
		t.Errorf("Status = %q, want %q", snap.Status, StatusWarning)
	}
	if snap.ElectricField != 900 || snap.Current != 200 {
		t.Errorf("readings = (%v, %v), want (900, 200)", snap.ElectricField, snap.Current)
	}
	if !snap.IndicatorOn || snap.AlarmOn {
		t.Errorf("IndicatorOn = %v, AlarmOn = %v; want true, false", snap.IndicatorOn, snap.AlarmOn)
	}
	if snap.Seq != 1 {
		t.Errorf("Seq = %d, want 1", snap.Seq)
	}
	if len(snap.Alerts) != 1 || snap.Alerts[0].Level != AlertWarning {
		t.Fatalf("Alerts = %+v, want one warning", snap.Alerts)
	}
	if _, err := time.Parse("15:04:05", snap.Alerts[0].Time); err != nil {
		t.Errorf("alert time %q is not HH:MM:SS: %v", snap.Alerts[0].Time, err)
	}

	select {
	case a := <-alerts:
		if a.Level != AlertWarning || a.Message != "Approaching unsafe threshold" {
			t.Errorf("alert = %+v", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for alert callback")
	}

	_ = pw.Close()
}

func TestMonitor_MalformedLinesSkipped(t *testing.T) {
	input := "garbage\n\nE-Field:1300|Current:0\n"
	src, err := ReaderSource(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReaderSource() error = %v", err)
	}

	var count atomic.Int32
	got := make(chan Snapshot, 1)
	m, err := New(
		WithSource(src),
		WithPort(19202),
		WithLogger(testLogger()),
		WithSnapshotCallback(func(s Snapshot) {
			count.Add(1)
			got <- s
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := runMonitor(t, m)
	defer stop()

	select {
	case s := <-got:
		if s.Status != StatusDanger || !s.AlarmOn {
			t.Errorf("snapshot = %+v, want DANGER with alarm", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for snapshot callback")
	}

	// the feed has ended; nothing else may be committed
	time.Sleep(50 * time.Millisecond)
	if n := count.Load(); n != 1 {
		t.Errorf("snapshot callback invoked %d times, want 1", n)
	}
}

func TestSubmit_OverridesFlowThroughPipeline(t *testing.T) {
	// an empty reader ends immediately, leaving overrides as the only input
	src, err := ReaderSource(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ReaderSource() error = %v", err)
	}

	var mu sync.Mutex
	var seen []Snapshot
	var alerts []Alert
	m, err := New(
		WithSource(src),
		WithPort(19203),
		WithLogger(testLogger()),
		WithAlertPolicy(AlertOnTransition),
		WithSnapshotCallback(func(s Snapshot) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		}),
		WithAlertCallback(func(a Alert) {
			mu.Lock()
			alerts = append(alerts, a)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := runMonitor(t, m)
	defer stop()

	ctx := context.Background()
	for _, pair := range [][2]float64{{900, 0}, {950, 0}, {0, 1600}, {10, 10}} {
		if err := m.Submit(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("Submit(%v) error = %v", pair, err)
		}
	}

	// Submit returns once committed; callbacks follow on the same goroutine
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 4 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(seen) != 4 {
		t.Fatalf("got %d snapshots, want 4", len(seen))
	}
	want := []Status{StatusWarning, StatusWarning, StatusDanger, StatusSafe}
	for i, s := range seen {
		if s.Status != want[i] {
			t.Errorf("snapshot %d status = %q, want %q", i, s.Status, want[i])
		}
		if s.Seq != uint64(i+1) {
			t.Errorf("snapshot %d seq = %d, want %d", i, s.Seq, i+1)
		}
	}

	// on_transition: SAFE->WARNING and WARNING->DANGER only
	if len(alerts) != 2 || alerts[0].Level != AlertWarning || alerts[1].Level != AlertDanger {
		t.Errorf("alerts = %+v, want warning then danger", alerts)
	}
	if got := seen[3].Alerts; len(got) != 2 || got[0].Level != AlertDanger {
		t.Errorf("history = %+v, want danger first", got)
	}
}

func TestCallbacks_PanicRecovered(t *testing.T) {
	src, err := ReaderSource(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ReaderSource() error = %v", err)
	}

	var after atomic.Int32
	m, err := New(
		WithSource(src),
		WithPort(19204),
		WithLogger(testLogger()),
		WithSnapshotCallback(func(Snapshot) { panic("callback bug") }),
		WithSnapshotCallback(func(Snapshot) { after.Add(1) }),
		WithAlertCallback(func(Alert) { panic("alert callback bug") }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := runMonitor(t, m)
	defer stop()

	for i := 0; i < 3; i++ {
		if err := m.Submit(context.Background(), 1300, 0); err != nil {
			t.Fatalf("Submit() #%d error = %v", i, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for after.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := after.Load(); n != 3 {
		t.Errorf("callback after a panicking one ran %d times, want 3", n)
	}
}

func TestCallbacks_SnapshotIsACopy(t *testing.T) {
	src, err := ReaderSource(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ReaderSource() error = %v", err)
	}

	got := make(chan Snapshot, 2)
	m, err := New(
		WithSource(src),
		WithPort(19205),
		WithLogger(testLogger()),
		WithSnapshotCallback(func(s Snapshot) {
			if len(s.Alerts) > 0 {
				s.Alerts[0].Message = "mutated"
			}
			got <- s
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := runMonitor(t, m)
	defer stop()

	ctx := context.Background()
	if err := m.Submit(ctx, 900, 0); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-got
	if err := m.Submit(ctx, 900, 0); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	second := <-got

	if second.Alerts[1].Message != "Approaching unsafe threshold" {
		t.Errorf("history changed by a callback: %q", second.Alerts[1].Message)
	}
}
