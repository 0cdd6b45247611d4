package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func generic(t *testing.T, src byte, ts time.Time) message.Message {
	t.Helper()
	raw, err := telegram.Encode(telegram.Request, 0x11, telegram.Unit(src), []byte{src})
	if err != nil {
		t.Fatal(err)
	}
	tg, err := telegram.NewAt(raw, ts)
	if err != nil {
		t.Fatal(err)
	}
	return message.NewGeneric(tg)
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestRunEmitsInOrder(t *testing.T) {
	p := New(Options{})
	for i := byte(1); i <= 3; i++ {
		p.Add(generic(t, i, base))
	}
	var got []byte
	p.Subscribe(func(m message.Message) {
		if isClosed(p.Done()) {
			t.Error("completion fired before the last emission")
		}
		got = append(got, byte(m.Telegram().Source()))
	})

	start := time.Now()
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("emitted %v, want [1 2 3]", got)
	}
	if !isClosed(p.Done()) {
		t.Error("completion did not fire")
	}
	if elapsed := time.Since(start); elapsed < 3*DefaultInterval {
		t.Errorf("replay took %v, want at least %v", elapsed, 3*DefaultInterval)
	}
}

func TestRunEmpty(t *testing.T) {
	p := New(Options{})
	calls := 0
	p.Subscribe(func(message.Message) { calls++ })
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 0 {
		t.Errorf("got %d emissions, want 0", calls)
	}
	if !isClosed(p.Done()) {
		t.Error("completion did not fire")
	}
}

func TestRunWithoutSubscriber(t *testing.T) {
	p := New(Options{})
	p.Add(generic(t, 1, base))
	if err := p.Run(context.Background()); !errors.Is(err, ErrNoSubscriber) {
		t.Errorf("Run error = %v, want ErrNoSubscriber", err)
	}
	if isClosed(p.Done()) {
		t.Error("completion fired without a run")
	}
}

func TestRunTwice(t *testing.T) {
	p := New(Options{})
	p.Subscribe(func(message.Message) {})
	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Run error = %v, want ErrAlreadyStarted", err)
	}
}

func TestRunCancelled(t *testing.T) {
	p := New(Options{Interval: time.Hour})
	p.Add(generic(t, 1, base))
	p.Add(generic(t, 2, base))
	calls := 0
	p.Subscribe(func(message.Message) { calls++ })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if calls != 0 {
		t.Errorf("got %d emissions, want 0", calls)
	}
	if !isClosed(p.Done()) {
		t.Error("completion did not fire after cancel")
	}
}

func TestRealtimeWaits(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		want  []time.Duration
	}{
		{"original spacing", 1, []time.Duration{0, 10 * time.Millisecond, 30 * time.Millisecond}},
		{"double speed", 2, []time.Duration{0, 5 * time.Millisecond, 15 * time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Options{Mode: Realtime, Speed: tt.speed})
			p.Add(generic(t, 1, base))
			p.Add(generic(t, 2, base.Add(10*time.Millisecond)))
			p.Add(generic(t, 3, base.Add(40*time.Millisecond)))
			var waits []time.Duration
			p.sleep = func(_ context.Context, d time.Duration) error {
				waits = append(waits, d)
				return nil
			}
			p.Subscribe(func(message.Message) {})
			if err := p.Run(context.Background()); err != nil {
				t.Fatal(err)
			}
			if len(waits) != len(tt.want) {
				t.Fatalf("waits = %v, want %v", waits, tt.want)
			}
			for i := range tt.want {
				if waits[i] != tt.want[i] {
					t.Errorf("wait %d = %v, want %v", i, waits[i], tt.want[i])
				}
			}
		})
	}
}

func TestModeString(t *testing.T) {
	if Interval.String() != "interval" || Realtime.String() != "realtime" {
		t.Errorf("unexpected mode names %s, %s", Interval, Realtime)
	}
}
