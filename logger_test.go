package framerelay

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestNopHandlerDiscards(t *testing.T) {
	h := nopHandler{}
	ctx := context.Background()
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(ctx, level) {
			t.Errorf("Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(ctx, slog.Record{}); err != nil {
		t.Errorf("Handle() = %v, want nil", err)
	}
	for name, derived := range map[string]slog.Handler{
		"WithAttrs": h.WithAttrs([]slog.Attr{slog.String("relay", "x")}),
		"WithGroup": h.WithGroup("relay"),
	} {
		if _, ok := derived.(nopHandler); !ok {
			t.Errorf("%s() returned %T, want nopHandler", name, derived)
		}
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	debug := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name        string
		set         *slog.Logger
		wantSame    bool
		wantEnabled bool
	}{
		{"custom", debug, true, true},
		{"nil restores silence", nil, false, false},
		{"default", slog.Default(), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogger(tt.set)
			l := Logger()
			if l == nil {
				t.Fatal("Logger() = nil")
			}
			if tt.wantSame && l != tt.set {
				t.Error("Logger() did not return the logger passed to SetLogger")
			}
			if got := l.Enabled(context.Background(), slog.LevelError); got != tt.wantEnabled {
				t.Errorf("Enabled(Error) = %v, want %v", got, tt.wantEnabled)
			}
		})
	}
}

// TestRelayRecords checks that every relay record carries the relay's ID and
// goes to the relay's own logger when one is set.
func TestRelayRecords(t *testing.T) {
	tests := []struct {
		name      string
		ownLogger bool
		act       func(r *Relay)
		want      []string
	}{
		{
			name: "created",
			act:  func(*Relay) {},
			want: []string{"level=INFO", "relay created"},
		},
		{
			name: "import failure",
			act: func(r *Relay) {
				r.OnExternalFrame(ExternalFrame{Handle: 999})
			},
			want: []string{"level=WARN", "dropping frame", "unknown handle"},
		},
		{
			name:      "closed through WithLogger",
			ownLogger: true,
			act:       func(r *Relay) { _ = r.Close() },
			want:      []string{"level=INFO", "relay closed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := Logger()
			t.Cleanup(func() { SetLogger(orig) })

			var global, own bytes.Buffer
			SetLogger(slog.New(slog.NewTextHandler(&global, nil)))
			var opts []Option
			out := &global
			if tt.ownLogger {
				opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(&own, nil))))
				out = &own
			}

			r, err := New(newFakeDevice(1), newFakeDevice(1), opts...)
			if err != nil {
				t.Fatalf("New() = %v", err)
			}
			defer r.Close()
			tt.act(r)

			text := out.String()
			for _, w := range append(tt.want, "relay="+r.ID()) {
				if !strings.Contains(text, w) {
					t.Errorf("log output missing %q:\n%s", w, text)
				}
			}
			if tt.ownLogger && global.Len() != 0 {
				t.Errorf("package logger received output: %s", global.String())
			}
		})
	}
}

func TestRelaysLogWhileLoggerSwaps(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := New(newFakeDevice(1), newFakeDevice(1))
			if err != nil {
				t.Error(err)
				return
			}
			r.OnExternalFrame(ExternalFrame{Handle: 999})
			_ = r.Close()
		}()
	}
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
			SetLogger(nil)
		}()
	}
	wg.Wait()
}
