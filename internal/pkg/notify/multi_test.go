package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/model"
)

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Send(_ context.Context, _ *model.Product, _ Kind) error {
	s.calls++
	return s.err
}

func TestMultiSend(t *testing.T) {
	product := sampleProduct(true)

	t.Run("all_succeed", func(t *testing.T) {
		a, b := &stubNotifier{}, &stubNotifier{}
		m := NewMulti(slog.New(slog.DiscardHandler), a, b)
		if err := m.Send(context.Background(), product, KindNew); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.calls != 1 || b.calls != 1 {
			t.Errorf("calls = %d/%d, expected 1/1", a.calls, b.calls)
		}
	})

	t.Run("one_fails_still_succeeds", func(t *testing.T) {
		a := &stubNotifier{err: errors.New("down")}
		b := &stubNotifier{}
		m := NewMulti(slog.New(slog.DiscardHandler), a, b)
		if err := m.Send(context.Background(), product, KindNew); err != nil {
			t.Fatalf("one delivered channel must be enough, got %v", err)
		}
	})

	t.Run("all_fail", func(t *testing.T) {
		a := &stubNotifier{err: errors.New("down")}
		b := &stubNotifier{err: errors.New("also down")}
		m := NewMulti(slog.New(slog.DiscardHandler), a, b)
		if err := m.Send(context.Background(), product, KindNew); err == nil {
			t.Fatal("expected error when every channel failed")
		}
	})

	t.Run("no_channels", func(t *testing.T) {
		m := NewMulti(slog.New(slog.DiscardHandler))
		if err := m.Send(context.Background(), product, KindNew); err == nil {
			t.Fatal("expected error with no channels configured")
		}
	})
}
