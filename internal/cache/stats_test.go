package cache

import (
	"context"
	"testing"
)

func TestLiveStats_readsZeroWhenUnset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewLiveStats(newTestClient(t))
	totals, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if totals.DeliveredTotal != 0 || totals.FailedTotal != 0 {
		t.Errorf("totals = %+v, want zero", totals)
	}
}

func TestLiveStats_recordAndRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewLiveStats(newTestClient(t))
	if err := s.RecordFanout(ctx, 3, 1); err != nil {
		t.Fatalf("RecordFanout() error = %v", err)
	}
	if err := s.RecordFanout(ctx, 2, 0); err != nil {
		t.Fatalf("RecordFanout() error = %v", err)
	}

	totals, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if totals.DeliveredTotal != 5 {
		t.Errorf("DeliveredTotal = %d, want 5", totals.DeliveredTotal)
	}
	if totals.FailedTotal != 1 {
		t.Errorf("FailedTotal = %d, want 1", totals.FailedTotal)
	}
}
