package correlate

import "testing"

func TestRecordAndResolve(t *testing.T) {
	s := New(10, nil)
	s.Record(100, "block_io", 1000)

	dur, orphan := s.Resolve(100, "block_io", 1500)
	if orphan {
		t.Fatal("Resolve() reported orphan for a known tid")
	}
	if dur != 500 {
		t.Errorf("duration = %d, want 500", dur)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after resolve", s.Len())
	}
}

func TestResolveOrphanReturn(t *testing.T) {
	s := New(10, nil)
	_, orphan := s.Resolve(42, "nccl", 1000)
	if !orphan {
		t.Fatal("Resolve() did not report orphan for an unrecorded tid")
	}
	if got := s.OrphanReturns("nccl"); got != 1 {
		t.Errorf("OrphanReturns(nccl) = %d, want 1", got)
	}
}

func TestEvictionAtCapacity(t *testing.T) {
	s := New(2, nil)
	s.Record(1, "p", 10)
	s.Record(2, "p", 20)
	s.Record(3, "p", 30) // evicts tid 1

	if s.Evicted() != 1 {
		t.Errorf("Evicted() = %d, want 1", s.Evicted())
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	_, orphan := s.Resolve(1, "p", 100)
	if !orphan {
		t.Error("Resolve() for evicted tid should report orphan")
	}
}

func TestResolveClockAnomalyReturnsZero(t *testing.T) {
	s := New(10, nil)
	s.Record(7, "p", 1000)

	dur, orphan := s.Resolve(7, "p", 500) // return before entry
	if orphan {
		t.Fatal("Resolve() should not be orphan here")
	}
	if dur != 0 {
		t.Errorf("duration = %d, want 0 for a clock anomaly", dur)
	}
}

func TestRecordOverwritesExistingPendingEntry(t *testing.T) {
	s := New(10, nil)
	s.Record(1, "p", 100)
	s.Record(1, "p", 200) // re-entry before a matching return

	dur, orphan := s.Resolve(1, "p", 250)
	if orphan {
		t.Fatal("Resolve() reported orphan unexpectedly")
	}
	if dur != 50 {
		t.Errorf("duration = %d, want 50 (resolved against the latest entry)", dur)
	}
}
