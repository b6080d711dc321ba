package handle

import "testing"

func TestHandleSetCreateFreeReuseLIFO(t *testing.T) {
	s := NewHandleSet(HandleSetConfig{})
	h0 := s.Create()
	h1 := s.Create()
	h2 := s.Create()

	if h0.Index() != 0 || h1.Index() != 1 || h2.Index() != 2 {
		t.Fatalf("expected ascending indices 0,1,2; got %d,%d,%d", h0.Index(), h1.Index(), h2.Index())
	}

	if !s.Free(h1) {
		t.Fatal("Free(h1) should succeed on a live handle")
	}
	if s.IsAlive(h1) {
		t.Fatal("h1 should no longer be alive after Free")
	}

	// LIFO: the most recently freed index (1) must be the next one reused.
	h3 := s.Create()
	if h3.Index() != 1 {
		t.Fatalf("expected index reuse to be LIFO (index 1), got %d", h3.Index())
	}
	if h3.Version() == h1.Version() {
		t.Fatal("reused index must carry a different version than the freed handle")
	}
	if s.IsAlive(h1) {
		t.Fatal("the old (stale) handle must never be reported alive again")
	}
}

func TestHandleSetFreeIsIdempotentNoOp(t *testing.T) {
	s := NewHandleSet(HandleSetConfig{})
	h := s.Create()
	if !s.Free(h) {
		t.Fatal("first Free should succeed")
	}
	if s.Free(h) {
		t.Fatal("second Free of an already-dead handle must be a silent no-op, not succeed")
	}
}

func TestHandleSetIsAliveOnUnknownIndex(t *testing.T) {
	s := NewHandleSet(HandleSetConfig{})
	if s.IsAlive(New(999, 1)) {
		t.Fatal("an index never assigned must never be reported alive")
	}
}

func TestHandleSetInvariantNoAliasedLiveHandles(t *testing.T) {
	s := NewHandleSet(HandleSetConfig{})
	live := map[Handle]bool{}
	for i := 0; i < 50; i++ {
		h := s.Create()
		if live[h] {
			t.Fatalf("handle %v allocated twice while live", h)
		}
		live[h] = true
		if h.Version()&1 == 0 {
			t.Fatalf("live handle %v must carry an odd version", h)
		}
		if i%3 == 0 {
			s.Free(h)
			delete(live, h)
		}
	}
	for h := range live {
		if !s.IsAlive(h) {
			t.Fatalf("tracked-live handle %v reported dead", h)
		}
	}
}

func TestHandleSetEachAscendingLiveOnly(t *testing.T) {
	s := NewHandleSet(HandleSetConfig{})
	h0 := s.Create()
	h1 := s.Create()
	h2 := s.Create()
	s.Free(h1)

	var seen []Handle
	s.Each(func(h Handle) bool {
		seen = append(seen, h)
		return true
	})
	if len(seen) != 2 || seen[0] != h0 || seen[1] != h2 {
		t.Fatalf("Each should yield live handles in ascending index order, got %v", seen)
	}
}

func TestHandleSetClear(t *testing.T) {
	s := NewHandleSet(HandleSetConfig{})
	s.Create()
	s.Create()
	s.Clear()
	if s.Len() != 0 || s.Cap() != 0 {
		t.Fatalf("Clear should reset Len and Cap to 0, got Len=%d Cap=%d", s.Len(), s.Cap())
	}
	h := s.Create()
	if h.Index() != 0 {
		t.Fatalf("after Clear, indices should restart at 0, got %d", h.Index())
	}
}
