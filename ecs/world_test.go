package ecs

import "testing"

type pos struct{ x, y float32 }
type tag struct{}

func TestScenarioS1EntityLifecycle(t *testing.T) {
	w := NewWorld(WorldConfig{})
	posType := RegisterComponent[pos](w, ComponentConfig[pos]{ChunkSize: 16})

	e1 := w.Spawn()
	e2 := w.Spawn()
	e3 := w.Spawn()

	AddComponent(w, e1, posType, pos{1, 2})
	AddComponent(w, e2, posType, pos{3, 4})

	if got := Count1(w, posType); got != 2 {
		t.Fatalf("Count1 = %d, want 2", got)
	}
	mask3, _ := w.ComponentsMask(e3)
	if !mask3.None() {
		t.Fatalf("e3's mask should be empty, got %v", mask3)
	}

	w.Recycle(e1)
	if got := Count1(w, posType); got != 1 {
		t.Fatalf("Count1 after recycle = %d, want 1", got)
	}
	if GetComponent(w, e1, posType) != nil {
		t.Fatal("GetComponent(e1) after recycle should be nil")
	}
	if w.IsAlive(e1) {
		t.Fatal("e1 should not be alive after recycle")
	}

	e4 := w.Spawn()
	if e4.Index() != e1.Index() {
		t.Fatalf("e4 should reuse e1's index (LIFO); got %d, want %d", e4.Index(), e1.Index())
	}
	if e4.Version() == e1.Version() {
		t.Fatal("e4 must carry a different version than the recycled e1")
	}
}

func TestScenarioS2SparseToDenseSpill(t *testing.T) {
	w := NewWorld(WorldConfig{})
	tagType := RegisterComponent[tag](w, ComponentConfig[tag]{})

	entities := make([]Entity, 20)
	for i := range entities {
		entities[i] = w.Spawn()
	}

	tagged := []int{0, 3, 5, 7, 9, 11, 13, 15} // exactly 8: fills small mode
	for _, i := range tagged {
		AddComponent(w, entities[i], tagType, tag{})
	}

	AddComponent(w, entities[17], tagType, tag{}) // triggers spill

	want := map[int]bool{0: true, 3: true, 5: true, 7: true, 9: true, 11: true, 13: true, 15: true, 17: true}
	for i, e := range entities {
		got := GetComponent(w, e, tagType) != nil
		if got != want[i] {
			t.Fatalf("entity %d: GetComponent != nil = %v, want %v", i, got, want[i])
		}
	}

	RemoveComponent(w, entities[5], tagType)
	if GetComponent(w, entities[5], tagType) != nil {
		t.Fatal("entity 5's slot should be nil after remove")
	}
	if got := Count1(w, tagType); got != 8 {
		t.Fatalf("Count1 after remove = %d, want 8", got)
	}
}

func TestInvariantMaskMatchesComponentPresence(t *testing.T) {
	w := NewWorld(WorldConfig{})
	posType := RegisterComponent[pos](w, ComponentConfig[pos]{})
	e := w.Spawn()

	mask, _ := w.ComponentsMask(e)
	if mask.Test(posType.ID()) {
		t.Fatal("mask should not have the bit set before AddComponent")
	}

	AddComponent(w, e, posType, pos{1, 1})
	mask, _ = w.ComponentsMask(e)
	if !mask.Test(posType.ID()) || GetComponent(w, e, posType) == nil {
		t.Fatal("mask bit and GetComponent must agree after AddComponent")
	}

	RemoveComponent(w, e, posType)
	mask, _ = w.ComponentsMask(e)
	if mask.Test(posType.ID()) || GetComponent(w, e, posType) != nil {
		t.Fatal("mask bit and GetComponent must agree after RemoveComponent")
	}
}

func TestAddComponentFatalOnDoubleAttach(t *testing.T) {
	w := NewWorld(WorldConfig{})
	posType := RegisterComponent[pos](w, ComponentConfig[pos]{})
	e := w.Spawn()
	AddComponent(w, e, posType, pos{0, 0})

	defer func() {
		if recover() == nil {
			t.Fatal("expected a fatal panic on double-attach")
		}
	}()
	AddComponent(w, e, posType, pos{1, 1})
}

func TestAddComponentOnDeadEntityReturnsNil(t *testing.T) {
	w := NewWorld(WorldConfig{})
	posType := RegisterComponent[pos](w, ComponentConfig[pos]{})
	e := w.Spawn()
	w.Recycle(e)
	if ptr := AddComponent(w, e, posType, pos{1, 1}); ptr != nil {
		t.Fatal("AddComponent on a dead entity should return nil")
	}
}

func TestVisit1CoverageMatchesCount(t *testing.T) {
	w := NewWorld(WorldConfig{})
	posType := RegisterComponent[pos](w, ComponentConfig[pos]{})
	for i := 0; i < 10; i++ {
		e := w.Spawn()
		if i%2 == 0 {
			AddComponent(w, e, posType, pos{float32(i), 0})
		}
	}
	n := 0
	Visit1(w, posType, func(e Entity, p *pos) bool {
		n++
		return true
	})
	if want := Count1(w, posType); n != want {
		t.Fatalf("Visit1 visited %d entities, Count1 reports %d", n, want)
	}
}

type resource struct {
	closed *bool
}

func TestDestructorRunsOnRemoveComponent(t *testing.T) {
	w := NewWorld(WorldConfig{})
	closed := false
	resType := RegisterComponent[resource](w, ComponentConfig[resource]{
		Destructor: func(r *resource) { *r.closed = true },
	})
	e := w.Spawn()
	AddComponent(w, e, resType, resource{closed: &closed})

	RemoveComponent(w, e, resType)
	if !closed {
		t.Fatal("RemoveComponent should have run the destructor")
	}
}

func TestDestructorRunsOnRecycle(t *testing.T) {
	w := NewWorld(WorldConfig{})
	closed := false
	resType := RegisterComponent[resource](w, ComponentConfig[resource]{
		Destructor: func(r *resource) { *r.closed = true },
	})
	e := w.Spawn()
	AddComponent(w, e, resType, resource{closed: &closed})

	w.Recycle(e)
	if !closed {
		t.Fatal("Recycle should have run the destructor for every attached component")
	}
}

func TestDestructorRunsOnReset(t *testing.T) {
	w := NewWorld(WorldConfig{})
	closed := false
	resType := RegisterComponent[resource](w, ComponentConfig[resource]{
		Destructor: func(r *resource) { *r.closed = true },
	})
	e := w.Spawn()
	AddComponent(w, e, resType, resource{closed: &closed})

	w.Reset()
	if !closed {
		t.Fatal("Reset should have run the destructor for every live component")
	}
}

func TestDestructorRunsOnResetInDenseMode(t *testing.T) {
	w := NewWorld(WorldConfig{})
	var closedCount int
	resType := RegisterComponent[resource](w, ComponentConfig[resource]{
		Destructor: func(r *resource) { closedCount++ },
	})

	closedFlags := make([]bool, SmallStoreCapacity+1)
	for i := range closedFlags {
		e := w.Spawn()
		AddComponent(w, e, resType, resource{closed: &closedFlags[i]})
	}

	w.Reset()
	if closedCount != SmallStoreCapacity+1 {
		t.Fatalf("Reset in dense mode ran %d destructors, want %d", closedCount, SmallStoreCapacity+1)
	}
}

type vel struct{ dx, dy float32 }
type label struct{ name string }

func TestVisit2MatchesMaskIntersection(t *testing.T) {
	w := NewWorld(WorldConfig{})
	posType := RegisterComponent[pos](w, ComponentConfig[pos]{})
	velType := RegisterComponent[vel](w, ComponentConfig[vel]{})

	both := map[Entity]bool{}
	for i := 0; i < 10; i++ {
		e := w.Spawn()
		if i%2 == 0 {
			AddComponent(w, e, posType, pos{float32(i), 0})
		}
		if i%3 == 0 {
			AddComponent(w, e, velType, vel{float32(i), 0})
		}
		if i%2 == 0 && i%3 == 0 {
			both[e] = true
		}
	}

	visited := map[Entity]bool{}
	Visit2(w, posType, velType, func(e Entity, p *pos, v *vel) bool {
		visited[e] = true
		return true
	})

	if len(visited) != len(both) {
		t.Fatalf("Visit2 visited %d entities, want %d", len(visited), len(both))
	}
	for e := range both {
		if !visited[e] {
			t.Fatalf("Visit2 missed entity %v which carries both components", e)
		}
	}
	if want := Count2(w, posType, velType); len(visited) != want {
		t.Fatalf("Visit2 visited %d entities, Count2 reports %d", len(visited), want)
	}
}

func TestVisit3MatchesMaskIntersection(t *testing.T) {
	w := NewWorld(WorldConfig{})
	posType := RegisterComponent[pos](w, ComponentConfig[pos]{})
	velType := RegisterComponent[vel](w, ComponentConfig[vel]{})
	labelType := RegisterComponent[label](w, ComponentConfig[label]{})

	all := map[Entity]bool{}
	for i := 0; i < 12; i++ {
		e := w.Spawn()
		if i%2 == 0 {
			AddComponent(w, e, posType, pos{float32(i), 0})
		}
		if i%3 == 0 {
			AddComponent(w, e, velType, vel{float32(i), 0})
		}
		if i%4 == 0 {
			AddComponent(w, e, labelType, label{"e"})
		}
		if i%2 == 0 && i%3 == 0 && i%4 == 0 {
			all[e] = true
		}
	}

	visited := map[Entity]bool{}
	Visit3(w, posType, velType, labelType, func(e Entity, p *pos, v *vel, l *label) bool {
		visited[e] = true
		return true
	})

	if len(visited) != len(all) {
		t.Fatalf("Visit3 visited %d entities, want %d", len(visited), len(all))
	}
	for e := range all {
		if !visited[e] {
			t.Fatalf("Visit3 missed entity %v which carries all three components", e)
		}
	}
}

func TestVisit2StopsOnFalse(t *testing.T) {
	w := NewWorld(WorldConfig{})
	posType := RegisterComponent[pos](w, ComponentConfig[pos]{})
	velType := RegisterComponent[vel](w, ComponentConfig[vel]{})

	for i := 0; i < 5; i++ {
		e := w.Spawn()
		AddComponent(w, e, posType, pos{float32(i), 0})
		AddComponent(w, e, velType, vel{float32(i), 0})
	}

	n := 0
	Visit2(w, posType, velType, func(e Entity, p *pos, v *vel) bool {
		n++
		return n < 2
	})
	if n != 2 {
		t.Fatalf("Visit2 should stop as soon as f returns false; visited %d, want 2", n)
	}
}

func TestWorldReset(t *testing.T) {
	w := NewWorld(WorldConfig{})
	posType := RegisterComponent[pos](w, ComponentConfig[pos]{})
	e := w.Spawn()
	AddComponent(w, e, posType, pos{1, 1})

	w.Reset()

	if len(w.Entities()) != 0 {
		t.Fatal("Reset should leave no live entities")
	}
	size, _, ok := w.ComponentStats(posType.ID())
	if !ok || size != 0 {
		t.Fatalf("Reset should leave stores empty, got size=%d ok=%v", size, ok)
	}
	e2 := w.Spawn()
	if e2.Index() != 0 {
		t.Fatalf("after Reset, indices should restart at 0, got %d", e2.Index())
	}
}
