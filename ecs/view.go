package ecs

import "github.com/dfcore/lemon/handle"

// Visit1 invokes f for every live entity carrying component ct1, in
// ascending index order. Implements find_entities_with<T>().visit(f).
func Visit1[T1 any](w *World, ct1 ComponentType[T1], f func(Entity, *T1) bool) {
	required := Mask(0).Set(ct1.id)
	w.entities.Each(func(h handle.Handle) bool {
		idx := h.Index()
		if !w.masks[idx].Contains(required) {
			return true
		}
		v1 := ct1.store.get(uint32(idx))
		if v1 == nil {
			return true
		}
		return f(h, v1)
	})
}

// Visit2 invokes f for every live entity carrying both ct1 and ct2.
func Visit2[T1, T2 any](w *World, ct1 ComponentType[T1], ct2 ComponentType[T2], f func(Entity, *T1, *T2) bool) {
	required := Mask(0).Set(ct1.id).Set(ct2.id)
	w.entities.Each(func(h handle.Handle) bool {
		idx := h.Index()
		if !w.masks[idx].Contains(required) {
			return true
		}
		v1 := ct1.store.get(uint32(idx))
		v2 := ct2.store.get(uint32(idx))
		if v1 == nil || v2 == nil {
			return true
		}
		return f(h, v1, v2)
	})
}

// Visit3 invokes f for every live entity carrying ct1, ct2, and ct3.
func Visit3[T1, T2, T3 any](w *World, ct1 ComponentType[T1], ct2 ComponentType[T2], ct3 ComponentType[T3], f func(Entity, *T1, *T2, *T3) bool) {
	required := Mask(0).Set(ct1.id).Set(ct2.id).Set(ct3.id)
	w.entities.Each(func(h handle.Handle) bool {
		idx := h.Index()
		if !w.masks[idx].Contains(required) {
			return true
		}
		v1 := ct1.store.get(uint32(idx))
		v2 := ct2.store.get(uint32(idx))
		v3 := ct3.store.get(uint32(idx))
		if v1 == nil || v2 == nil || v3 == nil {
			return true
		}
		return f(h, v1, v2, v3)
	})
}

// Count1 returns the number of live entities carrying ct1, equivalent to
// find_entities_with<T>().count().
func Count1[T1 any](w *World, ct1 ComponentType[T1]) int {
	return Count(w, Mask(0).Set(ct1.id))
}

// Count2 returns the number of live entities carrying both ct1 and ct2.
func Count2[T1, T2 any](w *World, ct1 ComponentType[T1], ct2 ComponentType[T2]) int {
	return Count(w, Mask(0).Set(ct1.id).Set(ct2.id))
}
