// Package reconcile merges entity payloads into ordered, identity-keyed lists.
//
// Lists hold pointers so that a merge mutates the element in place: anything
// holding the pointer sees the update. New entities are appended at the tail
// and positions of existing entities never move except on Remove.
package reconcile

import "slices"

type Keyed interface {
	Key() string
}

// Entity is a list element that can absorb a (possibly partial) payload P.
type Entity[P Keyed] interface {
	Keyed
	Merge(P)
}

type Outcome string

const (
	Inserted Outcome = "inserted"
	Updated  Outcome = "updated"
)

func Index[E Keyed](list []E, id string) int {
	for i, e := range list {
		if e.Key() == id {
			return i
		}
	}
	return -1
}

// Upsert merges incoming onto the element with the same key, or appends
// build(incoming) when there is none.
func Upsert[E Entity[P], P Keyed](list []E, incoming P, build func(P) E) ([]E, Outcome) {
	if i := Index(list, incoming.Key()); i >= 0 {
		list[i].Merge(incoming)
		return list, Updated
	}
	return append(list, build(incoming)), Inserted
}

// Remove deletes the element with the given key. Removing an absent key is a no-op.
func Remove[E Keyed](list []E, id string) ([]E, bool) {
	i := Index(list, id)
	if i < 0 {
		return list, false
	}
	return slices.Delete(list, i, i+1), true
}
