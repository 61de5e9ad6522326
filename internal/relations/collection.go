package relations

import (
	"fmt"

	"unitofwork/pkg/domain"
)

// ObjectCollection is an ordered, duplicate-free list of related objects.
// Application code only reads it; mutations go through commands so both
// sides of the relation stay consistent. A collection is attached to at most
// one collection end point at a time.
type ObjectCollection struct {
	ids   []domain.ObjectID
	owner *CollectionEndPoint
}

// NewObjectCollection builds a detached collection.
func NewObjectCollection(ids ...domain.ObjectID) (*ObjectCollection, error) {
	seen := make(map[domain.ObjectID]struct{}, len(ids))
	out := make([]domain.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			return nil, domain.InvalidOperationf("collection cannot hold an empty object id")
		}
		if _, dup := seen[id]; dup {
			return nil, domain.InvalidOperationf("collection already contains %s", id)
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return &ObjectCollection{ids: out}, nil
}

func mustCollection(ids ...domain.ObjectID) *ObjectCollection {
	c, err := NewObjectCollection(ids...)
	if err != nil {
		panic(fmt.Errorf("relations: %w", err))
	}
	return c
}

// Len returns the number of related objects.
func (c *ObjectCollection) Len() int { return len(c.ids) }

// At returns the object at index.
func (c *ObjectCollection) At(index int) domain.ObjectID { return c.ids[index] }

// IDs returns a copy of the members in order.
func (c *ObjectCollection) IDs() []domain.ObjectID {
	out := make([]domain.ObjectID, len(c.ids))
	copy(out, c.ids)
	return out
}

// Contains reports membership.
func (c *ObjectCollection) Contains(id domain.ObjectID) bool { return c.IndexOf(id) >= 0 }

// IndexOf returns the position of id or -1.
func (c *ObjectCollection) IndexOf(id domain.ObjectID) int {
	for i, member := range c.ids {
		if member == id {
			return i
		}
	}
	return -1
}

// IsAttached reports whether an end point currently owns the collection.
func (c *ObjectCollection) IsAttached() bool { return c.owner != nil }

func (c *ObjectCollection) insert(index int, id domain.ObjectID) {
	c.ids = append(c.ids, domain.ObjectID{})
	copy(c.ids[index+1:], c.ids[index:])
	c.ids[index] = id
}

func (c *ObjectCollection) remove(id domain.ObjectID) {
	if i := c.IndexOf(id); i >= 0 {
		c.ids = append(c.ids[:i], c.ids[i+1:]...)
	}
}

func (c *ObjectCollection) replace(index int, id domain.ObjectID) {
	c.ids[index] = id
}

func (c *ObjectCollection) clear() {
	c.ids = c.ids[:0]
}

func (c *ObjectCollection) replaceData(ids []domain.ObjectID) {
	c.ids = append(c.ids[:0], ids...)
}

func (c *ObjectCollection) attach(owner *CollectionEndPoint) { c.owner = owner }

func (c *ObjectCollection) detach() { c.owner = nil }

func sameMembers(a, b []domain.ObjectID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[domain.ObjectID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
