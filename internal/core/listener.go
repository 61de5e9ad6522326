package core

import (
	"unitofwork/pkg/domain"
)

// fanoutListener forwards notifications to every subscribed listener in
// order. The first veto stops the remaining "-ing" hooks.
type fanoutListener struct {
	listeners []domain.TransactionListener
}

var _ domain.TransactionListener = (*fanoutListener)(nil)

func (f *fanoutListener) RelationChanging(owner domain.ObjectID, property domain.PropertyID, oldRelated, newRelated domain.ObjectID) error {
	for _, l := range f.listeners {
		if err := l.RelationChanging(owner, property, oldRelated, newRelated); err != nil {
			return err
		}
	}
	return nil
}

func (f *fanoutListener) RelationChanged(owner domain.ObjectID, property domain.PropertyID) {
	for _, l := range f.listeners {
		l.RelationChanged(owner, property)
	}
}

func (f *fanoutListener) ObjectDeleting(id domain.ObjectID) error {
	for _, l := range f.listeners {
		if err := l.ObjectDeleting(id); err != nil {
			return err
		}
	}
	return nil
}

func (f *fanoutListener) ObjectDeleted(id domain.ObjectID) {
	for _, l := range f.listeners {
		l.ObjectDeleted(id)
	}
}

func (f *fanoutListener) EndPointRegistered(id domain.RelationEndPointID) {
	for _, l := range f.listeners {
		l.EndPointRegistered(id)
	}
}

func (f *fanoutListener) EndPointUnregistered(id domain.RelationEndPointID) {
	for _, l := range f.listeners {
		l.EndPointUnregistered(id)
	}
}

type pendingRelation struct {
	before domain.ObjectID
	after  domain.ObjectID
}

// changeRecorder turns completed notifications into domain.Change records.
// It is subscribed last so it only sees changes no other listener vetoed.
type changeRecorder struct {
	domain.NopTransactionListener
	pending  map[domain.RelationEndPointID][]pendingRelation
	deleting map[domain.ObjectID]bool
	changes  []domain.Change
}

func newChangeRecorder() *changeRecorder {
	return &changeRecorder{
		pending:  make(map[domain.RelationEndPointID][]pendingRelation),
		deleting: make(map[domain.ObjectID]bool),
	}
}

func (r *changeRecorder) RelationChanging(owner domain.ObjectID, property domain.PropertyID, oldRelated, newRelated domain.ObjectID) error {
	key := domain.NewRelationEndPointID(owner, property)
	r.pending[key] = append(r.pending[key], pendingRelation{before: oldRelated, after: newRelated})
	return nil
}

func (r *changeRecorder) RelationChanged(owner domain.ObjectID, property domain.PropertyID) {
	key := domain.NewRelationEndPointID(owner, property)
	queue := r.pending[key]
	if len(queue) == 0 {
		return
	}
	next := queue[0]
	if len(queue) == 1 {
		delete(r.pending, key)
	} else {
		r.pending[key] = queue[1:]
	}
	r.changes = append(r.changes, domain.Change{
		Entity:   owner.Class,
		Action:   domain.ActionRelate,
		Owner:    owner,
		Property: property,
		Before:   next.before,
		After:    next.after,
	})
}

func (r *changeRecorder) ObjectDeleting(id domain.ObjectID) error {
	r.deleting[id] = true
	return nil
}

func (r *changeRecorder) ObjectDeleted(id domain.ObjectID) {
	if !r.deleting[id] {
		return
	}
	delete(r.deleting, id)
	r.changes = append(r.changes, domain.Change{
		Entity: id.Class,
		Action: domain.ActionDelete,
		Owner:  id,
		Before: id,
	})
}

// settle drops notifications left pending by a vetoed command.
func (r *changeRecorder) settle() {
	clear(r.pending)
	clear(r.deleting)
}

func (r *changeRecorder) Changes() []domain.Change {
	out := make([]domain.Change, len(r.changes))
	copy(out, r.changes)
	return out
}

func (r *changeRecorder) restore(changes []domain.Change) {
	r.changes = append(r.changes[:0], changes...)
}

func (r *changeRecorder) reset() {
	r.settle()
	r.changes = nil
}
