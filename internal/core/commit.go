package core

import (
	"context"
	"fmt"

	"unitofwork/internal/relations"
	"unitofwork/pkg/domain"
)

const (
	ruleMandatoryRelation = "mandatory_relation"
	ruleDanglingReference = "dangling_reference"
)

// Commit validates the transaction, saves the changed data containers and
// makes the current relation state the new original state. Blocking
// violations abort the commit with a domain.RuleViolationError and leave the
// transaction untouched.
func (t *ClientTransaction) Commit(ctx context.Context) (domain.Result, error) {
	var res domain.Result
	err := t.run(ctx, opCommit, domain.ObjectID{}, func(ctx context.Context) error {
		var err error
		res, err = t.commit(ctx)
		return err
	})
	return res, err
}

func (t *ClientTransaction) commit(ctx context.Context) (domain.Result, error) {
	res, err := t.checkRelations(ctx)
	if err != nil {
		return res, err
	}
	ruleRes, err := t.rules.Evaluate(ctx, t, t.changes.Changes())
	if err != nil {
		return res, fmt.Errorf("evaluate rules: %w", err)
	}
	res.Merge(ruleRes)
	t.logViolations(res)
	if res.HasBlocking() {
		return res, domain.RuleViolationError{Result: res}
	}

	batch, deleted := t.saveBatch()
	if !batch.IsEmpty() {
		if err := t.storage.Save(ctx, batch); err != nil {
			return res, fmt.Errorf("save: %w", err)
		}
	}
	if err := t.endPoints.Commit(deleted); err != nil {
		return res, err
	}
	t.finishCommit(batch)
	t.logger.Info("transaction committed", "tx", t.id,
		"inserted", len(batch.Inserts), "updated", len(batch.Updates), "deleted", len(batch.Deletes))
	return res, nil
}

// checkRelations reports empty mandatory end points of new and touched
// objects and references to deleted objects as blocking violations.
func (t *ClientTransaction) checkRelations(ctx context.Context) (domain.Result, error) {
	var res domain.Result
	for _, rec := range t.sortedRecords() {
		if rec.state == domain.StateDeleted || rec.state == domain.StateDiscarded {
			continue
		}
		id := rec.object.id
		if rec.state != domain.StateNew && !t.hasTouchedEndPoint(id) {
			continue
		}
		for _, def := range t.schema.EndPointDefinitions(id.Class) {
			epid := domain.NewRelationEndPointID(id, def.Property)
			ep, loaded := t.endPoints.Get(epid)
			if def.Mandatory && !loaded {
				var err error
				if ep, err = t.endPoints.GetOrLoad(ctx, epid); err != nil {
					return res, err
				}
				loaded = true
			}
			if !loaded {
				continue
			}
			if def.Mandatory {
				if err := ep.CheckMandatory(); err != nil {
					res.Violations = append(res.Violations, violation(ruleMandatoryRelation, id, err))
				}
			}
			for _, related := range ep.OppositeObjectIDs() {
				if other, ok := t.objects[related]; ok {
					if err := checkState(other); err != nil {
						res.Violations = append(res.Violations, violation(ruleDanglingReference, id,
							fmt.Errorf("%s: %w", epid, err)))
					}
				}
			}
		}
	}
	return res, nil
}

func violation(rule string, id domain.ObjectID, cause error) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Message:  cause.Error(),
		Entity:   id.Class,
		EntityID: id,
		Cause:    cause,
	}
}

func (t *ClientTransaction) hasTouchedEndPoint(id domain.ObjectID) bool {
	for _, ep := range t.endPoints.EndPointsOf(id) {
		if ep.HasBeenTouched() {
			return true
		}
	}
	return false
}

func (t *ClientTransaction) logViolations(res domain.Result) {
	for _, v := range res.Violations {
		args := []any{"tx", t.id, "rule", v.Rule, "object", v.EntityID.String(), "message", v.Message}
		switch v.Severity {
		case domain.SeverityBlock:
			t.logger.Warn("blocking rule violation", args...)
		case domain.SeverityWarn:
			t.logger.Warn("rule violation", args...)
		default:
			t.logger.Info("rule violation", args...)
		}
	}
}

// saveBatch collects inserts for new objects, updates for loaded objects
// whose foreign keys changed and deletes for deleted objects.
func (t *ClientTransaction) saveBatch() (domain.SaveBatch, []domain.ObjectID) {
	var batch domain.SaveBatch
	var deleted []domain.ObjectID
	for _, rec := range t.sortedRecords() {
		switch rec.state {
		case domain.StateNew:
			c := rec.container.Clone()
			c.ForeignKeys = t.currentForeignKeys(rec)
			batch.Inserts = append(batch.Inserts, c)
		case domain.StateUnchanged:
			fks := t.currentForeignKeys(rec)
			if sameForeignKeys(fks, rec.container.ForeignKeys) {
				continue
			}
			c := rec.container.Clone()
			c.ForeignKeys = fks
			batch.Updates = append(batch.Updates, c)
		case domain.StateDeleted:
			batch.Deletes = append(batch.Deletes, rec.container.Clone())
			deleted = append(deleted, rec.object.id)
		}
	}
	return batch, deleted
}

// currentForeignKeys reads the foreign keys held by the object's real
// reference end points, falling back to the loaded value for end points
// that are not registered.
func (t *ClientTransaction) currentForeignKeys(rec *objectRecord) map[domain.PropertyID]domain.ObjectID {
	var fks map[domain.PropertyID]domain.ObjectID
	id := rec.object.id
	for _, def := range t.schema.EndPointDefinitions(id.Class) {
		if def.Cardinality != domain.CardinalityOne || def.Virtual {
			continue
		}
		value := rec.container.ForeignKey(def.Property)
		if ep, ok := t.endPoints.Get(domain.NewRelationEndPointID(id, def.Property)); ok {
			if ref, isRef := ep.(relations.ReferenceEnd); isRef {
				value = ref.OppositeObjectID()
			}
		}
		if value.IsZero() {
			continue
		}
		if fks == nil {
			fks = make(map[domain.PropertyID]domain.ObjectID)
		}
		fks[def.Property] = value
	}
	return fks
}

func sameForeignKeys(a, b map[domain.PropertyID]domain.ObjectID) bool {
	count := 0
	for k, v := range b {
		if v.IsZero() {
			continue
		}
		count++
		if a[k] != v {
			return false
		}
	}
	return count == len(a)
}

// finishCommit mirrors what storage now holds: saved containers carry the
// incremented timestamp and deleted objects are discarded.
func (t *ClientTransaction) finishCommit(batch domain.SaveBatch) {
	for _, group := range [][]domain.DataContainer{batch.Inserts, batch.Updates} {
		for _, c := range group {
			rec := t.objects[c.ID]
			stored := c.Clone()
			stored.Timestamp = c.Timestamp + 1
			rec.container = stored
			rec.state = domain.StateUnchanged
		}
	}
	for _, c := range batch.Deletes {
		t.objects[c.ID].state = domain.StateDiscarded
	}
	t.changes.reset()
}

// Rollback discards every change since the last commit: relations return to
// their original state, new objects are discarded and deleted objects revived.
func (t *ClientTransaction) Rollback(ctx context.Context) error {
	return t.run(ctx, opRollback, domain.ObjectID{}, func(context.Context) error {
		var newObjects []domain.ObjectID
		for _, rec := range t.sortedRecords() {
			if rec.state == domain.StateNew {
				newObjects = append(newObjects, rec.object.id)
			}
		}
		if err := t.endPoints.Rollback(newObjects); err != nil {
			return err
		}
		for _, rec := range t.objects {
			switch rec.state {
			case domain.StateNew:
				rec.state = domain.StateDiscarded
			case domain.StateDeleted:
				rec.state = domain.StateUnchanged
			}
		}
		t.changes.reset()
		t.logger.Info("transaction rolled back", "tx", t.id, "discarded", len(newObjects))
		return nil
	})
}
