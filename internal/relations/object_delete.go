package relations

import (
	"context"

	"unitofwork/pkg/domain"
)

var _ Command = (*ObjectDeleteCommand)(nil)

// ObjectDeleteCommand deletes one object: it clears every end point the
// object owns and, once expanded, every end point that points back at it.
// References reaching the object through unidirectional relations are not
// tracked by the map and are left to commit-time validation.
type ObjectDeleteCommand struct {
	m           *Map
	object      domain.ObjectID
	endPoints   []EndPoint
	commands    []Command
	markDeleted func()
}

// NewObjectDeleteCommand loads the end points of object and prepares their
// delete commands. markDeleted runs last during Perform.
func NewObjectDeleteCommand(ctx context.Context, m *Map, object domain.ObjectID, markDeleted func()) (*ObjectDeleteCommand, error) {
	cmd := &ObjectDeleteCommand{m: m, object: object, markDeleted: markDeleted}
	for _, def := range m.schema.EndPointDefinitions(object.Class) {
		ep, err := m.GetOrLoad(ctx, domain.NewRelationEndPointID(object, def.Property))
		if err != nil {
			return nil, err
		}
		del, err := ep.CreateDeleteCommand()
		if err != nil {
			return nil, err
		}
		cmd.endPoints = append(cmd.endPoints, ep)
		cmd.commands = append(cmd.commands, del)
	}
	return cmd, nil
}

// ObjectID returns the object being deleted.
func (c *ObjectDeleteCommand) ObjectID() domain.ObjectID { return c.object }

func (c *ObjectDeleteCommand) NotifyClientTransactionOfBegin() error {
	return c.m.host.Listener().ObjectDeleting(c.object)
}

func (c *ObjectDeleteCommand) Begin() error {
	if sink := c.m.host.ObjectEvents(c.object); sink != nil {
		return sink.Deleting()
	}
	return nil
}

func (c *ObjectDeleteCommand) Perform() {
	for _, cmd := range c.commands {
		cmd.Perform()
	}
	if c.markDeleted != nil {
		c.markDeleted()
	}
}

func (c *ObjectDeleteCommand) NotifyClientTransactionOfEnd() {
	c.m.host.Listener().ObjectDeleted(c.object)
}

func (c *ObjectDeleteCommand) End() {
	if sink := c.m.host.ObjectEvents(c.object); sink != nil {
		sink.Deleted()
	}
}

// ExpandToAllRelatedObjects yields one remove per opposite end point followed
// by this command.
func (c *ObjectDeleteCommand) ExpandToAllRelatedObjects(ctx context.Context) (*CompositeCommand, error) {
	var e expansion
	for _, ep := range c.endPoints {
		for _, related := range ep.OppositeObjectIDs() {
			opposite, err := c.m.GetOppositeEndPoint(ctx, ep, related)
			if err != nil {
				return nil, err
			}
			if opposite.IsNull() {
				continue
			}
			e.add(opposite.CreateRemoveCommand(c.object))
		}
	}
	e.add(c, nil)
	return e.result()
}
