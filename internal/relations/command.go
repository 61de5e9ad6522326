package relations

import (
	"context"
	"fmt"

	"unitofwork/pkg/domain"
)

// Command is one relation modification. Callers drive it through
// NotifyClientTransactionOfBegin, Begin, Perform, NotifyClientTransactionOfEnd
// and End, in that order. Only Perform mutates state, and it cannot fail:
// everything that may fail happens while the command is constructed or
// expanded.
type Command interface {
	NotifyClientTransactionOfBegin() error
	Begin() error
	Perform()
	NotifyClientTransactionOfEnd()
	End()
	// ExpandToAllRelatedObjects returns the ordered primitive commands that
	// keep every affected end point consistent, this command included.
	ExpandToAllRelatedObjects(ctx context.Context) (*CompositeCommand, error)
}

// Execute expands cmd and runs the resulting composite.
func Execute(ctx context.Context, cmd Command) error {
	expanded, err := cmd.ExpandToAllRelatedObjects(ctx)
	if err != nil {
		return err
	}
	return Run(expanded)
}

// Run drives cmd through its protocol without expanding it. A veto returned
// by a begin hook stops execution before Perform.
func Run(cmd Command) error {
	if err := cmd.NotifyClientTransactionOfBegin(); err != nil {
		return err
	}
	if err := cmd.Begin(); err != nil {
		return err
	}
	cmd.Perform()
	cmd.NotifyClientTransactionOfEnd()
	cmd.End()
	return nil
}

// relationChange carries the notification targets shared by every command
// that changes a single related value.
type relationChange struct {
	host       Host
	owner      domain.ObjectID
	property   domain.PropertyID
	oldRelated domain.ObjectID
	newRelated domain.ObjectID
}

func (c relationChange) notifyBegin() error {
	return c.host.Listener().RelationChanging(c.owner, c.property, c.oldRelated, c.newRelated)
}

func (c relationChange) begin() error {
	if sink := c.host.ObjectEvents(c.owner); sink != nil {
		return sink.BeginRelationChange(c.property, c.oldRelated, c.newRelated)
	}
	return nil
}

func (c relationChange) notifyEnd() {
	c.host.Listener().RelationChanged(c.owner, c.property)
}

func (c relationChange) end() {
	if sink := c.host.ObjectEvents(c.owner); sink != nil {
		sink.EndRelationChange(c.property)
	}
}

// silent provides the no-op protocol used by commands that only touch.
type silent struct{}

func (silent) NotifyClientTransactionOfBegin() error { return nil }
func (silent) Begin() error                          { return nil }
func (silent) NotifyClientTransactionOfEnd()         {}
func (silent) End()                                  {}

// NullModificationCommand is the identity command used where an opposite end
// point is absent.
type NullModificationCommand struct {
	silent
	endPoint EndPoint
}

// NewNullModificationCommand wraps ep, which is typically a null end point.
func NewNullModificationCommand(ep EndPoint) *NullModificationCommand {
	return &NullModificationCommand{endPoint: ep}
}

// EndPoint returns the end point the command stands in for.
func (c *NullModificationCommand) EndPoint() EndPoint { return c.endPoint }

func (c *NullModificationCommand) Perform() {}

func (c *NullModificationCommand) ExpandToAllRelatedObjects(context.Context) (*CompositeCommand, error) {
	return NewCompositeCommand(c), nil
}

// TouchCommand marks an end point touched without changing its value.
type TouchCommand struct {
	silent
	endPoint EndPoint
}

// NewTouchCommand builds a touch for ep. Touching a null end point is a no-op.
func NewTouchCommand(ep EndPoint) *TouchCommand {
	return &TouchCommand{endPoint: ep}
}

// EndPoint returns the touched end point.
func (c *TouchCommand) EndPoint() EndPoint { return c.endPoint }

func (c *TouchCommand) Perform() { c.endPoint.Touch() }

func (c *TouchCommand) ExpandToAllRelatedObjects(context.Context) (*CompositeCommand, error) {
	return NewCompositeCommand(c), nil
}

func nullEndPointCommandError(ep EndPoint) error {
	if ep == nil {
		return domain.ErrNullEndPoint
	}
	return fmt.Errorf("%w: %s", domain.ErrNullEndPoint, ep.Definition().Property)
}

func sameValueError(id domain.RelationEndPointID, value domain.ObjectID) error {
	return fmt.Errorf("%w: %s already relates to %s", domain.ErrSameValue, id, value)
}

func realReference(ep ReferenceEnd) (*ReferenceEndPoint, error) {
	if ep == nil {
		return nil, domain.ErrNullEndPoint
	}
	if ep.IsNull() {
		return nil, nullEndPointCommandError(ep)
	}
	return ep.(*ReferenceEndPoint), nil
}

func realCollection(ep CollectionEnd) (*CollectionEndPoint, error) {
	if ep == nil {
		return nil, domain.ErrNullEndPoint
	}
	if ep.IsNull() {
		return nil, nullEndPointCommandError(ep)
	}
	return ep.(*CollectionEndPoint), nil
}

// expansion accumulates the commands of one expansion and stops at the
// first factory error.
type expansion struct {
	commands []Command
	err      error
}

func (e *expansion) add(cmd Command, err error) {
	if e.err != nil {
		return
	}
	if err != nil {
		e.err = err
		return
	}
	e.commands = append(e.commands, cmd)
}

func (e *expansion) result() (*CompositeCommand, error) {
	if e.err != nil {
		return nil, e.err
	}
	return NewCompositeCommand(e.commands...), nil
}
