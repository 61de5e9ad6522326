package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to these so callers can use errors.Is.
var (
	ErrCrossTransaction     = errors.New("object belongs to a different transaction")
	ErrNullEndPoint         = errors.New("modified end point is a null end point; use a null-modification command instead")
	ErrSameValue            = errors.New("new related object equals old related object; use the same-value command instead")
	ErrMandatoryRelation    = errors.New("mandatory relation not set")
	ErrTypeMismatch         = errors.New("related object type is not compatible with the relation")
	ErrObjectDeleted        = errors.New("object is deleted")
	ErrObjectDiscarded      = errors.New("object is discarded")
	ErrInvalidOperation     = errors.New("invalid operation")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrObjectNotFound       = errors.New("object not found")
	ErrConcurrencyViolation = errors.New("concurrency violation")
	ErrUnknownProperty      = errors.New("unknown relation property")
)

// CrossTransactionError reports an object used outside the transaction that owns it.
type CrossTransactionError struct {
	ObjectID ObjectID
	Owner    string
	Current  string
}

func (e CrossTransactionError) Error() string {
	return fmt.Sprintf("object %s belongs to transaction %s, not %s", e.ObjectID, e.Owner, e.Current)
}

func (e CrossTransactionError) Unwrap() error { return ErrCrossTransaction }

// MandatoryRelationError reports an empty mandatory end point.
type MandatoryRelationError struct {
	EndPointID RelationEndPointID
}

func (e MandatoryRelationError) Error() string {
	return fmt.Sprintf("mandatory relation %s is not set", e.EndPointID)
}

func (e MandatoryRelationError) Unwrap() error { return ErrMandatoryRelation }

// TypeMismatchError reports an object of the wrong class assigned to a property.
type TypeMismatchError struct {
	Property PropertyID
	Expected string
	Actual   string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("property %s expects %s, got %s", e.Property, e.Expected, e.Actual)
}

func (e TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// ObjectStateError reports access through a deleted or discarded object.
type ObjectStateError struct {
	ObjectID ObjectID
	State    ObjectState
}

func (e ObjectStateError) Error() string {
	return fmt.Sprintf("object %s is %s", e.ObjectID, e.State)
}

func (e ObjectStateError) Unwrap() error {
	if e.State == StateDiscarded {
		return ErrObjectDiscarded
	}
	return ErrObjectDeleted
}

// IndexError reports a collection position outside the valid range.
type IndexError struct {
	Index int
	Len   int
}

func (e IndexError) Error() string {
	return fmt.Sprintf("index %d out of range [0,%d]", e.Index, e.Len)
}

func (e IndexError) Unwrap() error { return ErrIndexOutOfRange }

// InvalidOperationf wraps ErrInvalidOperation with a formatted message.
func InvalidOperationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}
