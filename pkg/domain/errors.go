package domain

import (
	"errors"
	"fmt"
)

// Precondition errors returned by entity mutators and editor operations.
var (
	ErrFrozen              = errors.New("entity is frozen")
	ErrNotList             = errors.New("block is not a list block")
	ErrListBlockComponents = errors.New("list blocks cannot have components")
	ErrFixed               = errors.New("block is fixed")
	ErrSelfReference       = errors.New("block cannot contain itself")
	ErrOptionMissing       = errors.New("option not present on list block")
	ErrProjectReassign     = errors.New("block already belongs to a different project")
	ErrAliased             = errors.New("block has more than one owner")
	ErrStaleVersion        = errors.New("project version must increase")
	ErrInvalidParameters   = errors.New("invalid order parameters")
	ErrOrderSubmitted      = errors.New("order already submitted")
	ErrIndexOutOfRange     = errors.New("index out of range")
	ErrNotSpec             = errors.New("construct is not fully specified")
	ErrDuplicateID         = errors.New("entity id already in use")
)

// ErrNotFound is returned when a referenced entity cannot be resolved.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
