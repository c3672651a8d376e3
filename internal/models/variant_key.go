package models

import (
	"github.com/google/uuid"
)

// OptionalID is an attribute value id that may be absent.
// The zero value is "no value" and compares equal only to other absent ids.
type OptionalID struct {
	ID    uuid.UUID
	Valid bool
}

// SomeID wraps a present id
func SomeID(id uuid.UUID) OptionalID {
	return OptionalID{ID: id, Valid: true}
}

// OptionalIDFromPtr converts a nullable column value
func OptionalIDFromPtr(id *uuid.UUID) OptionalID {
	if id == nil {
		return OptionalID{}
	}
	return SomeID(*id)
}

// Ptr converts back to the nullable column form
func (o OptionalID) Ptr() *uuid.UUID {
	if !o.Valid {
		return nil
	}
	id := o.ID
	return &id
}

func (o OptionalID) String() string {
	if !o.Valid {
		return "null"
	}
	return o.ID.String()
}

// VariantKey identifies a variant within one product by its (color, size) pair.
// It is comparable and is used directly as a map key.
type VariantKey struct {
	Color OptionalID
	Size  OptionalID
}

// NewVariantKey builds a key from nullable column values
func NewVariantKey(color, size *uuid.UUID) VariantKey {
	return VariantKey{Color: OptionalIDFromPtr(color), Size: OptionalIDFromPtr(size)}
}

func (k VariantKey) String() string {
	return "(" + k.Color.String() + "," + k.Size.String() + ")"
}
