package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset is returned when a schema is requested for zero records.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrInsufficientData is returned when a dataset cannot yield both a
	// train and a test partition.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrCorruptArtifact covers malformed, truncated or version-incompatible artifacts.
	ErrCorruptArtifact = errors.New("corrupt model artifact")
	// ErrModelNotLoaded is returned by predictions made without a loaded model.
	ErrModelNotLoaded = errors.New("model not loaded")
)

// MissingFieldError names a required record field that was absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", e.Field)
}

// FieldTypeError reports a field present with the wrong primitive type.
type FieldTypeError struct {
	Field string
	Want  string
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("field %q: expected %s", e.Field, e.Want)
}

// DuplicateFieldError reports a field supplied more than once under keys
// that differ only in case or surrounding space.
type DuplicateFieldError struct {
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("field %q given more than once", e.Field)
}

// UnknownCategoryWarning marks a categorical value that was not seen during
// training. It is informational; the value encodes to an all-zero block.
type UnknownCategoryWarning struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

func (w UnknownCategoryWarning) String() string {
	return fmt.Sprintf("unknown %s %q", w.Column, w.Value)
}
