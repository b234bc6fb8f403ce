package core

import (
	"context"

	apperrors "github.com/Skryldev/image-converter/errors"
)

// Assembler wraps encoded bytes into an OutputResource held by a Store.
type Assembler struct {
	store Store
}

// NewAssembler creates an Assembler backed by store.
func NewAssembler(store Store) *Assembler { return &Assembler{store: store} }

// Assemble stores res and returns a handle to it.  Any failure is an
// allocation failure.
func (a *Assembler) Assemble(ctx context.Context, res *ConversionResult, name string) (*OutputResource, error) {
	const op = "assemble"
	if res == nil || len(res.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryAllocation, op, apperrors.ErrEmptyOutput)
	}
	handle, err := a.store.Put(ctx, Object{Data: res.Data, MIMEType: res.MIMEType, Name: name})
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryAllocation, op, err)
	}
	return &OutputResource{
		Handle:   handle,
		Size:     int64(len(res.Data)),
		MIMEType: res.MIMEType,
		Name:     name,
	}, nil
}
