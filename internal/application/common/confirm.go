package common

import (
	"context"

	"github.com/erp/chemstock/internal/domain/shared"
)

// Confirmer asks the operator to approve a destructive or irreversible action
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm calls f
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm approves everything, used for --yes and scripted runs
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) {
	return true, nil
})

// RequireConfirmation returns shared.ErrNotConfirmed unless c approves prompt.
// A nil Confirmer approves.
func RequireConfirmation(ctx context.Context, c Confirmer, prompt string) error {
	if c == nil {
		return nil
	}
	ok, err := c.Confirm(ctx, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrNotConfirmed
	}
	return nil
}
