package adopt

import (
	"context"

	"adopt-go/internal/model"
)

// Treasury moves value between accounts. A transfer either fully applies or
// leaves every balance untouched. Implementations report failures with
// ErrInsufficientFunds or ErrInvalidIdentity (matchable with errors.Is).
type Treasury interface {
	Transfer(ctx context.Context, from, to model.AccountID, amount model.Amount) error
}
