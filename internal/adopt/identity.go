package adopt

import (
	"context"

	"adopt-go/internal/model"
)

// Origin is the raw, unverified credential a caller presents with an
// operation (a signed bearer token in production).
type Origin string

// Verifier turns an Origin into the account that signed it. Any failure is
// reported as ErrUnauthenticated.
type Verifier interface {
	Verify(ctx context.Context, origin Origin) (model.AccountID, error)
}
