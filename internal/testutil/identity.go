package testutil

import (
	"context"
	"fmt"

	"adopt-go/internal/adopt"
	"adopt-go/internal/model"
)

// StaticVerifier treats the origin itself as the caller's account id.
// An empty origin is unauthenticated.
type StaticVerifier struct{}

func (StaticVerifier) Verify(ctx context.Context, origin adopt.Origin) (model.AccountID, error) {
	if origin == "" {
		return "", fmt.Errorf("%w: empty origin", adopt.ErrUnauthenticated)
	}
	return model.AccountID(origin), nil
}

var _ adopt.Verifier = StaticVerifier{}
