package adopt

import (
	"context"
	"errors"
	"fmt"

	"adopt-go/internal/model"
)

// Service is the state-transition layer of the adoption ledger. It owns the
// Resource Registry (Publish, Revoke, ChangeState), the Contract Engine
// (Adopt) and the Event Log, and coordinates the injected collaborators.
//
// Operations on the same key are serialized; operations on different keys
// may run concurrently.
type Service struct {
	ledger   Ledger
	treasury Treasury
	verifier Verifier
	sink     EventSink
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	locks    *keyLocks
}

// NewService creates a Service with the provided dependencies.
// A nil sink discards events and a nil logger discards log output.
func NewService(ledger Ledger, treasury Treasury, verifier Verifier, sink EventSink, logger Logger, clock Clock, idgen IDGenerator) *Service {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Service{
		ledger:   ledger,
		treasury: treasury,
		verifier: verifier,
		sink:     sink,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		locks:    newKeyLocks(),
	}
}

// authenticate resolves the caller behind origin.
func (s *Service) authenticate(ctx context.Context, origin Origin) (model.AccountID, error) {
	id, err := s.verifier.Verify(ctx, origin)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return "", fmt.Errorf("verifying caller: %w", err)
		}
		return "", fmt.Errorf("verifying caller: %w: %w", ErrUnauthenticated, err)
	}
	if id == "" {
		return "", ErrUnauthenticated
	}
	return id, nil
}

// logFailure logs a failed operation: rule violations at debug level,
// anything else as an error.
func (s *Service) logFailure(op string, key model.Key, err error) {
	if IsRejection(err) {
		s.logger.Debug(op+" rejected", "key", key.String(), "reason", ErrorKind(err))
		return
	}
	s.logger.Error(op+" failed", "key", key.String(), "error", err)
}
