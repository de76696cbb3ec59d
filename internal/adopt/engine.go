package adopt

import (
	"context"
	"fmt"

	"adopt-go/internal/model"
)

// Adopt buys the exclusive claim on (owner, resourceID) for the caller.
//
// An owner can never adopt its own resource (ErrIllegalAdopter), whatever
// the state of the key. Otherwise checks run in a fixed order: the resource
// must exist (ErrResourceNotExist), must not be adopted yet
// (ErrResourceAdopted), and now must be strictly before FreezeAt
// (ErrResourceFreezed). The price is then transferred from caller to owner;
// a treasury failure is returned as-is and nothing is recorded. Only after
// the transfer succeeds is the contract written together with its
// ResourceAdopted journal entry.
//
// If recording fails after payment, the transfer is reversed before the error
// is returned, so a caller is never charged for an adoption that does not exist.
// That includes losing the key to a writer in another process between the
// read and the write: the resource must still be the listing that was paid
// for (ErrResourceNotExist otherwise) and still unadopted (ErrResourceAdopted).
// A loser in that window is charged and then refunded.
func (s *Service) Adopt(ctx context.Context, origin Origin, owner model.AccountID, resourceID []byte) (*model.Contract, error) {
	caller, err := s.authenticate(ctx, origin)
	if err != nil {
		return nil, err
	}

	key := model.NewKey(owner, resourceID)
	if caller == owner {
		s.logFailure("adopt", key, ErrIllegalAdopter)
		return nil, ErrIllegalAdopter
	}

	unlock := s.locks.lock(key)
	defer unlock()

	now := s.clock.Now()

	var res *model.Resource
	err = s.ledger.View(ctx, func(tx LedgerTx) error {
		var err error
		res, err = tx.GetResource(key)
		if err != nil {
			return fmt.Errorf("finding resource: %w", err)
		}
		if res == nil {
			return ErrResourceNotExist
		}

		adopted, err := tx.HasContract(key)
		if err != nil {
			return fmt.Errorf("checking contract: %w", err)
		}
		if adopted {
			return ErrResourceAdopted
		}
		return nil
	})
	if err != nil {
		s.logFailure("adopt", key, err)
		return nil, err
	}

	if !now.Before(res.FreezeAt) {
		s.logFailure("adopt", key, ErrResourceFreezed)
		return nil, ErrResourceFreezed
	}

	// Last point at which giving up leaves no trace.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.pay(ctx, caller, owner, res.Price); err != nil {
		s.logFailure("adopt", key, err)
		return nil, err
	}

	contract := &model.Contract{
		ID:         s.idgen.New(),
		Owner:      owner,
		ResourceID: append([]byte(nil), key.ResourceID...),
		Adopter:    caller,
		Price:      res.Price,
		StartAt:    now,
		EndAt:      res.HarvestBefore,
	}

	var ev *model.ResourceEvent
	err = s.ledger.Update(context.WithoutCancel(ctx), func(tx LedgerTx) error {
		// The key lock only holds within this process. Another process may
		// have revoked or republished the resource since it was read.
		cur, err := tx.GetResource(key)
		if err != nil {
			return fmt.Errorf("finding resource: %w", err)
		}
		if cur == nil || !sameListing(cur, res) {
			return ErrResourceNotExist
		}

		adopted, err := tx.HasContract(key)
		if err != nil {
			return fmt.Errorf("checking contract: %w", err)
		}
		if adopted {
			return ErrResourceAdopted
		}

		if err := tx.InsertContract(contract); err != nil {
			return fmt.Errorf("inserting contract: %w", err)
		}

		ev, err = appendEvent(tx, model.ResourceAdopted, key, caller, []byte(caller), now)
		return err
	})
	if err != nil {
		return nil, s.compensate(ctx, key, caller, owner, res.Price, err)
	}

	s.logger.Info("resource adopted",
		"key", key.String(),
		"adopter", string(caller),
		"contract", contract.ID,
		"price", res.Price.String(),
	)
	s.emit(ctx, ev)
	return contract, nil
}

// sameListing reports whether a and b are the same publication of a key.
func sameListing(a, b *model.Resource) bool {
	return a.PublishedAt.Equal(b.PublishedAt) &&
		a.Price.Cmp(b.Price) == 0 &&
		a.FreezeAt.Equal(b.FreezeAt) &&
		a.HarvestBefore.Equal(b.HarvestBefore)
}

// pay moves the price from adopter to owner. Free resources need no transfer.
func (s *Service) pay(ctx context.Context, from, to model.AccountID, price model.Amount) error {
	if price.IsZero() {
		return nil
	}
	if err := s.treasury.Transfer(ctx, from, to, price); err != nil {
		return fmt.Errorf("transferring price: %w", err)
	}
	return nil
}

// compensate refunds an adopter whose paid adoption could not be recorded.
// It returns the error to report to the caller.
func (s *Service) compensate(ctx context.Context, key model.Key, adopter, owner model.AccountID, price model.Amount, cause error) error {
	s.logger.Error("recording adoption failed after payment, refunding",
		"key", key.String(),
		"adopter", string(adopter),
		"error", cause,
	)

	if err := s.pay(context.WithoutCancel(ctx), owner, adopter, price); err != nil {
		s.logger.Error("refund failed",
			"key", key.String(),
			"adopter", string(adopter),
			"price", price.String(),
			"error", err,
		)
		return fmt.Errorf("recording adoption: %w (refund: %w: %w)", cause, ErrCompensationFailed, err)
	}

	return fmt.Errorf("recording adoption: %w", cause)
}
