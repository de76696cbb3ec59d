package adopt

import (
	"context"
	"fmt"
	"time"

	"adopt-go/internal/model"
)

const (
	// MaxResourceIDLen bounds the resource ID, which is part of every key.
	MaxResourceIDLen = 128
	// MaxInfoLen bounds resource metadata and state-change payloads.
	MaxInfoLen = 4096
)

// PublishRequest carries the caller-supplied fields of a new resource.
type PublishRequest struct {
	ID            []byte
	Price         model.Amount
	MinOutputKg   uint16
	FreezeAt      time.Time
	HarvestBefore time.Time
	Info          []byte
}

func (r *PublishRequest) validate() error {
	if len(r.ID) == 0 {
		return fmt.Errorf("%w: empty resource id", ErrInvalidResource)
	}
	if len(r.ID) > MaxResourceIDLen {
		return fmt.Errorf("%w: resource id longer than %d bytes", ErrInvalidResource, MaxResourceIDLen)
	}
	if len(r.Info) > MaxInfoLen {
		return fmt.Errorf("%w: info longer than %d bytes", ErrInvalidResource, MaxInfoLen)
	}
	return nil
}

// checkWindow enforces now < freezeAt < harvestBefore.
func checkWindow(now, freezeAt, harvestBefore time.Time) error {
	if !now.Before(freezeAt) {
		return fmt.Errorf("%w: freeze_at %s is not after now %s", ErrIllegalTimestamp, freezeAt.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	if !now.Before(harvestBefore) {
		return fmt.Errorf("%w: harvest_before %s is not after now %s", ErrIllegalTimestamp, harvestBefore.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	if !freezeAt.Before(harvestBefore) {
		return fmt.Errorf("%w: freeze_at %s is not before harvest_before %s", ErrIllegalTimestamp, freezeAt.Format(time.RFC3339), harvestBefore.Format(time.RFC3339))
	}
	return nil
}

// Publish records a new resource under the caller's namespace and journals
// ResourceOnline. It fails with ErrResourceAlreadyExist if the caller already
// has a resource with this ID, and with ErrIllegalTimestamp unless
// now < FreezeAt < HarvestBefore.
func (s *Service) Publish(ctx context.Context, origin Origin, req PublishRequest) (*model.Resource, error) {
	caller, err := s.authenticate(ctx, origin)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	key := model.NewKey(caller, req.ID)
	unlock := s.locks.lock(key)
	defer unlock()

	now := s.clock.Now()
	res := &model.Resource{
		ID:            append([]byte(nil), req.ID...),
		Owner:         caller,
		Price:         req.Price,
		MinOutputKg:   req.MinOutputKg,
		FreezeAt:      req.FreezeAt,
		HarvestBefore: req.HarvestBefore,
		Info:          append([]byte{}, req.Info...),
		PublishedAt:   now,
	}

	var ev *model.ResourceEvent
	err = s.ledger.Update(ctx, func(tx LedgerTx) error {
		exists, err := tx.HasResource(key)
		if err != nil {
			return fmt.Errorf("checking for existing resource: %w", err)
		}
		if exists {
			return ErrResourceAlreadyExist
		}

		if err := checkWindow(now, req.FreezeAt, req.HarvestBefore); err != nil {
			return err
		}

		if err := tx.InsertResource(res); err != nil {
			return fmt.Errorf("inserting resource: %w", err)
		}

		ev, err = appendEvent(tx, model.ResourceOnline, key, caller, nil, now)
		return err
	})
	if err != nil {
		s.logFailure("publish", key, err)
		return nil, err
	}

	s.logger.Info("resource online", "key", key.String(), "price", res.Price.String())
	s.emit(ctx, ev)
	return res, nil
}

// Revoke removes one of the caller's resources and journals ResourceOffline.
// An adopted resource can never be revoked.
func (s *Service) Revoke(ctx context.Context, origin Origin, id []byte) error {
	caller, err := s.authenticate(ctx, origin)
	if err != nil {
		return err
	}

	key := model.NewKey(caller, id)
	unlock := s.locks.lock(key)
	defer unlock()

	now := s.clock.Now()

	var ev *model.ResourceEvent
	err = s.ledger.Update(ctx, func(tx LedgerTx) error {
		exists, err := tx.HasResource(key)
		if err != nil {
			return fmt.Errorf("checking resource: %w", err)
		}
		if !exists {
			return ErrResourceNotExist
		}

		adopted, err := tx.HasContract(key)
		if err != nil {
			return fmt.Errorf("checking contract: %w", err)
		}
		if adopted {
			return ErrResourceAdopted
		}

		if err := tx.RemoveResource(key); err != nil {
			return fmt.Errorf("removing resource: %w", err)
		}

		ev, err = appendEvent(tx, model.ResourceOffline, key, caller, nil, now)
		return err
	})
	if err != nil {
		s.logFailure("revoke", key, err)
		return err
	}

	s.logger.Info("resource offline", "key", key.String())
	s.emit(ctx, ev)
	return nil
}

// ChangeState journals an owner-reported state change (for example harvest
// progress) for one of the caller's resources. The resource itself is not
// modified.
func (s *Service) ChangeState(ctx context.Context, origin Origin, id []byte, payload []byte) (*model.ResourceEvent, error) {
	caller, err := s.authenticate(ctx, origin)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty state payload", ErrInvalidResource)
	}
	if len(payload) > MaxInfoLen {
		return nil, fmt.Errorf("%w: state payload longer than %d bytes", ErrInvalidResource, MaxInfoLen)
	}

	key := model.NewKey(caller, id)
	unlock := s.locks.lock(key)
	defer unlock()

	now := s.clock.Now()

	var ev *model.ResourceEvent
	err = s.ledger.Update(ctx, func(tx LedgerTx) error {
		exists, err := tx.HasResource(key)
		if err != nil {
			return fmt.Errorf("checking resource: %w", err)
		}
		if !exists {
			return ErrResourceNotExist
		}

		ev, err = appendEvent(tx, model.ResourceStateChanged, key, caller, payload, now)
		return err
	})
	if err != nil {
		s.logFailure("state change", key, err)
		return nil, err
	}

	s.logger.Info("resource state changed", "key", key.String(), "sequence", ev.Sequence)
	s.emit(ctx, ev)
	return ev, nil
}

// Resource returns the resource stored at (owner, id).
func (s *Service) Resource(ctx context.Context, owner model.AccountID, id []byte) (*model.Resource, error) {
	var res *model.Resource
	err := s.ledger.View(ctx, func(tx LedgerTx) error {
		var err error
		res, err = tx.GetResource(model.NewKey(owner, id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finding resource: %w", err)
	}
	if res == nil {
		return nil, ErrResourceNotExist
	}
	return res, nil
}

// Contract returns the adoption contract stored at (owner, id).
func (s *Service) Contract(ctx context.Context, owner model.AccountID, id []byte) (*model.Contract, error) {
	var c *model.Contract
	err := s.ledger.View(ctx, func(tx LedgerTx) error {
		var err error
		c, err = tx.GetContract(model.NewKey(owner, id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finding contract: %w", err)
	}
	if c == nil {
		return nil, ErrContractNotExist
	}
	return c, nil
}
