package adopt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"adopt-go/internal/model"
)

// genesisHash is the PrevHash of the first entry of every key.
const genesisHash = "genesis"

// appendEvent builds the next journal entry for key and writes it through tx.
// A write failure aborts the surrounding transaction.
func appendEvent(tx LedgerTx, kind model.EventKind, key model.Key, actor model.AccountID, payload []byte, now time.Time) (*model.ResourceEvent, error) {
	last, err := tx.LastEvent(key)
	if err != nil {
		return nil, fmt.Errorf("reading journal head: %w", err)
	}

	ev := &model.ResourceEvent{
		Sequence:   1,
		Kind:       kind,
		Owner:      key.Owner,
		ResourceID: append([]byte(nil), key.ResourceID...),
		Actor:      actor,
		Payload:    append([]byte{}, payload...),
		RecordedAt: now,
		PrevHash:   genesisHash,
	}
	if last != nil {
		ev.Sequence = last.Sequence + 1
		ev.PrevHash = last.Hash
	}

	ev.Hash, err = hashEvent(ev)
	if err != nil {
		return nil, err
	}

	if err := tx.AppendEvent(ev); err != nil {
		return nil, fmt.Errorf("appending %s event: %w", kind, err)
	}
	return ev, nil
}

// hashEvent computes the chained content hash of ev. Hash itself is excluded.
func hashEvent(ev *model.ResourceEvent) (string, error) {
	input := struct {
		Seq        uint64 `json:"seq"`
		Kind       string `json:"kind"`
		Owner      string `json:"owner"`
		ResourceID string `json:"resource_id"`
		Actor      string `json:"actor"`
		Payload    []byte `json:"payload"`
		RecordedAt string `json:"recorded_at"`
		Prev       string `json:"prev"`
	}{
		Seq:        ev.Sequence,
		Kind:       string(ev.Kind),
		Owner:      string(ev.Owner),
		ResourceID: hex.EncodeToString(ev.ResourceID),
		Actor:      string(ev.Actor),
		Payload:    ev.Payload,
		RecordedAt: ev.RecordedAt.UTC().Format(time.RFC3339Nano),
		Prev:       ev.PrevHash,
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshaling event: %w", err)
	}
	h := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}

// verifyChain checks sequence numbering and hash links of a key's journal.
func verifyChain(events []*model.ResourceEvent) error {
	prev := genesisHash
	for i, ev := range events {
		if ev.Sequence != uint64(i)+1 {
			return fmt.Errorf("%w: entry %d has sequence %d", ErrJournalCorrupt, i+1, ev.Sequence)
		}
		if ev.PrevHash != prev {
			return fmt.Errorf("%w: entry %d does not link to its predecessor", ErrJournalCorrupt, ev.Sequence)
		}
		want, err := hashEvent(ev)
		if err != nil {
			return err
		}
		if ev.Hash != want {
			return fmt.Errorf("%w: entry %d hash mismatch", ErrJournalCorrupt, ev.Sequence)
		}
		prev = ev.Hash
	}
	return nil
}

// emit hands a committed event to the sink. Sink failures are logged only.
func (s *Service) emit(ctx context.Context, ev *model.ResourceEvent) {
	if err := s.sink.Emit(ctx, ev); err != nil {
		s.logger.Warn("event emission failed",
			"kind", string(ev.Kind),
			"key", ev.Key().String(),
			"sequence", ev.Sequence,
			"error", err,
		)
	}
}

// Events returns the journal for (owner, id) in sequence order. Unknown keys
// have an empty journal.
func (s *Service) Events(ctx context.Context, owner model.AccountID, id []byte) ([]*model.ResourceEvent, error) {
	var events []*model.ResourceEvent
	err := s.ledger.View(ctx, func(tx LedgerTx) error {
		var err error
		events, err = tx.ListEvents(model.NewKey(owner, id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	if events == nil {
		events = []*model.ResourceEvent{}
	}
	return events, nil
}

// VerifyEvents recomputes the hash chain of (owner, id) and reports
// ErrJournalCorrupt if any entry was altered, dropped or reordered.
func (s *Service) VerifyEvents(ctx context.Context, owner model.AccountID, id []byte) error {
	events, err := s.Events(ctx, owner, id)
	if err != nil {
		return err
	}
	return verifyChain(events)
}
