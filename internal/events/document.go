// Package events publishes committed journal entries to the outside world:
// the operator log, an in-process recorder, and document archives on the
// local filesystem or in S3.
package events

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"adopt-go/internal/model"
)

// Document is the archived form of one journal entry.
type Document struct {
	Sequence   uint64    `json:"sequence"`
	Kind       string    `json:"kind"`
	Owner      string    `json:"owner"`
	ResourceID string    `json:"resource_id"` // hex
	Actor      string    `json:"actor"`
	Payload    []byte    `json:"payload"`
	RecordedAt time.Time `json:"recorded_at"`
	PrevHash   string    `json:"prev_hash"`
	Hash       string    `json:"hash"`
}

// NewDocument converts ev for archiving.
func NewDocument(ev *model.ResourceEvent) Document {
	return Document{
		Sequence:   ev.Sequence,
		Kind:       string(ev.Kind),
		Owner:      string(ev.Owner),
		ResourceID: hex.EncodeToString(ev.ResourceID),
		Actor:      string(ev.Actor),
		Payload:    append([]byte{}, ev.Payload...),
		RecordedAt: ev.RecordedAt.UTC(),
		PrevHash:   ev.PrevHash,
		Hash:       ev.Hash,
	}
}

// Event converts the document back into a journal entry.
func (d Document) Event() (*model.ResourceEvent, error) {
	id, err := hex.DecodeString(d.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("decoding resource id: %w", err)
	}
	kind := model.EventKind(d.Kind)
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", d.Kind)
	}
	return &model.ResourceEvent{
		Sequence:   d.Sequence,
		Kind:       kind,
		Owner:      model.AccountID(d.Owner),
		ResourceID: id,
		Actor:      model.AccountID(d.Actor),
		Payload:    append([]byte{}, d.Payload...),
		RecordedAt: d.RecordedAt.UTC(),
		PrevHash:   d.PrevHash,
		Hash:       d.Hash,
	}, nil
}

func encodeDocument(ev *model.ResourceEvent) ([]byte, error) {
	data, err := json.Marshal(NewDocument(ev))
	if err != nil {
		return nil, fmt.Errorf("encoding event document: %w", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (*model.ResourceEvent, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding event document: %w", err)
	}
	return d.Event()
}

// ObjectKey names the archived document of one journal entry:
//
//	<owner>/<hex resource id>/<sequence, zero padded>.json[.age]
//
// Zero padding keeps lexical and sequence order identical.
func ObjectKey(owner model.AccountID, resourceID []byte, seq uint64, encrypted bool) string {
	key := fmt.Sprintf("%s/%s/%020d.json", url.PathEscape(string(owner)), hex.EncodeToString(resourceID), seq)
	if encrypted {
		key += ".age"
	}
	return key
}
