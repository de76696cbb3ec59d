package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"adopt-go/internal/adopt"
	"adopt-go/internal/encryption"
	"adopt-go/internal/model"
)

// LogSink writes one log line per event.
type LogSink struct {
	logger adopt.Logger
}

func NewLogSink(logger adopt.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, ev *model.ResourceEvent) error {
	s.logger.Info("resource event",
		"kind", string(ev.Kind),
		"key", ev.Key().String(),
		"sequence", ev.Sequence,
		"actor", string(ev.Actor),
		"hash", ev.Hash,
	)
	return nil
}

// MemorySink records emitted events in order. Safe for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	events []*model.ResourceEvent
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(ctx context.Context, ev *model.ResourceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *ev
	cp.ResourceID = append([]byte(nil), ev.ResourceID...)
	cp.Payload = append([]byte{}, ev.Payload...)
	s.events = append(s.events, &cp)
	return nil
}

// Events returns a snapshot of everything emitted so far.
func (s *MemorySink) Events() []*model.ResourceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*model.ResourceEvent(nil), s.events...)
}

// ArchiveSink stores each event as a JSON document in an Archive,
// age-encrypted when an encryptor is set.
type ArchiveSink struct {
	archive   Archive
	encryptor encryption.Encryptor
}

// NewArchiveSink creates a sink. enc may be nil for plaintext documents.
func NewArchiveSink(archive Archive, enc encryption.Encryptor) *ArchiveSink {
	return &ArchiveSink{archive: archive, encryptor: enc}
}

func (s *ArchiveSink) Archive() Archive {
	return s.archive
}

func (s *ArchiveSink) Encrypted() bool {
	return s.encryptor != nil
}

func (s *ArchiveSink) Emit(ctx context.Context, ev *model.ResourceEvent) error {
	data, err := encodeDocument(ev)
	if err != nil {
		return err
	}

	if s.encryptor != nil {
		var buf bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return fmt.Errorf("encrypting event document: %w", err)
		}
		data = buf.Bytes()
	}

	key := ObjectKey(ev.Owner, ev.ResourceID, ev.Sequence, s.Encrypted())
	if err := s.archive.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("archiving to %s: %w", s.archive.Name(), err)
	}
	return nil
}

// Fetch reads back one archived event. dec is required for encrypted archives.
func (s *ArchiveSink) Fetch(ctx context.Context, owner model.AccountID, resourceID []byte, seq uint64, dec encryption.Decryptor) (*model.ResourceEvent, error) {
	key := ObjectKey(owner, resourceID, seq, s.Encrypted())

	var buf bytes.Buffer
	if err := s.archive.Get(ctx, key, &buf); err != nil {
		return nil, err
	}

	data := buf.Bytes()
	if s.Encrypted() {
		if dec == nil {
			return nil, errors.New("archive is encrypted; unlock the private key first")
		}
		var plain bytes.Buffer
		if err := dec.Decrypt(bytes.NewReader(data), &plain); err != nil {
			return nil, fmt.Errorf("decrypting event document: %w", err)
		}
		data = plain.Bytes()
	}

	return decodeDocument(data)
}

// MultiSink fans an event out to every sink. All sinks are tried; their
// errors are joined.
type MultiSink []adopt.EventSink

func (m MultiSink) Emit(ctx context.Context, ev *model.ResourceEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compile-time checks that every sink implements adopt.EventSink
var (
	_ adopt.EventSink = (*LogSink)(nil)
	_ adopt.EventSink = (*MemorySink)(nil)
	_ adopt.EventSink = (*ArchiveSink)(nil)
	_ adopt.EventSink = MultiSink(nil)
)
