package events

import (
	"context"
	"fmt"

	"adopt-go/internal/adopt"
	"adopt-go/internal/config"
	"adopt-go/internal/encryption"
)

// NewSinkFromConfig creates the EventSink described by one sink section.
// enc is used only for sinks with encrypt = true.
func NewSinkFromConfig(ctx context.Context, cfg config.SinkConfig, logger adopt.Logger, enc encryption.Encryptor) (adopt.EventSink, error) {
	if cfg.Encrypt && cfg.Type == "log" {
		return nil, fmt.Errorf("sink %q: encryption is not supported for log sinks", cfg.Name)
	}
	if cfg.Encrypt && enc == nil {
		return nil, fmt.Errorf("sink %q: encrypt = true but no encryptor is configured", cfg.Name)
	}
	if !cfg.Encrypt {
		enc = nil
	}

	switch cfg.Type {
	case "log":
		return NewLogSink(logger), nil
	case "memory":
		return NewArchiveSink(NewMemoryArchive(cfg.Name), enc), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem sink requires fs_root to be set")
		}
		archive, err := NewFileSystemArchive(cfg.Name, cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return NewArchiveSink(archive, enc), nil
	case "s3":
		archive, err := NewS3ArchiveFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewArchiveSink(archive, enc), nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
}

// NewFromConfig builds every configured sink. No sinks yields adopt.NopSink.
func NewFromConfig(ctx context.Context, cfg config.EventsConfig, logger adopt.Logger, enc encryption.Encryptor) (adopt.EventSink, error) {
	switch len(cfg.Sinks) {
	case 0:
		return adopt.NopSink{}, nil
	case 1:
		return NewSinkFromConfig(ctx, cfg.Sinks[0], logger, enc)
	}

	sinks := make(MultiSink, 0, len(cfg.Sinks))
	for _, sc := range cfg.Sinks {
		s, err := NewSinkFromConfig(ctx, sc, logger, enc)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
