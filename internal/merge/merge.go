// Package merge copies an existing log into the output log unchanged.
//
// Entries keep their payload bytes and log time exactly. A topic is
// registered the first time one of its entries appears, using the source
// file's topic directory; an entry whose topic the directory does not know
// means the source is corrupt and fails the copy.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"bagfuse/internal/bag"
	"bagfuse/internal/logging"
	"bagfuse/internal/progress"
)

// ErrTopicNotInDirectory is matched by every LookupError.
var ErrTopicNotInDirectory = errors.New("topic not in source topic directory")

// LookupError reports an entry whose topic is missing from the source's
// topic directory.
type LookupError struct {
	Topic  string
	Source string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("topic %q in %s: %s", e.Topic, e.Source, ErrTopicNotInDirectory)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrTopicNotInDirectory
}

// Source is one readable log file.
type Source interface {
	Path() string
	Lookup(name string) (bag.Topic, bool)
	Entries() (bag.EntryIterator, error)
}

// Sink receives registered topics and their messages.
type Sink interface {
	RegisterTopic(topic bag.Topic) error
	Append(topic string, data []byte, logTime uint64) error
}

// Stats summarizes what a Merger copied.
type Stats struct {
	Files    int
	Messages uint64
	// Topics lists topic names in first-seen order.
	Topics []string
}

// Merger copies sources into one sink. The seen-topic set spans every
// Copy call, so use one Merger per output log.
type Merger struct {
	logger *slog.Logger
	seen   map[string]struct{}
	stats  Stats
}

// New returns an empty Merger.
func New(logger *slog.Logger) *Merger {
	return &Merger{
		logger: logging.NewComponentLogger(logger, "merge"),
		seen:   make(map[string]struct{}),
	}
}

// Stats returns the running totals.
func (m *Merger) Stats() Stats {
	out := m.stats
	out.Topics = append([]string(nil), m.stats.Topics...)
	return out
}

// Copy streams every entry of src into dst in file order.
func (m *Merger) Copy(ctx context.Context, src Source, dst Sink, counter progress.Counter) (Stats, error) {
	counter = progress.OrNop(counter)
	logger := logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldPath, src.Path()))

	it, err := src.Entries()
	if err != nil {
		return m.Stats(), fmt.Errorf("merge %s: %w", src.Path(), err)
	}
	var copied uint64
	for {
		if err := ctx.Err(); err != nil {
			return m.Stats(), err
		}
		entry, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return m.Stats(), fmt.Errorf("merge %s: %w", src.Path(), err)
		}
		if err := m.register(src, dst, entry.Topic); err != nil {
			return m.Stats(), err
		}
		if err := dst.Append(entry.Topic, entry.Data, entry.LogTime); err != nil {
			return m.Stats(), fmt.Errorf("merge %s: %w", src.Path(), err)
		}
		copied++
		m.stats.Messages++
		counter.Add(1)
	}
	m.stats.Files++
	logger.Debug("log file merged", logging.Uint64("messages", copied), logging.Int("topics_seen", len(m.stats.Topics)))
	return m.Stats(), nil
}

func (m *Merger) register(src Source, dst Sink, name string) error {
	if _, ok := m.seen[name]; ok {
		return nil
	}
	topic, ok := src.Lookup(name)
	if !ok {
		return &LookupError{Topic: name, Source: src.Path()}
	}
	if err := dst.RegisterTopic(topic); err != nil {
		return fmt.Errorf("merge %s: %w", src.Path(), err)
	}
	m.seen[name] = struct{}{}
	m.stats.Topics = append(m.stats.Topics, name)
	return nil
}

// CopyFiles opens each path in order and copies it into dst.
func (m *Merger) CopyFiles(ctx context.Context, paths []string, dst Sink, counter progress.Counter) (Stats, error) {
	for _, path := range paths {
		if err := m.copyFile(ctx, path, dst, counter); err != nil {
			return m.Stats(), err
		}
	}
	return m.Stats(), nil
}

func (m *Merger) copyFile(ctx context.Context, path string, dst Sink, counter progress.Counter) error {
	reader, err := bag.OpenReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()
	if _, err := m.Copy(ctx, reader, dst, counter); err != nil {
		return err
	}
	if reader.Truncated() {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "source log file ends mid-record", "source_log_truncated",
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldErrorHint, "the recorder likely stopped before closing the file"),
			logging.String(logging.FieldImpact, "entries after the last complete record are missing"),
		)
	}
	return nil
}
