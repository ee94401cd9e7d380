package bag

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/foxglove/mcap/go/mcap"
)

const (
	profileROS2      = "ros2"
	storageMCAP      = "mcap"
	library          = "bagfuse"
	defaultChunkSize = 4 * 1024 * 1024
)

// WriterOptions tunes the MCAP output.
type WriterOptions struct {
	// Compression is "zstd" (default), "lz4", or "none".
	Compression string
	ChunkSize   int64
}

func (o WriterOptions) compression() (mcap.CompressionFormat, error) {
	switch strings.ToLower(strings.TrimSpace(o.Compression)) {
	case "", "zstd":
		return mcap.CompressionZSTD, nil
	case "lz4":
		return mcap.CompressionLZ4, nil
	case "none":
		return mcap.CompressionNone, nil
	default:
		return "", fmt.Errorf("bag compression %q: unsupported", o.Compression)
	}
}

type channel struct {
	id    uint16
	topic Topic
	count uint64
}

// Writer appends messages to a new rosbag2 directory. It is not safe for
// concurrent use.
type Writer struct {
	dir      string
	fileName string
	file     *os.File
	mcap     *mcap.Writer

	channels    map[string]*channel
	order       []string
	schemas     map[string]uint16
	nextSchema  uint16
	nextChannel uint16

	messages uint64
	start    uint64
	end      uint64
	closed   bool
}

// Create opens a new bag at dir. The directory is created when missing and
// must be empty when present.
func Create(dir string, opts WriterOptions) (*Writer, error) {
	compression, err := opts.compression()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	switch {
	case err == nil && len(entries) > 0:
		return nil, fmt.Errorf("%s: %w", dir, ErrDestinationNotEmpty)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("inspect bag directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bag directory: %w", err)
	}

	fileName := filepath.Base(filepath.Clean(dir)) + "_0.mcap"
	file, err := os.OpenFile(filepath.Join(dir, fileName), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create bag file: %w", err)
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	writer, err := mcap.NewWriter(file, &mcap.WriterOptions{
		Chunked:     true,
		ChunkSize:   chunkSize,
		Compression: compression,
		IncludeCRC:  true,
	})
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("init mcap writer: %w", err)
	}
	if err := writer.WriteHeader(&mcap.Header{Profile: profileROS2, Library: library}); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write mcap header: %w", err)
	}

	return &Writer{
		dir:         dir,
		fileName:    fileName,
		file:        file,
		mcap:        writer,
		channels:    make(map[string]*channel),
		schemas:     make(map[string]uint16),
		nextSchema:  1,
		nextChannel: 1,
	}, nil
}

// RegisterTopic adds a topic. Registering an identical topic again is a no-op;
// a different type or format under the same name returns ErrTopicConflict.
func (w *Writer) RegisterTopic(topic Topic) error {
	if w.closed {
		return ErrClosed
	}
	if strings.TrimSpace(topic.Name) == "" {
		return errors.New("register topic: empty name")
	}
	if topic.Format == "" {
		topic.Format = SerializationCDR
	}
	if existing, ok := w.channels[topic.Name]; ok {
		if !existing.topic.matches(topic) {
			return fmt.Errorf("%w: %s is %s/%s, not %s/%s", ErrTopicConflict, topic.Name,
				existing.topic.Type, existing.topic.Format, topic.Type, topic.Format)
		}
		return nil
	}

	schemaID, ok := w.schemas[topic.Type]
	if !ok {
		schemaID = w.nextSchema
		if err := w.mcap.WriteSchema(&mcap.Schema{
			ID:       schemaID,
			Name:     topic.Type,
			Encoding: topic.SchemaEncoding,
			Data:     topic.Schema,
		}); err != nil {
			return fmt.Errorf("write schema %s: %w", topic.Type, err)
		}
		w.schemas[topic.Type] = schemaID
		w.nextSchema++
	}

	ch := &channel{id: w.nextChannel, topic: topic}
	if err := w.mcap.WriteChannel(&mcap.Channel{
		ID:              ch.id,
		SchemaID:        schemaID,
		Topic:           topic.Name,
		MessageEncoding: topic.Format,
		Metadata:        map[string]string{"offered_qos_profiles": ""},
	}); err != nil {
		return fmt.Errorf("write channel %s: %w", topic.Name, err)
	}
	w.nextChannel++
	w.channels[topic.Name] = ch
	w.order = append(w.order, topic.Name)
	return nil
}

// Append writes one message. The topic must already be registered.
func (w *Writer) Append(topic string, data []byte, logTime uint64) error {
	if w.closed {
		return ErrClosed
	}
	ch, ok := w.channels[topic]
	if !ok {
		return fmt.Errorf("append %s: %w", topic, ErrUnregisteredTopic)
	}
	if err := w.mcap.WriteMessage(&mcap.Message{
		ChannelID:   ch.id,
		Sequence:    uint32(ch.count),
		LogTime:     logTime,
		PublishTime: logTime,
		Data:        data,
	}); err != nil {
		return fmt.Errorf("append %s: %w", topic, err)
	}
	ch.count++
	if w.messages == 0 || logTime < w.start {
		w.start = logTime
	}
	if logTime > w.end {
		w.end = logTime
	}
	w.messages++
	return nil
}

// Topics returns registered topics in registration order.
func (w *Writer) Topics() []Topic {
	out := make([]Topic, 0, len(w.order))
	for _, name := range w.order {
		out = append(out, w.channels[name].topic)
	}
	return out
}

// MessageCount returns the number of appended messages.
func (w *Writer) MessageCount() uint64 { return w.messages }

// Close finalizes the MCAP summary, writes metadata.yaml and releases the
// file. Calling Close more than once is safe.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if err := w.mcap.Close(); err != nil {
		errs = append(errs, fmt.Errorf("finalize mcap: %w", err))
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close bag file: %w", err))
	}
	if len(errs) == 0 {
		if err := WriteMetadata(w.dir, w.metadata()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Writer) metadata() Metadata {
	var duration uint64
	if w.messages > 0 {
		duration = w.end - w.start
	}
	topics := make([]TopicCount, 0, len(w.order))
	for _, name := range w.order {
		ch := w.channels[name]
		topics = append(topics, TopicCount{
			TopicMetadata: TopicMetadata{
				Name:                ch.topic.Name,
				Type:                ch.topic.Type,
				SerializationFormat: ch.topic.Format,
			},
			MessageCount: ch.count,
		})
	}
	return Metadata{Info: BagfileInformation{
		Version:                metadataVersion,
		StorageIdentifier:      storageMCAP,
		Duration:               Duration{Nanoseconds: duration},
		StartingTime:           StartingTime{NanosecondsSinceEpoch: w.start},
		MessageCount:           w.messages,
		TopicsWithMessageCount: topics,
		RelativeFilePaths:      []string{w.fileName},
		Files: []FileInfo{{
			Path:         w.fileName,
			StartingTime: StartingTime{NanosecondsSinceEpoch: w.start},
			Duration:     Duration{Nanoseconds: duration},
			MessageCount: w.messages,
		}},
	}}
}
