package bag

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/foxglove/mcap/go/mcap"
)

// Reader reads one MCAP file of a rosbag2 directory.
type Reader struct {
	path      string
	file      *os.File
	topics    map[string]Topic
	truncated bool
}

// OpenReader opens an MCAP file and loads its topic directory. The summary
// section is used when it lists channels; otherwise the file is scanned for
// inline schema and channel records. A file cut off before its footer is
// read up to the last complete record and reported by Truncated.
func OpenReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bag file: %w", err)
	}
	reader, err := mcap.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("read mcap %s: %w", path, err)
	}
	r := &Reader{path: path, file: file, topics: make(map[string]Topic)}
	if info, err := reader.Info(); err == nil && len(info.Channels) > 0 {
		for _, ch := range info.Channels {
			r.topics[ch.Topic] = topicOf(ch, info.Schemas[ch.SchemaID])
		}
		return r, nil
	}
	if err := r.scan(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return r, nil
}

// scan builds the topic directory from the records inside the data section.
func (r *Reader) scan() error {
	it, err := r.messages()
	if err != nil {
		return err
	}
	for {
		schema, ch, _, err := it.Next(nil)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			r.truncated = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan mcap %s: %w", r.path, err)
		}
		r.adopt(ch, schema)
	}
}

func (r *Reader) messages() (mcap.MessageIterator, error) {
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", r.path, err)
	}
	reader, err := mcap.NewReader(r.file)
	if err != nil {
		return nil, fmt.Errorf("read mcap %s: %w", r.path, err)
	}
	it, err := reader.Messages(mcap.UsingIndex(false))
	if err != nil {
		return nil, fmt.Errorf("iterate %s: %w", r.path, err)
	}
	return it, nil
}

// adopt records an inline channel the directory does not know yet.
func (r *Reader) adopt(ch *mcap.Channel, schema *mcap.Schema) {
	if ch == nil {
		return
	}
	if _, ok := r.topics[ch.Topic]; !ok {
		r.topics[ch.Topic] = topicOf(ch, schema)
	}
}

func topicOf(ch *mcap.Channel, schema *mcap.Schema) Topic {
	topic := Topic{Name: ch.Topic, Format: ch.MessageEncoding}
	if schema != nil {
		topic.Type = schema.Name
		topic.SchemaEncoding = schema.Encoding
		topic.Schema = schema.Data
	}
	return topic
}

// Path returns the file path the reader was opened with.
func (r *Reader) Path() string { return r.path }

// Lookup returns the directory entry for a topic name.
func (r *Reader) Lookup(name string) (Topic, bool) {
	topic, ok := r.topics[name]
	return topic, ok
}

// TopicNames returns the directory's topic names, sorted.
func (r *Reader) TopicNames() []string {
	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Truncated reports whether the file ended inside a record, as a recording
// cut off mid-write does. Entries then stop at the last complete message.
func (r *Reader) Truncated() bool { return r.truncated }

// Entries streams every message in file order. Each call restarts from the
// beginning of the file.
func (r *Reader) Entries() (EntryIterator, error) {
	it, err := r.messages()
	if err != nil {
		return nil, err
	}
	return &entries{reader: r, it: it}, nil
}

// Close releases the file.
func (r *Reader) Close() error {
	return r.file.Close()
}

type entries struct {
	reader *Reader
	it     mcap.MessageIterator
}

func (e *entries) Next() (Entry, error) {
	schema, ch, msg, err := e.it.Next(nil)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			e.reader.truncated = true
			return Entry{}, io.EOF
		}
		return Entry{}, fmt.Errorf("read bag entry: %w", err)
	}
	e.reader.adopt(ch, schema)
	return Entry{
		Topic:       ch.Topic,
		Data:        msg.Data,
		LogTime:     msg.LogTime,
		PublishTime: msg.PublishTime,
	}, nil
}
