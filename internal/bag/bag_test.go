package bag

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/foxglove/mcap/go/mcap"
)

func readAll(t *testing.T, path string) []Entry {
	t.Helper()
	reader, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer reader.Close()
	it, err := reader.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	var out []Entry
	for {
		entry, err := it.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		entry.Data = append([]byte(nil), entry.Data...)
		out = append(out, entry)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "combo_bag")
	w, err := Create(dir, WriterOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	imu := Topic{Name: "/imu", Type: "sensor_msgs/msg/Imu", Format: "cdr", SchemaEncoding: "ros2msg", Schema: []byte("float64 x")}
	if err := w.RegisterTopic(imu); err != nil {
		t.Fatalf("RegisterTopic: %v", err)
	}
	if err := w.RegisterTopic(Topic{Name: "/gps", Type: "sensor_msgs/msg/NavSatFix", Format: "cdr"}); err != nil {
		t.Fatalf("RegisterTopic: %v", err)
	}
	want := []Entry{
		{Topic: "/imu", Data: []byte{1, 2, 3}, LogTime: 300},
		{Topic: "/gps", Data: []byte{4}, LogTime: 100},
		{Topic: "/imu", Data: []byte{5, 6}, LogTime: 200},
	}
	for _, e := range want {
		if err := w.Append(e.Topic, e.Data, e.LogTime); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if w.MessageCount() != 3 {
		t.Fatalf("unexpected message count: %d", w.MessageCount())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := readAll(t, filepath.Join(dir, "combo_bag_0.mcap"))
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Topic != want[i].Topic || got[i].LogTime != want[i].LogTime || !bytes.Equal(got[i].Data, want[i].Data) {
			t.Fatalf("entry %d: got %+v want %+v", i, got[i], want[i])
		}
	}

	reader, err := OpenReader(filepath.Join(dir, "combo_bag_0.mcap"))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer reader.Close()
	topic, ok := reader.Lookup("/imu")
	if !ok {
		t.Fatal("expected /imu in directory")
	}
	if topic.Type != imu.Type || topic.Format != "cdr" || topic.SchemaEncoding != "ros2msg" || string(topic.Schema) != "float64 x" {
		t.Fatalf("unexpected directory entry: %+v", topic)
	}
	if reader.Truncated() {
		t.Fatal("complete file reported as truncated")
	}
	if names := reader.TopicNames(); len(names) != 2 || names[0] != "/gps" {
		t.Fatalf("unexpected topic names: %v", names)
	}
}

func TestWriterMetadata(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "session")
	w, err := Create(dir, WriterOptions{Compression: "none"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.RegisterTopic(Topic{Name: "/a", Type: "std_msgs/msg/String"}); err != nil {
		t.Fatalf("RegisterTopic: %v", err)
	}
	for _, ts := range []uint64{50, 10, 90} {
		if err := w.Append("/a", []byte("x"), ts); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	meta, err := ReadMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	info := meta.Info
	if info.MessageCount != 3 || info.StorageIdentifier != "mcap" {
		t.Fatalf("unexpected metadata: %+v", info)
	}
	if info.StartingTime.NanosecondsSinceEpoch != 10 || info.Duration.Nanoseconds != 80 {
		t.Fatalf("unexpected time span: start=%d duration=%d", info.StartingTime.NanosecondsSinceEpoch, info.Duration.Nanoseconds)
	}
	if len(info.TopicsWithMessageCount) != 1 || info.TopicsWithMessageCount[0].MessageCount != 3 {
		t.Fatalf("unexpected topic counts: %+v", info.TopicsWithMessageCount)
	}
	if info.TopicsWithMessageCount[0].TopicMetadata.SerializationFormat != "cdr" {
		t.Fatalf("expected default cdr format, got %+v", info.TopicsWithMessageCount[0].TopicMetadata)
	}
	if len(info.RelativeFilePaths) != 1 || info.RelativeFilePaths[0] != "session_0.mcap" {
		t.Fatalf("unexpected file paths: %v", info.RelativeFilePaths)
	}
}

func TestCreateRejectsNonEmptyDestination(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "leftover"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := Create(dir, WriterOptions{}); !errors.Is(err, ErrDestinationNotEmpty) {
		t.Fatalf("expected ErrDestinationNotEmpty, got %v", err)
	}
}

func TestCreateAcceptsEmptyExistingDirectory(t *testing.T) {
	w, err := Create(t.TempDir(), WriterOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCreateRejectsUnknownCompression(t *testing.T) {
	if _, err := Create(filepath.Join(t.TempDir(), "b"), WriterOptions{Compression: "brotli"}); err == nil {
		t.Fatal("expected error for unknown compression")
	}
}

func TestRegisterTopicIsIdempotent(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "b"), WriterOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	topic := Topic{Name: "/image/usb2", Type: "sensor_msgs/msg/CompressedImage", Format: "cdr"}
	for i := 0; i < 2; i++ {
		if err := w.RegisterTopic(topic); err != nil {
			t.Fatalf("RegisterTopic #%d: %v", i, err)
		}
	}
	if topics := w.Topics(); len(topics) != 1 {
		t.Fatalf("expected one topic, got %v", topics)
	}

	conflict := topic
	conflict.Type = "sensor_msgs/msg/Image"
	if err := w.RegisterTopic(conflict); !errors.Is(err, ErrTopicConflict) {
		t.Fatalf("expected ErrTopicConflict, got %v", err)
	}
}

func TestAppendRequiresRegisteredTopic(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "b"), WriterOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()
	if err := w.Append("/missing", []byte("x"), 1); !errors.Is(err, ErrUnregisteredTopic) {
		t.Fatalf("expected ErrUnregisteredTopic, got %v", err)
	}
}

func TestWriterCloseTwiceAndAfterClose(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "b"), WriterOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := w.RegisterTopic(Topic{Name: "/a", Type: "t"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

// writeInline writes messages on /chatter with the schema and channel only
// inline, returning the file bytes and the offset where the last message
// record starts.
func writeInline(t *testing.T, opts *mcap.WriterOptions, messages int, finish bool) ([]byte, int) {
	t.Helper()
	var buf bytes.Buffer
	w, err := mcap.NewWriter(&buf, opts)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WriteHeader(&mcap.Header{Profile: "ros2"}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := w.WriteSchema(&mcap.Schema{ID: 1, Name: "std_msgs/msg/String", Encoding: "ros2msg", Data: []byte("string data")}); err != nil {
		t.Fatalf("WriteSchema: %v", err)
	}
	if err := w.WriteChannel(&mcap.Channel{ID: 1, SchemaID: 1, Topic: "/chatter", MessageEncoding: "cdr"}); err != nil {
		t.Fatalf("WriteChannel: %v", err)
	}
	last := 0
	for i := 0; i < messages; i++ {
		last = buf.Len()
		msg := &mcap.Message{ChannelID: 1, Sequence: uint32(i), LogTime: uint64(10 + i), PublishTime: uint64(10 + i), Data: []byte("hello world")}
		if err := w.WriteMessage(msg); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}
	if finish {
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	return buf.Bytes(), last
}

func TestReaderWithoutSummaryChannels(t *testing.T) {
	data, _ := writeInline(t, &mcap.WriterOptions{
		Chunked:                  true,
		SkipRepeatedSchemas:      true,
		SkipRepeatedChannelInfos: true,
	}, 3, true)
	path := filepath.Join(t.TempDir(), "inline_0.mcap")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer reader.Close()
	topic, ok := reader.Lookup("/chatter")
	if !ok || topic.Type != "std_msgs/msg/String" || topic.Format != "cdr" || string(topic.Schema) != "string data" {
		t.Fatalf("inline channel not in directory: ok=%v topic=%+v", ok, topic)
	}
	if got := readAll(t, path); len(got) != 3 || got[2].LogTime != 12 {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestReaderStopsAtCutOffRecord(t *testing.T) {
	data, last := writeInline(t, &mcap.WriterOptions{}, 4, false)
	path := filepath.Join(t.TempDir(), "cut_0.mcap")
	// Cut the file inside the fourth message record.
	if err := os.WriteFile(path, data[:last+5], 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer reader.Close()
	if _, ok := reader.Lookup("/chatter"); !ok {
		t.Fatalf("expected /chatter from the data section, got %v", reader.TopicNames())
	}
	got := readAll(t, path)
	if len(got) != 3 {
		t.Fatalf("expected the 3 complete messages, got %d", len(got))
	}
	for i, e := range got {
		if e.Topic != "/chatter" || e.LogTime != uint64(10+i) || string(e.Data) != "hello world" {
			t.Fatalf("entry %d: %+v", i, e)
		}
	}
}
