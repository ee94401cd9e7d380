package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"os"
	"testing"

	"github.com/foxglove/mcap/go/mcap"

	"bagfuse/internal/bag"
)

func writeSource(t *testing.T, dir string, topics []bag.Topic, entries []bag.Entry) string {
	t.Helper()
	w, err := bag.Create(dir, bag.WriterOptions{})
	if err != nil {
		t.Fatalf("Create source: %v", err)
	}
	for _, topic := range topics {
		if err := w.RegisterTopic(topic); err != nil {
			t.Fatalf("RegisterTopic: %v", err)
		}
	}
	for _, e := range entries {
		if err := w.Append(e.Topic, e.Data, e.LogTime); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close source: %v", err)
	}
	return filepath.Join(dir, filepath.Base(dir)+"_0.mcap")
}

func readEntries(t *testing.T, path string) []bag.Entry {
	t.Helper()
	r, err := bag.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	it, err := r.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	var out []bag.Entry
	for {
		e, err := it.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, e)
	}
}

var sourceTopics = []bag.Topic{
	{Name: "/imu", Type: "sensor_msgs/msg/Imu", Format: "cdr", SchemaEncoding: "ros2msg", Schema: []byte("float64 x")},
	{Name: "/gps", Type: "sensor_msgs/msg/NavSatFix", Format: "cdr"},
}

func sampleEntries(n int, base uint64) []bag.Entry {
	entries := make([]bag.Entry, 0, n)
	for i := 0; i < n; i++ {
		topic := "/imu"
		if i%3 == 0 {
			topic = "/gps"
		}
		entries = append(entries, bag.Entry{
			Topic:   topic,
			Data:    []byte(fmt.Sprintf("payload-%d", i)),
			LogTime: base + uint64(100-i),
		})
	}
	return entries
}

func TestCopyFilesIsLossFree(t *testing.T) {
	root := t.TempDir()
	first := writeSource(t, filepath.Join(root, "src_a"), sourceTopics, sampleEntries(60, 1_000))
	second := writeSource(t, filepath.Join(root, "src_b"), sourceTopics, sampleEntries(40, 5_000))

	out := filepath.Join(root, "out")
	w, err := bag.Create(out, bag.WriterOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	m := New(nil)
	stats, err := m.CopyFiles(context.Background(), []string{first, second}, w, nil)
	if err != nil {
		t.Fatalf("CopyFiles: %v", err)
	}
	if stats.Files != 2 || stats.Messages != 100 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if fmt.Sprint(stats.Topics) != "[/gps /imu]" {
		t.Fatalf("unexpected registration order: %v", stats.Topics)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := readEntries(t, filepath.Join(out, "out_0.mcap"))
	want := append(readEntries(t, first), readEntries(t, second)...)
	if len(got) != len(want) {
		t.Fatalf("copied %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Topic != want[i].Topic || got[i].LogTime != want[i].LogTime || !bytes.Equal(got[i].Data, want[i].Data) {
			t.Fatalf("entry %d differs: got %+v want %+v", i, got[i], want[i])
		}
	}

	r, err := bag.OpenReader(filepath.Join(out, "out_0.mcap"))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	imu, ok := r.Lookup("/imu")
	if !ok || imu.Type != "sensor_msgs/msg/Imu" || string(imu.Schema) != "float64 x" {
		t.Fatalf("schema not carried over: %+v", imu)
	}
}

type memSource struct {
	path    string
	topics  map[string]bag.Topic
	entries []bag.Entry
}

func (s *memSource) Path() string { return s.path }

func (s *memSource) Lookup(name string) (bag.Topic, bool) {
	t, ok := s.topics[name]
	return t, ok
}

func (s *memSource) Entries() (bag.EntryIterator, error) {
	return &memIterator{entries: s.entries}, nil
}

type memIterator struct {
	entries []bag.Entry
	next    int
}

func (it *memIterator) Next() (bag.Entry, error) {
	if it.next >= len(it.entries) {
		return bag.Entry{}, io.EOF
	}
	e := it.entries[it.next]
	it.next++
	return e, nil
}

type countingSink struct {
	registrations map[string]int
	appended      int
}

func (s *countingSink) RegisterTopic(topic bag.Topic) error {
	if s.registrations == nil {
		s.registrations = map[string]int{}
	}
	s.registrations[topic.Name]++
	return nil
}

func (s *countingSink) Append(string, []byte, uint64) error {
	s.appended++
	return nil
}

func TestCopyRegistersEachTopicOnce(t *testing.T) {
	src := &memSource{
		path:    "mem",
		topics:  map[string]bag.Topic{"/a": {Name: "/a", Type: "x/msg/A"}, "/b": {Name: "/b", Type: "x/msg/B"}},
		entries: []bag.Entry{{Topic: "/a"}, {Topic: "/b"}, {Topic: "/a"}, {Topic: "/a"}},
	}
	sink := &countingSink{}
	m := New(nil)
	for i := 0; i < 2; i++ {
		if _, err := m.Copy(context.Background(), src, sink, nil); err != nil {
			t.Fatalf("Copy: %v", err)
		}
	}
	if sink.registrations["/a"] != 1 || sink.registrations["/b"] != 1 {
		t.Fatalf("expected one registration per topic, got %v", sink.registrations)
	}
	if sink.appended != 8 || m.Stats().Messages != 8 || m.Stats().Files != 2 {
		t.Fatalf("unexpected totals: appended=%d stats=%+v", sink.appended, m.Stats())
	}
}

func TestCopyFailsOnTopicMissingFromDirectory(t *testing.T) {
	src := &memSource{
		path:    "broken.mcap",
		topics:  map[string]bag.Topic{"/a": {Name: "/a", Type: "x/msg/A"}},
		entries: []bag.Entry{{Topic: "/a"}, {Topic: "/ghost"}},
	}
	sink := &countingSink{}
	_, err := New(nil).Copy(context.Background(), src, sink, nil)
	if !errors.Is(err, ErrTopicNotInDirectory) {
		t.Fatalf("expected ErrTopicNotInDirectory, got %v", err)
	}
	var lookup *LookupError
	if !errors.As(err, &lookup) || lookup.Topic != "/ghost" || lookup.Source != "broken.mcap" {
		t.Fatalf("unexpected lookup error: %#v", err)
	}
	if sink.appended != 1 {
		t.Fatalf("expected entries before the failure to be copied, got %d", sink.appended)
	}
}

func TestCopyFilesReportsOpenFailure(t *testing.T) {
	_, err := New(nil).CopyFiles(context.Background(), []string{filepath.Join(t.TempDir(), "missing.mcap")}, &countingSink{}, nil)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCopyFilesSourceWithoutSummaryDirectory(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src_0.mcap")
	f, err := os.Create(src)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	w, err := mcap.NewWriter(f, &mcap.WriterOptions{
		Chunked:                  true,
		SkipRepeatedSchemas:      true,
		SkipRepeatedChannelInfos: true,
	})
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
	for i := 0; i < 3; i++ {
		if err := w.WriteMessage(&mcap.Message{ChannelID: 1, LogTime: uint64(100 + i), Data: []byte{byte(i)}}); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close file: %v", err)
	}

	out := filepath.Join(root, "out")
	dst, err := bag.Create(out, bag.WriterOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	stats, err := New(nil).CopyFiles(context.Background(), []string{src}, dst, nil)
	if err != nil {
		t.Fatalf("CopyFiles: %v", err)
	}
	if stats.Files != 1 || stats.Messages != 3 || fmt.Sprint(stats.Topics) != "[/chatter]" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := bag.OpenReader(filepath.Join(out, "out_0.mcap"))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	topic, ok := r.Lookup("/chatter")
	if !ok || topic.Type != "std_msgs/msg/String" || string(topic.Schema) != "string data" {
		t.Fatalf("schema not carried over: ok=%v %+v", ok, topic)
	}
	if got := readEntries(t, filepath.Join(out, "out_0.mcap")); len(got) != 3 || got[2].LogTime != 102 {
		t.Fatalf("unexpected copied entries: %+v", got)
	}
}
