package bag

import "errors"

// SerializationCDR is the rosbag2 serialization format for ROS 2 messages.
const SerializationCDR = "cdr"

var (
	// ErrDestinationNotEmpty reports an output directory that already holds files.
	ErrDestinationNotEmpty = errors.New("destination exists and is not empty")
	// ErrTopicConflict reports a re-registration with a different type or format.
	ErrTopicConflict = errors.New("topic already registered with a different type")
	// ErrUnregisteredTopic reports an append to a topic that was never registered.
	ErrUnregisteredTopic = errors.New("topic not registered")
	// ErrClosed reports use of a closed writer.
	ErrClosed = errors.New("bag writer closed")
)

// Topic describes one channel of a bag.
type Topic struct {
	Name   string
	Type   string
	Format string

	// SchemaEncoding and Schema carry the message definition. Both may be
	// empty when the definition is unknown.
	SchemaEncoding string
	Schema         []byte
}

func (t Topic) matches(other Topic) bool {
	return t.Name == other.Name && t.Type == other.Type && t.Format == other.Format
}

// Entry is one message read from a bag.
type Entry struct {
	Topic       string
	Data        []byte
	LogTime     uint64
	PublishTime uint64
}

// EntryIterator yields entries until io.EOF.
type EntryIterator interface {
	Next() (Entry, error)
}
