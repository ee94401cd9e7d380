package imagemsg

import (
	"fmt"
	"time"

	"bagfuse/internal/cdr"
)

// ROS 2 type names of the synthesized messages.
const (
	RawType        = "sensor_msgs/msg/Image"
	CompressedType = "sensor_msgs/msg/CompressedImage"

	EncodingBGR8 = "bgr8"
	FormatJPEG   = "jpeg"
)

// TypeName returns the ROS 2 message type produced in the given mode.
func TypeName(raw bool) string {
	if raw {
		return RawType
	}
	return CompressedType
}

// Payload is an image message body. It is implemented by Raw and Compressed only.
type Payload interface {
	TypeName() string
	isPayload()
}

// Raw is an uncompressed sensor_msgs/msg/Image body.
type Raw struct {
	Height      uint32
	Width       uint32
	Encoding    string
	IsBigEndian bool
	Step        uint32
	Data        []byte
}

// Compressed is a sensor_msgs/msg/CompressedImage body.
type Compressed struct {
	Format string
	Data   []byte
}

func (Raw) TypeName() string        { return RawType }
func (Compressed) TypeName() string { return CompressedType }
func (Raw) isPayload()              {}
func (Compressed) isPayload()       {}

// Header is the std_msgs/msg/Header prefix of every image message.
type Header struct {
	Stamp   time.Time
	FrameID string
}

// HeaderAt builds a header stamped with a nanosecond epoch timestamp.
func HeaderAt(nanos int64, frameID string) Header {
	return Header{Stamp: time.Unix(0, nanos), FrameID: frameID}
}

// Marshal serializes the payload as a CDR little-endian ROS 2 message.
func Marshal(p Payload, h Header) ([]byte, error) {
	switch msg := p.(type) {
	case Raw:
		enc := cdr.NewEncoder(64 + len(h.FrameID) + len(msg.Encoding) + len(msg.Data))
		writeHeader(enc, h)
		enc.Uint32(msg.Height)
		enc.Uint32(msg.Width)
		enc.String(msg.Encoding)
		enc.Bool(msg.IsBigEndian)
		enc.Uint32(msg.Step)
		enc.Bytes(msg.Data)
		return enc.Data(), nil
	case Compressed:
		enc := cdr.NewEncoder(48 + len(h.FrameID) + len(msg.Format) + len(msg.Data))
		writeHeader(enc, h)
		enc.String(msg.Format)
		enc.Bytes(msg.Data)
		return enc.Data(), nil
	default:
		return nil, fmt.Errorf("marshal image payload: unsupported type %T", p)
	}
}

func writeHeader(enc *cdr.Encoder, h Header) {
	var sec int32
	var nsec uint32
	if !h.Stamp.IsZero() {
		nanos := h.Stamp.UnixNano()
		sec = int32(nanos / int64(time.Second))
		nsec = uint32(nanos % int64(time.Second))
	}
	enc.Int32(sec)
	enc.Uint32(nsec)
	enc.String(h.FrameID)
}
