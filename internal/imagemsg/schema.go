package imagemsg

// SchemaEncoding is the MCAP schema encoding used by rosbag2 for .msg text.
const SchemaEncoding = "ros2msg"

const separator = "================================================================================\n"

const headerDefinition = `MSG: std_msgs/Header
builtin_interfaces/Time stamp
string frame_id
` + separator + `MSG: builtin_interfaces/Time
int32 sec
uint32 nanosec
`

const rawDefinition = `std_msgs/Header header
uint32 height
uint32 width
string encoding
uint8 is_bigendian
uint32 step
uint8[] data
` + separator + headerDefinition

const compressedDefinition = `std_msgs/Header header
string format
uint8[] data
` + separator + headerDefinition

// Schema returns the concatenated message definition registered for the
// topic type produced in the given mode.
func Schema(raw bool) []byte {
	if raw {
		return []byte(rawDefinition)
	}
	return []byte(compressedDefinition)
}
