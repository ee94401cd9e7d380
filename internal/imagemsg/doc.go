// Package imagemsg converts decoded video frames into ROS 2 image messages.
//
// A Synthesizer turns one BGR frame into a Payload, which is either Raw
// (sensor_msgs/msg/Image, bgr8) or Compressed (sensor_msgs/msg/CompressedImage,
// jpeg). Payloads carry no timing; callers supply the Header stamp when they
// Marshal the payload into its CDR wire form.
package imagemsg
