// Package bag reads and writes rosbag2 directories backed by MCAP storage.
//
// Writer is the single writer for one output bag: it owns the MCAP file,
// registers topics idempotently, appends messages, and on Close writes the
// rosbag2 metadata.yaml alongside the data file. Reader exposes an existing
// MCAP file as a topic directory plus an entry stream in file order, which is
// what the copy-merge path needs to re-emit entries byte for byte.
package bag
