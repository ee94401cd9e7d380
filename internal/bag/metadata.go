package bag

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MetadataFile is the rosbag2 metadata filename inside a bag directory.
const MetadataFile = "metadata.yaml"

const metadataVersion = 5

// Metadata mirrors the rosbag2 metadata.yaml document.
type Metadata struct {
	Info BagfileInformation `yaml:"rosbag2_bagfile_information"`
}

// BagfileInformation is the body of a rosbag2 metadata document.
type BagfileInformation struct {
	Version                int          `yaml:"version"`
	StorageIdentifier      string       `yaml:"storage_identifier"`
	Duration               Duration     `yaml:"duration"`
	StartingTime           StartingTime `yaml:"starting_time"`
	MessageCount           uint64       `yaml:"message_count"`
	TopicsWithMessageCount []TopicCount `yaml:"topics_with_message_count"`
	CompressionFormat      string       `yaml:"compression_format"`
	CompressionMode        string       `yaml:"compression_mode"`
	RelativeFilePaths      []string     `yaml:"relative_file_paths"`
	Files                  []FileInfo   `yaml:"files,omitempty"`
}

type Duration struct {
	Nanoseconds uint64 `yaml:"nanoseconds"`
}

type StartingTime struct {
	NanosecondsSinceEpoch uint64 `yaml:"nanoseconds_since_epoch"`
}

type TopicCount struct {
	TopicMetadata TopicMetadata `yaml:"topic_metadata"`
	MessageCount  uint64        `yaml:"message_count"`
}

type TopicMetadata struct {
	Name                string `yaml:"name"`
	Type                string `yaml:"type"`
	SerializationFormat string `yaml:"serialization_format"`
	OfferedQoSProfiles  string `yaml:"offered_qos_profiles"`
}

type FileInfo struct {
	Path         string       `yaml:"path"`
	StartingTime StartingTime `yaml:"starting_time"`
	Duration     Duration     `yaml:"duration"`
	MessageCount uint64       `yaml:"message_count"`
}

// ReadMetadata parses a metadata.yaml file.
func ReadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read bag metadata: %w", err)
	}
	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse bag metadata %s: %w", path, err)
	}
	return meta, nil
}

// WriteMetadata writes meta into dir/metadata.yaml.
func WriteMetadata(dir string, meta Metadata) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode bag metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), data, 0o644); err != nil {
		return fmt.Errorf("write bag metadata: %w", err)
	}
	return nil
}
