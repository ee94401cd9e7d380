// Package identifier extracts capture metadata from camera segment filenames.
//
// Recorders name every segment `<tag>-<start_ms>-ms-<segment>-minutes.<ext>`,
// for example `csi-1673684144607-ms-001-minutes.mp4`. The start time is the
// wall-clock moment the camera began recording, in milliseconds since the
// Unix epoch. A name that does not follow the convention indicates a broken
// recording, so Parse reports it as a hard error rather than skipping the file.
package identifier
