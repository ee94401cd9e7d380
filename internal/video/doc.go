// Package video adapts external video decoders to a frame-by-frame pull API.
//
// A Decoder opens one segment file at a time. Segments report the integer
// frame rate read from container metadata and hand out BGR frames until
// io.EOF. Frames are pulled synchronously, so a slow consumer throttles the
// decoder instead of buffering whole videos in memory.
//
// Two backends exist:
//   - FFmpeg (default): ffprobe for metadata, ffmpeg piping bgr24 rawvideo.
//   - OpenCV: gocv VideoCapture, compiled only with the "opencv" build tag.
package video
