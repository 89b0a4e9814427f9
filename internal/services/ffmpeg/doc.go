// Package ffmpeg drives the FFmpeg binary for single-image re-encodes.
//
// The client produces webp or avif output with a bounding-box scale
// filter. A failed encode never leaves a partial output file behind; the
// source file is always left in place for the caller to decide on.
package ffmpeg
