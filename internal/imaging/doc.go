// Package imaging re-encodes staged images to a smaller format and decides
// what happens to the re-encoded files after packaging.
//
// Compression walks a staging directory, hands each eligible source image
// to an encoder (ffmpeg in production), and replaces the source with the
// encoded file on success. GIFs are skipped to preserve animation and
// already-encoded WebP files are left alone. A failed encode keeps the
// source and counts the failure; the pass never aborts the pipeline.
//
// After the final archive is built from the originals, the re-encoded
// copies are either deleted or saved to a sibling of the output archive,
// depending on configuration.
package imaging
