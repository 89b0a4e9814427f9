// Package watch runs the drop-folder service. It polls a watched
// directory, waits for each newcomer's size to settle, queues it as a
// job, and drains the pending queue through the processing pipeline.
// A file lock in the log directory enforces a single instance, and a
// drained notification summarizes every burst of activity once the
// folder goes quiet again.
package watch
