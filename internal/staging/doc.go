// Package staging manages the temporary directories a job works in. It
// allocates marked staging roots under the configured temp directory,
// moves extracted content into its final shape, strips junk files,
// sequences media files into predictable names, and tears everything down
// once the job finishes regardless of how it ended.
//
// Every allocated directory carries a marker file so sweeps can tell
// repack staging apart from foreign data in a shared temp root. Teardown
// escalates through increasingly forceful removal strategies and hands
// directories that survive to a short background retry instead of failing
// the job over leftover disk.
package staging
