// Package pipeline orchestrates the full repackage flow for a single
// source: extract or copy into staging, normalize the content, package the
// final archive, re-encode images, and optionally upload and publish the
// result through the content API.
//
// Every run is recorded as a queue job. Failures are classified through
// the services sentinels: validation and configuration problems park the
// job in review, everything else marks it failed. Staging directories are
// always torn down, even on failure, via the staging manager's deferred
// cleanup.
package pipeline
