// Package contentapi talks to the publishing backend: token login, batched
// multipart image upload, and article submission.
//
// A single client is shared across jobs. The bearer token lives behind a
// mutex and is reused optimistically; any 401/403 clears it and logs in
// again, and only a successful refresh makes retrying the failed call
// worthwhile. Upload batches retry independently with linear backoff, but
// one exhausted batch aborts the whole upload so a partial URL list never
// reaches article submission.
package contentapi
