// Package downloader drains media URLs into a directory one at a time.
//
// Each task's filename is the last path segment of its URL. A name that the
// ledger already holds is skipped; otherwise it is reserved before the
// transfer so it is attempted at most once per process. Non-2xx replies and
// transfer errors are appended to the failure log and the task is dropped.
package downloader
