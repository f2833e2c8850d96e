// Package crawler implements the per-page crawl loop: fetch a page, make sure
// the session is still logged in, extract media links from the content
// containers, download them, and persist the next page number.
//
// A page with no containers halts the crawl. Every other failure is retried
// on the same page, so a page is never skipped.
package crawler
