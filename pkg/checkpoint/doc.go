// Package checkpoint persists the crawl document between runs.
//
// The whole config file is the checkpoint: after every completed page the
// crawler writes it back with last_page advanced. Writes go to a temporary
// file that is synced and renamed over the original, so a crash leaves
// either the old or the new document on disk. The store refuses to move
// last_page backwards.
package checkpoint
