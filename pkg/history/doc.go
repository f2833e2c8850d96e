// Package history keeps a SQLite journal of download attempts so that past
// runs can be summarized with the history command.
package history
