// Package supervisor keeps a crawl alive. Each cycle starts a fresh renderer,
// logs in and runs the crawler; when the crawler halts or a cycle fails, the
// renderer is torn down and a new cycle starts after a fixed delay. Only
// context cancellation ends Run.
package supervisor
