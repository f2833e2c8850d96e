// Package ui holds the console output of the command line: styled messages,
// the progress line, lifecycle notifications and, in package tui, the
// full-screen dashboard.
package ui
