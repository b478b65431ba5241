// Package viz holds the terminal styles and small text widgets shared by the
// CLI summaries and the live orbit viewer: sparklines, progress bars and
// label/value panels.
package viz
