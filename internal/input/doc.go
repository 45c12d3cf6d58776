// Package input turns text into commands for the CLI producer.
//
// Each non-empty line is one command split with POSIX shell quoting:
// "double quoted" and 'single quoted' words or backslash escapes for
// arguments that contain blanks or shell operators. Lines starting with #
// are comments.
package input
