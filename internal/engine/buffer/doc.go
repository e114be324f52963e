// Package buffer implements the line-addressed source text buffer.
//
// The buffer is the single piece of mutable text state in texmirror:
// the keystroke handler, the persistence writer, and the edit animator
// all write through it. It maintains a line-start index so that line
// ranges can be converted to byte spans and back in O(log n), which is
// what keeps source lines and rendered regions mutually addressable.
//
// Lines are 1-based to match the compiler's region map. An empty
// buffer has zero lines; a trailing newline introduces a final empty
// line. Every mutation bumps the revision ID and rebuilds the index
// from scratch — documents here are small and full recomputation is
// simpler to reason about than incremental patching.
package buffer
