// Package stream turns the raw chunked byte stream from the generation
// transport into tree snapshots: a Reframer reassembles complete lines from
// arbitrarily split chunks, and a Session drives those lines through the
// patch codec and the tree reducer while enforcing the one-stream-at-a-time
// lifecycle.
package stream

import "strings"

// Reframer reassembles newline-terminated lines from text chunks that are
// not aligned to line boundaries. It holds exactly one pending fragment (the
// text since the last newline) across chunk boundaries. A Reframer is scoped
// to one session; it is not reusable once Flush or Discard has been called.
type Reframer struct {
	frag strings.Builder
}

// Feed appends one chunk and returns every complete line it unlocked, in
// order, without their trailing newline. The final segment after the last
// newline (possibly empty) is retained as the new fragment.
func (r *Reframer) Feed(chunk string) []string {
	if chunk == "" {
		return nil
	}
	i := strings.IndexByte(chunk, '\n')
	if i < 0 {
		r.frag.WriteString(chunk)
		return nil
	}

	lines := make([]string, 0, strings.Count(chunk, "\n"))
	// First line completes the pending fragment.
	r.frag.WriteString(chunk[:i])
	lines = append(lines, r.frag.String())
	r.frag.Reset()

	rest := chunk[i+1:]
	for {
		j := strings.IndexByte(rest, '\n')
		if j < 0 {
			r.frag.WriteString(rest)
			return lines
		}
		lines = append(lines, rest[:j])
		rest = rest[j+1:]
	}
}

// Flush returns the pending fragment as a final line, if any. Producers are
// not required to terminate their last line with a newline, so callers
// invoke Flush once at end-of-stream.
func (r *Reframer) Flush() (string, bool) {
	if r.frag.Len() == 0 {
		return "", false
	}
	line := r.frag.String()
	r.frag.Reset()
	return line, true
}

// Discard drops the pending fragment. Used on cancellation, where a
// half-received line must not be parsed.
func (r *Reframer) Discard() {
	r.frag.Reset()
}
