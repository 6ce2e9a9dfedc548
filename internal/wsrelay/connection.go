package wsrelay

// responseWriter prefixes the one-shot VLESS response header to the first
// batch of upstream bytes delivered to the client, and nothing thereafter.
// Modeled as a tagged first-frame/subsequent state rather than a mutable
// "pending" flag that could be cleared twice: once pending is consumed it
// is set to nil and every later call is a pure passthrough.
type responseWriter struct {
	pending []byte
}

// newResponseWriter returns a responseWriter that will prefix header to
// the first frame it produces, even when that frame's data is empty.
func newResponseWriter(header []byte) *responseWriter {
	return &responseWriter{pending: header}
}

// frame returns data with the pending header prefixed, if any is still
// pending, and clears the pending state. Called at most once per batch of
// upstream bytes; safe to call with an empty data slice (the header is
// still flushed).
func (w *responseWriter) frame(data []byte) []byte {
	if w.pending == nil {
		return data
	}
	header := w.pending
	w.pending = nil
	if len(data) == 0 {
		return header
	}
	out := make([]byte, 0, len(header)+len(data))
	out = append(out, header...)
	out = append(out, data...)
	return out
}

// sent reports whether the header has already been flushed.
func (w *responseWriter) sent() bool {
	return w.pending == nil
}
