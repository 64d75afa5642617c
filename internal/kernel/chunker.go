// SPDX-License-Identifier: MPL-2.0

package kernel

// chunker consumes a submission one complete unit at a time. Units are pulled
// lazily so that each one is analyzed after the previous one was evaluated.
type chunker struct {
	engine Engine
	info   CompletionInfo
	// taken is set once info.Consumed was handed out and the remainder still
	// needs analyzing.
	taken bool
}

func newChunker(engine Engine, submission string) *chunker {
	return &chunker{engine: engine, info: engine.AnalyzeCompletion(submission)}
}

// Next returns the next complete unit, or false once nothing complete remains.
func (c *chunker) Next() (string, bool) {
	if c.taken {
		c.info = c.engine.AnalyzeCompletion(c.info.Remainder)
		c.taken = false
	}
	if !c.info.Completeness.IsComplete() {
		return "", false
	}
	c.taken = true
	return c.info.Consumed, true
}

// Terminal is the state after the last complete unit. It is only meaningful
// once Next has returned false.
func (c *chunker) Terminal() CompletionInfo { return c.info }

// Chunk splits submission into the complete units the engine accepts, in
// order. The returned CompletionInfo is the terminal state: its Completeness is
// Empty when the whole submission was consumed, otherwise its Remainder is the
// unconsumed fragment.
func Chunk(engine Engine, submission string) ([]string, CompletionInfo) {
	c := newChunker(engine, submission)
	var units []string
	for unit, ok := c.Next(); ok; unit, ok = c.Next() {
		units = append(units, unit)
	}
	return units, c.Terminal()
}
