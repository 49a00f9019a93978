// Package assembler reconstructs streamed assistant replies from ordered
// delta fragments.
package assembler

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/wagiedev/agentsession-go/internal/message"
)

// buffer accumulates fragments for a single in-flight message id.
type buffer struct {
	text   strings.Builder
	blocks []message.ContentBlock
	model  string
}

// Assembler holds one buffer per in-flight assistant message id.
//
// A buffer is created by the first fragment for an id, grows in arrival
// order, and is removed either when a fragment marked done renders it into an
// AssistantMessage or when Discard drops it. It is never both completed and
// discarded.
type Assembler struct {
	log     *slog.Logger
	partial bool

	mu      sync.Mutex
	buffers map[string]*buffer
}

// New creates an Assembler. When partial is true, Apply also returns an
// intermediate snapshot for every fragment it accepts.
func New(log *slog.Logger, partial bool) *Assembler {
	return &Assembler{
		log:     log.With("component", "assembler"),
		partial: partial,
		buffers: make(map[string]*buffer, 4),
	}
}

// Apply folds one fragment into its buffer.
//
// complete is non-nil only for a fragment marked done. partial is non-nil for
// every accepted fragment in partial mode, including ones that only add
// content blocks, change the model, or mark the message done.
func (a *Assembler) Apply(
	frag *message.AssistantFragment,
) (partial *message.PartialAssistantMessage, complete *message.AssistantMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.buffers[frag.ID]
	if !ok {
		if frag.Done && frag.Delta == "" && len(frag.Content) == 0 {
			a.log.Debug("Terminal fragment for unknown message id", "message_id", frag.ID)

			return nil, nil
		}

		buf = &buffer{}
		a.buffers[frag.ID] = buf

		a.log.Debug("Started assembling message", "message_id", frag.ID)
	}

	if frag.Delta != "" {
		buf.text.WriteString(frag.Delta)
	}

	buf.blocks = append(buf.blocks, frag.Content...)

	if frag.Model != "" {
		buf.model = frag.Model
	}

	if a.partial {
		partial = &message.PartialAssistantMessage{
			ID:      frag.ID,
			Delta:   frag.Delta,
			Text:    buf.text.String(),
			Content: slices.Clone(frag.Content),
			Model:   buf.model,
			Done:    frag.Done,
		}
	}

	if !frag.Done {
		return partial, nil
	}

	delete(a.buffers, frag.ID)

	complete = &message.AssistantMessage{
		ID:    frag.ID,
		Model: buf.model,
	}

	if buf.text.Len() > 0 {
		complete.Content = append(complete.Content, &message.TextBlock{
			Type: message.BlockTypeText,
			Text: buf.text.String(),
		})
	}

	complete.Content = append(complete.Content, buf.blocks...)

	a.log.Debug("Completed message", "message_id", frag.ID, "blocks", len(complete.Content))

	return partial, complete
}

// Discard drops every in-flight buffer without emitting it and reports how
// many were dropped.
func (a *Assembler) Discard() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.buffers)
	if n > 0 {
		a.log.Debug("Discarding incomplete messages", "count", n)
	}

	clear(a.buffers)

	return n
}

// Len reports the number of in-flight buffers.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.buffers)
}
