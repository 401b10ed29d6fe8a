package model

// TurnBuilder groups a chronological message stream into turns. A user
// message closes the current turn and starts a new one; everything else
// appends to the current turn, which is created on demand when a stream
// begins without a user message.
type TurnBuilder struct {
	turns   []Turn
	current []Message
}

// Add feeds the next message in chronological order.
func (b *TurnBuilder) Add(msg Message) {
	if msg.Role == RoleUser && len(b.current) > 0 {
		b.flush()
	}
	b.current = append(b.current, msg)
}

// Finish flushes the final turn and returns all turns in index order.
// Every added message belongs to exactly one turn.
func (b *TurnBuilder) Finish() []Turn {
	if len(b.current) > 0 {
		b.flush()
	}
	return b.turns
}

func (b *TurnBuilder) flush() {
	msgs := b.current
	b.current = nil
	b.turns = append(b.turns, Turn{
		ID:        NewID(),
		Index:     len(b.turns),
		StartedAt: msgs[0].Timestamp,
		EndedAt:   msgs[len(msgs)-1].Timestamp,
		Messages:  msgs,
	})
}

// BuildTurns runs the turn builder over an already-linearized message slice.
func BuildTurns(msgs []Message) []Turn {
	var b TurnBuilder
	for _, m := range msgs {
		b.Add(m)
	}
	return b.Finish()
}
