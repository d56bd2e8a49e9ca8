package mqtt

// backlog is a fixed-capacity FIFO of safety events held while the broker
// is unreachable, replayed in order on reconnect. When full, the oldest
// event is dropped and the drop is counted so the gap is visible.
// Not safe for concurrent use — caller must synchronize.
type backlog struct {
	events  []SafetyEvent
	head    int // next write position
	count   int
	dropped int // events discarded since the last drain
}

func newBacklog(capacity int) *backlog {
	return &backlog{events: make([]SafetyEvent, capacity)}
}

func (b *backlog) push(e SafetyEvent) {
	if b.count == len(b.events) {
		// Overwrite oldest: head already points at it.
		b.dropped++
		b.events[b.head] = e
		b.head = (b.head + 1) % len(b.events)
		return
	}
	b.events[b.head] = e
	b.head = (b.head + 1) % len(b.events)
	b.count++
}

// drain returns the buffered events oldest-first along with the number of
// events dropped to overflow, and empties the backlog.
func (b *backlog) drain() ([]SafetyEvent, int) {
	if b.count == 0 {
		dropped := b.dropped
		b.dropped = 0
		return nil, dropped
	}

	out := make([]SafetyEvent, b.count)
	start := (b.head - b.count + len(b.events)) % len(b.events)
	for i := 0; i < b.count; i++ {
		out[i] = b.events[(start+i)%len(b.events)]
	}

	dropped := b.dropped
	b.count = 0
	b.head = 0
	b.dropped = 0
	return out, dropped
}

func (b *backlog) len() int {
	return b.count
}
