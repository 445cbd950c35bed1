package bridge

import (
	"sync"

	"github.com/0xhank/casper/internal/shared/types"
)

// Mailbox is the only channel between the sandboxed context and the host.
// Sends never block the sandbox: when the host falls behind, the oldest
// message is dropped in favor of the newest.
type Mailbox struct {
	ch     chan types.BridgeMessage
	mu     sync.Mutex
	closed bool
}

// NewMailbox creates a mailbox with the given buffer size
func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = 16
	}
	return &Mailbox{ch: make(chan types.BridgeMessage, size)}
}

// Send delivers a message to the host without blocking
func (m *Mailbox) Send(msg types.BridgeMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for {
		select {
		case m.ch <- msg:
			return
		default:
			// Buffer full: drop the oldest message
			select {
			case <-m.ch:
			default:
			}
		}
	}
}

// Messages returns the host-side receive channel
func (m *Mailbox) Messages() <-chan types.BridgeMessage {
	return m.ch
}

// Close drains the mailbox and stops further sends
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.ch)
}
