package service

import (
	"sync"

	"github.com/google/uuid"
)

// ChannelBalanceNotifier implements ports.BalanceNotifier with in-process
// fan-out channels. Slow subscribers drop updates rather than block the
// publisher; each update carries the full balance, so a dropped one is
// superseded by the next.
type ChannelBalanceNotifier struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[int]chan int64
	next int
}

// NewChannelBalanceNotifier creates an in-process balance notifier.
func NewChannelBalanceNotifier() *ChannelBalanceNotifier {
	return &ChannelBalanceNotifier{
		subs: make(map[uuid.UUID]map[int]chan int64),
	}
}

// Subscribe registers a listener for one wallet. The returned cancel func
// must be called to release the channel.
func (n *ChannelBalanceNotifier) Subscribe(walletID uuid.UUID) (<-chan int64, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan int64, 8)
	id := n.next
	n.next++

	if n.subs[walletID] == nil {
		n.subs[walletID] = make(map[int]chan int64)
	}
	n.subs[walletID][id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if listeners, ok := n.subs[walletID]; ok {
			if c, ok := listeners[id]; ok {
				delete(listeners, id)
				close(c)
			}
			if len(listeners) == 0 {
				delete(n.subs, walletID)
			}
		}
	}
	return ch, cancel
}

// Publish delivers a committed balance to all listeners of the wallet.
func (n *ChannelBalanceNotifier) Publish(walletID uuid.UUID, balance int64) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subs[walletID] {
		select {
		case ch <- balance:
		default:
			// Listener is behind; it will catch up on the next update
		}
	}
}
