package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelBalanceNotifier_PublishReachesSubscriber(t *testing.T) {
	n := NewChannelBalanceNotifier()
	walletID := uuid.New()

	ch, cancel := n.Subscribe(walletID)
	defer cancel()

	n.Publish(walletID, 64000)

	select {
	case balance := <-ch:
		assert.Equal(t, int64(64000), balance)
	default:
		t.Fatal("expected a buffered balance update")
	}
}

func TestChannelBalanceNotifier_FanOut(t *testing.T) {
	n := NewChannelBalanceNotifier()
	walletID := uuid.New()

	ch1, cancel1 := n.Subscribe(walletID)
	defer cancel1()
	ch2, cancel2 := n.Subscribe(walletID)
	defer cancel2()

	n.Publish(walletID, 100)

	assert.Equal(t, int64(100), <-ch1)
	assert.Equal(t, int64(100), <-ch2)
}

func TestChannelBalanceNotifier_OtherWalletUnaffected(t *testing.T) {
	n := NewChannelBalanceNotifier()

	ch, cancel := n.Subscribe(uuid.New())
	defer cancel()

	n.Publish(uuid.New(), 500)

	select {
	case v := <-ch:
		t.Fatalf("unexpected update %d for an unrelated wallet", v)
	default:
	}
}

func TestChannelBalanceNotifier_CancelClosesChannel(t *testing.T) {
	n := NewChannelBalanceNotifier()
	walletID := uuid.New()

	ch, cancel := n.Subscribe(walletID)
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic on a closed channel
	n.Publish(walletID, 42)
}

func TestChannelBalanceNotifier_SlowSubscriberDropsUpdates(t *testing.T) {
	n := NewChannelBalanceNotifier()
	walletID := uuid.New()

	ch, cancel := n.Subscribe(walletID)
	defer cancel()

	// Overflow the buffer; Publish must never block
	for i := 0; i < 20; i++ {
		n.Publish(walletID, int64(i))
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	require.Equal(t, 8, received)
}
