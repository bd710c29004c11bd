package bus

import (
	"testing"

	"github.com/vietddude/ticketdash/internal/core/domain"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New(nil)

	var got []int
	b.Subscribe(domain.TopicBalancesUpdated, func(any) { got = append(got, 1) })
	b.Subscribe(domain.TopicBalancesUpdated, func(any) { got = append(got, 2) })
	b.Subscribe(domain.TopicPriceUpdated, func(any) { got = append(got, 3) })

	b.Publish(domain.TopicBalancesUpdated, nil)

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	for _, v := range got {
		if v == 3 {
			t.Error("priceUpdated subscriber received balancesUpdated publish")
		}
	}
}

func TestPayloadDelivered(t *testing.T) {
	b := New(nil)

	var received any
	b.Subscribe(domain.TopicPriceUpdated, func(p any) { received = p })

	snap := domain.CacheSnapshot{}
	b.Publish(domain.TopicPriceUpdated, snap)

	if _, ok := received.(domain.CacheSnapshot); !ok {
		t.Errorf("payload not delivered, got %T", received)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New(nil)

	calls := 0
	unsub := b.Subscribe(domain.TopicRewardsChanged, func(any) { calls++ })

	b.Publish(domain.TopicRewardsChanged, nil)
	unsub()
	b.Publish(domain.TopicRewardsChanged, nil)

	if calls != 1 {
		t.Errorf("expected 1 call after unsubscribe, got %d", calls)
	}
}

func TestPanickingHandlerIsolated(t *testing.T) {
	b := New(nil)

	delivered := false
	b.Subscribe(domain.TopicPoolDataChanged, func(any) { panic("boom") })
	b.Subscribe(domain.TopicPoolDataChanged, func(any) { delivered = true })

	b.Publish(domain.TopicPoolDataChanged, nil)

	if !delivered {
		t.Error("panic in one handler blocked delivery to another")
	}
}

func TestPublishWithNoSubscribers(t *testing.T) {
	b := New(nil)
	// Must not panic.
	b.Publish(domain.TopicTicketStatusChanged, nil)
}
