package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so that several API
// replicas can stream the same run.
type RedisBroker struct {
	rdb *redis.Client

	mu  sync.Mutex
	pss map[chan Event]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return newRedisBroker(redis.NewClient(opt)), nil
}

func newRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb, pss: map[chan Event]*redis.PubSub{}}
}

func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Close() error { return b.rdb.Close() }

func (b *RedisBroker) Subscribe(runID string) chan Event {
	ch := make(chan Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(runID))
	// wait for the subscription confirmation so no publish is missed
	_, _ = ps.Receive(ctx)
	b.mu.Lock()
	b.pss[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				offer(ch, evt)
			}
		}
	}()
	return ch
}

// Unsubscribe closes the Pub/Sub; the forwarding goroutine then closes ch.
func (b *RedisBroker) Unsubscribe(runID string, ch chan Event) {
	b.mu.Lock()
	ps, ok := b.pss[ch]
	delete(b.pss, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(runID string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(evt)
	_ = b.rdb.Publish(ctx, b.chanName(runID), data).Err()
}

func (b *RedisBroker) chanName(runID string) string { return "run:" + runID }
