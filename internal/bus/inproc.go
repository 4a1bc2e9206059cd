package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelClosed is returned by Publish after Close.
var ErrChannelClosed = errors.New("channel closed")

// InprocChannel is an in-memory Channel for tests and for running the
// engine without a broker. Delivery is synchronous.
type InprocChannel struct {
	mu     sync.Mutex
	subs   map[string][]*inprocSub
	closed bool
}

// NewInprocChannel creates an empty in-process channel.
func NewInprocChannel() *InprocChannel {
	return &InprocChannel{subs: make(map[string][]*inprocSub)}
}

func (c *InprocChannel) Publish(_ context.Context, subject string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	subs := make([]*inprocSub, len(c.subs[subject]))
	copy(subs, c.subs[subject])
	c.mu.Unlock()

	for _, sub := range subs {
		sub.fn(payload)
	}

	return nil
}

func (c *InprocChannel) Subscribe(subject string, fn Handler) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrChannelClosed
	}

	sub := &inprocSub{channel: c, subject: subject, fn: fn}
	c.subs[subject] = append(c.subs[subject], sub)
	return sub, nil
}

func (c *InprocChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.subs = make(map[string][]*inprocSub)
	return nil
}

type inprocSub struct {
	channel *InprocChannel
	subject string
	fn      Handler
}

func (s *inprocSub) Unsubscribe() error {
	s.channel.mu.Lock()
	defer s.channel.mu.Unlock()

	subs := s.channel.subs[s.subject]
	for i, sub := range subs {
		if sub == s {
			s.channel.subs[s.subject] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}
