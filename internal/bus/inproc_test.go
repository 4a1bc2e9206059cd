package bus

import (
	"context"
	"encoding/json"
	"testing"
)

func TestInprocChannel_PublishSubscribe(t *testing.T) {
	c := NewInprocChannel()
	defer c.Close()

	var got []string
	_, err := c.Subscribe("data", func(payload []byte) {
		got = append(got, string(payload))
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	msg := map[string]int{"bin_count": 8192}
	if err = c.Publish(context.Background(), "data", msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err = c.Publish(context.Background(), "other", msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("handler ran %d times, want 1", len(got))
	}

	var decoded map[string]int
	if err = json.Unmarshal([]byte(got[0]), &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded["bin_count"] != 8192 {
		t.Errorf("decoded bin_count = %d, want 8192", decoded["bin_count"])
	}
}

func TestInprocChannel_Unsubscribe(t *testing.T) {
	c := NewInprocChannel()
	defer c.Close()

	calls := 0
	sub, err := c.Subscribe("data", func([]byte) { calls++ })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	_ = c.Publish(context.Background(), "data", 1)
	if err = sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	_ = c.Publish(context.Background(), "data", 2)

	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
}

func TestInprocChannel_Closed(t *testing.T) {
	c := NewInprocChannel()
	c.Close()

	if err := c.Publish(context.Background(), "data", 1); err != ErrChannelClosed {
		t.Errorf("Publish after close = %v, want ErrChannelClosed", err)
	}
	if _, err := c.Subscribe("data", func([]byte) {}); err != ErrChannelClosed {
		t.Errorf("Subscribe after close = %v, want ErrChannelClosed", err)
	}
}
