package mqtt

import (
	"testing"
)

func pushN(rb *ringBuffer, from, to int) {
	for i := from; i < to; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	if got := rb.drain(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	pushN(rb, 0, 5)

	if rb.len() != 5 {
		t.Fatalf("len: got %d, want 5", rb.len())
	}
	got := rb.drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := range got {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}
	if rb.drain() != nil {
		t.Error("expected second drain to be empty")
	}
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	rb := newRingBuffer(5)
	pushN(rb, 0, 8)

	if rb.dropped != 3 {
		t.Errorf("dropped: got %d, want 3", rb.dropped)
	}
	got := rb.drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := range got {
		want := byte(i + 3)
		if got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}
	if rb.dropped != 0 {
		t.Error("drain should reset the drop count")
	}
}

func TestRingBufferReuseAfterDrain(t *testing.T) {
	rb := newRingBuffer(3)
	pushN(rb, 0, 2)
	rb.drain()
	pushN(rb, 10, 14)

	got := rb.drain()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, want := range []byte{11, 12, 13} {
		if got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}
}

func TestRingBufferKeepsMessageFields(t *testing.T) {
	rb := newRingBuffer(2)
	rb.push(bufferedMsg{topic: "home/shutter/x/system", payload: []byte("{}"), qos: 1, retained: true})

	got := rb.drain()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	m := got[0]
	if m.topic != "home/shutter/x/system" || m.qos != 1 || !m.retained || string(m.payload) != "{}" {
		t.Errorf("unexpected message: %+v", m)
	}
}
