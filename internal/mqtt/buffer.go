package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer keeps the most recent messages published while disconnected.
// Not safe for concurrent use; RealPublisher guards it with its mutex.
type ringBuffer struct {
	buf     []bufferedMsg
	next    int // slot for the next push
	count   int
	dropped int // messages overwritten since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if r.count == len(r.buf) {
		if r.dropped == 0 {
			log.Printf("mqtt: buffer full (%d messages), dropping oldest", len(r.buf))
		}
		r.dropped++
	} else {
		r.count++
	}
	r.buf[r.next] = msg
	r.next = (r.next + 1) % len(r.buf)
}

// drain returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drain() []bufferedMsg {
	if r.count == 0 {
		return nil
	}
	out := make([]bufferedMsg, 0, r.count)
	oldest := (r.next - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(oldest+i)%len(r.buf)])
	}
	if r.dropped > 0 {
		log.Printf("mqtt: replaying %d buffered messages, %d dropped", r.count, r.dropped)
	}
	r.next, r.count, r.dropped = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
