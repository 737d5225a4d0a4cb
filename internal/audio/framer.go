package audio

import "sync"

// Framer slices an incoming PCM16 byte stream into fixed FrameBytes-sized
// frames, buffering the remainder between pushes. Every emitted frame is a
// fresh copy, safe to hand off to another goroutine. Push is meant for a
// single producer; frames come out in input order.
type Framer struct {
	mu   sync.Mutex
	buf  []byte
	emit func(frame []byte)
}

// NewFramer creates a Framer that calls emit for every complete frame.
func NewFramer(emit func(frame []byte)) *Framer {
	return &Framer{emit: emit}
}

// Push appends PCM16 bytes and emits every complete frame they yield.
func (f *Framer) Push(pcm []byte) {
	f.mu.Lock()
	f.buf = append(f.buf, pcm...)
	var frames [][]byte
	for len(f.buf) >= FrameBytes {
		frame := make([]byte, FrameBytes)
		copy(frame, f.buf[:FrameBytes])
		f.buf = f.buf[FrameBytes:]
		frames = append(frames, frame)
	}
	f.mu.Unlock()

	if f.emit == nil {
		return
	}
	for _, frame := range frames {
		f.emit(frame)
	}
}

// Buffered returns the number of bytes waiting for the next frame boundary.
func (f *Framer) Buffered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buf)
}

// Reset drops any buffered partial frame.
func (f *Framer) Reset() {
	f.mu.Lock()
	f.buf = nil
	f.mu.Unlock()
}
