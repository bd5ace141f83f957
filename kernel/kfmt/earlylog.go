package kfmt

import "io"

// earlyLogSize bounds how much Printf output can accumulate before the boot
// sequence registers an output sink. Must be a power of two.
const earlyLogSize = 2048

// logRing is a fixed-size ring that buffers log output emitted while no
// output sink is registered. When the ring overflows the oldest bytes are
// dropped so the most recent output survives until a sink drains it.
type logRing struct {
	data [earlyLogSize]byte

	// read and write are free-running byte counters; the ring slot is
	// their value masked by the ring size.
	read, write uint64
}

// Write appends p to the ring, evicting the oldest bytes on overflow.
func (r *logRing) Write(p []byte) (int, error) {
	for _, b := range p {
		r.data[r.write&(earlyLogSize-1)] = b
		r.write++
		if r.write-r.read > earlyLogSize {
			r.read++
		}
	}

	return len(p), nil
}

// Read drains up to len(p) buffered bytes into p in write order. An empty
// ring reports io.EOF.
func (r *logRing) Read(p []byte) (int, error) {
	if r.read == r.write {
		return 0, io.EOF
	}

	var n int
	for ; n < len(p) && r.read != r.write; n++ {
		p[n] = r.data[r.read&(earlyLogSize-1)]
		r.read++
	}

	return n, nil
}
