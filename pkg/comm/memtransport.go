package comm

import "sync"

// MemTransport is an in-memory Transport. Bytes given to Inject are
// read by the Framer, bytes written are collected for TakeOutput.
// Transmission completes at once unless held with SetHold.
type MemTransport struct {
	lock sync.Mutex
	hold bool
	in   []byte
	out  []byte
}

// Inject appends bytes to the inbound side.
func (m *MemTransport) Inject(p ...byte) {
	m.lock.Lock()
	m.in = append(m.in, p...)
	m.lock.Unlock()
}

// TakeOutput returns and clears the bytes written so far.
func (m *MemTransport) TakeOutput() []byte {
	m.lock.Lock()
	defer m.lock.Unlock()
	out := m.out
	m.out = nil
	return out
}

// BytesAvailable implements Transport.
func (m *MemTransport) BytesAvailable() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.in)
}

// ReadBytes implements Transport.
func (m *MemTransport) ReadBytes(p []byte) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	n := copy(p, m.in)
	m.in = m.in[n:]
	return n
}

// WriteBytes implements Transport.
func (m *MemTransport) WriteBytes(p []byte) {
	m.lock.Lock()
	m.out = append(m.out, p...)
	m.lock.Unlock()
}

// TxIdle implements Transport.
func (m *MemTransport) TxIdle() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return !m.hold
}

// SetHold controls whether transmission appears to be in progress.
func (m *MemTransport) SetHold(hold bool) {
	m.lock.Lock()
	m.hold = hold
	m.lock.Unlock()
}
