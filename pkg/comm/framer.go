package comm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/golang/glog"

	fx "github.com/robotalks/laptimer/pkg/framework"
)

// Transport is an ordered byte stream polled by the Framer.
// None of the methods may block.
type Transport interface {
	// BytesAvailable returns the number of received bytes buffered.
	BytesAvailable() int
	// ReadBytes moves up to len(p) buffered bytes into p.
	ReadBytes(p []byte) int
	// WriteBytes queues p for transmission.
	WriteBytes(p []byte)
	// TxIdle reports all queued bytes have been transmitted.
	TxIdle() bool
}

// State is the state of the Framer.
type State int

// Framer states.
const (
	StateIdle State = iota
	StateReceiving
	StateWaiting
	StateSending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateReceiving:
		return "Receiving"
	case StateWaiting:
		return "Waiting"
	case StateSending:
		return "Sending"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Timeouts in milliseconds.
const (
	ReceiveTimeoutMs uint32 = 200
	WaitTimeoutMs    uint32 = 1000
	SendTimeoutMs    uint32 = 10000
)

// ErrBusy is returned by SendResponse when the link can't take a response.
var ErrBusy = errors.New("framer busy")

// Framer recognizes command frames in the inbound stream and sends
// response frames. It is advanced by Poll and never blocks.
type Framer struct {
	Transport Transport
	Clock     fx.Clock

	state   State
	entered uint32

	rx    [MaxFrameSize]byte
	rxLen int
	drop  [64]byte
	tx    []byte

	command *Frame
	fresh   bool
	last    bool
}

// NewFramer creates a Framer in Idle.
func NewFramer(t Transport, clock fx.Clock) *Framer {
	return &Framer{
		Transport: t,
		Clock:     clock,
		entered:   clock.NowMs(),
		tx:        make([]byte, 0, HeaderSize+MaxDataLength),
	}
}

// State returns the current state.
func (f *Framer) State() State {
	return f.state
}

// Poll advances the state machine once.
func (f *Framer) Poll() {
	now := f.Clock.NowMs()
	switch f.state {
	case StateIdle:
		f.idle(now)
	case StateReceiving:
		f.receiving(now)
	case StateWaiting:
		f.flush()
		if fx.ElapsedMs(now, f.entered) >= WaitTimeoutMs {
			glog.Warningf("framer: no response to %s within %dms", f.command, WaitTimeoutMs)
			f.reset(now)
		}
	case StateSending:
		f.flush()
		if f.last && f.Transport.TxIdle() {
			glog.V(2).Info("framer: response sent")
			f.reset(now)
		} else if fx.ElapsedMs(now, f.entered) >= SendTimeoutMs {
			glog.Warningf("framer: sending aborted after %dms", SendTimeoutMs)
			f.reset(now)
		}
	}
}

// CommandAvailable reports a validated command not taken yet.
func (f *Framer) CommandAvailable() bool {
	return f.fresh
}

// TakeCommand returns the validated command once.
func (f *Framer) TakeCommand() *Frame {
	if !f.fresh {
		return nil
	}
	f.fresh = false
	return f.command
}

// Release returns to Idle when a command needs no response.
func (f *Framer) Release() {
	if f.state == StateWaiting {
		f.reset(f.Clock.NowMs())
	}
}

// CanSendResponse reports the transport drained and no frame arriving.
func (f *Framer) CanSendResponse() bool {
	return f.state != StateReceiving && f.Transport.TxIdle()
}

// SendResponse transmits resp. last marks the final packet of the
// response, the Framer returns to Idle once it is on the wire.
func (f *Framer) SendResponse(resp *Frame, last bool) error {
	if !f.CanSendResponse() {
		return ErrBusy
	}
	buf, err := resp.AppendResponse(f.tx[:0])
	if err != nil {
		return err
	}
	f.tx = buf
	glog.V(2).Infof("framer: send %s last=%v", resp, last)
	f.Transport.WriteBytes(buf)
	f.last = last
	if f.state != StateSending {
		f.setState(StateSending, f.Clock.NowMs())
	}
	return nil
}

func (f *Framer) idle(now uint32) {
	pending := f.rxLen > 0
	f.receive()
	f.skipToSync()
	switch {
	case f.rxLen == 0:
	case f.rxLen == 1:
		// a lone sync byte expires like a partial frame.
		if !pending {
			f.entered = now
		} else if fx.ElapsedMs(now, f.entered) >= ReceiveTimeoutMs {
			glog.V(2).Info("framer: lone sync byte dropped")
			f.rxLen = 0
		}
	default:
		f.setState(StateReceiving, now)
		f.receiving(now)
	}
}

func (f *Framer) receiving(now uint32) {
	f.receive()
	frame, size, err := ParseFrame(f.rx[1:f.rxLen])
	switch err {
	case nil:
		if extra := f.rxLen - 1 - size; extra > 0 {
			glog.V(2).Infof("framer: %d bytes after frame dropped", extra)
		}
		glog.V(2).Infof("framer: received %s", frame)
		f.rxLen = 0
		f.command, f.fresh = frame, true
		f.setState(StateWaiting, now)
	case ErrIncomplete:
		if fx.ElapsedMs(now, f.entered) >= ReceiveTimeoutMs {
			glog.Warningf("framer: receive timeout, %d bytes dropped", f.rxLen)
			f.reset(now)
		}
	case ErrChecksum:
		glog.Warningf("framer: checksum mismatch on %s, dropped", frame)
		f.reset(now)
	default:
		glog.Warningf("framer: %v, %d bytes dropped", err, f.rxLen)
		f.reset(now)
	}
}

func (f *Framer) receive() {
	if f.Transport.BytesAvailable() == 0 || f.rxLen >= len(f.rx) {
		return
	}
	f.rxLen += f.Transport.ReadBytes(f.rx[f.rxLen:])
}

func (f *Framer) skipToSync() {
	n := bytes.IndexByte(f.rx[:f.rxLen], SyncByte)
	switch {
	case n < 0:
		if f.rxLen > 0 {
			glog.V(3).Infof("framer: %d bytes before sync dropped", f.rxLen)
		}
		f.rxLen = 0
	case n > 0:
		glog.V(3).Infof("framer: %d bytes before sync dropped", n)
		f.rxLen = copy(f.rx[:], f.rx[n:f.rxLen])
	}
}

// flush discards inbound bytes while a command is being answered.
func (f *Framer) flush() {
	for f.Transport.BytesAvailable() > 0 {
		if f.Transport.ReadBytes(f.drop[:]) == 0 {
			return
		}
	}
}

func (f *Framer) reset(now uint32) {
	f.rxLen = 0
	f.command, f.fresh, f.last = nil, false, false
	f.setState(StateIdle, now)
}

func (f *Framer) setState(s State, now uint32) {
	if s != f.state {
		glog.V(2).Infof("framer: %s -> %s", f.state, s)
		f.state = s
	}
	f.entered = now
}
