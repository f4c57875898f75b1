package comm

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/laptimer/pkg/framework"
)

// RxBufferSize bounds bytes buffered between reads by the poll loop,
// later bytes are dropped as overruns.
const RxBufferSize = 256

// Link adapts a blocking io.ReadWriter (serial port, socket) into a
// Transport. Background goroutines move bytes between the stream and
// the buffers polled by the Framer.
type Link struct {
	ReadWriter io.ReadWriter
	// Notify is called from the reader goroutine when bytes arrive.
	Notify func()

	lock     sync.Mutex
	rx       []byte
	tx       []byte
	txBusy   bool
	txSignal chan struct{}
	overruns int
}

// NewLink creates a Link.
func NewLink(rw io.ReadWriter) *Link {
	return &Link{
		ReadWriter: rw,
		rx:         make([]byte, 0, RxBufferSize),
		txSignal:   make(chan struct{}, 1),
	}
}

// BytesAvailable implements Transport.
func (l *Link) BytesAvailable() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.rx)
}

// ReadBytes implements Transport.
func (l *Link) ReadBytes(p []byte) int {
	l.lock.Lock()
	defer l.lock.Unlock()
	n := copy(p, l.rx)
	l.rx = append(l.rx[:0], l.rx[n:]...)
	return n
}

// WriteBytes implements Transport.
func (l *Link) WriteBytes(p []byte) {
	l.lock.Lock()
	l.tx = append(l.tx, p...)
	l.lock.Unlock()
	select {
	case l.txSignal <- struct{}{}:
	default:
	}
}

// TxIdle implements Transport.
func (l *Link) TxIdle() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.tx) == 0 && !l.txBusy
}

// Overruns returns the number of reads that didn't fit the rx buffer.
func (l *Link) Overruns() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.overruns
}

// AddToLoop implements LoopAdder. Arriving bytes wake up the loop.
func (l *Link) AddToLoop(loop *fx.Loop) {
	if l.Notify == nil {
		l.Notify = loop.TriggerNext
	}
	loop.AddRunnable(fx.NamedRun("link", l))
}

// Run implements Runnable.
func (l *Link) Run(ctx context.Context) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.writeLoop(wctx)
	if closer, ok := l.ReadWriter.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, l.readLoop)
	}
	return l.readLoop()
}

func (l *Link) readLoop() error {
	var buf [64]byte
	for {
		n, err := l.ReadWriter.Read(buf[:])
		if n > 0 {
			l.lock.Lock()
			if space := RxBufferSize - len(l.rx); n > space {
				l.overruns++
				glog.Warningf("link: rx overrun, %d bytes dropped", n-space)
				n = space
			}
			l.rx = append(l.rx, buf[:n]...)
			l.lock.Unlock()
			if notify := l.Notify; notify != nil {
				notify()
			}
		}
		if err != nil {
			return err
		}
	}
}

func (l *Link) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.txSignal:
		}
		for {
			l.lock.Lock()
			buf := l.tx
			if len(buf) == 0 {
				l.lock.Unlock()
				break
			}
			l.tx, l.txBusy = nil, true
			l.lock.Unlock()

			_, err := l.ReadWriter.Write(buf)

			l.lock.Lock()
			l.txBusy = false
			l.lock.Unlock()
			if err != nil {
				glog.Errorf("link: write: %v", err)
				return
			}
		}
	}
}
