// Package websocket carries the command protocol over websocket
// binary frames.
package websocket

import (
	"io"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

type session struct {
	conn *websocket.Conn
	done chan struct{}
}

// Endpoint is the head side byte stream over the most recently connected
// companion. A new connection replaces the previous one. Reads block
// while no companion is connected and writes are dropped.
type Endpoint struct {
	lock    sync.Mutex
	cur     *session
	changed chan struct{}
	closed  bool
}

// NewEndpoint creates an Endpoint.
func NewEndpoint() *Endpoint {
	return &Endpoint{changed: make(chan struct{})}
}

// Handler returns the http.Handler accepting companions.
func (e *Endpoint) Handler() websocket.Handler {
	return websocket.Handler(e.ServeWebsocket)
}

// ServeWebsocket attaches ws and blocks until it is replaced, fails or
// the Endpoint is closed.
func (e *Endpoint) ServeWebsocket(ws *websocket.Conn) {
	ws.PayloadType = websocket.BinaryFrame
	s := &session{conn: ws, done: make(chan struct{})}
	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		ws.Close()
		return
	}
	old := e.cur
	e.cur = s
	e.notifyLocked()
	e.lock.Unlock()
	if old != nil {
		e.drop(old)
	}
	glog.Infof("websocket: companion %s connected", ws.Request().RemoteAddr)
	<-s.done
	glog.Infof("websocket: companion %s disconnected", ws.Request().RemoteAddr)
}

func (e *Endpoint) notifyLocked() {
	close(e.changed)
	e.changed = make(chan struct{})
}

func (e *Endpoint) drop(s *session) {
	e.lock.Lock()
	if e.cur == s {
		e.cur = nil
	}
	select {
	case <-s.done:
		e.lock.Unlock()
		return
	default:
		close(s.done)
	}
	e.lock.Unlock()
	s.conn.Close()
}

// Read implements io.Reader.
func (e *Endpoint) Read(p []byte) (int, error) {
	for {
		e.lock.Lock()
		s, changed, closed := e.cur, e.changed, e.closed
		e.lock.Unlock()
		if closed {
			return 0, io.EOF
		}
		if s == nil {
			<-changed
			continue
		}
		n, err := s.conn.Read(p)
		if err != nil {
			glog.V(2).Infof("websocket: read: %v", err)
			e.drop(s)
		}
		if n > 0 {
			return n, nil
		}
	}
}

// Write implements io.Writer.
func (e *Endpoint) Write(p []byte) (int, error) {
	e.lock.Lock()
	s := e.cur
	e.lock.Unlock()
	if s == nil {
		glog.V(2).Infof("websocket: no companion, %d bytes dropped", len(p))
		return len(p), nil
	}
	if _, err := s.conn.Write(p); err != nil {
		glog.Warningf("websocket: write: %v", err)
		e.drop(s)
	}
	return len(p), nil
}

// Close implements io.Closer.
func (e *Endpoint) Close() error {
	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		return nil
	}
	e.closed = true
	s := e.cur
	e.notifyLocked()
	e.lock.Unlock()
	if s != nil {
		e.drop(s)
	}
	return nil
}

// Dial connects to a head as a companion.
func Dial(url, origin string) (*websocket.Conn, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}
