// Package companion talks to a timing head from the companion side.
package companion

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/laptimer/pkg/comm"
	"github.com/robotalks/laptimer/pkg/dispatch"
	fx "github.com/robotalks/laptimer/pkg/framework"
	"github.com/robotalks/laptimer/pkg/msgs"
)

// EventQueueSize bounds undelivered events, later ones are dropped.
const EventQueueSize = 16

// Result is the result of a request.
type Result struct {
	Err    error
	Status uint16
	// Data is the payload, or the concatenated entries of all packets
	// for list requests.
	Data []byte
}

// Request is a pending request waiting for its response.
type Request struct {
	cmd      comm.CommandType
	list     bool
	data     []byte
	resultCh chan Result
	next     *Request
}

// Cmd returns the command type of the request.
func (r *Request) Cmd() comm.CommandType {
	return r.cmd
}

// ResultChan returns the chan to retrieve result.
func (r *Request) ResultChan() <-chan Result {
	return r.resultCh
}

// Client sends commands to a head and matches responses by command
// type. Responses nobody waits for are delivered as events.
type Client struct {
	Stream io.ReadWriter

	eventCh  chan *comm.Frame
	reqsHead *Request
	reqsTail *Request
	reqsLock sync.Mutex
	writeMu  sync.Mutex
}

// NewClient creates a Client over a byte stream.
func NewClient(stream io.ReadWriter) *Client {
	return &Client{
		Stream:  stream,
		eventCh: make(chan *comm.Frame, EventQueueSize),
	}
}

// EventChan delivers unsolicited pushes and scan progress packets.
func (c *Client) EventChan() <-chan *comm.Frame {
	return c.eventCh
}

func isList(cmd comm.CommandType) bool {
	switch cmd {
	case comm.CmdListAllowedDevices, comm.CmdListDetectedDevices, comm.CmdGetAllLaps:
		return true
	}
	return false
}

// DoWith sends a command and expects the result in the provided chan.
func (c *Client) DoWith(cmd dispatch.Command, ch chan Result) *Request {
	req := &Request{cmd: cmd.Type(), list: isList(cmd.Type()), resultCh: ch}
	encoded, err := dispatch.Encode(cmd).AppendCommand(nil)
	if err != nil {
		ch <- Result{Err: err}
		return req
	}

	c.reqsLock.Lock()
	if c.reqsHead == nil {
		c.reqsHead = req
	} else {
		c.reqsTail.next = req
	}
	c.reqsTail = req
	c.reqsLock.Unlock()

	c.writeMu.Lock()
	_, err = c.Stream.Write(encoded)
	c.writeMu.Unlock()
	if err != nil && c.remove(req) {
		ch <- Result{Err: err}
	}
	return req
}

// Do sends a command and returns a Request for result.
func (c *Client) Do(cmd dispatch.Command) *Request {
	return c.DoWith(cmd, make(chan Result, 1))
}

// Call sends a command and waits for its result.
func (c *Client) Call(ctx context.Context, cmd dispatch.Command) Result {
	req := c.Do(cmd)
	select {
	case r := <-req.resultCh:
		return r
	case <-ctx.Done():
		if !c.remove(req) {
			return <-req.resultCh
		}
		return Result{Err: ctx.Err()}
	}
}

// remove drops req from the pending list, it reports false when a
// result was already delivered.
func (c *Client) remove(req *Request) bool {
	c.reqsLock.Lock()
	defer c.reqsLock.Unlock()
	var prev *Request
	for curr := c.reqsHead; curr != nil; prev, curr = curr, curr.next {
		if curr != req {
			continue
		}
		if prev == nil {
			c.reqsHead = curr.next
		} else {
			prev.next = curr.next
		}
		if c.reqsTail == curr {
			c.reqsTail = prev
		}
		curr.next = nil
		return true
	}
	return false
}

// HandleResponse matches a response frame with pending requests.
func (c *Client) HandleResponse(f *comm.Frame) {
	switch f.Status {
	case msgs.StatusProgress:
		c.emit(f)
		return
	case msgs.StatusPage:
		c.handlePage(f)
		return
	}

	c.reqsLock.Lock()
	head, curr := c.reqsHead, c.reqsHead
	for ; curr != nil; curr = curr.next {
		if curr.cmd == f.Type {
			break
		}
	}
	if curr != nil {
		c.reqsHead = curr.next
		if c.reqsHead == nil {
			c.reqsTail = nil
		}
		curr.next = nil
	}
	c.reqsLock.Unlock()
	if curr == nil {
		c.emit(f)
		return
	}
	for ; head != curr; head = head.next {
		head.resultCh <- Result{Err: ErrNoReply}
	}
	if f.Status != msgs.StatusOK {
		curr.resultCh <- Result{Err: &StatusError{Cmd: f.Type, Status: f.Status}, Status: f.Status}
		return
	}
	curr.resultCh <- Result{Status: f.Status, Data: f.Data}
}

func (c *Client) handlePage(f *comm.Frame) {
	hdr, entries, err := msgs.DecodePage(f.Data)
	if err != nil {
		glog.Warningf("companion: %s: %v", f, err)
		return
	}
	if hdr.Packet >= hdr.Total {
		glog.V(2).Infof("companion: trailing packet %d/%d of %s ignored", hdr.Packet, hdr.Total, f.Type)
		return
	}

	c.reqsLock.Lock()
	var req *Request
	for curr := c.reqsHead; curr != nil; curr = curr.next {
		if curr.list && curr.cmd == f.Type {
			req = curr
			break
		}
	}
	if req == nil {
		c.reqsLock.Unlock()
		glog.V(2).Infof("companion: unexpected packet %s", f)
		return
	}
	req.data = append(req.data, entries...)
	done := hdr.Packet+1 == hdr.Total
	c.reqsLock.Unlock()

	if done && c.remove(req) {
		req.resultCh <- Result{Status: msgs.StatusOK, Data: req.data}
	}
}

func (c *Client) emit(f *comm.Frame) {
	select {
	case c.eventCh <- f:
	default:
		glog.Warningf("companion: event %s dropped", f)
	}
}

// Run reads responses until the stream fails or ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	defer c.failAll(ErrClosed)
	if closer, ok := c.Stream.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, c.readLoop)
	}
	return c.readLoop()
}

func (c *Client) readLoop() error {
	var buf []byte
	var chunk [256]byte
	for {
		n, err := c.Stream.Read(chunk[:])
		buf = append(buf, chunk[:n]...)
		buf = c.parse(buf)
		if err != nil {
			return err
		}
	}
}

// parse consumes complete frames at the start of buf.
func (c *Client) parse(buf []byte) []byte {
	for len(buf) > 0 {
		f, n, err := comm.ParseFrame(buf)
		switch err {
		case nil:
			glog.V(2).Infof("companion: received %s", f)
			c.HandleResponse(f)
		case comm.ErrIncomplete:
			return buf
		case comm.ErrChecksum:
			glog.Warningf("companion: checksum mismatch on %s, dropped", f)
		default:
			glog.Warningf("companion: %v, byte dropped", err)
			n = 1
		}
		buf = buf[n:]
	}
	return buf
}

func (c *Client) failAll(err error) {
	c.reqsLock.Lock()
	head := c.reqsHead
	c.reqsHead, c.reqsTail = nil, nil
	c.reqsLock.Unlock()
	for ; head != nil; head = head.next {
		head.resultCh <- Result{Err: err}
	}
}
