package dispatch

import (
	"github.com/robotalks/laptimer/pkg/comm"
	"github.com/robotalks/laptimer/pkg/msgs"
)

// EntryFunc appends the entry in slot i to b. Slots without an entry
// return b unchanged.
type EntryFunc func(i int, b []byte) []byte

// Pager splits a slot table into list packets. The cursor sweeps
// every slot, so the final packet may carry no entries when the
// entries fill the previous packets exactly.
type Pager struct {
	Cmd       comm.CommandType
	EntrySize int
	Total     int
	Slots     int
	Entry     EntryFunc

	packet int
	cursor int
}

// EntriesPerPacket returns how many entries of size fit one packet.
func EntriesPerPacket(size int) int {
	return (comm.MaxDataLength - msgs.PageHeaderSize) / size
}

// PacketCount returns the number of packets announced for count entries.
func PacketCount(count, size int) int {
	per := EntriesPerPacket(size)
	total := (count + per - 1) / per
	if total < 1 {
		total = 1
	}
	return total
}

// NewPager creates a Pager announcing count entries in slots table slots.
func NewPager(cmd comm.CommandType, size, count, slots int, entry EntryFunc) *Pager {
	return &Pager{
		Cmd:       cmd,
		EntrySize: size,
		Total:     PacketCount(count, size),
		Slots:     slots,
		Entry:     entry,
	}
}

// Done reports all slots were swept.
func (p *Pager) Done() bool {
	return p.cursor >= p.Slots
}

// Next builds the next packet, last is set once all slots were swept.
func (p *Pager) Next() (f *comm.Frame, last bool) {
	hdr := msgs.PageHeader{Packet: uint8(p.packet), Total: uint8(p.Total)}
	data := hdr.Append(make([]byte, 0, comm.MaxDataLength))
	p.packet++
	for comm.MaxDataLength-len(data) >= p.EntrySize && p.cursor < p.Slots {
		data = p.Entry(p.cursor, data)
		p.cursor++
	}
	f = &comm.Frame{Status: msgs.StatusPage, Type: p.Cmd, Data: data}
	return f, p.Done()
}
