package sensor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

// Line is a serial modem status input used as a sensor.
type Line int

// Modem status lines.
const (
	LineNone Line = iota
	LineCTS
	LineDSR
	LineRI
	LineDCD
)

func (l Line) String() string {
	switch l {
	case LineCTS:
		return "cts"
	case LineDSR:
		return "dsr"
	case LineRI:
		return "ri"
	case LineDCD:
		return "dcd"
	}
	return "none"
}

// ParseLine parses a line name, case insensitive.
func ParseLine(s string) (Line, error) {
	for _, l := range []Line{LineNone, LineCTS, LineDSR, LineRI, LineDCD} {
		if strings.EqualFold(l.String(), s) {
			return l, nil
		}
	}
	return LineNone, fmt.Errorf("unknown modem line %q", s)
}

func (l Line) level(bits *serial.ModemStatusBits) bool {
	switch l {
	case LineCTS:
		return bits.CTS
	case LineDSR:
		return bits.DSR
	case LineRI:
		return bits.RI
	case LineDCD:
		return bits.DCD
	}
	return false
}

// ModemPort is the part of serial.Port the Gate needs.
type ModemPort interface {
	GetModemStatusBits() (*serial.ModemStatusBits, error)
	Close() error
}

// DefaultMinTriggerInterval is the debounce window in ticks (2s).
const DefaultMinTriggerInterval uint32 = 20000

// Gate turns rising edges on modem status lines into sensor captures.
type Gate struct {
	Port               ModemPort
	Ticker             Ticker
	Inputs             *Inputs
	StartLine          Line
	FinishLine         Line
	PollInterval       time.Duration
	MinTriggerInterval uint32

	levels [2]bool
	fired  [2]uint32
	armed  [2]bool
}

// OpenGate opens a serial port for its modem lines only.
func OpenGate(portName string, inputs *Inputs, ticker Ticker) (*Gate, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: 9600})
	if err != nil {
		return nil, fmt.Errorf("open gate %s: %v", portName, err)
	}
	return &Gate{
		Port:               port,
		Ticker:             ticker,
		Inputs:             inputs,
		StartLine:          LineCTS,
		FinishLine:         LineDCD,
		PollInterval:       time.Millisecond,
		MinTriggerInterval: DefaultMinTriggerInterval,
	}, nil
}

// Run implements Runnable.
func (g *Gate) Run(ctx context.Context) error {
	defer g.Port.Close()
	interval := g.PollInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			bits, err := g.Port.GetModemStatusBits()
			if err != nil {
				glog.Errorf("gate: read modem status: %v", err)
				return err
			}
			g.sample(bits, g.Ticker.Ticks())
		}
	}
}

func (g *Gate) sample(bits *serial.ModemStatusBits, ts uint32) {
	g.edge(0, g.StartLine, bits, ts, &g.Inputs.Start)
	g.edge(1, g.FinishLine, bits, ts, &g.Inputs.Finish)
}

func (g *Gate) edge(n int, line Line, bits *serial.ModemStatusBits, ts uint32, slot *Slot) {
	if line == LineNone {
		return
	}
	level := line.level(bits)
	rising := level && !g.levels[n]
	g.levels[n] = level
	if !rising {
		return
	}
	if g.armed[n] && ts-g.fired[n] < g.MinTriggerInterval {
		glog.V(3).Infof("gate: %s bounce at %d ignored", line, ts)
		return
	}
	g.fired[n], g.armed[n] = ts, true
	glog.V(2).Infof("gate: %s triggered at %d", line, ts)
	slot.Capture(ts)
}
