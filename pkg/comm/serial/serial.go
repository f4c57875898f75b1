// Package serial provides the UART transport.
package serial

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/robotalks/laptimer/pkg/comm"
)

// DefaultBaudRate is the UART speed of the head.
const DefaultBaudRate = 115200

// Mode returns the 8N1 port mode at baud.
func Mode(baud int) *serial.Mode {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenPort opens a serial port as a byte stream.
func OpenPort(portName string, baud int) (serial.Port, error) {
	port, err := serial.Open(portName, Mode(baud))
	if err != nil {
		return nil, fmt.Errorf("open %s: %v", portName, err)
	}
	return port, nil
}

// Open opens a serial port as a Transport.
func Open(portName string, baud int) (*comm.Link, error) {
	port, err := OpenPort(portName, baud)
	if err != nil {
		return nil, err
	}
	return comm.NewLink(port), nil
}

// Ports lists the serial ports available.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
