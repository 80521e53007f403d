package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

// PortOpener opens the device at path. It is a variable so tests can swap
// in a fake device.
type PortOpener func(path string, mode *serial.Mode) (SerialPorter, error)

var openPort PortOpener = func(path string, mode *serial.Mode) (SerialPorter, error) {
	return serial.Open(path, mode)
}

// NewRealSerialMux creates a SerialMux backed by the UART at path.
func NewRealSerialMux(path string, opts PortOptions, queueSize int) (*SerialMux[SerialPorter], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := openPort(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	return NewSerialMux(port, queueSize), nil
}
