// Package serialsource exposes a serial-attached IMU as a collect.Source.
// The device streams wire-grammar sentences, one per line; the read loop
// parses and fans them out to registered listeners on a single goroutine.
package serialsource

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/imu/collect"
	"github.com/banshee-data/inertial.report/internal/imu/wire"
	"github.com/banshee-data/inertial.report/internal/monitoring"
)

// DefaultBaudRate matches the devices this was built against.
const DefaultBaudRate = 115200

// Porter is the minimal serial port surface. The abstraction enables
// unit testing without real serial hardware.
type Porter interface {
	io.ReadWriteCloser
}

// Source reads wire sentences from a serial port and implements
// collect.Source for the configured kinds.
type Source struct {
	*collect.Fanout
	port Porter
}

// Open opens the serial device at path and returns a source advertising
// the given kinds.
func Open(path string, baudRate int, kinds ...imu.SensorKind) (*Source, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(path, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("serialsource: open %s: %w", path, err)
	}
	return New(port, kinds...), nil
}

// New wraps an already-open port. Used by Open and by tests with an
// in-memory Porter.
func New(port Porter, kinds ...imu.SensorKind) *Source {
	return &Source{Fanout: collect.NewFanout(kinds...), port: port}
}

// Run reads sentences until the context is cancelled or the port fails.
// All listener callbacks are invoked from this goroutine.
func (s *Source) Run(ctx context.Context) error {
	defer s.SetAvailable(false)
	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		ev, err := wire.ParseLine(line)
		if err != nil {
			monitoring.Debugf("serialsource: dropped line: %v", err)
			continue
		}
		s.Deliver(ev)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("serialsource: read: %w", err)
	}
	return ctx.Err()
}

// Close closes the underlying port, which also unblocks Run.
func (s *Source) Close() error {
	s.SetAvailable(false)
	return s.port.Close()
}
