// Package netsource exposes a UDP sensor stream as a collect.Source.
// Phones and embedded bridges commonly ship IMU data as line-oriented
// datagrams; each datagram carries one or more wire-grammar sentences.
package netsource

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/imu/collect"
	"github.com/banshee-data/inertial.report/internal/imu/wire"
	"github.com/banshee-data/inertial.report/internal/monitoring"
)

const maxDatagram = 64 * 1024

// UDPSource reads sensor datagrams from a UDP socket and implements
// collect.Source for the configured kinds.
type UDPSource struct {
	*collect.Fanout
	conn net.PacketConn
}

// Listen binds a UDP socket on addr and returns a source advertising the
// given kinds.
func Listen(addr string, kinds ...imu.SensorKind) (*UDPSource, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("netsource: listen %s: %w", addr, err)
	}
	return New(conn, kinds...), nil
}

// New wraps an already-bound packet connection. Used by Listen and by
// tests with a net.Pipe-style connection.
func New(conn net.PacketConn, kinds ...imu.SensorKind) *UDPSource {
	return &UDPSource{Fanout: collect.NewFanout(kinds...), conn: conn}
}

// Run reads datagrams until the context is cancelled or the socket is
// closed. All listener callbacks are invoked from this goroutine.
func (u *UDPSource) Run(ctx context.Context) error {
	defer u.SetAvailable(false)
	buf := make([]byte, maxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, _, err := u.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			return fmt.Errorf("netsource: read: %w", err)
		}
		events, dropped := wire.ParseDatagram(buf[:n])
		if dropped > 0 {
			monitoring.Debugf("netsource: dropped %d malformed lines", dropped)
		}
		for _, ev := range events {
			u.Deliver(ev)
		}
	}
}

// Close closes the socket, which also unblocks Run.
func (u *UDPSource) Close() error {
	u.SetAvailable(false)
	return u.conn.Close()
}
