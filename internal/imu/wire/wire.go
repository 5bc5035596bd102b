// Package wire defines the line grammar shared by the serial and UDP
// sensor transports:
//
//	$IMU,<KIND>,<timestamp ns>,<accuracy>,v1,v2,...[*XX]
//
// KIND is one of ATT, ACC, GYR, GRV, MAG; accuracy is the numeric grade
// 0-3; values are decimal floats in the per-kind layout documented on
// collect.MeasurementFromRaw. The optional *XX suffix is an NMEA-style
// XOR checksum over the characters between '$' and '*'.
package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/imu/collect"
)

const prefix = "$IMU"

func kindTag(kind imu.SensorKind) string {
	switch kind {
	case imu.KindAttitude:
		return "ATT"
	case imu.KindAccelerometer:
		return "ACC"
	case imu.KindGyroscope:
		return "GYR"
	case imu.KindGravity:
		return "GRV"
	case imu.KindMagnetometer:
		return "MAG"
	default:
		return ""
	}
}

func checksum(payload string) byte {
	var sum byte
	for i := 0; i < len(payload); i++ {
		sum ^= payload[i]
	}
	return sum
}

// ParseLine parses one sentence into a raw event.
func ParseLine(line string) (collect.RawEvent, error) {
	var ev collect.RawEvent
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, prefix+",") {
		return ev, fmt.Errorf("wire: missing %s prefix: %q", prefix, line)
	}
	payload := line[1:] // checksum covers everything after '$'
	if star := strings.LastIndexByte(payload, '*'); star >= 0 {
		want, err := strconv.ParseUint(payload[star+1:], 16, 8)
		if err != nil {
			return ev, fmt.Errorf("wire: bad checksum field: %q", line)
		}
		if got := checksum(payload[:star]); got != byte(want) {
			return ev, fmt.Errorf("wire: checksum mismatch: got %02X want %02X", got, byte(want))
		}
		payload = payload[:star]
	}

	fields := strings.Split(payload, ",")
	// prefix, kind, timestamp, accuracy, at least one value
	if len(fields) < 5 {
		return ev, fmt.Errorf("wire: short sentence: %q", line)
	}
	ev.Kind = imu.ParseSensorKind(fields[1])
	if ev.Kind == imu.KindUnknown {
		return ev, fmt.Errorf("wire: unknown kind %q", fields[1])
	}
	ts, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return ev, fmt.Errorf("wire: bad timestamp %q: %w", fields[2], err)
	}
	ev.Timestamp = ts
	acc, err := strconv.Atoi(fields[3])
	if err != nil || !imu.Accuracy(acc).Valid() {
		return ev, fmt.Errorf("wire: bad accuracy %q", fields[3])
	}
	ev.Accuracy = imu.Accuracy(acc)
	ev.Values = make([]float64, 0, len(fields)-4)
	for _, f := range fields[4:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return ev, fmt.Errorf("wire: bad value %q: %w", f, err)
		}
		ev.Values = append(ev.Values, v)
	}
	return ev, nil
}

// ParseDatagram parses a newline-separated batch of sentences, skipping
// blank and malformed lines. Returns the parsed events and the number of
// lines dropped.
func ParseDatagram(b []byte) ([]collect.RawEvent, int) {
	var events []collect.RawEvent
	dropped := 0
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ev, err := ParseLine(line)
		if err != nil {
			dropped++
			continue
		}
		events = append(events, ev)
	}
	return events, dropped
}

// FormatEvent renders ev as a checksummed sentence without a trailing
// newline. Used by the replay tools and tests.
func FormatEvent(ev collect.RawEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "IMU,%s,%d,%d", kindTag(ev.Kind), ev.Timestamp, int(ev.Accuracy))
	for _, v := range ev.Values {
		fmt.Fprintf(&b, ",%g", v)
	}
	payload := b.String()
	return fmt.Sprintf("$%s*%02X", payload, checksum(payload))
}
