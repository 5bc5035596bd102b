// pcap-replay replays a captured UDP sensor stream through the sync
// engine and prints summary statistics. Useful for reproducing field
// timing issues offline from a tcpdump capture.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/imu/collect"
	"github.com/banshee-data/inertial.report/internal/imu/syncer"
	"github.com/banshee-data/inertial.report/internal/imu/wire"
	"github.com/banshee-data/inertial.report/internal/timeutil"
)

var (
	pcapFile = flag.String("pcap", "", "Path to pcap file (required)")
	udpPort  = flag.Int("udp-port", 9001, "UDP destination port carrying sensor datagrams")
	stale    = flag.Bool("stale", true, "Enable stale detection during replay")
	pace     = flag.Bool("pace", false, "Replay at the captured packet cadence instead of full speed")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("missing required -pcap flag")
	}

	handle, err := pcap.OpenOffline(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open pcap: %v", err)
	}
	defer handle.Close()

	fanout := collect.NewFanout(imu.KindAttitude, imu.KindAccelerometer, imu.KindGyroscope)

	var synced, staleCount int
	sy, err := syncer.NewAttitudeAccelerometerGyroscopeSyncer(fanout, syncer.Options{
		StaleDetectionEnabled: *stale,
		OnSyncedMeasurements: func(_ *syncer.Syncer, sm *imu.SyncedMeasurement) {
			synced++
		},
		OnStaleMeasurements: func(_ *syncer.Syncer, _ imu.SensorKind, evicted []imu.Measurement) {
			staleCount += len(evicted)
		},
	})
	if err != nil {
		log.Fatalf("failed to build syncer: %v", err)
	}
	if ok, err := sy.Start(0); err != nil || !ok {
		log.Fatalf("syncer failed to start: %v", err)
	}

	var clock timeutil.Clock = timeutil.SystemClock{}
	var lastCaptured time.Time

	var packets, datagrams, events, dropped int
	src := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range src.Packets() {
		packets++
		if *pace {
			captured := packet.Metadata().Timestamp
			if !lastCaptured.IsZero() {
				clock.Sleep(captured.Sub(lastCaptured))
			}
			lastCaptured = captured
		}
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp := udpLayer.(*layers.UDP)
		if int(udp.DstPort) != *udpPort {
			continue
		}
		datagrams++
		evs, bad := wire.ParseDatagram(udp.Payload)
		dropped += bad
		for _, ev := range evs {
			events++
			fanout.Deliver(ev)
		}
	}
	sy.Stop()

	fmt.Printf("packets:   %d\n", packets)
	fmt.Printf("datagrams: %d (port %d)\n", datagrams, *udpPort)
	fmt.Printf("events:    %d (%d malformed lines dropped)\n", events, dropped)
	fmt.Printf("synced:    %d tuples\n", synced)
	fmt.Printf("stale:     %d evicted measurements\n", staleCount)
}
