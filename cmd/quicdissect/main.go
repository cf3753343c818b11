// Command quicdissect prints the QUIC packet headers found in the UDP
// datagrams of a PCAP capture, then summarizes the datagram sizes.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/bassosimone/quicwire"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/montanaflynn/stats"
)

// dissectDatagram parses one UDP payload as a QUIC packet and logs
// what the header codec can see before decryption.
func dissectDatagram(payload []byte, dcidLen int) {
	hdr, err := quicwire.ParsePacket(payload, dcidLen, log.Log)
	switch {
	case errors.Is(err, quicwire.ErrUnsupportedVersion):
		log.Infof(
			"quicdissect: long header with unknown version dcid=%s scid=%s",
			hex.EncodeToString(hdr.DCID), hex.EncodeToString(hdr.SCID),
		)
		return

	case err != nil:
		log.Debugf("quicdissect: not a parseable QUIC packet: %s", err.Error())
		return
	}

	log.Infof(
		"quicdissect: %s packet version=%#x dcid=%s pnoffset=%d end=%d",
		hdr.Level, hdr.Version, hex.EncodeToString(hdr.DCID),
		hdr.PNOffset, hdr.PacketEnd,
	)
}

func main() {
	file := flag.String("file", "capture.pcap", "PCAP file to read")
	dcidLen := flag.Int("dcid-len", 8, "configured length of short-header DCIDs")
	verbose := flag.Bool("verbose", false, "emit debug logs")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	filep, err := os.Open(*file)
	if err != nil {
		log.WithError(err).Fatal("os.Open")
	}
	defer filep.Close()

	reader, err := pcapgo.NewReader(filep)
	if err != nil {
		log.WithError(err).Fatal("pcapgo.NewReader")
	}

	var sizes []float64
	for {
		data, _, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.WithError(err).Fatal("reader.ReadPacketData")
		}

		// we only care about UDP datagrams
		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.Lazy)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		payload := udpLayer.(*layers.UDP).Payload

		dissectDatagram(payload, *dcidLen)
		sizes = append(sizes, float64(len(payload)))
	}

	if len(sizes) < 1 {
		log.Warn("quicdissect: no UDP datagrams in capture")
		return
	}

	mean, err := stats.Mean(sizes)
	if err != nil {
		log.WithError(err).Fatal("stats.Mean")
	}
	p90, err := stats.Percentile(sizes, 90)
	if err != nil {
		log.WithError(err).Fatal("stats.Percentile")
	}

	fmt.Printf("datagrams (count),mean size (byte),p90 size (byte)\n")
	fmt.Printf("%d,%f,%f\n", len(sizes), mean, p90)
}
