package distsensor

import (
	"context"
	"fmt"
	"io"
	"log"

	"go.bug.st/serial"
)

const (
	frameHeader    byte = 0x59
	frameBodyBytes      = 8 // second header(1) + dist(2) + amp(2) + temp(2) + checksum(1)
)

// TFLuna reads distance frames from a TF-Luna LiDAR module over a 115200
// 8N1 UART, per spec §6: each 9-byte frame is two header bytes (0x59 0x59),
// little-endian dist (centimeters), amp and temp fields, and a trailing
// checksum byte (low byte of the sum of bytes 0-7). Checksum failures are
// counted, logged, and resynchronized past rather than treated as fatal.
type TFLuna struct {
	port           io.Reader
	closer         io.Closer
	ChecksumErrors uint64
}

// OpenTFLuna opens the named serial device (e.g. "/dev/ttyUSB0") with the
// TF-Luna's fixed line settings.
func OpenTFLuna(name string) (*TFLuna, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("distsensor: open %s: %w", name, err)
	}
	return &TFLuna{port: port, closer: port}, nil
}

// newTFLunaFromReader wires an arbitrary byte stream in place of a real
// serial port, for testing the framing and checksum logic.
func newTFLunaFromReader(r io.Reader) *TFLuna {
	return &TFLuna{port: r}
}

// Close releases the underlying serial port.
func (t *TFLuna) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// GetReading synchronizes on the 0x59 frame header, reads the remaining 8
// bytes, verifies the checksum, and converts the distance field from
// centimeters to millimeters. On checksum mismatch it logs, counts the
// failure, and resynchronizes to the next header rather than returning.
func (t *TFLuna) GetReading(ctx context.Context) (DistanceReading, error) {
	for {
		if err := ctx.Err(); err != nil {
			return DistanceReading{}, err
		}

		frame, err := t.readFrame()
		if err != nil {
			return DistanceReading{}, err
		}

		// frame[0] is the second 0x59 byte, frame[1:7] the 6 little-endian
		// data bytes (dist_lo dist_hi amp_lo amp_hi temp_lo temp_hi), frame[7]
		// the checksum.
		if !checksumOK(frame) {
			t.ChecksumErrors++
			log.Printf("distsensor: %v (count=%d), resyncing", ErrChecksumFailed, t.ChecksumErrors)
			continue
		}

		distCM := uint32(frame[1]) | uint32(frame[2])<<8
		return DistanceReading{DistMM: distCM * 10}, nil
	}
}

// readFrame byte-scans for the first 0x59 header byte, then reads the
// remaining 8 bytes of the frame (second header byte, 6 data bytes, and the
// checksum byte), per spec §6.
func (t *TFLuna) readFrame() ([]byte, error) {
	var b [1]byte
	for {
		if _, err := io.ReadFull(t.port, b[:]); err != nil {
			return nil, fmt.Errorf("distsensor: read header: %w", err)
		}
		if b[0] == frameHeader {
			break
		}
	}

	rest := make([]byte, frameBodyBytes)
	if _, err := io.ReadFull(t.port, rest); err != nil {
		return nil, fmt.Errorf("distsensor: read body: %w", err)
	}
	return rest, nil
}

// checksumOK verifies the trailing checksum byte against the low byte of
// the sum of the preceding 8 bytes (both header bytes plus the 6 data
// bytes), per spec §6. frame[0] is the second header byte; the first header
// byte was already consumed by the byte-scan in readFrame.
func checksumOK(frame []byte) bool {
	sum := uint32(frameHeader)
	for _, b := range frame[:7] {
		sum += uint32(b)
	}
	return byte(sum) == frame[7]
}
