package reader

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/tarm/serial"
)

// serialPort is the slice of *serial.Port the reader uses; tests
// substitute a fake.
type serialPort interface {
	Read(p []byte) (int, error)
	Close() error
}

// Serial implements Device for serial RFID readers using a framed
// protocol: [0x02][0x09][data...][checksum][0x03]. These readers report
// a scan rather than continuous presence, so a decoded frame marks the
// tag present for a hold window, refreshed by repeat frames.
type Serial struct {
	port   serialPort
	device string
	hold   time.Duration

	last *Tag
	seen time.Time
}

// NewSerial creates a new serial RFID reader.
func NewSerial(device string, baud int, hold time.Duration) (*Serial, error) {
	if baud == 0 {
		baud = 115200
	}
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 50 * time.Millisecond,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	return &Serial{port: port, device: device, hold: hold}, nil
}

// Status implements Device.Status.
func (s *Serial) Status() (*Tag, error) {
	tagno, err := s.readFrame()
	if err != nil {
		return nil, err
	}

	if tagno != 0 {
		id := strconv.FormatUint(tagno, 10)
		s.last = &Tag{UID: []byte(id), Payload: id}
		s.seen = time.Now()
	} else if s.last != nil && time.Since(s.seen) > s.hold {
		s.last = nil
	}

	return s.last, nil
}

// readFrame reads one frame if a scan is pending. A read timeout just
// means no scan; any other port error is a device fault and propagates
// so the monitor can report the reader lost.
func (s *Serial) readFrame() (uint64, error) {
	buff := make([]byte, 9)

	n, err := s.port.Read(buff)
	if err == io.EOF {
		return 0, nil // Timeout, try again
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.device, err)
	}
	if n != 9 {
		return 0, nil // No frame or partial read
	}

	preambles := []byte{0x02, 0x09}
	terminator := []byte{0x03}

	if !bytes.Equal(buff[0:2], preambles) {
		return 0, nil
	}
	if !bytes.Equal(buff[8:9], terminator) {
		return 0, nil
	}

	data := buff[1:7]
	xor := data[0]
	for i := 1; i < len(data); i++ {
		xor ^= data[i]
	}
	if xor != buff[7] {
		return 0, nil // Checksum mismatch
	}

	tagno := (uint64(data[2]) << 24) | (uint64(data[3]) << 16) | (uint64(data[4]) << 8) | uint64(data[5])
	return tagno, nil
}

// Close implements Device.Close.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
