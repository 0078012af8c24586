package reader

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ebfe/scard"
)

// errCommandFailed marks an APDU that came back with a non-success
// status word. Usually the tag was lifted mid-exchange; never a device
// fault.
var errCommandFailed = errors.New("command failed")

// APDUs understood by NTAG/MIFARE readers.
var (
	apduGetUID = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}
)

// Card data lives in pages 4..14; each page read returns 4 bytes.
const (
	firstDataPage = 4
	lastDataPage  = 14
)

// PCSC implements Device for PC/SC smart card readers (ACR122U and
// friends). Each Status call connects to the reader; a failed connect
// with a no-card status just means the reader is empty.
type PCSC struct {
	ctx    *scard.Context
	reader string

	// Page reads are slow, so the payload is fetched once per tag and
	// cached until the UID changes.
	lastUID []byte
	lastTag *Tag
}

// NewPCSC establishes a PC/SC context and picks the first reader whose
// name contains selector (or simply the first reader when selector is
// empty). Fails when no compatible reader is attached.
func NewPCSC(selector string) (*PCSC, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establish PC/SC context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("list readers: %w", err)
	}

	name := ""
	for _, r := range readers {
		if selector == "" || strings.Contains(r, selector) {
			name = r
			break
		}
	}
	if name == "" {
		ctx.Release()
		if selector != "" {
			return nil, fmt.Errorf("no reader matching %q (found %d readers)", selector, len(readers))
		}
		return nil, fmt.Errorf("no smart card readers found")
	}

	log.Printf("Using NFC reader: %s", name)
	return &PCSC{ctx: ctx, reader: name}, nil
}

// Status implements Device.Status.
func (p *PCSC) Status() (*Tag, error) {
	card, err := p.ctx.Connect(p.reader, scard.ShareShared, scard.ProtocolAny)
	if err == scard.ErrNoSmartcard || err == scard.ErrRemovedCard {
		p.forget()
		return nil, nil
	}
	if err != nil {
		p.forget()
		return nil, fmt.Errorf("connect to %s: %w", p.reader, err)
	}
	defer card.Disconnect(scard.LeaveCard)

	uid, err := transmit(card, apduGetUID)
	if err == scard.ErrRemovedCard || errors.Is(err, errCommandFailed) {
		p.forget()
		return nil, nil
	}
	if err != nil {
		p.forget()
		return nil, fmt.Errorf("read UID: %w", err)
	}
	if len(uid) == 0 {
		p.forget()
		return nil, nil
	}

	// Same tag as last poll: reuse the cached payload.
	if p.lastTag != nil && string(uid) == string(p.lastUID) {
		return p.lastTag, nil
	}

	payload := p.readPayload(card)
	tag := &Tag{UID: uid, Payload: payload}
	p.lastUID = uid
	p.lastTag = tag
	return tag, nil
}

// readPayload reads the tag's data pages. Tags that do not announce the
// card code prefix on their first data page yield an empty payload.
func (p *PCSC) readPayload(card *scard.Card) string {
	first, err := readPage(card, firstDataPage)
	if err != nil {
		log.Printf("Read page %d: %v", firstDataPage, err)
		return ""
	}
	if len(first) < 4 || first[0] != 'Y' || first[1] != 'G' {
		return ""
	}

	data := append([]byte(nil), first...)
	for page := byte(firstDataPage + 1); page <= lastDataPage; page++ {
		chunk, err := readPage(card, page)
		if err != nil {
			log.Printf("Read page %d: %v", page, err)
			break
		}
		data = append(data, chunk...)
	}
	return string(data)
}

// Close implements Device.Close.
func (p *PCSC) Close() error {
	if p.ctx == nil {
		return nil
	}
	err := p.ctx.Release()
	p.ctx = nil
	return err
}

func (p *PCSC) forget() {
	p.lastUID = nil
	p.lastTag = nil
}

// transmit sends an APDU and strips the SW1/SW2 status trailer,
// requiring a 90 00 success status.
func transmit(card *scard.Card, apdu []byte) ([]byte, error) {
	rsp, err := card.Transmit(apdu)
	if err != nil {
		return nil, err
	}
	if len(rsp) < 2 {
		return nil, fmt.Errorf("short response (%d bytes)", len(rsp))
	}
	sw1, sw2 := rsp[len(rsp)-2], rsp[len(rsp)-1]
	if sw1 != 0x90 || sw2 != 0x00 {
		return nil, fmt.Errorf("%w: SW1=%02x SW2=%02x", errCommandFailed, sw1, sw2)
	}
	return rsp[:len(rsp)-2], nil
}

func readPage(card *scard.Card, page byte) ([]byte, error) {
	return transmit(card, []byte{0xFF, 0xB0, 0x00, page, 0x04})
}
