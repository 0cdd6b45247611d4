package capture

// pcap bridge so captures can be inspected in Wireshark

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

// LinkTypeUser0 is DLT_USER0, reserved for private link layers.
const LinkTypeUser0 layers.LinkType = 147

const snapLen = 65535

// LayerTypeTelegram decodes an RS485 frame carried as a whole packet.
var LayerTypeTelegram = gopacket.RegisterLayerType(4850, gopacket.LayerTypeMetadata{
	Name:    "RS485Telegram",
	Decoder: gopacket.DecodeFunc(decodeTelegramLayer),
})

// TelegramLayer exposes the frame header. The payload is the PDU.
type TelegramLayer struct {
	layers.BaseLayer
	Type        telegram.Type
	Destination telegram.Unit
	Source      telegram.Unit
	Length      uint8
	Checksum    uint8
}

func (l *TelegramLayer) LayerType() gopacket.LayerType { return LayerTypeTelegram }

func (l *TelegramLayer) CanDecode() gopacket.LayerClass { return LayerTypeTelegram }

func (l *TelegramLayer) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

// DecodeFromBytes parses the frame header and locates the PDU.
func (l *TelegramLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	t, err := telegram.NewAt(data, time.Time{})
	if err != nil {
		df.SetTruncated()
		return err
	}
	l.Type = t.Type()
	l.Destination = t.Destination()
	l.Source = t.Source()
	l.Length = uint8(t.PDULen())
	l.Checksum = t.Checksum()
	end := telegram.HeaderLength + t.PDULen()
	l.BaseLayer = layers.BaseLayer{Contents: data[:telegram.HeaderLength], Payload: data[telegram.HeaderLength:end]}
	return nil
}

func decodeTelegramLayer(data []byte, p gopacket.PacketBuilder) error {
	l := &TelegramLayer{}
	if err := l.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(l)
	return p.NextDecoder(l.NextLayerType())
}

// ExportPCAP writes telegrams as a pcap stream, one packet per frame, and
// returns the number of packets written. Like Writer.Push it leaves out
// telegrams with a bad checksum.
func ExportPCAP(w io.Writer, telegrams []*telegram.Telegram) (int, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, LinkTypeUser0); err != nil {
		return 0, fmt.Errorf("write pcap header: %w", err)
	}
	n := 0
	for _, t := range telegrams {
		if !t.Valid() {
			continue
		}
		raw := t.Raw()
		ci := gopacket.CaptureInfo{
			Timestamp:     t.Timestamp(),
			CaptureLength: len(raw),
			Length:        len(raw),
		}
		if err := pw.WritePacket(ci, raw); err != nil {
			return n, fmt.Errorf("write pcap packet: %w", err)
		}
		n++
	}
	return n, nil
}

// ImportPCAP reads telegrams back from a pcap stream written by ExportPCAP.
func ImportPCAP(r io.Reader) ([]*telegram.Telegram, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open pcap: %w", err)
	}
	if pr.LinkType() != LinkTypeUser0 {
		return nil, fmt.Errorf("%w: unexpected link type %v", ErrInvalidFormat, pr.LinkType())
	}

	var out []*telegram.Telegram
	for {
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("read pcap packet: %w", err)
		}
		packet := gopacket.NewPacket(data, LayerTypeTelegram, gopacket.Default)
		if el := packet.ErrorLayer(); el != nil {
			return out, fmt.Errorf("%w: %v", ErrCorruptCapture, el.Error())
		}
		t, err := telegram.NewAt(data, ci.Timestamp)
		if err != nil {
			return out, fmt.Errorf("%w: %v", ErrCorruptCapture, err)
		}
		out = append(out, t)
	}
}

// Messages specialises telegrams with reg, stopping at the first error.
// Telegrams with a bad checksum are left out.
func Messages(reg *message.Registry, telegrams []*telegram.Telegram) ([]message.Message, error) {
	out := make([]message.Message, 0, len(telegrams))
	for _, t := range telegrams {
		if !t.Valid() {
			continue
		}
		m, err := reg.Specialize(t)
		if err != nil {
			return out, fmt.Errorf("%s: %w", t, err)
		}
		out = append(out, m)
	}
	return out, nil
}
