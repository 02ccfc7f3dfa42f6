// Package media turns the remote H264 RTP stream into an Annex-B byte
// stream for the platform media pipeline (ffplay, ffmpeg, or a real
// renderer).
package media

import "io"

// H264Depacketizer extracts NAL units from RTP H264 payloads. It keeps
// per-stream state for FU-A fragment reassembly and drops a fragment chain
// when a sequence gap indicates packet loss.
type H264Depacketizer struct {
	fuaBuf    []byte
	fuaActive bool
	nextSeq   uint16
}

// NewH264Depacketizer creates a depacketizer with its own reassembly buffer.
func NewH264Depacketizer() *H264Depacketizer {
	return &H264Depacketizer{}
}

// Depacketize extracts NAL units from one RTP H264 payload. seq is the RTP
// sequence number, used to detect loss inside FU-A chains. Handles single
// NAL, STAP-A, and FU-A packet types; anything else yields no units.
func (d *H264Depacketizer) Depacketize(seq uint16, payload []byte) [][]byte {
	if len(payload) < 1 {
		return nil
	}

	naluType := payload[0] & 0x1f

	switch {
	case naluType >= 1 && naluType <= 23:
		return [][]byte{payload}

	case naluType == 24:
		return d.depacketizeSTAPA(payload)

	case naluType == 28:
		return d.depacketizeFUA(seq, payload)

	default:
		return nil
	}
}

func (d *H264Depacketizer) depacketizeSTAPA(payload []byte) [][]byte {
	var nalus [][]byte
	offset := 1 // skip STAP-A header byte

	for offset+2 <= len(payload) {
		size := int(payload[offset])<<8 | int(payload[offset+1])
		offset += 2
		if size == 0 || offset+size > len(payload) {
			break
		}
		nalus = append(nalus, payload[offset:offset+size])
		offset += size
	}
	return nalus
}

func (d *H264Depacketizer) depacketizeFUA(seq uint16, payload []byte) [][]byte {
	if len(payload) < 2 {
		return nil
	}

	fnri := payload[0] & 0xe0 // F + NRI bits from FU indicator
	fuHeader := payload[1]
	start := fuHeader&0x80 != 0
	end := fuHeader&0x40 != 0
	naluType := fuHeader & 0x1f

	if start {
		// Reconstruct NAL header: F+NRI from FU indicator + type from FU header.
		d.fuaBuf = []byte{fnri | naluType}
		d.fuaBuf = append(d.fuaBuf, payload[2:]...)
		d.fuaActive = true
	} else {
		if !d.fuaActive || seq != d.nextSeq {
			// A lost packet corrupts the whole fragment chain; drop it
			// rather than emit a broken NAL unit.
			d.reset()
			return nil
		}
		d.fuaBuf = append(d.fuaBuf, payload[2:]...)
	}
	d.nextSeq = seq + 1

	if end {
		nalu := d.fuaBuf
		d.reset()
		return [][]byte{nalu}
	}
	return nil
}

func (d *H264Depacketizer) reset() {
	d.fuaBuf = nil
	d.fuaActive = false
}

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// AnnexBWriter depacketizes RTP payloads and writes the resulting NAL units
// to an io.Writer with Annex-B start codes.
type AnnexBWriter struct {
	depack *H264Depacketizer
	out    io.Writer
}

// NewAnnexBWriter wraps out with an RTP-payload-to-Annex-B converter.
func NewAnnexBWriter(out io.Writer) *AnnexBWriter {
	return &AnnexBWriter{depack: NewH264Depacketizer(), out: out}
}

// WritePayload consumes one RTP payload and writes any completed NAL units.
func (w *AnnexBWriter) WritePayload(seq uint16, payload []byte) error {
	for _, nalu := range w.depack.Depacketize(seq, payload) {
		if len(nalu) == 0 {
			continue
		}
		if _, err := w.out.Write(startCode); err != nil {
			return err
		}
		if _, err := w.out.Write(nalu); err != nil {
			return err
		}
	}
	return nil
}
