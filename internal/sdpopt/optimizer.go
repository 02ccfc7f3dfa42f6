// Package sdpopt rewrites locally generated session descriptions toward low
// latency: baseline H264 with packetization-mode=1 and no retransmission
// negotiation. The transform works on the parsed description model, never on
// raw strings, and is idempotent.
package sdpopt

import (
	"strings"

	"github.com/pion/sdp/v3"
)

// baselineFmtp is the H264 parameter set requested from the peer. Baseline
// profile trades loss resilience for end-to-end latency.
const baselineFmtp = "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f"

// Optimize returns a low-latency biased variant of the offer. Media section
// count and order are preserved; only video codec attributes change. If the
// input does not parse, it is returned unmodified: optimization is
// best-effort and never invalidates a working description.
func Optimize(offer string) string {
	desc := &sdp.SessionDescription{}
	if err := desc.Unmarshal([]byte(offer)); err != nil {
		return offer
	}

	for _, media := range desc.MediaDescriptions {
		if media.MediaName.Media != "video" {
			continue
		}
		rewriteVideoSection(media)
	}

	out, err := desc.Marshal()
	if err != nil {
		return offer
	}
	return string(out)
}

func rewriteVideoSection(media *sdp.MediaDescription) {
	h264 := map[string]bool{}
	rtx := map[string]bool{}
	hasFmtp := map[string]bool{}

	for _, attr := range media.Attributes {
		pt, rest := splitPayloadAttr(attr.Value)
		switch attr.Key {
		case "rtpmap":
			codec := strings.ToLower(rest)
			if i := strings.IndexByte(codec, '/'); i >= 0 {
				codec = codec[:i]
			}
			switch codec {
			case "h264":
				h264[pt] = true
			case "rtx":
				rtx[pt] = true
			}
		case "fmtp":
			hasFmtp[pt] = true
		}
	}

	rewritten := make([]sdp.Attribute, 0, len(media.Attributes))
	for _, attr := range media.Attributes {
		pt, _ := splitPayloadAttr(attr.Value)
		switch attr.Key {
		case "rtpmap", "fmtp", "rtcp-fb":
			if rtx[pt] {
				continue
			}
		}
		if attr.Key == "fmtp" && h264[pt] {
			attr.Value = pt + " " + baselineFmtp
		}
		rewritten = append(rewritten, attr)
		if attr.Key == "rtpmap" && h264[pt] && !hasFmtp[pt] {
			rewritten = append(rewritten, sdp.Attribute{Key: "fmtp", Value: pt + " " + baselineFmtp})
		}
	}
	media.Attributes = rewritten

	if len(rtx) > 0 {
		formats := make([]string, 0, len(media.MediaName.Formats))
		for _, f := range media.MediaName.Formats {
			if rtx[f] {
				continue
			}
			formats = append(formats, f)
		}
		media.MediaName.Formats = formats
	}
}

// splitPayloadAttr splits an attribute value of the form "<pt> <rest>".
func splitPayloadAttr(value string) (pt, rest string) {
	if i := strings.IndexByte(value, ' '); i >= 0 {
		return value[:i], value[i+1:]
	}
	return value, ""
}
