// Package webrtc wraps the pion peer connection behind the domain.Transport
// port.
package webrtc

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"droidview/client/internal/control"
	"droidview/client/internal/domain"
	"droidview/client/internal/media"

	"github.com/pion/interceptor"
	pion "github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// controlChannelLabel names the input data channel. It is created before the
// offer so the channel is part of the negotiated session.
const controlChannelLabel = "input"

// Transport is the local peer connection: one recvonly video transceiver,
// one control data channel, trickled candidates out, buffered candidates in.
type Transport struct {
	pc     *pion.PeerConnection
	hooks  domain.TransportHooks
	logger *zap.SugaredLogger

	mu        sync.Mutex
	remoteSet bool
	pending   []*domain.CandidatePayload

	videoOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// NewTransport builds the peer connection and its control channel. videoOut
// receives the remote H264 stream as Annex-B; hooks fire from pion-owned
// goroutines.
func NewTransport(servers []domain.ICEServer, videoOut io.Writer, hooks domain.TransportHooks, logger *zap.Logger) (*Transport, domain.ControlSender, error) {
	m := &pion.MediaEngine{}
	h264 := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:    pion.MimeTypeH264,
			ClockRate:   90000,
			SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
		},
		PayloadType: 102,
	}
	if err := m.RegisterCodec(h264, pion.RTPCodecTypeVideo); err != nil {
		return nil, nil, fmt.Errorf("register H264: %w", err)
	}

	reg := &interceptor.Registry{}
	if err := pion.ConfigureRTCPReports(reg); err != nil {
		return nil, nil, fmt.Errorf("configure rtcp reports: %w", err)
	}

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(reg),
	)

	var iceServers []pion.ICEServer
	for _, s := range servers {
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   iceServers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create peer connection: %w", err)
	}

	t := &Transport{
		pc:     pc,
		hooks:  hooks,
		logger: logger.Sugar().Named("webrtc"),
	}

	if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, nil, fmt.Errorf("add video transceiver: %w", err)
	}

	dc, err := pc.CreateDataChannel(controlChannelLabel, nil)
	if err != nil {
		pc.Close()
		return nil, nil, fmt.Errorf("create control channel: %w", err)
	}
	ctrl := control.NewChannel(dc, hooks.OnControlState, logger)

	pc.OnICECandidate(t.onLocalCandidate)
	pc.OnConnectionStateChange(t.onConnectionStateChange)
	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		t.onTrack(track, videoOut)
	})

	return t, ctrl, nil
}

// CreateOffer generates the local offer without setting it, so the caller
// can rewrite the description first.
func (t *Transport) CreateOffer() (string, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	return offer.SDP, nil
}

// SetLocalDescription installs the (possibly rewritten) offer, which starts
// candidate gathering.
func (t *Transport) SetLocalDescription(sdp string) error {
	desc := pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sdp}
	if err := t.pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return nil
}

// SetRemoteDescription installs the peer's answer and flushes any candidates
// that arrived before it, in arrival order.
func (t *Transport) SetRemoteDescription(sdp string) error {
	desc := pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sdp}
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	t.mu.Lock()
	t.remoteSet = true
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	for _, c := range pending {
		if err := t.applyCandidate(c); err != nil {
			t.logger.Warnw("apply buffered candidate", "error", err)
		}
	}
	return nil
}

// AddRemoteCandidate applies one trickled candidate. Candidates arriving
// before the remote description are buffered, not dropped. A nil candidate
// is the peer's end-of-gathering marker.
func (t *Transport) AddRemoteCandidate(c *domain.CandidatePayload) error {
	t.mu.Lock()
	if !t.remoteSet {
		t.pending = append(t.pending, c)
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()
	return t.applyCandidate(c)
}

func (t *Transport) applyCandidate(c *domain.CandidatePayload) error {
	init := pion.ICECandidateInit{}
	if c != nil {
		mid := c.SDPMid
		mline := c.SDPMLineIndex
		init = pion.ICECandidateInit{
			Candidate:     c.Candidate,
			SDPMid:        &mid,
			SDPMLineIndex: &mline,
		}
		if c.UsernameFragment != "" {
			ufrag := c.UsernameFragment
			init.UsernameFragment = &ufrag
		}
	}
	if err := t.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// Close releases the peer connection. Idempotent.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.pc.Close()
	})
	return t.closeErr
}

func (t *Transport) onLocalCandidate(c *pion.ICECandidate) {
	if t.hooks.OnLocalCandidate == nil {
		return
	}
	if c == nil {
		// Gathering complete; the empty candidate travels to the peer too.
		t.hooks.OnLocalCandidate(nil)
		return
	}

	j := c.ToJSON()
	if isLoopback(j.Candidate) {
		t.logger.Debugw("filtering loopback candidate")
		return
	}

	payload := &domain.CandidatePayload{Candidate: j.Candidate}
	if j.SDPMid != nil {
		payload.SDPMid = *j.SDPMid
	}
	if j.SDPMLineIndex != nil {
		payload.SDPMLineIndex = *j.SDPMLineIndex
	}
	if j.UsernameFragment != nil {
		payload.UsernameFragment = *j.UsernameFragment
	}
	t.hooks.OnLocalCandidate(payload)
}

func (t *Transport) onConnectionStateChange(s pion.PeerConnectionState) {
	t.logger.Infow("connection state", "state", s.String())
	if t.hooks.OnStateChange == nil {
		return
	}
	switch s {
	case pion.PeerConnectionStateNew:
		t.hooks.OnStateChange(domain.TransportNew)
	case pion.PeerConnectionStateConnecting:
		t.hooks.OnStateChange(domain.TransportConnecting)
	case pion.PeerConnectionStateConnected:
		t.hooks.OnStateChange(domain.TransportConnected)
	case pion.PeerConnectionStateDisconnected:
		t.hooks.OnStateChange(domain.TransportDisconnected)
	case pion.PeerConnectionStateFailed:
		t.hooks.OnStateChange(domain.TransportFailed)
	case pion.PeerConnectionStateClosed:
		t.hooks.OnStateChange(domain.TransportClosed)
	}
}

func (t *Transport) onTrack(track *pion.TrackRemote, videoOut io.Writer) {
	codec := track.Codec()
	t.logger.Infow("remote track", "kind", track.Kind().String(), "codec", codec.MimeType)

	if track.Kind() != pion.RTPCodecTypeVideo {
		go drainTrack(track)
		return
	}

	t.videoOnce.Do(func() {
		if t.hooks.OnRemoteVideo != nil {
			t.hooks.OnRemoteVideo()
		}
	})
	go t.readVideoTrack(track, videoOut)
}

func (t *Transport) readVideoTrack(track *pion.TrackRemote, out io.Writer) {
	sink := media.NewAnnexBWriter(out)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			t.logger.Debugw("video track ended", "error", err)
			return
		}
		if err := sink.WritePayload(pkt.SequenceNumber, pkt.Payload); err != nil {
			t.logger.Warnw("video sink write", "error", err)
			return
		}
	}
}

func drainTrack(track *pion.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}
