package domain

// MessageType is the signaling envelope discriminator.
type MessageType string

const (
	MsgOffer        MessageType = "offer"
	MsgAnswer       MessageType = "answer"
	MsgICECandidate MessageType = "ice-candidate"
	MsgInput        MessageType = "input"
	MsgError        MessageType = "error"
)

// CandidatePayload is one trickled connectivity candidate. A nil payload on
// an ice-candidate message marks the end of local gathering.
type CandidatePayload struct {
	Candidate        string `json:"candidate"`
	SDPMid           string `json:"sdpMid"`
	SDPMLineIndex    uint16 `json:"sdpMLineIndex"`
	UsernameFragment string `json:"usernameFragment,omitempty"`
}

// SignalMessage is the generic signaling envelope, one JSON object per
// message. Fields beyond Type are populated per message kind.
type SignalMessage struct {
	Type MessageType `json:"type"`

	// offer / answer
	SDP string `json:"sdp,omitempty"`

	// ice-candidate
	Candidate *CandidatePayload `json:"candidate,omitempty"`

	// input (signaling fallback path)
	InputType string   `json:"inputType,omitempty"`
	Action    string   `json:"action,omitempty"`
	KeyCode   *int     `json:"keyCode,omitempty"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	X2        *float64 `json:"x2,omitempty"`
	Y2        *float64 `json:"y2,omitempty"`
	Duration  *int     `json:"duration,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}
