package domain

// Device is one remote Android device as listed by the REST API.
type Device struct {
	ID         int    `json:"id"`
	DeviceName string `json:"device_name"`
	Status     string `json:"status"`
}

// Running reports whether the device can accept a session.
func (d Device) Running() bool {
	return d.Status == "running"
}

// ICEServer is one connectivity-assist endpoint (STUN or TURN). Credentials
// come from configuration, never from code.
type ICEServer struct {
	URLs       []string `yaml:"urls" json:"urls"`
	Username   string   `yaml:"username,omitempty" json:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty" json:"credential,omitempty"`
}
