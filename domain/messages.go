package domain

import "encoding/json"

// DefaultSiteID is used when a payload does not name a site.
const DefaultSiteID = "default"

// Envelope is a single bus message as delivered by the transport.
// Payload holds raw audio for playBytes and JSON for everything else.
type Envelope struct {
	Topic     string `json:"topic"`
	SessionID string `json:"sessionId,omitempty"`
	Payload   []byte `json:"-"`
}

// AudioGetDevices asks the audio server to report its devices
type AudioGetDevices struct {
	Modes  []string `json:"modes,omitempty"`
	ID     string   `json:"id,omitempty"`
	SiteID string   `json:"siteId"`
	Test   bool     `json:"test"`
}

// AudioToggle switches audio output off or on for a site
type AudioToggle struct {
	SiteID string `json:"siteId"`
}

// AudioSetVolume replaces the global output volume. Volume is nil when
// the field is missing.
type AudioSetVolume struct {
	Volume *float64 `json:"volume"`
	SiteID string   `json:"siteId"`
}

// AudioPlayFinished is published once per playBytes request
type AudioPlayFinished struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
}

// AudioServerError reports a failed operation. Context carries the
// correlation id of the request that failed.
type AudioServerError struct {
	Error     string `json:"error"`
	Context   string `json:"context"`
	SiteID    string `json:"siteId"`
	SessionID string `json:"sessionId"`
}

// AudioDeviceMessage is the wire form of a single device
type AudioDeviceMessage struct {
	Mode        string `json:"mode"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"isDefault"`
}

// AudioDevices answers an AudioGetDevices query
type AudioDevices struct {
	Devices []AudioDeviceMessage `json:"devices"`
	ID      string               `json:"id,omitempty"`
	SiteID  string               `json:"siteId"`
}

// TextEnvelope is the JSON form of an Envelope sent as a websocket text frame.
type TextEnvelope struct {
	Topic     string          `json:"topic"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
