package domain

import (
	"fmt"
	"strings"
)

// Hermes topics consumed and produced by the audio server
const (
	TopicGetDevices   = "rhasspy/audioServer/getDevices"
	TopicDevices      = "rhasspy/audioServer/devices"
	TopicSetVolume    = "rhasspy/audioServer/setVolume"
	TopicToggleOff    = "hermes/audioServer/toggleOff"
	TopicToggleOn     = "hermes/audioServer/toggleOn"
	TopicPlayError    = "hermes/error/audioServer/play"
	TopicDevicesError = "hermes/error/audioServer/getDevices"
)

// PlayBytesTopic builds hermes/audioServer/<siteId>/playBytes/<requestId>.
func PlayBytesTopic(siteID, requestID string) string {
	return fmt.Sprintf("hermes/audioServer/%s/playBytes/%s", siteID, requestID)
}

// PlayFinishedTopic builds hermes/audioServer/<siteId>/playFinished.
func PlayFinishedTopic(siteID string) string {
	return fmt.Sprintf("hermes/audioServer/%s/playFinished", siteID)
}

// IsPlayBytesTopic reports whether topic has the playBytes shape,
// regardless of whether its site or request segments are filled in.
func IsPlayBytesTopic(topic string) bool {
	parts := strings.Split(topic, "/")
	return len(parts) == 5 &&
		parts[0] == "hermes" &&
		parts[1] == "audioServer" &&
		parts[3] == "playBytes"
}

// ParsePlayBytesTopic extracts the site and request ids from a playBytes
// topic. Both must be non-empty.
func ParsePlayBytesTopic(topic string) (siteID, requestID string, err error) {
	if !IsPlayBytesTopic(topic) {
		return "", "", fmt.Errorf("%w: not a playBytes topic: %s", ErrProtocol, topic)
	}

	parts := strings.Split(topic, "/")
	siteID, requestID = parts[2], parts[4]
	if siteID == "" {
		return "", "", fmt.Errorf("%w: missing siteId in topic %s", ErrProtocol, topic)
	}
	if requestID == "" {
		return "", "", fmt.Errorf("%w: missing requestId in topic %s", ErrProtocol, topic)
	}

	return siteID, requestID, nil
}
