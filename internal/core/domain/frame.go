package domain

import (
	"encoding/base64"
	"strings"
)

// SentinelVocabulary lists the values the capture pipeline sends in the frame
// field instead of image data when a stream cannot be served. A payload that
// equals or contains one of them is a stream error.
var SentinelVocabulary = []string{
	"Camera Unavailable",
	"Failed to open video stream",
	"Camera Error",
}

type FrameKind int

const (
	FrameKindData FrameKind = iota
	FrameKindStreamError
	FrameKindMalformed
)

// FramePayload is the classified content of a camera_frame message.
type FramePayload struct {
	Kind   FrameKind
	Data   string // base64 image, only for FrameKindData
	Size   int    // decoded bytes
	Reason string // matched sentinel, only for FrameKindStreamError
}

var dataURIPrefixes = []string{"data:image/jpeg;base64,", "data:image/jpg;base64,", "data:image/png;base64,"}

// ParseFramePayload classifies a raw frame value. Sentinels are checked
// before decoding so that plain-text error messages never reach the display.
func ParseFramePayload(raw string) FramePayload {
	value := strings.TrimSpace(raw)
	for _, sentinel := range SentinelVocabulary {
		if strings.Contains(value, sentinel) {
			return FramePayload{Kind: FrameKindStreamError, Reason: sentinel}
		}
	}

	for _, prefix := range dataURIPrefixes {
		if strings.HasPrefix(value, prefix) {
			value = strings.TrimPrefix(value, prefix)
			break
		}
	}
	if value == "" {
		return FramePayload{Kind: FrameKindMalformed}
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(decoded) == 0 {
		return FramePayload{Kind: FrameKindMalformed}
	}
	return FramePayload{Kind: FrameKindData, Data: value, Size: len(decoded)}
}
