package pushchannel

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cctvdash/internal/core/domain"
)

// ErrUnknownMessage is returned by DecodeEvent for message types the
// dashboard does not consume. Callers skip such messages.
var ErrUnknownMessage = errors.New("unknown push message type")

const (
	TypeCameraFrame          = "camera_frame"
	TypeAIStatusUpdate       = "ai_status_update"
	TypeEmployeeStatusUpdate = "employee_status_update"
	TypeStartStream          = "start_stream"
	TypeStopStream           = "stop_stream"
)

// Envelope is the wire format of every push message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FrameMessage is a camera_frame payload. Producers tag the stream with
// either address or rtsp_url.
type FrameMessage struct {
	Frame   string `json:"frame"`
	Address string `json:"address,omitempty"`
	RTSPURL string `json:"rtsp_url,omitempty"`
}

func (m FrameMessage) address() string {
	if m.Address != "" {
		return m.Address
	}
	return m.RTSPURL
}

type AIStatusMessage struct {
	Active bool `json:"active"`
}

// StreamCommandMessage is the payload of start_stream and stop_stream.
// RTSPURL repeats Address for pipelines that still read the legacy key.
type StreamCommandMessage struct {
	Address  string `json:"address"`
	CameraID string `json:"camera_id,omitempty"`
	RTSPURL  string `json:"rtsp_url,omitempty"`
}

// DecodeEvent turns one inbound message into a dashboard event. A
// camera_frame whose payload cannot be decoded still yields a FrameEvent,
// classified as malformed, so the live view shows the stream error.
func DecodeEvent(data []byte, receivedAt time.Time) (domain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case TypeCameraFrame:
		var msg FrameMessage
		if err := unmarshalPayload(env, &msg); err != nil {
			return domain.FrameEvent{
				Address:    salvageAddress(env.Payload),
				Payload:    domain.FramePayload{Kind: domain.FrameKindMalformed},
				ReceivedAt: receivedAt,
			}, nil
		}
		return domain.FrameEvent{
			Address:    msg.address(),
			Payload:    domain.ParseFramePayload(msg.Frame),
			ReceivedAt: receivedAt,
		}, nil

	case TypeAIStatusUpdate:
		var msg AIStatusMessage
		if err := unmarshalPayload(env, &msg); err != nil {
			return nil, err
		}
		return domain.AIStatusEvent{Active: msg.Active}, nil

	case TypeEmployeeStatusUpdate:
		var updates []domain.PresenceUpdate
		if err := unmarshalPayload(env, &updates); err != nil {
			return nil, err
		}
		return domain.PresenceBatchEvent{Updates: updates, Source: "push"}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}

// EncodeCommand serializes a stream command for the capture pipeline.
func EncodeCommand(cmd domain.StreamCommand) ([]byte, error) {
	payload, err := json.Marshal(StreamCommandMessage{
		Address:  cmd.Address,
		CameraID: string(cmd.CameraID),
		RTSPURL:  cmd.Address,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: string(cmd.Type), Payload: payload})
}

// DecodeCommand is the producer side of EncodeCommand.
func DecodeCommand(data []byte) (domain.StreamCommand, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.StreamCommand{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type != TypeStartStream && env.Type != TypeStopStream {
		return domain.StreamCommand{}, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	var msg StreamCommandMessage
	if err := unmarshalPayload(env, &msg); err != nil {
		return domain.StreamCommand{}, err
	}
	return domain.StreamCommand{
		Type:     domain.StreamCommandType(env.Type),
		CameraID: domain.CameraID(msg.CameraID),
		Address:  firstNonEmpty(msg.Address, msg.RTSPURL),
	}, nil
}

// EncodeMessage wraps payload in an envelope of the given type. It is used
// by producers such as the demo backend.
func EncodeMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

func unmarshalPayload(env Envelope, v interface{}) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", env.Type, err)
	}
	return nil
}

// salvageAddress reads the stream tag from a frame payload that failed to
// decode as a whole, e.g. because frame is not a string.
func salvageAddress(raw json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"address", "rtsp_url"} {
		var v string
		if err := json.Unmarshal(fields[key], &v); err == nil && v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
