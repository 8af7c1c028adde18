// Package serialization implements jetqueue's dual JSON/protobuf payload
// format, adapted from the teacher's internal/serialization/serializer.go
// (a format byte prepended to the marshaled bytes lets a payload carry its
// own decoding instructions through Redis). The teacher's converter.go,
// which maps into a generated protobuf package specific to its own domain,
// is not carried over — see DESIGN.md.
package serialization

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// PayloadFormat tags how a payload's bytes were encoded.
type PayloadFormat byte

const (
	// FormatJSON is the default, human-inspectable format.
	FormatJSON PayloadFormat = 0x00
	// FormatProtobuf requires v to implement proto.Message.
	FormatProtobuf PayloadFormat = 0x01
)

var (
	ErrUnknownFormat   = errors.New("jetqueue: unknown payload format")
	ErrMarshalFailed   = errors.New("jetqueue: failed to marshal payload")
	ErrUnmarshalFailed = errors.New("jetqueue: failed to unmarshal payload")
)

// Serializer marshals and unmarshals job payloads with a one-byte format
// prefix so a consumer can decode without being told the format out of band.
type Serializer struct {
	DefaultFormat PayloadFormat
}

// NewSerializer returns a Serializer defaulting to format.
func NewSerializer(format PayloadFormat) *Serializer {
	return &Serializer{DefaultFormat: format}
}

// NewJSONSerializer returns a Serializer defaulting to JSON.
func NewJSONSerializer() *Serializer { return NewSerializer(FormatJSON) }

// NewProtobufSerializer returns a Serializer defaulting to protobuf.
func NewProtobufSerializer() *Serializer { return NewSerializer(FormatProtobuf) }

// Marshal serializes v with the serializer's default format.
func (s *Serializer) Marshal(v interface{}) ([]byte, error) {
	return s.MarshalWithFormat(v, s.DefaultFormat)
}

// MarshalWithFormat serializes v with an explicit format, prepending the
// one-byte format tag to the result.
func (s *Serializer) MarshalWithFormat(v interface{}, format PayloadFormat) ([]byte, error) {
	var data []byte
	var err error

	switch format {
	case FormatJSON:
		data, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w (json): %v", ErrMarshalFailed, err)
		}
	case FormatProtobuf:
		msg, ok := v.(proto.Message)
		if !ok {
			return nil, fmt.Errorf("%w: value does not implement proto.Message", ErrMarshalFailed)
		}
		data, err = proto.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("%w (protobuf): %v", ErrMarshalFailed, err)
		}
	default:
		return nil, fmt.Errorf("%w: format %d", ErrUnknownFormat, format)
	}

	out := make([]byte, len(data)+1)
	out[0] = byte(format)
	copy(out[1:], data)
	return out, nil
}

// Unmarshal detects the format from data's prefix byte and decodes into v.
func (s *Serializer) Unmarshal(data []byte, v interface{}) error {
	format, payload, err := s.DetectFormat(data)
	if err != nil {
		return err
	}
	return s.UnmarshalWithFormat(payload, v, format)
}

// UnmarshalWithFormat decodes payload (without its format prefix) using an
// explicit format.
func (s *Serializer) UnmarshalWithFormat(data []byte, v interface{}, format PayloadFormat) error {
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("%w (json): %v", ErrUnmarshalFailed, err)
		}
		return nil
	case FormatProtobuf:
		msg, ok := v.(proto.Message)
		if !ok {
			return fmt.Errorf("%w: value does not implement proto.Message", ErrUnmarshalFailed)
		}
		if err := proto.Unmarshal(data, msg); err != nil {
			return fmt.Errorf("%w (protobuf): %v", ErrUnmarshalFailed, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: format %d", ErrUnknownFormat, format)
	}
}

// DetectFormat reads data's leading format byte and returns the format plus
// the remaining payload bytes.
func (s *Serializer) DetectFormat(data []byte) (PayloadFormat, []byte, error) {
	if len(data) == 0 {
		return FormatJSON, nil, fmt.Errorf("%w: empty payload", ErrUnknownFormat)
	}

	format := PayloadFormat(data[0])
	switch format {
	case FormatJSON, FormatProtobuf:
		if len(data) < 2 {
			return format, nil, fmt.Errorf("%w: payload too short", ErrUnmarshalFailed)
		}
		return format, data[1:], nil
	default:
		if data[0] == '{' || data[0] == '[' {
			return FormatJSON, data, nil
		}
		return FormatJSON, data, fmt.Errorf("%w: unknown format byte 0x%02X", ErrUnknownFormat, data[0])
	}
}
