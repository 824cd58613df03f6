package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Frame layout, after the u32 big-endian payload length prefix:
//
//	u8  kind tag
//	u64 sender id
//	u8  arg present? (0|1), then u32 length + UTF-8 bytes when present
//	u8  content present? (0|1), then u32 length + UTF-8 bytes when present
//
// The length prefix makes the frame self-delimiting on byte-stream
// transports; message-oriented transports carry the whole frame as one
// binary message and the prefix doubles as an integrity check.

const (
	// MaxFrameSize bounds the decoded payload. A frame claiming more than
	// this is rejected as malformed rather than allocated.
	MaxFrameSize = 1 << 20

	headerLen = 4 + 1 + 8
)

// Encode serializes m into a single self-delimiting frame. It fails only
// when m violates its kind's field table.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	payload := 1 + 8 + optionalLen(m.Arg) + optionalLen(m.Content)
	buf := make([]byte, 0, 4+payload)
	buf = binary.BigEndian.AppendUint32(buf, uint32(payload))
	buf = append(buf, byte(m.Kind))
	buf = binary.BigEndian.AppendUint64(buf, m.SenderID)
	buf = appendOptional(buf, m.Arg)
	buf = appendOptional(buf, m.Content)
	return buf, nil
}

// Decode parses a single frame produced by Encode. The input must contain
// exactly one frame; trailing bytes are a framing violation.
func Decode(data []byte) (Message, error) {
	if len(data) < headerLen {
		return Message{}, fmt.Errorf("%w: %d bytes is shorter than the fixed header", ErrMalformedFrame, len(data))
	}
	payload := binary.BigEndian.Uint32(data[:4])
	if payload > MaxFrameSize {
		return Message{}, fmt.Errorf("%w: declared payload %d exceeds limit", ErrMalformedFrame, payload)
	}
	if int(payload) != len(data)-4 {
		return Message{}, fmt.Errorf("%w: declared payload %d, got %d bytes", ErrMalformedFrame, payload, len(data)-4)
	}

	kind := Kind(data[4])
	if !kind.Valid() {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownKind, data[4])
	}
	senderID := binary.BigEndian.Uint64(data[5:13])

	rest := data[13:]
	arg, rest, err := readOptional(rest)
	if err != nil {
		return Message{}, err
	}
	content, rest, err := readOptional(rest)
	if err != nil {
		return Message{}, err
	}
	if len(rest) != 0 {
		return Message{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformedFrame, len(rest))
	}

	m := Message{Kind: kind, SenderID: senderID, Arg: arg, Content: content}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

func optionalLen(s *string) int {
	if s == nil {
		return 1
	}
	return 1 + 4 + len(*s)
}

func appendOptional(buf []byte, s *string) []byte {
	if s == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(*s)))
	return append(buf, *s...)
}

func readOptional(data []byte) (*string, []byte, error) {
	if len(data) < 1 {
		return nil, nil, fmt.Errorf("%w: missing presence byte", ErrMalformedFrame)
	}
	switch data[0] {
	case 0:
		return nil, data[1:], nil
	case 1:
	default:
		return nil, nil, fmt.Errorf("%w: presence byte %d", ErrMalformedFrame, data[0])
	}
	data = data[1:]
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("%w: truncated string length", ErrMalformedFrame)
	}
	n := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < n {
		return nil, nil, fmt.Errorf("%w: string length %d exceeds remaining %d bytes", ErrMalformedFrame, n, len(data))
	}
	raw := data[:n]
	if !utf8.Valid(raw) {
		return nil, nil, fmt.Errorf("%w: string is not valid UTF-8", ErrMalformedFrame)
	}
	s := string(raw)
	return &s, data[n:], nil
}
