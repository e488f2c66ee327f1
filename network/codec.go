package network

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	Version    = 1
	HeaderSize = 8

	// FlagCompressed marks a zstd-compressed payload.
	FlagCompressed = 1 << 0

	// MaxPayload bounds both the declared and the decompressed payload size.
	MaxPayload = 1 << 20
)

var (
	ErrProtocol    = errors.New("protocol error")
	ErrTruncated   = errors.New("truncated frame")
	ErrVersion     = errors.New("unsupported version")
	ErrUnknownKind = errors.New("unknown kind")
	ErrTooLarge    = errors.New("payload too large")
	ErrClosed      = errors.New("connection closed")
	ErrQueueFull   = errors.New("send queue full")
)

// ProtocolError reports a frame that could not be decoded. errors.Is matches
// it against ErrProtocol as well as the wrapped cause.
type ProtocolError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Kind != 0 {
		return fmt.Sprintf("protocol: %s %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// Codec turns messages into frames and back. It is safe for concurrent use.
type Codec struct {
	threshold int
	enc       *zstd.Encoder
	dec       *zstd.Decoder
}

// NewCodec returns a codec that compresses payloads larger than threshold
// bytes. A threshold <= 0 disables compression on encode; compressed frames
// are always accepted on decode.
func NewCodec(threshold int) (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxPayload))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Codec{threshold: threshold, enc: enc, dec: dec}, nil
}

// Encode serializes msg and wraps it in a frame of the given kind.
func (c *Codec) Encode(kind Kind, msg any) ([]byte, error) {
	if !kind.Valid() {
		return nil, &ProtocolError{Op: "encode", Kind: kind, Err: ErrUnknownKind}
	}
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}

	var flags byte
	if c.threshold > 0 && len(payload) > c.threshold {
		payload = c.enc.EncodeAll(payload, make([]byte, 0, len(payload)/2))
		flags |= FlagCompressed
	}
	if len(payload) > MaxPayload {
		return nil, &ProtocolError{Op: "encode", Kind: kind, Err: ErrTooLarge}
	}

	frame := make([]byte, HeaderSize+len(payload))
	frame[0] = Version
	binary.BigEndian.PutUint16(frame[1:3], uint16(kind))
	frame[3] = flags
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// Decode validates the frame header and returns the kind and the
// uncompressed payload.
func (c *Codec) Decode(frame []byte) (Kind, []byte, error) {
	if len(frame) < HeaderSize {
		return 0, nil, &ProtocolError{Op: "decode", Err: ErrTruncated}
	}
	if frame[0] != Version {
		return 0, nil, &ProtocolError{Op: "decode", Err: fmt.Errorf("%w %d", ErrVersion, frame[0])}
	}
	kind := Kind(binary.BigEndian.Uint16(frame[1:3]))
	if !kind.Valid() {
		return kind, nil, &ProtocolError{Op: "decode", Kind: kind, Err: ErrUnknownKind}
	}
	flags := frame[3]
	length := binary.BigEndian.Uint32(frame[4:8])
	if length > MaxPayload {
		return kind, nil, &ProtocolError{Op: "decode", Kind: kind, Err: ErrTooLarge}
	}
	if uint32(len(frame)-HeaderSize) != length {
		return kind, nil, &ProtocolError{Op: "decode", Kind: kind, Err: ErrTruncated}
	}

	payload := frame[HeaderSize:]
	if flags&FlagCompressed != 0 {
		out, err := c.dec.DecodeAll(payload, nil)
		if err != nil {
			return kind, nil, &ProtocolError{Op: "decompress", Kind: kind, Err: err}
		}
		payload = out
	}
	return kind, payload, nil
}

// DecodeInto unmarshals a payload returned by Decode into v.
func (c *Codec) DecodeInto(kind Kind, payload []byte, v any) error {
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return &ProtocolError{Op: "unmarshal", Kind: kind, Err: err}
	}
	return nil
}

// Close releases the compressor resources.
func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}
