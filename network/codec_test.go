package network

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/wfunc/flyknight/geom"
	"github.com/wfunc/flyknight/sim"
)

func newTestCodec(t *testing.T, threshold int) *Codec {
	t.Helper()
	c, err := NewCodec(threshold)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestCodec_InputRoundTrip(t *testing.T) {
	c := newTestCodec(t, 0)
	in := Input{Player: 3, Seq: 42, Move: geom.V(1, 0), Facing: 1.5, Attack: true, Arrival: 99}

	frame, err := c.Encode(KindInput, in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if frame[0] != Version || frame[3] != 0 {
		t.Errorf("Expected version %d and no flags, got %d/%d", Version, frame[0], frame[3])
	}
	if got := binary.BigEndian.Uint32(frame[4:8]); int(got) != len(frame)-HeaderSize {
		t.Errorf("Expected length %d, got %d", len(frame)-HeaderSize, got)
	}

	kind, payload, err := c.Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if kind != KindInput {
		t.Fatalf("Expected kind Input, got %s", kind)
	}
	var out Input
	if err := c.DecodeInto(kind, payload, &out); err != nil {
		t.Fatalf("DecodeInto failed: %v", err)
	}
	if out.Seq != 42 || out.Move != in.Move || !out.Attack || out.Facing != 1.5 {
		t.Errorf("Expected %+v, got %+v", in, out)
	}
	if out.Player != 0 || out.Arrival != 0 {
		t.Errorf("Expected host-only stamps to stay off the wire, got player=%d arrival=%d", out.Player, out.Arrival)
	}
}

func TestCodec_CompressesLargeSnapshots(t *testing.T) {
	c := newTestCodec(t, 256)
	snap := Snapshot{Tick: 7}
	for i := 0; i < 50; i++ {
		snap.Items = append(snap.Items, sim.ItemSnap{ID: sim.ItemID(i + 1), Type: "sword", Pos: geom.V(float64(i), 10)})
	}

	frame, err := c.Encode(KindSnapshot, snap)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if frame[3]&FlagCompressed == 0 {
		t.Fatal("Expected the compressed flag on a large payload")
	}

	kind, payload, err := c.Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	var out Snapshot
	if err := c.DecodeInto(kind, payload, &out); err != nil {
		t.Fatalf("DecodeInto failed: %v", err)
	}
	if out.Tick != 7 || len(out.Items) != 50 || out.Items[49].ID != 50 {
		t.Errorf("Expected the snapshot to survive compression, got tick=%d items=%d", out.Tick, len(out.Items))
	}
}

func TestCodec_SmallPayloadStaysRaw(t *testing.T) {
	c := newTestCodec(t, 256)
	frame, err := c.Encode(KindPing, Ping{Nonce: 1})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if frame[3] != 0 {
		t.Errorf("Expected no flags for a small payload, got %d", frame[3])
	}
}

func TestCodec_MalformedFrames(t *testing.T) {
	c := newTestCodec(t, 0)
	good, err := c.Encode(KindJoin, Join{Name: "knight"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	badVersion := append([]byte(nil), good...)
	badVersion[0] = 9

	unknown := append([]byte(nil), good...)
	binary.BigEndian.PutUint16(unknown[1:3], 777)

	longer := append([]byte(nil), good...)
	binary.BigEndian.PutUint32(longer[4:8], uint32(len(good)))

	huge := append([]byte(nil), good...)
	binary.BigEndian.PutUint32(huge[4:8], MaxPayload+1)

	badZstd := append([]byte(nil), good...)
	badZstd[3] = FlagCompressed

	tests := []struct {
		name  string
		frame []byte
		cause error
	}{
		{"empty", nil, ErrTruncated},
		{"short header", good[:5], ErrTruncated},
		{"truncated payload", good[:len(good)-1], ErrTruncated},
		{"length beyond frame", longer, ErrTruncated},
		{"version", badVersion, ErrVersion},
		{"unknown kind", unknown, ErrUnknownKind},
		{"too large", huge, ErrTooLarge},
		{"bad compression", badZstd, nil},
	}
	for _, tt := range tests {
		_, _, err := c.Decode(tt.frame)
		if !errors.Is(err, ErrProtocol) {
			t.Errorf("%s: expected a protocol error, got %v", tt.name, err)
			continue
		}
		if tt.cause != nil && !errors.Is(err, tt.cause) {
			t.Errorf("%s: expected cause %v, got %v", tt.name, tt.cause, err)
		}
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Errorf("%s: expected *ProtocolError, got %T", tt.name, err)
		}
	}
}

func TestCodec_BadPayload(t *testing.T) {
	c := newTestCodec(t, 0)
	var out Join
	err := c.DecodeInto(KindJoin, []byte{0xc1}, &out)
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("Expected a protocol error for a garbage payload, got %v", err)
	}
}

func TestCodec_EncodeUnknownKind(t *testing.T) {
	c := newTestCodec(t, 0)
	if _, err := c.Encode(Kind(9999), Ping{}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}

func TestCodec_HeaderLayout(t *testing.T) {
	c := newTestCodec(t, 0)
	frame, err := c.Encode(KindPong, Pong{Nonce: 5, Tick: 9})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := []byte{Version, 0x01, 0x2e, 0x00}
	if !bytes.Equal(frame[:4], want) {
		t.Errorf("Expected header prefix %v, got %v", want, frame[:4])
	}
}
