// Package ipc implements the wire framing shared by the daemon and its
// clients: length-prefixed frames on a local stream socket, carrying either
// UTF-8 JSON documents or binary PTY output distinguished by a marker byte.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize caps a single frame's payload at 16 MiB. Oversized frames
// terminate the connection.
const MaxFrameSize = 16 << 20

// PtyFrameMarker is the first payload byte of a binary PTY frame. It is
// never a valid first byte of a JSON document, so a reader can classify a
// frame by inspecting payload[0].
const PtyFrameMarker = 0x01

// ErrFrameTooLarge is returned when a frame header announces a payload
// beyond MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame too large")

// WriteFrame writes a 4-byte big-endian length header followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame and returns its payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// EncodePtyFrame builds a binary frame payload:
// marker byte | 8-byte big-endian prompt id | raw PTY bytes.
func EncodePtyFrame(promptID uint64, data []byte) []byte {
	payload := make([]byte, 9+len(data))
	payload[0] = PtyFrameMarker
	binary.BigEndian.PutUint64(payload[1:9], promptID)
	copy(payload[9:], data)
	return payload
}

// DecodePtyFrame splits a binary frame payload into prompt id and PTY bytes.
func DecodePtyFrame(payload []byte) (promptID uint64, data []byte, err error) {
	if len(payload) < 9 || payload[0] != PtyFrameMarker {
		return 0, nil, errors.New("not a PTY frame")
	}
	return binary.BigEndian.Uint64(payload[1:9]), payload[9:], nil
}

// IsBinaryFrame reports whether a frame payload is a binary PTY frame.
func IsBinaryFrame(payload []byte) bool {
	return len(payload) > 0 && payload[0] == PtyFrameMarker
}
