// Package proxy relays chat messages between a websocket client and the
// inference backend's length-prefixed TCP protocol.
package proxy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Each frame is an 8-byte little-endian length followed by a JSON document
// terminated by a separator.
const (
	headerSize = 8
	separator  = ','
)

var ErrFrameTooLarge = errors.New("frame exceeds size limit")

// WriteFrame sends payload as one frame, adding the separator.
func WriteFrame(w io.Writer, payload []byte) error {
	frame := make([]byte, headerSize, headerSize+len(payload)+1)
	binary.LittleEndian.PutUint64(frame, uint64(len(payload)+1))
	frame = append(frame, payload...)
	frame = append(frame, separator)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame and strips its trailing separator. A zero maxBytes disables the limit.
func ReadFrame(r io.Reader, maxBytes uint64) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	size := binary.LittleEndian.Uint64(header[:])
	if maxBytes > 0 && size > maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, size, maxBytes)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}

	return bytes.TrimSuffix(payload, []byte{separator}), nil
}
