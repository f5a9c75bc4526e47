package inference

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Ops understood by the worker script.
const (
	opDetect    = "detect"
	opLandmarks = "landmarks"
)

// maxMessageSize guards against a corrupt length prefix.
const maxMessageSize = 64 << 20

// request is sent to the worker as a length-prefixed msgpack map.
type request struct {
	ID     uint64 `msgpack:"id"`
	Op     string `msgpack:"op"`
	JPEG   []byte `msgpack:"jpeg"`
	Width  int    `msgpack:"width"`
	Height int    `msgpack:"height"`
}

type wireDetection struct {
	Label      string     `msgpack:"label"`
	Confidence float64    `msgpack:"confidence"`
	Box        [4]float64 `msgpack:"box"` // x1, y1, x2, y2 in pixels
}

// response mirrors request.ID. Faces hold normalized [x, y] landmark pairs.
type response struct {
	ID         uint64          `msgpack:"id"`
	OK         bool            `msgpack:"ok"`
	Error      string          `msgpack:"error"`
	Detections []wireDetection `msgpack:"detections"`
	Faces      [][][2]float64  `msgpack:"faces"`
}

// writeFrame writes a 4 byte big-endian length followed by payload.
func writeFrame(w io.Writer, payload []byte) error {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed message.
func readFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxMessageSize {
		return nil, fmt.Errorf("message too large: %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return buf, nil
}
