// Package wire defines the messages exchanged over the render websocket.
//
// A client sends a JSON encoded [mandel.Request] as a text message. The
// server answers with either a binary frame message or a JSON [Error] text
// message. A frame message is a fixed header followed by the zstd
// compressed RGBA pixels:
//
//	magic   [4]byte  "MBF1"
//	width   uint32   big endian
//	height  uint32   big endian
//	elapsed uint32   render time in microseconds
//	payload []byte   zstd(4*width*height bytes of row-major RGBA)
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	mandel "github.com/marben/histomandel"
)

const headerSize = 16

var magic = [4]byte{'M', 'B', 'F', '1'}

var (
	ErrBadFrame = errors.New("malformed frame")
)

// Frame is a rendered image together with the time the server spent on it.
type Frame struct {
	Image   *image.RGBA
	Elapsed time.Duration
}

// Error is the JSON body of a failed request.
type Error struct {
	Error string `json:"error"`
	// Busy is set when the server refused the request because a render is in flight.
	Busy bool `json:"busy,omitempty"`
}

var (
	encOnce sync.Once
	encoder *zstd.Encoder
	encErr  error

	decOnce sync.Once
	decoder *zstd.Decoder
	decErr  error
)

// EncodeAll / DecodeAll are safe for concurrent use, so one instance of each serves every connection.
func sharedEncoder() (*zstd.Encoder, error) {
	encOnce.Do(func() {
		encoder, encErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	})
	return encoder, encErr
}

func sharedDecoder() (*zstd.Decoder, error) {
	decOnce.Do(func() {
		decoder, decErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(4*mandel.MaxPixels))
	})
	return decoder, decErr
}

// EncodeFrame serializes f. The image must start at the origin.
func EncodeFrame(f Frame) ([]byte, error) {
	b := f.Image.Bounds()
	if b.Min != (image.Point{}) || len(f.Image.Pix) != 4*b.Dx()*b.Dy() {
		return nil, fmt.Errorf("%w: image bounds %v with %d bytes", ErrBadFrame, b, len(f.Image.Pix))
	}
	enc, err := sharedEncoder()
	if err != nil {
		return nil, fmt.Errorf("zstd.NewWriter: %w", err)
	}

	out := make([]byte, headerSize, headerSize+len(f.Image.Pix)/4)
	copy(out, magic[:])
	binary.BigEndian.PutUint32(out[4:], uint32(b.Dx()))
	binary.BigEndian.PutUint32(out[8:], uint32(b.Dy()))
	binary.BigEndian.PutUint32(out[12:], uint32(max(0, min(f.Elapsed.Microseconds(), 1<<32-1))))
	return enc.EncodeAll(f.Image.Pix, out), nil
}

// DecodeFrame parses a message produced by EncodeFrame.
func DecodeFrame(msg []byte) (Frame, error) {
	if len(msg) < headerSize || !bytes.Equal(msg[:4], magic[:]) {
		return Frame{}, fmt.Errorf("%w: bad header", ErrBadFrame)
	}
	w := int(binary.BigEndian.Uint32(msg[4:]))
	h := int(binary.BigEndian.Uint32(msg[8:]))
	elapsed := time.Duration(binary.BigEndian.Uint32(msg[12:])) * time.Microsecond
	vp := mandel.Viewport{Width: w, Height: h, Region: mandel.Region{Xmax: 1, Ymax: 1}}
	if err := vp.Validate(); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrBadFrame, err)
	}

	dec, err := sharedDecoder()
	if err != nil {
		return Frame{}, fmt.Errorf("zstd.NewReader: %w", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	pix, err := dec.DecodeAll(msg[headerSize:], img.Pix[:0])
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrBadFrame, err)
	}
	if len(pix) != len(img.Pix) {
		return Frame{}, fmt.Errorf("%w: payload has %d bytes, want %d", ErrBadFrame, len(pix), len(img.Pix))
	}
	return Frame{Image: img, Elapsed: elapsed}, nil
}

// EncodeRequest marshals a render request.
func EncodeRequest(req mandel.Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest unmarshals a render request without validating it.
func DecodeRequest(msg []byte) (mandel.Request, error) {
	var req mandel.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return mandel.Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// EncodeError marshals a failure reply.
func EncodeError(err error, busy bool) []byte {
	b, _ := json.Marshal(Error{Error: err.Error(), Busy: busy})
	return b
}

// DecodeError unmarshals a failure reply.
func DecodeError(msg []byte) (Error, error) {
	var e Error
	if err := json.Unmarshal(msg, &e); err != nil {
		return Error{}, fmt.Errorf("decode error reply: %w", err)
	}
	return e, nil
}
