/*
Reader for the ttyrec recording format.

A recording is a run of frames packed back to back:

	uint32 LE seconds | uint32 LE microseconds | uint32 LE length | payload[length]

There is no file header and no terminator, the stream length alone decides
how many frames it holds.
*/
package ttyrec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/qnkhuat/termshow/pkg/message"
)

const HeaderSize = 12

var ErrCorrupt = errors.New("corrupt ttyrecord")

// FormatError points at the frame that could not be read.
type FormatError struct {
	Offset    int // where the broken frame starts
	Remaining int // bytes left from Offset
	Length    int // declared payload length, -1 if the header itself was cut
}

func (e *FormatError) Error() string {
	if e.Length < 0 {
		return fmt.Sprintf("corrupt ttyrecord: %d trailing bytes at offset %d, need %d for a frame header", e.Remaining, e.Offset, HeaderSize)
	}
	return fmt.Sprintf("corrupt ttyrecord: frame at offset %d declares %d bytes but only %d remain", e.Offset, e.Length, e.Remaining-HeaderSize)
}

func (e *FormatError) Unwrap() error {
	return ErrCorrupt
}

type Frame struct {
	Sec     uint32
	Usec    uint32
	Payload []byte
}

// Since returns the seconds elapsed between prev and f. Clock jitter can
// make it slightly negative and that is kept as is.
func (f Frame) Since(prev Frame) float64 {
	return float64(int64(f.Sec)-int64(prev.Sec)) + float64(int64(f.Usec)-int64(prev.Usec))*1e-6
}

// Decode splits raw into frames. Payloads alias raw.
func Decode(raw []byte) ([]Frame, error) {
	if len(raw) < HeaderSize {
		return nil, &FormatError{Offset: 0, Remaining: len(raw), Length: -1}
	}

	var frames []Frame
	pos := 0
	for pos < len(raw) {
		rest := raw[pos:]
		if len(rest) < HeaderSize {
			return nil, &FormatError{Offset: pos, Remaining: len(rest), Length: -1}
		}
		length := binary.LittleEndian.Uint32(rest[8:12])
		if uint64(length) > uint64(len(rest)-HeaderSize) {
			return nil, &FormatError{Offset: pos, Remaining: len(rest), Length: int(length)}
		}
		end := HeaderSize + int(length)
		frames = append(frames, Frame{
			Sec:     binary.LittleEndian.Uint32(rest[0:4]),
			Usec:    binary.LittleEndian.Uint32(rest[4:8]),
			Payload: rest[HeaderSize:end],
		})
		pos += end
	}
	return frames, nil
}

// Encode is the inverse of Decode.
func Encode(frames []Frame) []byte {
	var buf bytes.Buffer
	var header [HeaderSize]byte
	for _, f := range frames {
		binary.LittleEndian.PutUint32(header[0:4], f.Sec)
		binary.LittleEndian.PutUint32(header[4:8], f.Usec)
		binary.LittleEndian.PutUint32(header[8:12], uint32(len(f.Payload)))
		buf.Write(header[:])
		buf.Write(f.Payload)
	}
	return buf.Bytes()
}

// Convert turns a ttyrecord into the script/timing pair. The first frame
// is its own reference point, so its delay is always zero. Geometry is left
// for the caller.
func Convert(raw []byte) (*message.TermSession, error) {
	frames, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	size := len(message.ConvertedHeader)
	for _, f := range frames {
		size += len(f.Payload)
	}
	script := make([]byte, 0, size)
	script = append(script, message.ConvertedHeader...)

	var timing []byte
	prev := frames[0]
	for _, f := range frames {
		timing = strconv.AppendFloat(timing, f.Since(prev), 'f', 6, 64)
		timing = append(timing, ' ')
		timing = strconv.AppendInt(timing, int64(len(f.Payload)), 10)
		timing = append(timing, '\n')
		script = append(script, f.Payload...)
		prev = f
	}

	return &message.TermSession{
		Script:  script,
		Timing:  string(timing),
		Backend: message.BTtyrec,
	}, nil
}
