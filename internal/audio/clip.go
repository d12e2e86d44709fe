// Package audio carries recorded clips between the UI shell and the
// recognizer and knows just enough about PCM WAV to cap a clip at the
// configured recording duration.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	ContentTypeWAV = "audio/wav"

	wavHeaderSize = 44
	pcmFormat     = 1
)

var ErrEmptyClip = errors.New("audio clip is empty")

// Clip is one recorded utterance.
type Clip struct {
	Data        []byte
	ContentType string
	// Duration is the recording length the session asked for.
	Duration time.Duration
}

// Validate rejects clips the recognizer cannot use.
func (c Clip) Validate() error {
	if len(c.Data) == 0 {
		return ErrEmptyClip
	}
	return nil
}

// Filename picks an upload name whose extension matches the content type.
func (c Clip) Filename() string {
	switch c.ContentType {
	case ContentTypeWAV, "audio/x-wav", "audio/wave":
		return "clip.wav"
	case "audio/webm":
		return "clip.webm"
	case "audio/ogg":
		return "clip.ogg"
	case "audio/mpeg":
		return "clip.mp3"
	}
	if IsWAV(c.Data) {
		return "clip.wav"
	}
	return "clip.bin"
}

// Format describes a PCM stream.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

func (f Format) bytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// EncodeWAV wraps raw little-endian PCM samples in a canonical WAV header.
func EncodeWAV(pcm []byte, f Format) []byte {
	blockAlign := f.Channels * f.BitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(pcmFormat))
	binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(f.bytesPerSecond()))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeWAV returns the PCM format and sample data of a WAV file.
func DecodeWAV(data []byte) (Format, []byte, error) {
	if !IsWAV(data) {
		return Format{}, nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var f Format
	haveFmt := false
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) {
			// Recorders that stream WAV often leave the data size unset.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return Format{}, nil, fmt.Errorf("fmt chunk too short")
			}
			if tag := binary.LittleEndian.Uint16(data[body:]); tag != pcmFormat {
				return Format{}, nil, fmt.Errorf("unsupported WAV encoding %d", tag)
			}
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, fmt.Errorf("data chunk before fmt chunk")
			}
			return f, data[body:end], nil
		}

		off = end + size%2
	}

	return Format{}, nil, fmt.Errorf("no data chunk")
}

// Trim caps a PCM WAV clip at its Duration. Non-WAV clips and clips without a
// duration are returned as is.
func Trim(c Clip) (Clip, error) {
	if c.Duration <= 0 || !IsWAV(c.Data) {
		return c, nil
	}

	f, pcm, err := DecodeWAV(c.Data)
	if err != nil {
		return c, fmt.Errorf("failed to decode clip: %w", err)
	}
	if f.bytesPerSecond() == 0 {
		return c, fmt.Errorf("invalid WAV format %+v", f)
	}

	limit := int(c.Duration.Seconds() * float64(f.bytesPerSecond()))
	if align := f.Channels * f.BitsPerSample / 8; align > 0 {
		limit -= limit % align
	}
	if len(pcm) <= limit {
		return c, nil
	}

	c.Data = EncodeWAV(pcm[:limit], f)
	c.ContentType = ContentTypeWAV
	return c, nil
}
