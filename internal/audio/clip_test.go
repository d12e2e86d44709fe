package audio

import (
	"errors"
	"testing"
	"time"
)

var mono16k = Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

func TestEncodeDecodeWAV(t *testing.T) {
	pcm := make([]byte, 3200)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	wav := EncodeWAV(pcm, mono16k)
	if !IsWAV(wav) {
		t.Fatal("expected RIFF/WAVE header")
	}
	if len(wav) != 44+len(pcm) {
		t.Errorf("expected %d bytes, got %d", 44+len(pcm), len(wav))
	}

	f, data, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if f != mono16k {
		t.Errorf("expected %+v, got %+v", mono16k, f)
	}
	if len(data) != len(pcm) || data[100] != pcm[100] {
		t.Error("decoded samples differ from input")
	}
}

func TestDecodeWAV_NotWAV(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("OggS....")); err == nil {
		t.Error("expected error for non-WAV input")
	}
}

func TestTrim(t *testing.T) {
	// 4 seconds of 16 kHz mono 16-bit audio.
	pcm := make([]byte, 4*32000)
	wav := EncodeWAV(pcm, mono16k)

	tests := []struct {
		name     string
		duration time.Duration
		wantPCM  int
	}{
		{name: "longer than clip", duration: 5 * time.Second, wantPCM: len(pcm)},
		{name: "cut to three seconds", duration: 3 * time.Second, wantPCM: 3 * 32000},
		{name: "no duration", duration: 0, wantPCM: len(pcm)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Trim(Clip{Data: wav, ContentType: ContentTypeWAV, Duration: tt.duration})
			if err != nil {
				t.Fatalf("Trim failed: %v", err)
			}
			_, data, err := DecodeWAV(out.Data)
			if err != nil {
				t.Fatalf("trimmed clip is not valid WAV: %v", err)
			}
			if len(data) != tt.wantPCM {
				t.Errorf("expected %d PCM bytes, got %d", tt.wantPCM, len(data))
			}
		})
	}
}

func TestTrim_PassesThroughOtherContainers(t *testing.T) {
	in := Clip{Data: []byte("webm-bytes"), ContentType: "audio/webm", Duration: 3 * time.Second}

	out, err := Trim(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out.Data) != "webm-bytes" {
		t.Error("expected non-WAV clip to pass through")
	}
}

func TestClip_Validate(t *testing.T) {
	if err := (Clip{}).Validate(); !errors.Is(err, ErrEmptyClip) {
		t.Errorf("expected ErrEmptyClip, got %v", err)
	}
	if err := (Clip{Data: []byte{1}}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClip_Filename(t *testing.T) {
	wav := EncodeWAV(make([]byte, 2), mono16k)

	tests := []struct {
		clip Clip
		want string
	}{
		{Clip{ContentType: "audio/webm"}, "clip.webm"},
		{Clip{ContentType: "audio/wav"}, "clip.wav"},
		{Clip{Data: wav}, "clip.wav"},
		{Clip{Data: []byte("??")}, "clip.bin"},
	}
	for _, tt := range tests {
		if got := tt.clip.Filename(); got != tt.want {
			t.Errorf("Filename() = %q, want %q", got, tt.want)
		}
	}
}
