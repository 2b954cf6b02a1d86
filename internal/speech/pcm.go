package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// wavFormat is the subset of the WAV "fmt " chunk the device cares about.
type wavFormat struct {
	channels      int
	sampleRate    int
	bitsPerSample int
}

// decodeClip turns an encoded clip into 16-bit little-endian stereo PCM at
// the device rate. ext selects the decoder.
func decodeClip(data []byte, ext string, rate int) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".wav":
		pcm, f, err := extractPCM(data)
		if err != nil {
			return nil, err
		}
		if f.bitsPerSample != BitDepth {
			return nil, fmt.Errorf("unsupported wav bit depth %d", f.bitsPerSample)
		}
		return resample(toStereo(pcm, f.channels), f.sampleRate, rate), nil
	case ".mp3":
		dec, err := mp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding mp3: %w", err)
		}
		// go-mp3 always yields 16-bit stereo.
		pcm, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("decoding mp3: %w", err)
		}
		return resample(pcm, dec.SampleRate(), rate), nil
	default:
		return nil, fmt.Errorf("unsupported clip format %q", ext)
	}
}

// extractPCM strips the WAV/RIFF header and returns raw PCM data along
// with its format.
func extractPCM(wav []byte) ([]byte, wavFormat, error) {
	f := wavFormat{channels: 1, sampleRate: SampleRate, bitsPerSample: BitDepth}
	if len(wav) < 44 {
		return nil, f, errors.New("wav data too short")
	}

	// Verify RIFF header.
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, f, errors.New("not a valid WAV file")
	}

	// Walk chunks; "fmt " precedes "data" in well-formed files.
	pos := 12
	for pos < len(wav)-8 {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		body := pos + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(wav) {
				return nil, f, errors.New("truncated fmt chunk")
			}
			f.channels = int(binary.LittleEndian.Uint16(wav[body+2 : body+4]))
			f.sampleRate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			f.bitsPerSample = int(binary.LittleEndian.Uint16(wav[body+14 : body+16]))
		case "data":
			end := body + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			return wav[body:end], f, nil
		}

		pos = body + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return nil, f, errors.New("no data chunk found in WAV")
}

// toStereo duplicates mono samples into both channels. Other layouts pass
// through unchanged.
func toStereo(pcm []byte, channels int) []byte {
	if channels != 1 {
		return pcm
	}
	out := make([]byte, 0, len(pcm)*2)
	for i := 0; i+1 < len(pcm); i += 2 {
		out = append(out, pcm[i], pcm[i+1], pcm[i], pcm[i+1])
	}
	return out
}

// resample converts stereo 16-bit PCM between sample rates with linear
// interpolation.
func resample(pcm []byte, from, to int) []byte {
	if from <= 0 || to <= 0 || from == to {
		return pcm
	}
	const frameSize = 4
	inFrames := len(pcm) / frameSize
	if inFrames == 0 {
		return pcm
	}
	outFrames := int(int64(inFrames) * int64(to) / int64(from))
	out := make([]byte, outFrames*frameSize)

	sample := func(frame, ch int) float64 {
		off := frame*frameSize + ch*2
		return float64(int16(binary.LittleEndian.Uint16(pcm[off : off+2])))
	}

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * float64(from) / float64(to)
		lo := int(pos)
		hi := lo + 1
		if hi >= inFrames {
			hi = inFrames - 1
		}
		frac := pos - float64(lo)
		for ch := 0; ch < 2; ch++ {
			v := sample(lo, ch)*(1-frac) + sample(hi, ch)*frac
			binary.LittleEndian.PutUint16(out[i*frameSize+ch*2:], uint16(int16(v)))
		}
	}
	return out
}
