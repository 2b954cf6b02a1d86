package speech

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/navcompanion/internal/logger"
)

// AudioDevice is the shared audio output. Open loads a cached clip and
// returns a paused Playback for it.
type AudioDevice interface {
	Open(path string) (Playback, error)
	Close() error
}

// Playback is one clip loaded on the device.
type Playback interface {
	Play()
	Pause()
	IsPlaying() bool
	// Progress reports how many bytes of audio the device has consumed.
	Progress() int64
	Close() error
}

// OtoDevice plays clips through oto. Only one oto context may exist per
// process, so create a single OtoDevice at startup.
type OtoDevice struct {
	ctx        *oto.Context
	log        *logger.Logger
	sampleRate int
}

// NewOtoDevice initializes the system audio context. Returns an error if
// the audio device is unavailable.
func NewOtoDevice(sampleRate int, log *logger.Logger) (*OtoDevice, error) {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("opening audio device: %w", err)
	}
	<-readyChan

	log.Debug("audio device initialized (rate=%d, channels=%d)", sampleRate, ChannelCount)
	return &OtoDevice{ctx: ctx, log: log, sampleRate: sampleRate}, nil
}

// Open decodes the clip at path into device-format PCM.
func (d *OtoDevice) Open(path string) (Playback, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading clip: %w", err)
	}
	pcm, err := decodeClip(data, filepath.Ext(path), d.sampleRate)
	if err != nil {
		return nil, err
	}

	src := &countingReader{r: bytes.NewReader(pcm)}
	player := d.ctx.NewPlayer(src)
	d.log.Debug("audio device: loaded %d bytes of PCM from %s", len(pcm), filepath.Base(path))
	return &otoPlayback{player: player, src: src}, nil
}

// Close suspends the audio context. oto contexts cannot be destroyed.
func (d *OtoDevice) Close() error {
	return d.ctx.Suspend()
}

type otoPlayback struct {
	player *oto.Player
	src    *countingReader
}

func (p *otoPlayback) Play()           { p.player.Play() }
func (p *otoPlayback) Pause()          { p.player.Pause() }
func (p *otoPlayback) IsPlaying() bool { return p.player.IsPlaying() }
func (p *otoPlayback) Progress() int64 { return p.src.n.Load() }
func (p *otoPlayback) Close() error    { return p.player.Close() }

// countingReader tracks how much PCM the player has pulled.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
