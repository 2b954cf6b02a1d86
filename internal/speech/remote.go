package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
)

// RemoteOption configures the RemoteTransport.
type RemoteOption func(*RemoteTransport)

// WithAPIPrefix sets the path prefix in front of the speak endpoint.
func WithAPIPrefix(prefix string) RemoteOption {
	return func(t *RemoteTransport) {
		t.prefix = "/" + strings.Trim(prefix, "/")
		if t.prefix == "/" {
			t.prefix = ""
		}
	}
}

// WithFetchTimeout bounds each synthesis request.
func WithFetchTimeout(d time.Duration) RemoteOption {
	return func(t *RemoteTransport) {
		if d > 0 {
			t.fetchTimeout = d
		}
	}
}

// WithPollInterval sets how often the playback watcher checks the device.
func WithPollInterval(d time.Duration) RemoteOption {
	return func(t *RemoteTransport) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// WithHTTPClient replaces the HTTP client used for synthesis.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(t *RemoteTransport) {
		t.httpClient = c
	}
}

type sessionState int

const (
	stateIdle sessionState = iota
	stateFetching
	statePlaying
	stateFinished
	stateAborted
	stateFailed
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateFetching:
		return "fetching"
	case statePlaying:
		return "playing"
	case stateFinished:
		return "finished"
	case stateAborted:
		return "aborted"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s sessionState) terminal() bool {
	return s == stateFinished || s == stateAborted || s == stateFailed
}

// playbackSession is one utterance on the remote transport. Its state is
// guarded by RemoteTransport.mu.
type playbackSession struct {
	id       string
	state    sessionState
	cancel   context.CancelFunc
	clip     string
	playback Playback
	detail   error
	done     chan struct{} // closed on entering a terminal state

	cleanupOnce sync.Once
}

// RemoteTransport speaks by asking the synthesis service for audio,
// caching the clip on disk and playing it on the audio device. It holds
// at most one session at a time.
type RemoteTransport struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
	device     AudioDevice
	clips      *ClipStore
	log        *logger.Logger

	fetchTimeout time.Duration
	pollInterval time.Duration

	mu        sync.Mutex
	current   *playbackSession
	lastVoice string
}

// NewRemoteTransport creates a transport for the synthesis service at
// baseURL.
func NewRemoteTransport(baseURL string, device AudioDevice, clips *ClipStore, log *logger.Logger, opts ...RemoteOption) *RemoteTransport {
	t := &RemoteTransport{
		baseURL:      strings.TrimRight(baseURL, "/"),
		prefix:       "/api",
		httpClient:   &http.Client{},
		device:       device,
		clips:        clips,
		log:          log,
		fetchTimeout: DefaultFetchTimeout,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements domain.Transport.
func (t *RemoteTransport) Name() string { return "remote" }

// Voice returns the voice the service reported for the last clip.
func (t *RemoteTransport) Voice() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastVoice
}

// Render synthesizes text and blocks until the clip finished playing. It
// returns domain.ErrPlaybackAborted when cancelled and wraps
// domain.ErrTransportFailed for every other failure.
func (t *RemoteTransport) Render(ctx context.Context, text string) error {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &playbackSession{
		id:     uuid.NewString(),
		state:  stateIdle,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	t.mu.Lock()
	if prev := t.current; prev != nil {
		t.abortLocked(prev)
	}
	t.current = s
	s.state = stateFetching
	t.mu.Unlock()
	defer t.cleanup(s)

	t.log.Debug("remote tts: session %s fetching %d chars", s.id[:8], len(text))

	fetchCtx, fetchCancel := context.WithTimeout(sessCtx, t.fetchTimeout)
	audio, mime, err := t.synthesize(fetchCtx, text)
	fetchCancel()
	if err != nil {
		return t.fail(ctx, s, err)
	}
	if !t.stillFetching(s) {
		return domain.ErrPlaybackAborted
	}

	path, err := t.clips.Write(audio, mime)
	if err != nil {
		return t.fail(ctx, s, err)
	}
	t.mu.Lock()
	s.clip = path
	t.mu.Unlock()

	pb, err := t.device.Open(path)
	if err != nil {
		return t.fail(ctx, s, err)
	}

	t.mu.Lock()
	s.playback = pb
	if t.current != s || s.state != stateFetching {
		// Cancelled while the clip was loading.
		t.mu.Unlock()
		return domain.ErrPlaybackAborted
	}
	s.state = statePlaying
	pb.Play()
	t.mu.Unlock()

	t.log.Debug("remote tts: session %s playing %s", s.id[:8], mime)
	go t.watch(sessCtx, s)

	select {
	case <-s.done:
	case <-ctx.Done():
		t.mu.Lock()
		t.abortLocked(s)
		t.mu.Unlock()
	}

	t.mu.Lock()
	state, detail := s.state, s.detail
	t.mu.Unlock()

	switch state {
	case stateFinished:
		return nil
	case stateAborted:
		return domain.ErrPlaybackAborted
	default:
		return fmt.Errorf("%w: %v", domain.ErrTransportFailed, detail)
	}
}

// Cancel aborts the current session. While fetching the request is
// abandoned; while playing the device is paused. A no-op with no session.
func (t *RemoteTransport) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	t.abortLocked(t.current)
}

// Close aborts any session, removes leftover clips and releases the
// audio device.
func (t *RemoteTransport) Close() error {
	t.Cancel()
	if n, err := t.clips.Sweep(); err != nil {
		t.log.Warn("remote tts: sweeping clips: %v", err)
	} else if n > 0 {
		t.log.Debug("remote tts: swept %d leftover clips", n)
	}
	if t.device == nil {
		return nil
	}
	return t.device.Close()
}

// abortLocked moves s to aborted. Must be called with t.mu held.
func (t *RemoteTransport) abortLocked(s *playbackSession) {
	if s.state.terminal() {
		return
	}
	prev := s.state
	s.cancel()
	if s.playback != nil && prev == statePlaying {
		s.playback.Pause()
	}
	t.enterLocked(s, stateAborted)
	t.log.Debug("remote tts: session %s aborted while %s", s.id[:8], prev)
}

// enterLocked moves s into a terminal state once. Must be called with
// t.mu held.
func (t *RemoteTransport) enterLocked(s *playbackSession, state sessionState) {
	if s.state.terminal() {
		return
	}
	s.state = state
	close(s.done)
}

// stillFetching reports whether s is current and has not been cancelled.
func (t *RemoteTransport) stillFetching(s *playbackSession) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current == s && s.state == stateFetching
}

// fail records err on s unless the session was already aborted.
func (t *RemoteTransport) fail(ctx context.Context, s *playbackSession, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ctx.Err() != nil {
		t.abortLocked(s)
	}
	if s.state == stateAborted {
		return domain.ErrPlaybackAborted
	}
	s.detail = err
	t.enterLocked(s, stateFailed)
	return fmt.Errorf("%w: %v", domain.ErrTransportFailed, err)
}

// watch polls the device until the clip stops on its own. A clip that
// never starts within the fetch timeout fails the session.
func (t *RemoteTransport) watch(ctx context.Context, s *playbackSession) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
		}

		t.mu.Lock()
		if t.current != s || s.state != statePlaying {
			t.mu.Unlock()
			return
		}
		playing, progress := s.playback.IsPlaying(), s.playback.Progress()
		switch {
		case !playing && progress > 0:
			t.enterLocked(s, stateFinished)
		case !playing && time.Since(started) > t.fetchTimeout:
			s.detail = errors.New("playback never started")
			t.enterLocked(s, stateFailed)
		}
		t.mu.Unlock()
	}
}

// cleanup releases the session's clip and device handle exactly once.
func (t *RemoteTransport) cleanup(s *playbackSession) {
	s.cleanupOnce.Do(func() {
		t.mu.Lock()
		pb, clip := s.playback, s.clip
		if t.current == s {
			t.current = nil
		}
		t.mu.Unlock()

		if pb != nil {
			if err := pb.Close(); err != nil {
				t.log.Debug("remote tts: closing playback: %v", err)
			}
		}
		if clip != "" {
			if err := t.clips.Remove(clip); err != nil {
				t.log.Warn("remote tts: removing clip: %v", err)
			}
		}
	})
}

type speakRequest struct {
	Text string `json:"text"`
}

type speakResponse struct {
	AudioContent string `json:"audio_content"`
	AudioMime    string `json:"audio_mime"`
	VoiceUsed    string `json:"voice_used"`
}

// synthesize posts text to the speak endpoint and returns decoded audio.
func (t *RemoteTransport) synthesize(ctx context.Context, text string) ([]byte, string, error) {
	body, err := json.Marshal(speakRequest{Text: text})
	if err != nil {
		return nil, "", fmt.Errorf("encoding request: %w", err)
	}

	url := t.baseURL + t.prefix + SpeakPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "NavCompanion/1.0")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("synthesis error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out speakResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, "", fmt.Errorf("decoding response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, "", fmt.Errorf("decoding audio content: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", errors.New("service returned no audio")
	}

	t.mu.Lock()
	t.lastVoice = out.VoiceUsed
	t.mu.Unlock()

	t.log.Debug("remote tts: got %d bytes of %s audio (voice=%s)", len(audio), out.AudioMime, out.VoiceUsed)
	return audio, out.AudioMime, nil
}
