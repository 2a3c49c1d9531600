// Package pilot applies the actions returned by the dispatch server to the
// voice client's local state.
package pilot

import (
	"errors"
	"math"
	"sync"
	"time"
)

// Volume bounds.
const (
	MinVolume = 0.0
	MaxVolume = 1.0
)

// ErrAlreadyRecording is returned when a recording is started while another
// one is in progress.
var ErrAlreadyRecording = errors.New("already recording")

// ClampVolume bounds v to [MinVolume, MaxVolume]. NaN clamps to MinVolume.
// It is the only place volume bounds are enforced.
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) || v < MinVolume {
		return MinVolume
	}
	if v > MaxVolume {
		return MaxVolume
	}
	return v
}

// Mixer receives every master volume change.
type Mixer interface {
	SetVolume(v float64)
}

// Settings seeds a State.
type Settings struct {
	ServerTTS     bool
	Voice         string
	Volume        float64
	PlaybackDelay time.Duration
}

// Snapshot is a point-in-time copy of a State.
type Snapshot struct {
	Recording     bool
	ServerTTS     bool
	Voice         string
	Volume        float64
	PlaybackDelay time.Duration
}

// State is the pilot's mutable client state. It is safe for concurrent use.
type State struct {
	mixer Mixer

	mu            sync.Mutex
	recording     bool
	serverTTS     bool
	voice         string
	volume        float64
	playbackDelay time.Duration
}

// NewState creates a state from s and pushes the initial volume to mixer.
// mixer may be nil.
func NewState(s Settings, mixer Mixer) *State {
	st := &State{
		mixer:         mixer,
		serverTTS:     s.ServerTTS,
		voice:         s.Voice,
		playbackDelay: s.PlaybackDelay,
	}
	st.SetVolume(s.Volume)
	return st
}

// Snapshot returns a copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Recording:     s.recording,
		ServerTTS:     s.serverTTS,
		Voice:         s.voice,
		Volume:        s.volume,
		PlaybackDelay: s.playbackDelay,
	}
}

// BeginRecording claims the recorder.
func (s *State) BeginRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return ErrAlreadyRecording
	}
	s.recording = true
	return nil
}

// EndRecording releases the recorder.
func (s *State) EndRecording() {
	s.mu.Lock()
	s.recording = false
	s.mu.Unlock()
}

// SetServerTTS sets whether replies are requested with synthesized audio.
func (s *State) SetServerTTS(enabled bool) {
	s.mu.Lock()
	s.serverTTS = enabled
	s.mu.Unlock()
}

// SetVoice sets the voice requested for replies.
func (s *State) SetVoice(voice string) {
	s.mu.Lock()
	s.voice = voice
	s.mu.Unlock()
}

// SetVolume clamps v, stores it and writes it through to the mixer.
func (s *State) SetVolume(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setVolumeLocked(v)
}

// AdjustVolume adds delta to the master volume.
func (s *State) AdjustVolume(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setVolumeLocked(s.volume + delta)
}

func (s *State) setVolumeLocked(v float64) float64 {
	s.volume = ClampVolume(v)
	if s.mixer != nil {
		s.mixer.SetVolume(s.volume)
	}
	return s.volume
}
