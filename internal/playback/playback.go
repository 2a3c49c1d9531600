// Package playback sequences reply audio on the pilot.
//
// A Sequencer owns at most one playing handle. Every new trigger cancels a
// pending delayed trigger and stops the current handle before starting, so
// replies never overlap. The clip most recently started successfully is kept
// for "repeat last".
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultDelay holds reply audio back while a screen reader narrates the
// status change that preceded it.
const DefaultDelay = 3 * time.Second

// Clip is playable audio and its declared MIME type.
type Clip struct {
	Data []byte
	MIME string
}

// Empty reports whether the clip carries no audio.
func (c Clip) Empty() bool { return len(c.Data) == 0 }

// Handle is one running playback.
type Handle interface {
	// Stop ends playback early. It is safe to call more than once.
	Stop()
	// Done is closed when playback has ended for any reason.
	Done() <-chan struct{}
	// Err reports why playback ended; nil after a clean finish or Stop.
	Err() error
}

// Player starts playback of a clip.
type Player interface {
	Play(ctx context.Context, clip Clip) (Handle, error)
}

// ErrEmptyClip is returned when asked to play no audio.
var ErrEmptyClip = errors.New("empty clip")

// Sequencer serialises playback through a Player.
type Sequencer struct {
	player Player

	// OnError observes playback failures; they are never returned to the
	// flow that scheduled the clip.
	OnError func(error)

	mu      sync.Mutex
	seq     uint64             // bumped by every trigger; stale triggers drop out
	pending context.CancelFunc // delayed trigger not yet fired
	current Handle
	last    *Clip
	wg      sync.WaitGroup
}

// NewSequencer creates a sequencer playing through player.
func NewSequencer(player Player) *Sequencer {
	return &Sequencer{player: player}
}

// PlayDelayed schedules clip to play after delay and returns immediately.
// A non-positive delay plays at once. A later trigger or Stop cancels the
// scheduled playback.
func (s *Sequencer) PlayDelayed(ctx context.Context, clip Clip, delay time.Duration) {
	if delay <= 0 {
		if err := s.PlayNow(ctx, clip); err != nil {
			s.report(err)
		}
		return
	}

	s.mu.Lock()
	seq := s.preemptLocked()
	tctx, cancel := context.WithCancel(ctx)
	s.pending = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-tctx.Done():
			return
		}
		if err := s.start(ctx, clip, seq); err != nil {
			s.report(err)
		}
	}()
}

// PlayNow stops whatever is playing and starts clip.
func (s *Sequencer) PlayNow(ctx context.Context, clip Clip) error {
	s.mu.Lock()
	seq := s.preemptLocked()
	s.mu.Unlock()
	return s.start(ctx, clip, seq)
}

// Last returns the clip most recently played.
func (s *Sequencer) Last() (Clip, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Clip{}, false
	}
	return *s.last, true
}

// Stop cancels any scheduled clip and stops the current one.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	s.preemptLocked()
	s.mu.Unlock()
}

// Wait blocks until no clip is scheduled or playing, or ctx ends.
func (s *Sequencer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// preemptLocked cancels the pending trigger and stops the current handle.
func (s *Sequencer) preemptLocked() uint64 {
	s.seq++
	if s.pending != nil {
		s.pending()
		s.pending = nil
	}
	if s.current != nil {
		s.current.Stop()
		s.current = nil
	}
	return s.seq
}

func (s *Sequencer) start(ctx context.Context, clip Clip, seq uint64) error {
	if clip.Empty() {
		return ErrEmptyClip
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		// Superseded while waiting.
		return nil
	}
	s.pending = nil

	h, err := s.player.Play(ctx, clip)
	if err != nil {
		return fmt.Errorf("starting playback: %w", err)
	}
	s.current = h
	cached := Clip{Data: append([]byte(nil), clip.Data...), MIME: clip.MIME}
	s.last = &cached
	slog.Debug("playback started", "bytes", len(clip.Data), "mime", clip.MIME)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-h.Done()
		s.mu.Lock()
		if s.current == h {
			s.current = nil
		}
		s.mu.Unlock()
		if err := h.Err(); err != nil {
			s.report(fmt.Errorf("playback: %w", err))
		}
	}()
	return nil
}

func (s *Sequencer) report(err error) {
	slog.Warn("audio playback failed", "error", err)
	if s.OnError != nil {
		s.OnError(err)
	}
}
