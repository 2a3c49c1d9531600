package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultCommand plays a file with ffplay. Placeholders: {file} is the clip
// path, {volume} the master volume in [0,1], {volume100} the same in percent.
const DefaultCommand = "ffplay -nodisp -autoexit -loglevel quiet -volume {volume100} {file}"

// ExecPlayer plays clips through an external command. It is also the
// pilot's mixer: the master volume is applied to every clip it starts.
type ExecPlayer struct {
	command []string
	tempDir string

	mu     sync.Mutex
	volume float64
}

// NewExecPlayer creates a player from a command template. An empty template
// selects DefaultCommand.
func NewExecPlayer(template string, volume float64) *ExecPlayer {
	if strings.TrimSpace(template) == "" {
		template = DefaultCommand
	}
	fields := strings.Fields(template)
	if !strings.Contains(template, "{file}") {
		fields = append(fields, "{file}")
	}
	return &ExecPlayer{command: fields, tempDir: os.TempDir(), volume: volume}
}

// SetVolume sets the master volume for clips started afterwards.
func (p *ExecPlayer) SetVolume(v float64) {
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
}

// Volume returns the master volume.
func (p *ExecPlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Play writes clip to a temporary file and starts the command on it. The
// file is removed when playback ends.
func (p *ExecPlayer) Play(ctx context.Context, clip Clip) (Handle, error) {
	path := filepath.Join(p.tempDir, "pathlight-"+uuid.NewString()+extFor(clip.MIME))
	if err := os.WriteFile(path, clip.Data, 0o600); err != nil {
		return nil, fmt.Errorf("writing clip: %w", err)
	}

	args := p.args(path)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("starting %s: %w", args[0], err)
	}

	h := &execHandle{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		_ = os.Remove(path)
		h.finish(err)
	}()
	return h, nil
}

func (p *ExecPlayer) args(path string) []string {
	vol := p.Volume()
	r := strings.NewReplacer(
		"{file}", path,
		"{volume100}", strconv.Itoa(int(math.Round(vol*100))),
		"{volume}", strconv.FormatFloat(vol, 'f', 2, 64),
	)
	out := make([]string, len(p.command))
	for i, f := range p.command {
		out[i] = r.Replace(f)
	}
	return out
}

type execHandle struct {
	cmd *exec.Cmd

	mu      sync.Mutex
	stopped bool
	err     error
	done    chan struct{}
}

func (h *execHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return
	default:
	}
	h.stopped = true
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
}

func (h *execHandle) Done() <-chan struct{} { return h.done }

func (h *execHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *execHandle) finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var exitErr *exec.ExitError
	if h.stopped && (err == nil || errors.As(err, &exitErr)) {
		err = nil
	}
	h.err = err
	close(h.done)
}

func extFor(mime string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/aac":
		return ".aac"
	case "audio/flac":
		return ".flac"
	case "audio/mp4", "audio/m4a":
		return ".m4a"
	case "audio/webm":
		return ".webm"
	default:
		return ".bin"
	}
}
