package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nadzzz/pathlight/internal/message"
)

// Recording is one captured utterance.
type Recording struct {
	Audio    []byte
	Filename string
}

// Recorder captures one utterance.
type Recorder interface {
	Record(ctx context.Context) (Recording, error)
}

// FileRecorder "records" by reading a prepared audio file.
type FileRecorder struct {
	Path string
}

// Record reads the file, refusing anything over the server's upload limit.
func (r FileRecorder) Record(ctx context.Context) (Recording, error) {
	if err := ctx.Err(); err != nil {
		return Recording{}, err
	}
	f, err := os.Open(r.Path)
	if err != nil {
		return Recording{}, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, message.MaxAudioBytes+1))
	if err != nil {
		return Recording{}, fmt.Errorf("reading recording: %w", err)
	}
	if len(data) == 0 {
		return Recording{}, errors.New("recording is empty")
	}
	if len(data) > message.MaxAudioBytes {
		return Recording{}, fmt.Errorf("recording exceeds %d bytes", message.MaxAudioBytes)
	}
	return Recording{Audio: data, Filename: filepath.Base(r.Path)}, nil
}
