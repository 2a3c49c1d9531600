package pilot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/pathlight/internal/feedback"
)

// FileNotes appends pilot feedback notes to a JSON Lines file in the same
// record format the server's file mirror writes.
type FileNotes struct {
	mirror *feedback.FileMirror
	now    func() time.Time
}

// NewFileNotes creates a note saver writing to path.
func NewFileNotes(path string) *FileNotes {
	return &FileNotes{mirror: feedback.NewFileMirror(path), now: time.Now}
}

// Path returns the log file path.
func (n *FileNotes) Path() string { return n.mirror.Path() }

// SaveNote appends note as one record.
func (n *FileNotes) SaveNote(ctx context.Context, note string) error {
	return n.mirror.Write(ctx, feedback.Item{
		ID:        uuid.NewString(),
		Timestamp: n.now().UTC(),
		Note:      note,
	})
}
