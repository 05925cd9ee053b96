package upload

import (
	"time"

	"github.com/GriffinCanCode/stagingfs/internal/domain/sandbox"
	"github.com/GriffinCanCode/stagingfs/internal/shared/id"
)

// PartSuffix terminates every upload temp file name.
const PartSuffix = ".part"

// Task is one incoming file transfer. It is a value: each stage of the
// publisher returns an updated copy and never mutates the one it was given.
type Task struct {
	ID   id.UploadID
	User string
	// Name is the final base name of the file.
	Name string
	// Dir is the sandboxed destination directory.
	Dir sandbox.SandboxedPath
	// TempPath is where the content is received, next to DestPath.
	TempPath string
	// DestPath is the sandbox relative final location.
	DestPath string
	// Size is known once the content has been received.
	Size       int64
	ReceivedAt time.Time
}

func (t Task) received(size int64, at time.Time) Task {
	t.Size = size
	t.ReceivedAt = at
	return t
}

// Outcome reports how publishing one task settled.
type Outcome struct {
	Task        Task
	PublishedAt time.Time
	Err         error
}

// OK reports whether the file is visible at its destination.
func (o Outcome) OK() bool {
	return o.Err == nil
}
