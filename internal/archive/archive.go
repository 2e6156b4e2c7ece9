// Package archive writes timestamped JSON snapshots of the publishable
// canonical state.
package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/draftiq/scoutsync/internal/model"
)

// FileArchiver writes one JSON snapshot file per pipeline run.
type FileArchiver struct {
	dir string
	now func() time.Time
}

// NewFileArchiver creates an archiver writing under dir.
func NewFileArchiver(dir string) *FileArchiver {
	return &FileArchiver{
		dir: dir,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithNow sets a fixed clock for testing.
func (a *FileArchiver) WithNow(t time.Time) *FileArchiver {
	a.now = func() time.Time { return t }
	return a
}

type snapshotEntity struct {
	Entity model.CanonicalEntity `json:"entity"`
	Fields []model.FieldValue    `json:"fields"`
}

type snapshot struct {
	TakenAt  time.Time        `json:"taken_at"`
	Entities []snapshotEntity `json:"entities"`
}

// Snapshot writes the entities and their resolved fields to a timestamped
// file and returns its path.
func (a *FileArchiver) Snapshot(ctx context.Context, entities []model.CanonicalEntity, fields map[string][]model.FieldValue) (string, error) {
	if ctx.Err() != nil {
		return "", eris.Wrap(ctx.Err(), "archive: context cancelled")
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "archive: create dir %s", a.dir)
	}

	snap := snapshot{
		TakenAt:  a.now(),
		Entities: make([]snapshotEntity, 0, len(entities)),
	}
	for _, ent := range entities {
		snap.Entities = append(snap.Entities, snapshotEntity{
			Entity: ent,
			Fields: fields[ent.ID],
		})
	}

	path := filepath.Join(a.dir, snap.TakenAt.Format("20060102T150405Z")+".json")
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "archive: marshal snapshot")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "archive: write %s", path)
	}
	return path, nil
}
