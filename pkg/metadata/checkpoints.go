package metadata

import (
	"sort"
	"time"
)

// AddCheckpoint indexes a checkpoint under a file. Tags are unique per
// file.
func (s *Store) AddCheckpoint(file, tag, creator string, size int64) error {
	if tag == "" || len(tag) > MaxNameLen {
		return NewError(ErrBadRequest, "invalid checkpoint tag %q", tag)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[file]
	if !ok {
		return NewError(ErrNotFound, "file %q not found", file)
	}
	if _, ok := rec.Checkpoints[tag]; ok {
		return NewError(ErrCheckpointExists, "checkpoint %q already exists on %q", tag, file)
	}
	rec.Checkpoints[tag] = &CheckpointRecord{
		Tag:       tag,
		Creator:   creator,
		CreatedAt: time.Now(),
		Size:      size,
	}
	return nil
}

// GetCheckpoint returns a copy of the checkpoint record.
func (s *Store) GetCheckpoint(file, tag string) (*CheckpointRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[file]
	if !ok {
		return nil, NewError(ErrNotFound, "file %q not found", file)
	}
	chk, ok := rec.Checkpoints[tag]
	if !ok {
		return nil, NewError(ErrCheckpointMissing, "checkpoint %q not found on %q", tag, file)
	}
	out := *chk
	return &out, nil
}

// ListCheckpoints returns the file's checkpoints sorted by creation time.
func (s *Store) ListCheckpoints(file string) ([]CheckpointRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[file]
	if !ok {
		return nil, NewError(ErrNotFound, "file %q not found", file)
	}
	out := make([]CheckpointRecord, 0, len(rec.Checkpoints))
	for _, chk := range rec.Checkpoints {
		out = append(out, *chk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
