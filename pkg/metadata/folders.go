package metadata

import (
	"sort"
	"strings"
	"time"
)

// normalizeFolder trims separators; the empty string is the root.
func normalizeFolder(path string) string {
	return strings.Trim(path, "/")
}

// CreateFolder creates a folder and any missing ancestors, all owned by
// owner. Creating an existing folder fails; auto-created ancestors do not.
func (s *Store) CreateFolder(path, owner string) error {
	path = normalizeFolder(path)
	if path == "" {
		return NewError(ErrFolderExists, "root folder always exists")
	}
	if strings.Contains(path, "//") || len(path) > MaxNameLen {
		return NewError(ErrBadRequest, "invalid folder path %q", path)
	}

	s.foldersMu.Lock()
	defer s.foldersMu.Unlock()
	if _, ok := s.folders[path]; ok {
		return NewError(ErrFolderExists, "folder %q already exists", path)
	}

	now := time.Now()
	parts := strings.Split(path, "/")
	prefix := ""
	for _, part := range parts {
		if prefix == "" {
			prefix = part
		} else {
			prefix = prefix + "/" + part
		}
		if _, ok := s.folders[prefix]; !ok {
			s.folders[prefix] = &FolderRecord{Path: prefix, Owner: owner, CreatedAt: now}
		}
	}
	return nil
}

// FolderExists reports whether path exists. The root always does.
func (s *Store) FolderExists(path string) bool {
	path = normalizeFolder(path)
	if path == "" {
		return true
	}
	s.foldersMu.Lock()
	defer s.foldersMu.Unlock()
	_, ok := s.folders[path]
	return ok
}

// ListFolders returns a snapshot of all folder records sorted by path.
func (s *Store) ListFolders() []FolderRecord {
	s.foldersMu.Lock()
	out := make([]FolderRecord, 0, len(s.folders))
	for _, rec := range s.folders {
		out = append(out, *rec)
	}
	s.foldersMu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// FilesInFolder returns copies of all file records whose folder attribute
// equals path, sorted by name.
func (s *Store) FilesInFolder(path string) []*FileRecord {
	path = normalizeFolder(path)
	s.mu.RLock()
	var out []*FileRecord
	for _, rec := range s.files {
		if rec.Folder == path {
			out = append(out, rec.clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
