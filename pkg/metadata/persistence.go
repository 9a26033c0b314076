package metadata

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Registry snapshot format, line-oriented:
//
//	REGISTRY_V2
//	<file count>
//	FILE:<name>:<owner>:<node>:<folder>:<created>:<modified>:<accessed>:<size>:<words>:<chars>
//	ACL:<user>:<read>:<write>
//	CHK:<tag>:<creator>:<created>:<size>
//	END
//	FOLDER:<path>:<owner>:<created>
//
// Timestamps are unix seconds. The V1 layout (no folder field in FILE
// lines, no CHK/FOLDER lines) still loads. Sessions, access requests and
// the search cache are deliberately not persisted: sessions are meaningless
// across restarts and the cache rebuilds itself.

const (
	registryHeaderV1 = "REGISTRY_V1"
	registryHeaderV2 = "REGISTRY_V2"
)

// SaveRegistry snapshots the file registry, ACLs, checkpoint index, and
// folder tree to path. The write is atomic (temp file + rename).
func (s *Store) SaveRegistry(path string) error {
	var b strings.Builder

	s.mu.RLock()
	b.WriteString(registryHeaderV2 + "\n")
	fmt.Fprintf(&b, "%d\n", len(s.files))
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rec := s.files[name]
		fmt.Fprintf(&b, "FILE:%s:%s:%s:%s:%d:%d:%d:%d:%d:%d\n",
			rec.Name, rec.Owner, rec.NodeID, rec.Folder,
			rec.CreatedAt.Unix(), rec.ModifiedAt.Unix(), rec.AccessedAt.Unix(),
			rec.Size, rec.WordCount, rec.CharCount)
		for _, user := range sortedKeys(rec.ACL) {
			entry := rec.ACL[user]
			fmt.Fprintf(&b, "ACL:%s:%d:%d\n", entry.Username, boolBit(entry.CanRead), boolBit(entry.CanWrite))
		}
		for _, tag := range sortedKeys(rec.Checkpoints) {
			chk := rec.Checkpoints[tag]
			fmt.Fprintf(&b, "CHK:%s:%s:%d:%d\n", chk.Tag, chk.Creator, chk.CreatedAt.Unix(), chk.Size)
		}
		b.WriteString("END\n")
	}
	s.mu.RUnlock()

	s.foldersMu.Lock()
	paths := make([]string, 0, len(s.folders))
	for p := range s.folders {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		rec := s.folders[p]
		fmt.Fprintf(&b, "FOLDER:%s:%s:%d\n", rec.Path, rec.Owner, rec.CreatedAt.Unix())
	}
	s.foldersMu.Unlock()

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write registry snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace registry snapshot: %w", err)
	}
	return nil
}

// LoadRegistry restores a snapshot written by SaveRegistry (or by the
// legacy V1 writer). A missing file is not an error: the coordinator just
// starts fresh.
func (s *Store) LoadRegistry(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open registry snapshot: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return fmt.Errorf("registry snapshot %s is empty", path)
	}
	header := scanner.Text()
	var v2 bool
	switch header {
	case registryHeaderV1:
	case registryHeaderV2:
		v2 = true
	default:
		return fmt.Errorf("registry snapshot %s has unknown header %q", path, header)
	}

	// File count line; informational only.
	if !scanner.Scan() {
		return fmt.Errorf("registry snapshot %s truncated after header", path)
	}

	var current *FileRecord
	flush := func() {
		if current != nil {
			s.mu.Lock()
			s.files[current.Name] = current
			s.mu.Unlock()
			current = nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "FILE:"):
			flush()
			rec, err := parseFileLine(line[len("FILE:"):], v2)
			if err != nil {
				return fmt.Errorf("registry snapshot %s: %w", path, err)
			}
			current = rec
		case strings.HasPrefix(line, "ACL:"):
			if current == nil {
				continue
			}
			parts := strings.Split(line[len("ACL:"):], ":")
			if len(parts) != 3 {
				return fmt.Errorf("registry snapshot %s: malformed ACL line %q", path, line)
			}
			read := parts[1] == "1"
			write := parts[2] == "1"
			if write {
				read = true
			}
			if parts[0] != current.Owner && read {
				current.ACL[parts[0]] = &ACLEntry{Username: parts[0], CanRead: read, CanWrite: write}
			}
		case strings.HasPrefix(line, "CHK:"):
			if current == nil {
				continue
			}
			parts := strings.Split(line[len("CHK:"):], ":")
			if len(parts) != 4 {
				return fmt.Errorf("registry snapshot %s: malformed CHK line %q", path, line)
			}
			created, _ := strconv.ParseInt(parts[2], 10, 64)
			size, _ := strconv.ParseInt(parts[3], 10, 64)
			current.Checkpoints[parts[0]] = &CheckpointRecord{
				Tag:       parts[0],
				Creator:   parts[1],
				CreatedAt: time.Unix(created, 0),
				Size:      size,
			}
		case line == "END":
			flush()
		case strings.HasPrefix(line, "FOLDER:"):
			flush()
			parts := strings.Split(line[len("FOLDER:"):], ":")
			if len(parts) != 3 {
				return fmt.Errorf("registry snapshot %s: malformed FOLDER line %q", path, line)
			}
			created, _ := strconv.ParseInt(parts[2], 10, 64)
			s.foldersMu.Lock()
			s.folders[parts[0]] = &FolderRecord{
				Path:      parts[0],
				Owner:     parts[1],
				CreatedAt: time.Unix(created, 0),
			}
			s.foldersMu.Unlock()
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read registry snapshot %s: %w", path, err)
	}

	// Owners are users even if they never log in again.
	for _, rec := range s.ListFiles() {
		s.RegisterUser(rec.Owner)
		for user := range rec.ACL {
			s.RegisterUser(user)
		}
	}
	return nil
}

func parseFileLine(line string, v2 bool) (*FileRecord, error) {
	parts := strings.Split(line, ":")
	want := 9
	if v2 {
		want = 10
	}
	if len(parts) != want {
		return nil, fmt.Errorf("malformed FILE line %q", line)
	}

	rec := &FileRecord{
		Name:        parts[0],
		Owner:       parts[1],
		NodeID:      parts[2],
		ACL:         make(map[string]*ACLEntry),
		Checkpoints: make(map[string]*CheckpointRecord),
	}
	idx := 3
	if v2 {
		rec.Folder = parts[3]
		idx = 4
	}
	created, _ := strconv.ParseInt(parts[idx], 10, 64)
	modified, _ := strconv.ParseInt(parts[idx+1], 10, 64)
	accessed, _ := strconv.ParseInt(parts[idx+2], 10, 64)
	rec.CreatedAt = time.Unix(created, 0)
	rec.ModifiedAt = time.Unix(modified, 0)
	rec.AccessedAt = time.Unix(accessed, 0)
	rec.Size, _ = strconv.ParseInt(parts[idx+3], 10, 64)
	rec.WordCount, _ = strconv.Atoi(parts[idx+4])
	rec.CharCount, _ = strconv.Atoi(parts[idx+5])
	return rec, nil
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
