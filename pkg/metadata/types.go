// Package metadata implements the coordinator's metadata store: the file
// registry with ACLs and checkpoint indexes, the folder tree, the user
// registry and active-session set, the access-request queue, and the LRU
// search cache.
//
// All tables live in memory behind per-subsystem locks; critical sections
// are small and no I/O happens under a lock. The file registry (plus ACLs,
// checkpoints and folders) survives restarts through the line-oriented
// registry snapshot (see persistence.go).
package metadata

import "time"

// MaxNameLen bounds file names; names also ride in 256-byte wire fields.
const MaxNameLen = 255

// ACLEntry grants a user access to a file. The owner never appears in the
// ACL; write access implies read.
type ACLEntry struct {
	Username string
	CanRead  bool
	CanWrite bool
}

// CheckpointRecord indexes one named checkpoint of a file. The bytes live
// on the owning node under its checkpoints directory.
type CheckpointRecord struct {
	Tag       string
	Creator   string
	CreatedAt time.Time
	Size      int64
}

// FileRecord is one entry of the file registry. Names are globally unique
// across the cluster; Folder is an attribute, not part of the name.
type FileRecord struct {
	Name       string
	Owner      string
	NodeID     string
	Folder     string
	CreatedAt  time.Time
	ModifiedAt time.Time
	AccessedAt time.Time

	// Cached stats, refreshed from the owning node when reachable.
	Size      int64
	WordCount int
	CharCount int

	ACL         map[string]*ACLEntry
	Checkpoints map[string]*CheckpointRecord
}

// clone returns a deep copy safe to hand out without the registry lock.
func (f *FileRecord) clone() *FileRecord {
	c := *f
	c.ACL = make(map[string]*ACLEntry, len(f.ACL))
	for k, v := range f.ACL {
		e := *v
		c.ACL[k] = &e
	}
	c.Checkpoints = make(map[string]*CheckpointRecord, len(f.Checkpoints))
	for k, v := range f.Checkpoints {
		e := *v
		c.Checkpoints[k] = &e
	}
	return &c
}

// FolderRecord is one folder in the coordinator-only folder tree. The empty
// path is the root and always exists implicitly.
type FolderRecord struct {
	Path      string
	Owner     string
	CreatedAt time.Time
}

// RequestStatus is the lifecycle state of an access request.
type RequestStatus int

const (
	RequestPending RequestStatus = iota
	RequestApproved
	RequestDenied
)

func (s RequestStatus) String() string {
	switch s {
	case RequestApproved:
		return "approved"
	case RequestDenied:
		return "denied"
	default:
		return "pending"
	}
}

// AccessRequest is a pending (or resolved) request for file access.
// AccessType is the wire mask: bit0 read, bit1 write.
type AccessRequest struct {
	ID          int32
	Requester   string
	File        string
	AccessType  int32
	RequestedAt time.Time
	Status      RequestStatus
}

// Session is one active client session. At most one exists per username
// cluster-wide.
type Session struct {
	Username   string
	RemoteAddr string
	Since      time.Time
}
