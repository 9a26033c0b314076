package coordinator

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
)

// NodeState is the coordinator-side view of a storage node.
type NodeState int

const (
	NodeActive NodeState = iota
	NodeFailed
)

func (s NodeState) String() string {
	if s == NodeActive {
		return "ACTIVE"
	}
	return "FAILED"
}

// nodeRecord tracks one registered storage node. The mutex serializes every
// request/reply exchange on the control channel: the node answers frames in
// order, so interleaved writers would cross-read each other's replies.
type nodeRecord struct {
	ID          string
	IP          string
	ClientPort  int32
	ControlPort int32

	mu           sync.Mutex
	conn         net.Conn
	state        NodeState
	lastBeat     time.Time
	registeredAt time.Time
}

// NodeInfo is a snapshot of one node for listings and the admin API.
type NodeInfo struct {
	ID           string    `json:"id"`
	Addr         string    `json:"addr"`
	ClientPort   int32     `json:"client_port"`
	ControlPort  int32     `json:"control_port"`
	State        string    `json:"state"`
	LastBeat     time.Time `json:"last_heartbeat"`
	RegisteredAt time.Time `json:"registered_at"`
	Files        int       `json:"files"`
}

// nodeManager owns the node table. Records are never evicted; a node that
// re-registers under a known id reuses its record (rejoin).
type nodeManager struct {
	mu             sync.Mutex
	nodes          map[string]*nodeRecord
	order          []string // ids in first-registration order
	controlTimeout time.Duration
}

func newNodeManager(controlTimeout time.Duration) *nodeManager {
	return &nodeManager{
		nodes:          make(map[string]*nodeRecord),
		controlTimeout: controlTimeout,
	}
}

// known reports whether nodeID has ever registered.
func (m *nodeManager) known(nodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[nodeID]
	return ok
}

// register installs (or revives) a node record and takes ownership of the
// accepted registration socket as the node's permanent control channel.
// The ack is written while rec.mu is held so it reaches the node before any
// control frame; the failure detector and callers contend on the same lock.
func (m *nodeManager) register(a *wire.NodeAnnouncement, conn net.Conn, ack *wire.Message) error {
	m.mu.Lock()
	rec, ok := m.nodes[a.ID]
	if !ok {
		rec = &nodeRecord{ID: a.ID, registeredAt: time.Now()}
		m.nodes[a.ID] = rec
		m.order = append(m.order, a.ID)
	}
	m.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.conn != nil {
		_ = rec.conn.Close()
	}
	rec.IP = a.IP
	rec.ClientPort = a.ClientPort
	rec.ControlPort = a.ControlPort
	rec.conn = conn
	rec.state = NodeActive
	rec.lastBeat = time.Now()

	if err := wire.WriteMessage(conn, ack); err != nil {
		m.failLocked(rec)
		return fmt.Errorf("ack registration of %q: %w", a.ID, err)
	}
	return nil
}

// call sends one frame on nodeID's control channel and reads the reply,
// holding the node lock for the whole exchange. An I/O error marks the
// node FAILED.
func (m *nodeManager) call(nodeID string, req *wire.Message) (*wire.Message, error) {
	m.mu.Lock()
	rec, ok := m.nodes[nodeID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("node %q is not registered", nodeID)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.state != NodeActive || rec.conn == nil {
		return nil, fmt.Errorf("node %q is not active", nodeID)
	}

	deadline := time.Now().Add(m.controlTimeout)
	_ = rec.conn.SetDeadline(deadline)
	if err := wire.WriteMessage(rec.conn, req); err != nil {
		m.failLocked(rec)
		return nil, fmt.Errorf("control write to %q: %w", nodeID, err)
	}
	resp, err := wire.ReadMessage(rec.conn)
	if err != nil {
		m.failLocked(rec)
		return nil, fmt.Errorf("control read from %q: %w", nodeID, err)
	}
	rec.lastBeat = time.Now()
	return resp, nil
}

// failLocked flips rec to FAILED. Caller holds rec.mu.
func (m *nodeManager) failLocked(rec *nodeRecord) {
	if rec.state == NodeActive {
		logger.Warn("storage node marked failed", logger.KeyNodeID, rec.ID)
	}
	rec.state = NodeFailed
	if rec.conn != nil {
		_ = rec.conn.Close()
		rec.conn = nil
	}
}

// markFailed flips nodeID to FAILED from outside a control exchange.
func (m *nodeManager) markFailed(nodeID string) {
	m.mu.Lock()
	rec, ok := m.nodes[nodeID]
	m.mu.Unlock()
	if !ok {
		return
	}
	rec.mu.Lock()
	m.failLocked(rec)
	rec.mu.Unlock()
}

// isActive reports whether nodeID is registered and ACTIVE.
func (m *nodeManager) isActive(nodeID string) bool {
	m.mu.Lock()
	rec, ok := m.nodes[nodeID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.state == NodeActive
}

// endpoint returns the client-facing (ip, port) for referrals.
func (m *nodeManager) endpoint(nodeID string) (string, int32, bool) {
	m.mu.Lock()
	rec, ok := m.nodes[nodeID]
	m.mu.Unlock()
	if !ok {
		return "", 0, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state != NodeActive {
		return "", 0, false
	}
	return rec.IP, rec.ClientPort, true
}

// firstActive returns the first ACTIVE node in registration order,
// skipping exclude. Default create placement uses it.
func (m *nodeManager) firstActive(exclude string) (string, bool) {
	m.mu.Lock()
	ids := append([]string(nil), m.order...)
	m.mu.Unlock()
	for _, id := range ids {
		if id != exclude && m.isActive(id) {
			return id, true
		}
	}
	return "", false
}

// pickActive returns an active node id, preferring ones other than
// exclude. Used for failover targets (fewest files wins, via less).
func (m *nodeManager) pickActive(exclude string, less func(a, b string) bool) (string, bool) {
	ids := m.activeIDs()
	best := ""
	for _, id := range ids {
		if id == exclude {
			continue
		}
		if best == "" || (less != nil && less(id, best)) {
			best = id
		}
	}
	return best, best != ""
}

// activeIDs returns the sorted ids of all ACTIVE nodes.
func (m *nodeManager) activeIDs() []string {
	m.mu.Lock()
	recs := make([]*nodeRecord, 0, len(m.nodes))
	for _, rec := range m.nodes {
		recs = append(recs, rec)
	}
	m.mu.Unlock()

	var ids []string
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.state == NodeActive {
			ids = append(ids, rec.ID)
		}
		rec.mu.Unlock()
	}
	sort.Strings(ids)
	return ids
}

// counts returns (registered, active).
func (m *nodeManager) counts() (int, int) {
	m.mu.Lock()
	recs := make([]*nodeRecord, 0, len(m.nodes))
	for _, rec := range m.nodes {
		recs = append(recs, rec)
	}
	m.mu.Unlock()

	active := 0
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.state == NodeActive {
			active++
		}
		rec.mu.Unlock()
	}
	return len(recs), active
}

// snapshot returns the node table sorted by id. fileCount supplies the
// per-node file tally (nil for zero).
func (m *nodeManager) snapshot(fileCount func(nodeID string) int) []NodeInfo {
	m.mu.Lock()
	recs := make([]*nodeRecord, 0, len(m.nodes))
	for _, rec := range m.nodes {
		recs = append(recs, rec)
	}
	m.mu.Unlock()

	out := make([]NodeInfo, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		info := NodeInfo{
			ID:           rec.ID,
			Addr:         rec.IP,
			ClientPort:   rec.ClientPort,
			ControlPort:  rec.ControlPort,
			State:        rec.state.String(),
			LastBeat:     rec.lastBeat,
			RegisteredAt: rec.registeredAt,
		}
		rec.mu.Unlock()
		if fileCount != nil {
			info.Files = fileCount(info.ID)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// closeAll closes every control channel (shutdown path). Nodes stay in
// whatever state they were.
func (m *nodeManager) closeAll() {
	m.mu.Lock()
	recs := make([]*nodeRecord, 0, len(m.nodes))
	for _, rec := range m.nodes {
		recs = append(recs, rec)
	}
	m.mu.Unlock()

	for _, rec := range recs {
		rec.mu.Lock()
		if rec.conn != nil {
			_ = rec.conn.Close()
			rec.conn = nil
		}
		rec.mu.Unlock()
	}
}
