package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NodeMetrics instruments a storage node. A nil *NodeMetrics records
// nothing.
type NodeMetrics struct {
	editSessions  prometheus.Counter
	commits       prometheus.Counter
	undos         *prometheus.CounterVec
	locksHeld     prometheus.Gauge
	lockConflicts prometheus.Counter
	filesStored   prometheus.Gauge
}

// NewNodeMetrics creates the node metric set, or nil when metrics are
// disabled.
func NewNodeMetrics() *NodeMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()

	return &NodeMetrics{
		editSessions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "docufs_node_edit_sessions_total",
			Help: "Interactive edit sessions opened",
		}),
		commits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "docufs_node_commits_total",
			Help: "Edit sessions committed with the end-of-session token",
		}),
		undos: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docufs_node_undo_total",
				Help: "Undo attempts by outcome",
			},
			[]string{"outcome"}, // "ok", "denied", "missing"
		),
		locksHeld: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "docufs_node_sentence_locks_held",
			Help: "Sentence locks currently held",
		}),
		lockConflicts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "docufs_node_lock_conflicts_total",
			Help: "Lock acquisitions rejected because another user held the sentence",
		}),
		filesStored: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "docufs_node_files_stored",
			Help: "Files present in the node's storage tree",
		}),
	}
}

// ObserveEditSession counts one opened edit session.
func (m *NodeMetrics) ObserveEditSession() {
	if m != nil {
		m.editSessions.Inc()
	}
}

// ObserveCommit counts one committed edit session.
func (m *NodeMetrics) ObserveCommit() {
	if m != nil {
		m.commits.Inc()
	}
}

// ObserveUndo counts one undo attempt with its outcome.
func (m *NodeMetrics) ObserveUndo(outcome string) {
	if m != nil {
		m.undos.WithLabelValues(outcome).Inc()
	}
}

// SetLocksHeld updates the held-locks gauge.
func (m *NodeMetrics) SetLocksHeld(n int) {
	if m != nil {
		m.locksHeld.Set(float64(n))
	}
}

// ObserveLockConflict counts one rejected lock acquisition.
func (m *NodeMetrics) ObserveLockConflict() {
	if m != nil {
		m.lockConflicts.Inc()
	}
}

// SetFilesStored updates the stored-files gauge.
func (m *NodeMetrics) SetFilesStored(n int) {
	if m != nil {
		m.filesStored.Set(float64(n))
	}
}
