package session

import "sync/atomic"

// Stats: process-wide counters, safe for concurrent sessions.
type Stats struct {
	Sessions      atomic.Int64
	Active        atomic.Int64
	AuthFailures  atomic.Int64
	Transfers     atomic.Int64
	FailedXfers   atomic.Int64
	BytesSent     atomic.Uint64
	BytesReceived atomic.Uint64
}

// Snapshot: plain copy for reporting.
type Snapshot struct {
	Sessions      int64  `json:"sessions"`
	Active        int64  `json:"active"`
	AuthFailures  int64  `json:"auth_failures"`
	Transfers     int64  `json:"transfers"`
	FailedXfers   int64  `json:"failed_transfers"`
	BytesSent     uint64 `json:"bytes_sent"`
	BytesReceived uint64 `json:"bytes_received"`
}

// Snapshot reads all counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Sessions:      s.Sessions.Load(),
		Active:        s.Active.Load(),
		AuthFailures:  s.AuthFailures.Load(),
		Transfers:     s.Transfers.Load(),
		FailedXfers:   s.FailedXfers.Load(),
		BytesSent:     s.BytesSent.Load(),
		BytesReceived: s.BytesReceived.Load(),
	}
}
