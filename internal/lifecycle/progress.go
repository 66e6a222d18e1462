package lifecycle

import (
	"fmt"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// ProgressSnapshot is a point-in-time copy of a download's byte counters.
type ProgressSnapshot struct {
	DownloadedBytes int64  `json:"downloaded_bytes"`
	TotalBytes      *int64 `json:"total_bytes,omitempty"` // nil when the size is unknown
}

// String renders the snapshot as "400 B / 1.0 kB".
func (s ProgressSnapshot) String() string {
	total := "unknown"
	if s.TotalBytes != nil {
		total = humanize.Bytes(uint64(*s.TotalBytes))
	}
	return fmt.Sprintf("%s / %s", humanize.Bytes(uint64(s.DownloadedBytes)), total)
}

// Progress accumulates the bytes received during one download. It is owned by
// a single cycle and is not safe for concurrent use.
type Progress struct {
	downloaded int64
	total      *int64
	logger     *log.Entry
}

// NewProgress returns an empty accumulator that reports anomalies to logger.
func NewProgress(logger *log.Entry) *Progress {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Progress{logger: logger}
}

// OnStarted resets the counter and records the expected size, nil if unknown.
// A negative size is logged and treated as unknown.
func (p *Progress) OnStarted(contentLength *int64) {
	p.downloaded = 0
	p.total = nil
	if contentLength == nil {
		return
	}
	if *contentLength < 0 {
		p.logger.WithField("content_length", *contentLength).Warn("ignoring negative content length")
		return
	}
	n := *contentLength
	p.total = &n
}

// OnChunk adds a received chunk. Negative lengths are logged and ignored.
func (p *Progress) OnChunk(chunkLength int64) {
	if chunkLength < 0 {
		p.logger.WithField("chunk_length", chunkLength).Warn("ignoring negative download chunk")
		return
	}
	p.downloaded += chunkLength
}

// Snapshot returns a copy of the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	s := ProgressSnapshot{DownloadedBytes: p.downloaded}
	if p.total != nil {
		n := *p.total
		s.TotalBytes = &n
	}
	return s
}
