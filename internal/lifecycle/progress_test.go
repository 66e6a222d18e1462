package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(n int64) *int64 { return &n }

func TestProgress_Accumulates(t *testing.T) {
	p := NewProgress(nil)
	p.OnStarted(int64Ptr(1000))
	p.OnChunk(400)
	p.OnChunk(600)

	s := p.Snapshot()
	assert.Equal(t, int64(1000), s.DownloadedBytes)
	require.NotNil(t, s.TotalBytes)
	assert.Equal(t, int64(1000), *s.TotalBytes)
}

func TestProgress_StartedResets(t *testing.T) {
	p := NewProgress(nil)
	p.OnStarted(int64Ptr(100))
	p.OnChunk(80)

	p.OnStarted(nil)
	p.OnChunk(10)

	s := p.Snapshot()
	assert.Equal(t, int64(10), s.DownloadedBytes)
	assert.Nil(t, s.TotalBytes)
}

func TestProgress_NegativeChunkIgnored(t *testing.T) {
	p := NewProgress(nil)
	p.OnStarted(nil)
	p.OnChunk(50)
	p.OnChunk(-20)
	p.OnChunk(0)

	assert.Equal(t, int64(50), p.Snapshot().DownloadedBytes)
}

func TestProgress_NegativeContentLengthIsUnknown(t *testing.T) {
	p := NewProgress(nil)
	p.OnStarted(int64Ptr(100))
	p.OnChunk(40)

	p.OnStarted(int64Ptr(-1))
	p.OnChunk(10)

	s := p.Snapshot()
	assert.Equal(t, int64(10), s.DownloadedBytes)
	assert.Nil(t, s.TotalBytes)
	assert.Equal(t, "10 B / unknown", s.String())
}

func TestProgress_SnapshotIsCopy(t *testing.T) {
	total := int64(10)
	p := NewProgress(nil)
	p.OnStarted(&total)
	total = 99

	s := p.Snapshot()
	*s.TotalBytes = 5
	assert.Equal(t, int64(10), *p.Snapshot().TotalBytes)
}

func TestProgressSnapshot_String(t *testing.T) {
	tests := []struct {
		name string
		snap ProgressSnapshot
		want string
	}{
		{name: "known total", snap: ProgressSnapshot{DownloadedBytes: 400, TotalBytes: int64Ptr(1000)}, want: "400 B / 1.0 kB"},
		{name: "unknown total", snap: ProgressSnapshot{DownloadedBytes: 2000}, want: "2.0 kB / unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.String())
		})
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "awaiting-confirmation", PhaseAwaitingConfirmation.String())
	assert.Equal(t, "unknown", Phase(42).String())
	assert.True(t, PhaseCancelled.Terminal())
	assert.False(t, PhaseRestarting.Terminal())
}
