package update

// DownloadEvent is emitted while an update is downloaded and installed.
// Started always precedes any Progress and Finished is always the last event.
type DownloadEvent interface {
	downloadEvent()
}

// Started marks the beginning of a download. ContentLength is nil when the
// server did not report a size.
type Started struct {
	ContentLength *int64
}

// Progress reports one chunk of received bytes. It is an increment, not a total.
type Progress struct {
	ChunkLength int64
}

// Finished marks the end of the download phase.
type Finished struct{}

func (Started) downloadEvent()  {}
func (Progress) downloadEvent() {}
func (Finished) downloadEvent() {}
