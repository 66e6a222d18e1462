package lifecycle

// Phase is the current step of an update cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseChecking
	PhaseAwaitingConfirmation
	PhaseDownloading
	PhaseInstalling
	PhaseRestarting
	PhaseCancelled
	PhaseFailed
	PhaseSucceeded
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseChecking:
		return "checking"
	case PhaseAwaitingConfirmation:
		return "awaiting-confirmation"
	case PhaseDownloading:
		return "downloading"
	case PhaseInstalling:
		return "installing"
	case PhaseRestarting:
		return "restarting"
	case PhaseCancelled:
		return "cancelled"
	case PhaseFailed:
		return "failed"
	case PhaseSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

// Terminal reports whether a cycle ends in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseCancelled || p == PhaseFailed || p == PhaseSucceeded
}

// Failure reasons carried by Outcome.Reason when the phase is PhaseFailed.
const (
	ReasonCheckFailed    = "check-failed"
	ReasonPromptFailed   = "prompt-failed"
	ReasonDownloadFailed = "download-failed"
	ReasonInstallFailed  = "install-failed"
	ReasonRestartFailed  = "restart-failed"
)
