// Package lifecycle drives a single self-update cycle: check, confirm,
// download, install and restart.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/adamancini/selfup/internal/update"
)

// ErrCycleInProgress is returned by Run when another cycle has not finished yet.
var ErrCycleInProgress = errors.New("update cycle already in progress")

const defaultEventBuffer = 16

// User-visible texts.
const (
	titleUpdater   = "Updater"
	titleNoUpdate  = "No Update Found"
	titleAvailable = "Update Available"
	titleError     = "Updater Error"

	msgChecking    = "Checking for updates..."
	msgLatest      = "You're already using the latest version."
	msgCancelled   = "Update cancelled."
	msgDownloading = "Downloading update..."
	msgInstalled   = "Update installed! The app will restart."
	msgNoNotes     = "No release notes."

	labelUpdate = "Update"
	labelCancel = "Cancel"
)

// Source reports and installs newer builds.
type Source interface {
	CheckForUpdate(ctx context.Context) (*update.UpdateInfo, error)
	// DownloadAndInstall sends events in order on the given channel and must
	// not close it.
	DownloadAndInstall(ctx context.Context, events chan<- update.DownloadEvent) error
}

// Prompter shows blocking dialogs to the user.
type Prompter interface {
	ShowInfo(text, title string) error
	ShowWarning(text, title string) error
	ShowError(text, title string) error
	AskConfirm(text, title, okLabel, cancelLabel string) (bool, error)
}

// ProcessController relaunches the application. Restart does not return
// when it succeeds.
type ProcessController interface {
	Restart() error
}

// Status is published to the Observer on every transition and progress event.
// Progress is only set while downloading or installing.
type Status struct {
	Attempt  string
	Phase    Phase
	Progress *ProgressSnapshot
}

// Observer receives status updates on the cycle's goroutine and must not block.
type Observer func(Status)

// Outcome describes how a cycle ended. Cause has already been logged and shown
// to the user when Phase is PhaseFailed.
type Outcome struct {
	Attempt string
	Phase   Phase
	Reason  string
	Cause   error
}

// Controller runs update cycles, one at a time.
type Controller struct {
	source      Source
	prompts     Prompter
	process     ProcessController
	observer    Observer
	onInstalled func(attempt string, info update.UpdateInfo)
	eventBuffer int

	running atomic.Bool

	mu    sync.Mutex
	phase Phase
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers fn to receive status updates.
func WithObserver(fn Observer) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithOnInstalled registers fn to run after a successful install, right
// before the user is told the application will restart.
func WithOnInstalled(fn func(attempt string, info update.UpdateInfo)) Option {
	return func(c *Controller) { c.onInstalled = fn }
}

// WithEventBuffer sets the capacity of the download event channel.
func WithEventBuffer(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.eventBuffer = n
		}
	}
}

// New creates a Controller wired to its collaborators.
func New(source Source, prompts Prompter, process ProcessController, opts ...Option) *Controller {
	c := &Controller{
		source:      source,
		prompts:     prompts,
		process:     process,
		eventBuffer: defaultEventBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase returns the phase of the current or most recent cycle.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Run executes one update cycle. A concurrent call is ignored and returns
// ErrCycleInProgress. All other failures are handled here and reported
// through the Outcome.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	if !c.running.CompareAndSwap(false, true) {
		log.Info("update cycle already in progress, ignoring request")
		return Outcome{Phase: c.Phase()}, ErrCycleInProgress
	}
	defer c.running.Store(false)

	cy := &cycle{
		Controller: c,
		attempt:    uuid.NewString(),
	}
	cy.logger = log.WithField("attempt", cy.attempt)
	cy.logger.Info("starting update cycle")

	return cy.run(ctx), nil
}

// cycle holds the state of a single attempt.
type cycle struct {
	*Controller
	attempt  string
	logger   *log.Entry
	progress *Progress
}

func (cy *cycle) run(ctx context.Context) Outcome {
	cy.transition(PhaseChecking)
	if err := cy.prompts.ShowInfo(msgChecking, titleUpdater); err != nil {
		return cy.fail(ReasonPromptFailed, err)
	}

	info, err := cy.source.CheckForUpdate(ctx)
	if err != nil {
		return cy.fail(ReasonCheckFailed, err)
	}

	if info == nil {
		if err := cy.prompts.ShowInfo(msgLatest, titleNoUpdate); err != nil {
			return cy.fail(ReasonPromptFailed, err)
		}
		return cy.finish(PhaseSucceeded)
	}

	cy.logger.WithField("version", info.Version).Info("update available")
	cy.transition(PhaseAwaitingConfirmation)
	confirmed, err := cy.prompts.AskConfirm(confirmText(info), titleAvailable, labelUpdate, labelCancel)
	if err != nil {
		return cy.fail(ReasonPromptFailed, err)
	}

	if !confirmed || ctx.Err() != nil {
		if confirmed {
			cy.logger.WithError(ctx.Err()).Info("update cancelled after confirmation")
		}
		if err := cy.prompts.ShowWarning(msgCancelled, titleUpdater); err != nil {
			return cy.fail(ReasonPromptFailed, err)
		}
		return cy.finish(PhaseCancelled)
	}

	if err := cy.prompts.ShowInfo(msgDownloading, titleUpdater); err != nil {
		return cy.fail(ReasonPromptFailed, err)
	}

	cy.transition(PhaseDownloading)
	if err := cy.download(ctx); err != nil {
		return cy.fail(failureReason(err), err)
	}

	if cy.onInstalled != nil {
		cy.onInstalled(cy.attempt, *info)
	}

	if err := cy.prompts.ShowInfo(msgInstalled, titleUpdater); err != nil {
		return cy.fail(ReasonPromptFailed, err)
	}

	cy.transition(PhaseRestarting)
	cy.logger.Info("restarting application")
	err = cy.process.Restart()
	if err == nil {
		err = errors.New("restart returned without terminating the process")
	}
	var restartErr *update.RestartError
	if !errors.As(err, &restartErr) {
		err = &update.RestartError{Err: err}
	}
	return cy.fail(ReasonRestartFailed, err)
}

// download runs DownloadAndInstall on its own goroutine and consumes its
// events until the call returns.
func (cy *cycle) download(ctx context.Context) error {
	cy.progress = NewProgress(cy.logger)
	defer func() { cy.progress = nil }()

	events := make(chan update.DownloadEvent, cy.eventBuffer)

	var g errgroup.Group
	g.Go(func() error {
		defer close(events)
		return cy.source.DownloadAndInstall(ctx, events)
	})

	finished := false
	for ev := range events {
		if finished {
			cy.logger.Warnf("ignoring %T received after download finished", ev)
			continue
		}

		switch e := ev.(type) {
		case update.Started:
			cy.progress.OnStarted(e.ContentLength)
			cy.notify()
		case update.Progress:
			cy.progress.OnChunk(e.ChunkLength)
			cy.logger.Debugf("downloaded %s", cy.progress.Snapshot())
			cy.notify()
		case update.Finished:
			finished = true
			cy.logger.Infof("download finished: %s", cy.progress.Snapshot())
			cy.transition(PhaseInstalling)
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if !finished {
		return &update.DownloadError{Err: errors.New("download ended without completion signal")}
	}
	return nil
}

func (cy *cycle) fail(reason string, cause error) Outcome {
	cy.logger.WithError(cause).WithField("reason", reason).Error("update cycle failed")

	text := fmt.Sprintf("Error while checking for updates:\n%s", cause)
	if err := cy.prompts.ShowError(text, titleError); err != nil {
		cy.logger.WithError(err).Error("failed to show error prompt")
	}

	cy.progress = nil
	cy.transition(PhaseFailed)
	return Outcome{Attempt: cy.attempt, Phase: PhaseFailed, Reason: reason, Cause: cause}
}

func (cy *cycle) finish(phase Phase) Outcome {
	cy.transition(phase)
	cy.logger.WithField("phase", phase).Info("update cycle finished")
	return Outcome{Attempt: cy.attempt, Phase: phase}
}

func (cy *cycle) transition(phase Phase) {
	cy.mu.Lock()
	cy.phase = phase
	cy.mu.Unlock()

	cy.logger.Debugf("phase %s", phase)
	cy.notify()
}

func (cy *cycle) notify() {
	if cy.observer == nil {
		return
	}

	cy.mu.Lock()
	status := Status{Attempt: cy.attempt, Phase: cy.phase}
	cy.mu.Unlock()

	if cy.progress != nil && (status.Phase == PhaseDownloading || status.Phase == PhaseInstalling) {
		s := cy.progress.Snapshot()
		status.Progress = &s
	}
	cy.observer(status)
}

func confirmText(info *update.UpdateInfo) string {
	notes := info.ReleaseNotes
	if strings.TrimSpace(notes) == "" {
		notes = msgNoNotes
	}
	return fmt.Sprintf("Update to %s is available!\n\n%s", info.Version, notes)
}

func failureReason(err error) string {
	var installErr *update.InstallError
	if errors.As(err, &installErr) {
		return ReasonInstallFailed
	}
	return ReasonDownloadFailed
}
