// Package notify decides when the completion/failure modal opens for the
// selected project and remembers which projects have already been shown.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/ratchetwatch/project"
)

// State is the notifier's modal state.
type State int

const (
	// Watching: no modal open.
	Watching State = iota
	// Notifying: a modal is open for the selected project.
	Notifying
)

func (s State) String() string {
	if s == Notifying {
		return "notifying"
	}
	return "watching"
}

// Action is the operator's choice when closing the modal.
type Action int

const (
	StayHere Action = iota
	ViewProject
)

func (a Action) String() string {
	if a == ViewProject {
		return "view_project"
	}
	return "stay_here"
}

// Modal is what the completion/failure dialog shows.
type Modal struct {
	ProjectID   string
	ProjectName string
	IsFailure   bool
}

// Dismissal is the result of closing the modal.
type Dismissal struct {
	Modal         Modal
	Action        Action
	DontShowAgain bool
}

// PreferenceWriter persists the per-project "show completion modal" flag.
// *projectapi.Client satisfies it.
type PreferenceWriter interface {
	UpdateCompletionModalPreference(ctx context.Context, projectID string, show bool) error
}

// Notifier is not safe for concurrent use; the engine loop owns it. Only
// the preference write runs on its own goroutine.
type Notifier struct {
	writer       PreferenceWriter
	logger       *zap.Logger
	writeTimeout time.Duration

	selected string
	state    State
	modal    Modal
	shown    map[string]struct{}
	// optedOut holds local "don't show again" choices. The value turns true
	// once a poll has reported the preference as false.
	optedOut map[string]bool

	writes sync.WaitGroup
}

// New returns a Notifier in the Watching state. writer may be nil.
func New(writer PreferenceWriter, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		writer:       writer,
		logger:       logger,
		writeTimeout: 10 * time.Second,
		shown:        make(map[string]struct{}),
		optedOut:     make(map[string]bool),
	}
}

// State returns the current state.
func (n *Notifier) State() State { return n.state }

// Modal returns the open modal, if any.
func (n *Notifier) Modal() (Modal, bool) {
	if n.state != Notifying {
		return Modal{}, false
	}
	return n.modal, true
}

// Shown reports whether projectID is in the shown set.
func (n *Notifier) Shown(projectID string) bool {
	_, ok := n.shown[projectID]
	return ok
}

// Select applies a project switch. The previous project's modal is closed
// and it leaves the shown set, so selecting it again may notify again.
func (n *Notifier) Select(projectID string) {
	prev := n.selected
	n.selected = projectID
	if prev == projectID {
		return
	}
	if n.state == Notifying && n.modal.ProjectID == prev {
		n.state = Watching
		n.modal = Modal{}
	}
	if prev != "" {
		delete(n.shown, prev)
	}
}

// Observe looks at the latest snapshot of the selected project and opens
// the modal if it is in a terminal status and has not been shown. It
// reports whether a modal was opened.
//
// A local opt-out is dropped when the backend reports the preference as
// true after having reported it as false, i.e. it was re-enabled elsewhere.
func (n *Notifier) Observe(p project.Project) bool {
	if p.ID == "" || p.ID != n.selected {
		return false
	}
	n.syncOptOut(p)
	if n.state != Watching {
		return false
	}
	if !p.Status.IsTerminal() || !p.ModalEnabled() {
		return false
	}
	if _, ok := n.shown[p.ID]; ok {
		return false
	}
	if _, ok := n.optedOut[p.ID]; ok {
		return false
	}

	n.shown[p.ID] = struct{}{}
	n.modal = Modal{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		IsFailure:   p.Status == project.StatusFailed,
	}
	n.state = Notifying
	n.logger.Info("completion_modal_opened",
		zap.String("project_id", p.ID),
		zap.Bool("failure", n.modal.IsFailure),
	)
	return true
}

// Dismiss closes the open modal. With dontShowAgain the project is opted
// out locally and the preference is written in the background; the write
// never delays the dismissal. ok is false when no modal was open.
func (n *Notifier) Dismiss(action Action, dontShowAgain bool) (d Dismissal, ok bool) {
	if n.state != Notifying {
		return Dismissal{}, false
	}
	d = Dismissal{Modal: n.modal, Action: action, DontShowAgain: dontShowAgain}
	n.state = Watching
	n.modal = Modal{}

	if dontShowAgain {
		n.optedOut[d.Modal.ProjectID] = false
		n.writePreference(d.Modal.ProjectID)
	}
	n.logger.Info("completion_modal_dismissed",
		zap.String("project_id", d.Modal.ProjectID),
		zap.Stringer("action", action),
		zap.Bool("dont_show_again", dontShowAgain),
	)
	return d, true
}

func (n *Notifier) syncOptOut(p project.Project) {
	confirmed, ok := n.optedOut[p.ID]
	if !ok || p.ShowCompletionModal == nil {
		return
	}
	switch show := *p.ShowCompletionModal; {
	case !show:
		n.optedOut[p.ID] = true
	case confirmed:
		delete(n.optedOut, p.ID)
		n.logger.Info("completion_modal_reenabled", zap.String("project_id", p.ID))
	}
}

func (n *Notifier) writePreference(projectID string) {
	if n.writer == nil {
		return
	}
	n.writes.Add(1)
	go func() {
		defer n.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.writeTimeout)
		defer cancel()
		if err := n.writer.UpdateCompletionModalPreference(ctx, projectID, false); err != nil {
			n.logger.Warn("completion_modal_preference_failed",
				zap.String("project_id", projectID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight preference writes finish.
func (n *Notifier) Wait() { n.writes.Wait() }
