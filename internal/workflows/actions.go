package workflows

import (
	"context"
	"errors"
	"fmt"

	"github.com/captionflow/captionflow/pkg/models"
)

// ActionError reports a policy violation, e.g. completing a language with
// zero subtitle entries. Nothing is mutated when one is returned.
type ActionError struct {
	Action string
	Reason string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q: %s", e.Action, e.Reason)
}

// ErrActionNotFound is returned when the named action is not offered by the
// workflow for the given user. It is a caller bug, never swallowed.
var ErrActionNotFound = errors.New("action not available in workflow")

// LanguageStore persists language-level mutations made by actions.
type LanguageStore interface {
	UpdateLanguage(ctx context.Context, language *models.SubtitleLanguage) error
}

// Publisher toggles version visibility. The pipeline implements it so that
// signal emission and cache invalidation stay on the single write path.
type Publisher interface {
	Publish(ctx context.Context, version *models.SubtitleVersion) error
	Unpublish(ctx context.Context, version *models.SubtitleVersion) error
}

// Deps carries the collaborators an action may touch.
type Deps struct {
	Languages LanguageStore
	Publisher Publisher
}

// Action is a named, stateless policy object gating one state transition.
type Action interface {
	// Name is the wire identifier of the action.
	Name() string

	// Label is the human-readable name.
	Label() string

	// Complete reports how the action moves the language's
	// subtitles_complete flag: true, false, or nil for "leave unchanged".
	Complete() *bool

	// Validate checks preconditions. It must not mutate anything.
	Validate(ctx context.Context, user *models.User, language *models.SubtitleLanguage, version *models.SubtitleVersion) error

	// Perform runs the workflow-specific side effect. updateLanguage has
	// already run when Perform is called.
	Perform(ctx context.Context, deps Deps, user *models.User, language *models.SubtitleLanguage, version *models.SubtitleVersion) error
}

// FindAction looks up an action by name among those the workflow offers the
// user.
func FindAction(workflow Workflow, user *models.User, name string) (Action, error) {
	for _, a := range workflow.Actions(user) {
		if a.Name() == name {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrActionNotFound, name)
}

// Perform validates and applies a named action. The order is fixed:
// Validate, then the language completeness update, then the action's own
// side effect, so Perform implementations always observe the updated flag.
func Perform(ctx context.Context, deps Deps, workflow Workflow, user *models.User, language *models.SubtitleLanguage, version *models.SubtitleVersion, actionName string) error {
	action, err := FindAction(workflow, user, actionName)
	if err != nil {
		return err
	}

	if err := ValidateAction(ctx, action, user, language, version); err != nil {
		return err
	}

	if err := updateLanguage(ctx, deps, action, language); err != nil {
		return err
	}

	if err := action.Perform(ctx, deps, user, language, version); err != nil {
		return fmt.Errorf("action %q failed: %w", actionName, err)
	}

	return nil
}

// ValidateAction runs the shared and action-specific precondition checks
// without mutating anything. The pipeline calls it before persisting a new
// version so a doomed action leaves no version behind.
func ValidateAction(ctx context.Context, action Action, user *models.User, language *models.SubtitleLanguage, version *models.SubtitleVersion) error {
	if c := action.Complete(); c != nil && *c {
		count := 0
		if version != nil {
			count = version.SubtitleCount
		}
		if count == 0 {
			return &ActionError{Action: action.Name(), Reason: "cannot complete subtitles with zero entries"}
		}
	}

	return action.Validate(ctx, user, language, version)
}

func updateLanguage(ctx context.Context, deps Deps, action Action, language *models.SubtitleLanguage) error {
	c := action.Complete()
	if c == nil {
		return nil
	}

	language.SubtitlesComplete = *c
	if err := deps.Languages.UpdateLanguage(ctx, language); err != nil {
		return fmt.Errorf("failed to update language completeness: %w", err)
	}
	return nil
}

func boolPtr(b bool) *bool {
	return &b
}

// CompleteAction marks a language's subtitles complete. It is the terminal
// action of the default workflow.
type CompleteAction struct{}

func (CompleteAction) Name() string    { return "complete" }
func (CompleteAction) Label() string   { return "Complete" }
func (CompleteAction) Complete() *bool { return boolPtr(true) }

func (CompleteAction) Validate(ctx context.Context, user *models.User, language *models.SubtitleLanguage, version *models.SubtitleVersion) error {
	return nil
}

func (CompleteAction) Perform(ctx context.Context, deps Deps, user *models.User, language *models.SubtitleLanguage, version *models.SubtitleVersion) error {
	return nil
}

// ApproveAction accepts a version under review: the version is published and
// the language gets an official signoff.
type ApproveAction struct{}

func (ApproveAction) Name() string    { return "approve" }
func (ApproveAction) Label() string   { return "Approve" }
func (ApproveAction) Complete() *bool { return boolPtr(true) }

func (ApproveAction) Validate(ctx context.Context, user *models.User, language *models.SubtitleLanguage, version *models.SubtitleVersion) error {
	if version == nil {
		return &ActionError{Action: "approve", Reason: "no version to approve"}
	}
	if version.IsDeleted() {
		return &ActionError{Action: "approve", Reason: "cannot approve a deleted version"}
	}
	return nil
}

func (ApproveAction) Perform(ctx context.Context, deps Deps, user *models.User, language *models.SubtitleLanguage, version *models.SubtitleVersion) error {
	// Set the approver before publishing so the visibility update
	// persists it
	version.ApprovedByID = user.ID
	if err := deps.Publisher.Publish(ctx, version); err != nil {
		return err
	}

	language.OfficialSignoffCount++
	return deps.Languages.UpdateLanguage(ctx, language)
}

// SendBackAction rejects a version under review: the version goes private
// and the language is marked incomplete for another pass.
type SendBackAction struct{}

func (SendBackAction) Name() string    { return "send-back" }
func (SendBackAction) Label() string   { return "Send Back" }
func (SendBackAction) Complete() *bool { return boolPtr(false) }

func (SendBackAction) Validate(ctx context.Context, user *models.User, language *models.SubtitleLanguage, version *models.SubtitleVersion) error {
	if version == nil {
		return &ActionError{Action: "send-back", Reason: "no version to send back"}
	}
	return nil
}

func (SendBackAction) Perform(ctx context.Context, deps Deps, user *models.User, language *models.SubtitleLanguage, version *models.SubtitleVersion) error {
	version.ReviewedByID = user.ID
	return deps.Publisher.Unpublish(ctx, version)
}
