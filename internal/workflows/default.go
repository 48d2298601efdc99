package workflows

import (
	"github.com/captionflow/captionflow/pkg/models"
)

// DefaultWorkflow governs videos with no team: anyone can watch, authors
// work in normal mode, and the only terminal action is "complete". New
// versions default to public.
type DefaultWorkflow struct{}

// NewDefaultWorkflow creates the default workflow.
func NewDefaultWorkflow() *DefaultWorkflow {
	return &DefaultWorkflow{}
}

func (w *DefaultWorkflow) Actions(user *models.User) []Action {
	return []Action{CompleteAction{}}
}

func (w *DefaultWorkflow) WorkMode(user *models.User) WorkMode {
	return NormalWorkMode
}

func (w *DefaultWorkflow) CanViewPrivateSubtitles(user *models.User, languageCode string) bool {
	return user != nil && user.IsStaff
}

func (w *DefaultWorkflow) CanViewVideo(user *models.User) bool {
	return true
}

func (w *DefaultWorkflow) DefaultVisibility() string {
	return models.VisibilityPublic
}

// TeamWorkflow governs team-managed videos: members work through a review
// step, drafts stay private until approved, and only members see the video
// and its private versions.
type TeamWorkflow struct {
	teamID        string
	reviewHeading string
}

// NewTeamWorkflow creates the review workflow for a team.
func NewTeamWorkflow(teamID string) *TeamWorkflow {
	return &TeamWorkflow{teamID: teamID, reviewHeading: "Review"}
}

func (w *TeamWorkflow) Actions(user *models.User) []Action {
	if user == nil || !user.IsMemberOf(w.teamID) {
		return nil
	}
	return []Action{CompleteAction{}, ApproveAction{}, SendBackAction{}}
}

func (w *TeamWorkflow) WorkMode(user *models.User) WorkMode {
	return ReviewWorkMode(w.reviewHeading)
}

func (w *TeamWorkflow) CanViewPrivateSubtitles(user *models.User, languageCode string) bool {
	if user == nil {
		return false
	}
	return user.IsStaff || user.IsMemberOf(w.teamID)
}

func (w *TeamWorkflow) CanViewVideo(user *models.User) bool {
	return user != nil && (user.IsStaff || user.IsMemberOf(w.teamID))
}

func (w *TeamWorkflow) DefaultVisibility() string {
	return models.VisibilityPrivate
}

// TeamOverride is the stock override: team videos get the team workflow,
// everything else passes through.
func TeamOverride(video *models.Video) Workflow {
	if video == nil || !video.IsTeamVideo() {
		return nil
	}
	return NewTeamWorkflow(video.TeamID)
}
