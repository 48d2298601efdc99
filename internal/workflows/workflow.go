// Package workflows decides which actions and visibility rules apply to a
// video's subtitles. A single default workflow covers non-team videos;
// team-managed videos get the review workflow. Additional overrides can be
// registered at process start.
package workflows

import (
	"github.com/captionflow/captionflow/pkg/models"
)

// WorkMode describes how the subtitle editor should present a language to
// the user.
type WorkMode struct {
	Review  bool
	Heading string
}

// NormalWorkMode is plain subtitling.
var NormalWorkMode = WorkMode{}

// ReviewWorkMode returns the review mode with the given heading.
func ReviewWorkMode(heading string) WorkMode {
	return WorkMode{Review: true, Heading: heading}
}

// Workflow is the set of actions and permission rules in effect for one
// video.
type Workflow interface {
	// Actions returns the actions the user may perform.
	Actions(user *models.User) []Action

	// WorkMode returns how the editor presents the language to the user.
	WorkMode(user *models.User) WorkMode

	// CanViewPrivateSubtitles reports whether the user may read private
	// versions of the given language.
	CanViewPrivateSubtitles(user *models.User, languageCode string) bool

	// CanViewVideo reports whether the user may view the video at all.
	CanViewVideo(user *models.User) bool

	// DefaultVisibility is the visibility new versions get when the caller
	// does not specify one.
	DefaultVisibility() string
}

// ResolverFunc inspects a video and returns the workflow that should govern
// it, or nil to pass ("no opinion") so resolution falls through to the next
// override and finally the default.
type ResolverFunc func(video *models.Video) Workflow

// Registry resolves the workflow for a video through an ordered override
// chain. It is constructed once at process start and passed by reference;
// there is no package-level registry.
type Registry struct {
	defaultWorkflow Workflow
	overrides       []ResolverFunc
}

// NewRegistry creates a registry with the given default workflow.
func NewRegistry(defaultWorkflow Workflow) *Registry {
	return &Registry{defaultWorkflow: defaultWorkflow}
}

// RegisterOverride adds a resolver to the chain. Overrides registered later
// are consulted first.
func (r *Registry) RegisterOverride(fn ResolverFunc) {
	r.overrides = append(r.overrides, fn)
}

// Get resolves the workflow for a video. The last-registered override wins;
// a nil answer falls through; the default workflow is the backstop.
func (r *Registry) Get(video *models.Video) Workflow {
	for i := len(r.overrides) - 1; i >= 0; i-- {
		if w := r.overrides[i](video); w != nil {
			return w
		}
	}
	return r.defaultWorkflow
}
