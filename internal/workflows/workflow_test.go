package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captionflow/captionflow/pkg/models"
)

func TestRegistry_DefaultFallback(t *testing.T) {
	registry := NewRegistry(NewDefaultWorkflow())

	video := &models.Video{ID: "video-1"}
	workflow := registry.Get(video)

	_, ok := workflow.(*DefaultWorkflow)
	assert.True(t, ok, "expected default workflow with no overrides")
}

func TestRegistry_TeamOverride(t *testing.T) {
	registry := NewRegistry(NewDefaultWorkflow())
	registry.RegisterOverride(TeamOverride)

	teamVideo := &models.Video{ID: "video-1", TeamID: "team-1"}
	_, ok := registry.Get(teamVideo).(*TeamWorkflow)
	assert.True(t, ok, "team video should resolve to team workflow")

	plainVideo := &models.Video{ID: "video-2"}
	_, ok = registry.Get(plainVideo).(*DefaultWorkflow)
	assert.True(t, ok, "nil override answer must fall through to the default")
}

func TestRegistry_LastRegisteredWins(t *testing.T) {
	registry := NewRegistry(NewDefaultWorkflow())

	first := NewTeamWorkflow("team-first")
	second := NewTeamWorkflow("team-second")

	registry.RegisterOverride(func(video *models.Video) Workflow { return first })
	registry.RegisterOverride(func(video *models.Video) Workflow { return second })

	got := registry.Get(&models.Video{ID: "video-1"})
	assert.Same(t, Workflow(second), got)

	// An override with no opinion defers to the previous one
	registry.RegisterOverride(func(video *models.Video) Workflow { return nil })
	got = registry.Get(&models.Video{ID: "video-1"})
	assert.Same(t, Workflow(second), got)
}

func TestDefaultWorkflow_Permissions(t *testing.T) {
	workflow := NewDefaultWorkflow()

	assert.True(t, workflow.CanViewVideo(nil))
	assert.False(t, workflow.CanViewPrivateSubtitles(nil, "en"))
	assert.False(t, workflow.CanViewPrivateSubtitles(&models.User{ID: "u1"}, "en"))
	assert.True(t, workflow.CanViewPrivateSubtitles(&models.User{ID: "u1", IsStaff: true}, "en"))

	assert.Equal(t, models.VisibilityPublic, workflow.DefaultVisibility())
	assert.False(t, workflow.WorkMode(nil).Review)
}

func TestTeamWorkflow_Permissions(t *testing.T) {
	workflow := NewTeamWorkflow("team-1")

	member := &models.User{ID: "u1", TeamIDs: []string{"team-1"}}
	outsider := &models.User{ID: "u2"}

	assert.True(t, workflow.CanViewVideo(member))
	assert.False(t, workflow.CanViewVideo(outsider))
	assert.False(t, workflow.CanViewVideo(nil))

	assert.True(t, workflow.CanViewPrivateSubtitles(member, "en"))
	assert.False(t, workflow.CanViewPrivateSubtitles(outsider, "en"))

	assert.Equal(t, models.VisibilityPrivate, workflow.DefaultVisibility())

	mode := workflow.WorkMode(member)
	assert.True(t, mode.Review)
	assert.Equal(t, "Review", mode.Heading)

	// Only members get actions
	assert.Len(t, workflow.Actions(member), 3)
	assert.Nil(t, workflow.Actions(outsider))
}

func TestFindAction(t *testing.T) {
	workflow := NewDefaultWorkflow()

	action, err := FindAction(workflow, nil, "complete")
	require.NoError(t, err)
	assert.Equal(t, "complete", action.Name())

	_, err = FindAction(workflow, nil, "approve")
	assert.ErrorIs(t, err, ErrActionNotFound)
}

// fakeLanguageStore records UpdateLanguage calls.
type fakeLanguageStore struct {
	updates int
}

func (s *fakeLanguageStore) UpdateLanguage(ctx context.Context, language *models.SubtitleLanguage) error {
	s.updates++
	return nil
}

// fakePublisher records publish/unpublish calls and mirrors the visibility
// change the pipeline would make.
type fakePublisher struct {
	published   []*models.SubtitleVersion
	unpublished []*models.SubtitleVersion
}

func (p *fakePublisher) Publish(ctx context.Context, version *models.SubtitleVersion) error {
	version.Visibility = models.VisibilityPublic
	p.published = append(p.published, version)
	return nil
}

func (p *fakePublisher) Unpublish(ctx context.Context, version *models.SubtitleVersion) error {
	version.Visibility = models.VisibilityPrivate
	p.unpublished = append(p.unpublished, version)
	return nil
}

func testDeps() (Deps, *fakeLanguageStore, *fakePublisher) {
	languages := &fakeLanguageStore{}
	publisher := &fakePublisher{}
	return Deps{Languages: languages, Publisher: publisher}, languages, publisher
}

func TestPerform_CompleteWithZeroEntries(t *testing.T) {
	deps, languages, _ := testDeps()
	ctx := context.Background()

	language := &models.SubtitleLanguage{ID: "lang-1"}
	version := &models.SubtitleVersion{ID: "v-1", SubtitleCount: 0}

	err := Perform(ctx, deps, NewDefaultWorkflow(), nil, language, version, "complete")

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.False(t, language.SubtitlesComplete, "failed validation must not mutate the language")
	assert.Zero(t, languages.updates)
}

func TestPerform_Complete(t *testing.T) {
	deps, languages, _ := testDeps()
	ctx := context.Background()

	language := &models.SubtitleLanguage{ID: "lang-1"}
	version := &models.SubtitleVersion{ID: "v-1", SubtitleCount: 12}

	err := Perform(ctx, deps, NewDefaultWorkflow(), nil, language, version, "complete")
	require.NoError(t, err)

	assert.True(t, language.SubtitlesComplete)
	assert.Equal(t, 1, languages.updates)
}

func TestPerform_UnknownAction(t *testing.T) {
	deps, _, _ := testDeps()
	ctx := context.Background()

	err := Perform(ctx, deps, NewDefaultWorkflow(), nil, &models.SubtitleLanguage{}, &models.SubtitleVersion{SubtitleCount: 1}, "approve")
	assert.ErrorIs(t, err, ErrActionNotFound)
}

func TestPerform_Approve(t *testing.T) {
	deps, languages, publisher := testDeps()
	ctx := context.Background()

	workflow := NewTeamWorkflow("team-1")
	reviewer := &models.User{ID: "reviewer-1", TeamIDs: []string{"team-1"}}
	language := &models.SubtitleLanguage{ID: "lang-1"}
	version := &models.SubtitleVersion{ID: "v-1", SubtitleCount: 5, Visibility: models.VisibilityPrivate}

	err := Perform(ctx, deps, workflow, reviewer, language, version, "approve")
	require.NoError(t, err)

	assert.True(t, language.SubtitlesComplete)
	assert.Equal(t, 1, language.OfficialSignoffCount)
	assert.Equal(t, "reviewer-1", version.ApprovedByID)
	require.Len(t, publisher.published, 1)
	assert.Equal(t, models.VisibilityPublic, version.Visibility)
	// One update for completeness, one for the signoff
	assert.Equal(t, 2, languages.updates)
}

func TestPerform_SendBack(t *testing.T) {
	deps, _, publisher := testDeps()
	ctx := context.Background()

	workflow := NewTeamWorkflow("team-1")
	reviewer := &models.User{ID: "reviewer-1", TeamIDs: []string{"team-1"}}
	language := &models.SubtitleLanguage{ID: "lang-1", SubtitlesComplete: true}
	version := &models.SubtitleVersion{ID: "v-1", SubtitleCount: 5, Visibility: models.VisibilityPublic}

	err := Perform(ctx, deps, workflow, reviewer, language, version, "send-back")
	require.NoError(t, err)

	assert.False(t, language.SubtitlesComplete, "send-back reopens the language")
	assert.Equal(t, "reviewer-1", version.ReviewedByID)
	require.Len(t, publisher.unpublished, 1)
	assert.Equal(t, models.VisibilityPrivate, version.Visibility)
}

func TestPerform_ApproveDeletedVersion(t *testing.T) {
	deps, _, _ := testDeps()
	ctx := context.Background()

	workflow := NewTeamWorkflow("team-1")
	reviewer := &models.User{ID: "reviewer-1", TeamIDs: []string{"team-1"}}
	language := &models.SubtitleLanguage{ID: "lang-1"}
	version := &models.SubtitleVersion{
		ID:                 "v-1",
		SubtitleCount:      5,
		VisibilityOverride: models.VisibilityOverrideDeleted,
	}

	err := Perform(ctx, deps, workflow, reviewer, language, version, "approve")

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Zero(t, language.OfficialSignoffCount)
}
