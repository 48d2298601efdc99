package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/captionflow/captionflow/internal/database"
	"github.com/captionflow/captionflow/internal/middleware"
	"github.com/captionflow/captionflow/internal/pipeline"
	"github.com/captionflow/captionflow/internal/subtitles"
	"github.com/captionflow/captionflow/internal/tips"
	"github.com/captionflow/captionflow/internal/workflows"
	"github.com/captionflow/captionflow/pkg/models"
)

// currentUser resolves the authenticated user, or nil for anonymous requests.
func (api *API) currentUser(c *gin.Context) *models.User {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return nil
	}
	user, err := api.repo.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		return nil
	}
	return user
}

// loadVideo fetches the video from the path and writes a 404 itself when the
// video does not exist.
func (api *API) loadVideo(c *gin.Context) *models.Video {
	video, err := api.repo.GetVideo(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
		return nil
	}
	return video
}

func versionNumberParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid version number"})
		return 0, false
	}
	return n, true
}

// writeError maps pipeline and workflow errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var validationErr *subtitles.ValidationError
	var actionErr *workflows.ActionError

	switch {
	case errors.Is(err, database.ErrLanguageNotFound),
		errors.Is(err, database.ErrVersionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrInvalidParent),
		errors.Is(err, workflows.ErrActionNotFound),
		errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &actionErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrWritelocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// versionPayload decodes the stored subtitle payload for a response body.
// Responses carry the decoded set rather than the raw bytes.
func versionPayload(version *models.SubtitleVersion) gin.H {
	body := gin.H{"version": version}
	if set, err := subtitles.Unmarshal(version.SerializedSubtitles); err == nil {
		body["subtitles"] = set
	}
	return body
}

// Video handlers

func (api *API) getVideo(c *gin.Context) {
	video := api.loadVideo(c)
	if video == nil {
		return
	}

	workflow := api.registry.Get(video)
	if !workflow.CanViewVideo(api.currentUser(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to view this video"})
		return
	}

	c.JSON(http.StatusOK, video)
}

func (api *API) createVideo(c *gin.Context) {
	if api.currentUser(c) == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req struct {
		Title                    string          `json:"title" binding:"required"`
		Duration                 float64         `json:"duration"`
		PrimaryAudioLanguageCode string          `json:"primary_audio_language_code"`
		TeamID                   string          `json:"team_id"`
		Metadata                 models.Metadata `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	video := &models.Video{
		ID:                       uuid.New().String(),
		Title:                    req.Title,
		Duration:                 req.Duration,
		PrimaryAudioLanguageCode: req.PrimaryAudioLanguageCode,
		TeamID:                   req.TeamID,
		Metadata:                 req.Metadata,
	}
	if err := api.repo.CreateVideo(c.Request.Context(), video); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create video"})
		return
	}

	c.JSON(http.StatusCreated, video)
}

// Language and version read handlers

func (api *API) listLanguages(c *gin.Context) {
	video := api.loadVideo(c)
	if video == nil {
		return
	}

	languages, err := api.repo.GetLanguagesForVideo(c.Request.Context(), video.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list languages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"languages": languages, "count": len(languages)})
}

func (api *API) getTip(c *gin.Context) {
	video := api.loadVideo(c)
	if video == nil {
		return
	}
	code := c.Param("code")

	public := c.DefaultQuery("visibility", models.VisibilityPublic) != models.VisibilityPrivate
	if !public {
		workflow := api.registry.Get(video)
		if !workflow.CanViewPrivateSubtitles(api.currentUser(c), code) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to view private versions"})
			return
		}
	}

	language, err := api.repo.GetLanguage(c.Request.Context(), video.ID, code)
	if err != nil {
		writeError(c, err)
		return
	}

	tip, err := api.resolver.GetTip(c.Request.Context(), language.ID, public)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve tip"})
		return
	}
	if tip == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Language has no visible versions"})
		return
	}

	c.JSON(http.StatusOK, versionPayload(tip))
}

func (api *API) listVersions(c *gin.Context) {
	video := api.loadVideo(c)
	if video == nil {
		return
	}
	code := c.Param("code")

	language, err := api.repo.GetLanguage(c.Request.Context(), video.ID, code)
	if err != nil {
		writeError(c, err)
		return
	}

	versions, err := api.repo.GetVersions(c.Request.Context(), language.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list versions"})
		return
	}

	workflow := api.registry.Get(video)
	showPrivate := workflow.CanViewPrivateSubtitles(api.currentUser(c), code)

	visible := make([]*models.SubtitleVersion, 0, len(versions))
	for _, v := range versions {
		if v.IsDeleted() {
			continue
		}
		if !showPrivate && v.Visibility != models.VisibilityPublic {
			continue
		}
		visible = append(visible, v)
	}

	c.JSON(http.StatusOK, gin.H{
		"language": language,
		"versions": visible,
		"count":    len(visible),
		// Earliest-wins by compatibility: the first version to record a
		// reviewer or approver names the language-level one.
		"reviewer_id": tips.EarliestReviewer(versions),
		"approver_id": tips.EarliestApprover(versions),
	})
}

func (api *API) getVersion(c *gin.Context) {
	video := api.loadVideo(c)
	if video == nil {
		return
	}
	code := c.Param("code")
	number, ok := versionNumberParam(c)
	if !ok {
		return
	}

	language, err := api.repo.GetLanguage(c.Request.Context(), video.ID, code)
	if err != nil {
		writeError(c, err)
		return
	}

	version, err := api.repo.GetVersion(c.Request.Context(), language.ID, number)
	if err != nil {
		writeError(c, err)
		return
	}
	if version.IsDeleted() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Version has been deleted"})
		return
	}

	if version.Visibility != models.VisibilityPublic {
		workflow := api.registry.Get(video)
		if !workflow.CanViewPrivateSubtitles(api.currentUser(c), code) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to view private versions"})
			return
		}
	}

	c.JSON(http.StatusOK, versionPayload(version))
}

// Write handlers

func (api *API) addSubtitles(c *gin.Context) {
	user := api.currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	video := api.loadVideo(c)
	if video == nil {
		return
	}

	var req struct {
		Subtitles       *subtitles.Set        `json:"subtitles"`
		Visibility      string                `json:"visibility"`
		Title           string                `json:"title"`
		Description     string                `json:"description"`
		Metadata        models.MetadataFields `json:"metadata"`
		ParentIDs       []string              `json:"parent_ids"`
		Origin          string                `json:"origin"`
		Action          string                `json:"action"`
		SuppressSignals bool                  `json:"suppress_signals"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	version, err := api.svc.AddSubtitles(c.Request.Context(), &pipeline.AddSubtitlesRequest{
		Video:           video,
		LanguageCode:    c.Param("code"),
		Subtitles:       req.Subtitles,
		Author:          user,
		Visibility:      req.Visibility,
		Title:           req.Title,
		Description:     req.Description,
		Metadata:        req.Metadata,
		ParentIDs:       req.ParentIDs,
		Origin:          req.Origin,
		Action:          req.Action,
		SuppressSignals: req.SuppressSignals,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, versionPayload(version))
}

func (api *API) rollbackVersion(c *gin.Context) {
	user := api.currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	video := api.loadVideo(c)
	if video == nil {
		return
	}
	number, ok := versionNumberParam(c)
	if !ok {
		return
	}

	version, err := api.svc.Rollback(c.Request.Context(), video, c.Param("code"), number, user)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, versionPayload(version))
}

func (api *API) publishVersion(c *gin.Context) {
	api.setVisibility(c, api.svc.Publish)
}

func (api *API) unpublishVersion(c *gin.Context) {
	api.setVisibility(c, api.svc.Unpublish)
}

func (api *API) setVisibility(c *gin.Context, apply func(ctx context.Context, version *models.SubtitleVersion) error) {
	user := api.currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	video := api.loadVideo(c)
	if video == nil {
		return
	}
	number, ok := versionNumberParam(c)
	if !ok {
		return
	}

	workflow := api.registry.Get(video)
	if !workflow.CanViewPrivateSubtitles(user, c.Param("code")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to change version visibility"})
		return
	}

	language, err := api.repo.GetLanguage(c.Request.Context(), video.ID, c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	version, err := api.repo.GetVersion(c.Request.Context(), language.ID, number)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := apply(c.Request.Context(), version); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"version": version})
}

func (api *API) performAction(c *gin.Context) {
	user := api.currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	video := api.loadVideo(c)
	if video == nil {
		return
	}
	code := c.Param("code")

	if err := api.svc.PerformAction(c.Request.Context(), user, video, code, c.Param("name")); err != nil {
		writeError(c, err)
		return
	}

	language, err := api.repo.GetLanguage(c.Request.Context(), video.ID, code)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"language": language})
}

func (api *API) deleteLanguage(c *gin.Context) {
	user := api.currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	if !user.IsStaff {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only staff may delete languages"})
		return
	}
	video := api.loadVideo(c)
	if video == nil {
		return
	}

	if err := api.svc.NukeLanguage(c.Request.Context(), video.ID, c.Param("code")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Writelock handlers

func (api *API) acquireWritelock(c *gin.Context) {
	user := api.currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	video := api.loadVideo(c)
	if video == nil {
		return
	}

	var req struct {
		SessionKey string `json:"session_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	language, err := api.svc.AcquireWritelock(c.Request.Context(), video.ID, c.Param("code"), user.ID, req.SessionKey)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"language":   language,
		"expires_in": models.WritelockExpiration.Seconds(),
	})
}

func (api *API) releaseWritelock(c *gin.Context) {
	user := api.currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	video := api.loadVideo(c)
	if video == nil {
		return
	}

	var req struct {
		SessionKey string `json:"session_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := api.svc.ReleaseWritelock(c.Request.Context(), video.ID, c.Param("code"), req.SessionKey); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "released"})
}

// Export handler

func (api *API) exportVersion(c *gin.Context) {
	if api.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Archive storage is not configured"})
		return
	}
	video := api.loadVideo(c)
	if video == nil {
		return
	}
	code := c.Param("code")
	number, ok := versionNumberParam(c)
	if !ok {
		return
	}

	language, err := api.repo.GetLanguage(c.Request.Context(), video.ID, code)
	if err != nil {
		writeError(c, err)
		return
	}
	version, err := api.repo.GetVersion(c.Request.Context(), language.ID, number)
	if err != nil {
		writeError(c, err)
		return
	}
	if version.IsDeleted() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Version has been deleted"})
		return
	}

	if version.Visibility != models.VisibilityPublic {
		workflow := api.registry.Get(video)
		if !workflow.CanViewPrivateSubtitles(api.currentUser(c), code) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to export private versions"})
			return
		}
	}

	key, err := api.archive.ExportVersion(c.Request.Context(), language, version)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export version"})
		return
	}
	url, err := api.archive.GetURL(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate download URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "url": url})
}

// Webhook handler

func (api *API) createWebhook(c *gin.Context) {
	user := api.currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req struct {
		URL    string               `json:"url" binding:"required,url"`
		Events models.WebhookEvents `json:"events"`
		Secret string               `json:"secret"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	webhook := &models.Webhook{
		ID:       uuid.New().String(),
		UserID:   user.ID,
		URL:      req.URL,
		Events:   req.Events,
		Secret:   req.Secret,
		IsActive: true,
	}
	if err := api.repo.CreateWebhook(c.Request.Context(), webhook); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create webhook"})
		return
	}

	c.JSON(http.StatusCreated, webhook)
}
