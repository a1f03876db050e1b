package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"newsreader/internal/llm"
	"newsreader/internal/ratelimit"
	"newsreader/internal/service"
	"newsreader/pkg/models"
)

// maxPromptLen bounds assistant prompts in characters, not bytes;
// anything longer is a 400.
const maxPromptLen = 50000

// timeNow is swapped out in tests.
var timeNow = time.Now

type Handler struct {
	svc     *service.Service
	limiter *ratelimit.Limiter
}

func NewHandler(svc *service.Service, limiter *ratelimit.Limiter) *Handler {
	return &Handler{svc: svc, limiter: limiter}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	v1 := r.Group("/v1")
	{
		v1.GET("/feed", h.Feed)
		v1.POST("/feed/refresh", h.Refresh)
		v1.POST("/events", h.RecordEvent)
		v1.GET("/preferences", h.GetPreferences)
		v1.PUT("/preferences", h.PutPreferences)
		v1.POST("/stories/:id/save", h.SaveStory)
		v1.DELETE("/stories/:id/save", h.UnsaveStory)
		v1.POST("/stories/:id/dismiss", h.DismissStory)
		v1.DELETE("/dismissals", h.ClearDismissals)
		v1.GET("/sources", h.Sources)
		v1.POST("/assistant", h.Assistant)
	}
}

// Feed: GET /v1/feed?view=personalized|latest|saved&q=...&limit=50
func (h *Handler) Feed(c *gin.Context) {
	view := models.View(c.DefaultQuery("view", ""))
	if v := c.Query("view"); v != "" && !view.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown view: " + v})
		return
	}
	search := c.Query("q")
	lim := parseLimit(c.DefaultQuery("limit", "50"))

	stories, err := h.svc.Feed(c.Request.Context(), view, search, lim)
	if err != nil {
		log.Printf("feed failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{
			"view":  view,
			"query": search,
			"count": len(stories),
			"limit": lim,
		},
		"data": stories,
	})
}

// Refresh: POST /v1/feed/refresh
// Fetches every enabled source. Per-source failures are reported in
// meta; the request still succeeds.
func (h *Handler) Refresh(c *gin.Context) {
	imported, failures := h.svc.Refresh(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{
			"imported": imported,
			"failures": failures,
		},
	})
}

// RecordEvent: POST /v1/events
// Body: {"story_id": "...", "action": "open"|"save"|"dismiss"}
func (h *Handler) RecordEvent(c *gin.Context) {
	var payload struct {
		StoryID string        `json:"story_id"`
		Action  models.Action `json:"action"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	if payload.StoryID == "" || !payload.Action.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "story_id and a valid action are required"})
		return
	}
	if err := h.svc.RecordEvent(c.Request.Context(), payload.StoryID, payload.Action); err != nil {
		if errors.Is(err, service.ErrStoryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
			return
		}
		log.Printf("record event failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record event failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"meta": gin.H{"recorded": true}})
}

func (h *Handler) GetPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.svc.Preferences(c.Request.Context())})
}

func (h *Handler) PutPreferences(c *gin.Context) {
	var prefs models.Preferences
	if err := c.BindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	if err := h.svc.UpdatePreferences(c.Request.Context(), prefs); err != nil {
		log.Printf("save preferences failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save preferences failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.svc.Preferences(c.Request.Context())})
}

func (h *Handler) SaveStory(c *gin.Context) {
	h.storyMutation(c, h.svc.SaveStory)
}

func (h *Handler) UnsaveStory(c *gin.Context) {
	h.storyMutation(c, h.svc.UnsaveStory)
}

func (h *Handler) DismissStory(c *gin.Context) {
	h.storyMutation(c, h.svc.DismissStory)
}

func (h *Handler) storyMutation(c *gin.Context, op func(ctx context.Context, id string) error) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id parameter"})
		return
	}
	if err := op(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrStoryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
			return
		}
		log.Printf("story mutation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meta": gin.H{"id": id}})
}

func (h *Handler) ClearDismissals(c *gin.Context) {
	if err := h.svc.ClearDismissals(c.Request.Context()); err != nil {
		log.Printf("clear dismissals failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meta": gin.H{"cleared": true}})
}

func (h *Handler) Sources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.svc.Sources(c.Request.Context())})
}

// Assistant: POST /v1/assistant
// Body: {"prompt": "..."}
// Rate-limited per client; forwards the upstream JSON unchanged on
// success. Internal detail is logged, never returned.
func (h *Handler) Assistant(c *gin.Context) {
	res := h.limiter.Check(ratelimit.ClientKey(c.Request), timeNow())
	if !res.Allowed {
		c.Header("X-RateLimit-Remaining", "0")
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.UnixMilli(), 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

	if !h.svc.AssistantConfigured() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assistant not configured"})
		return
	}

	var payload struct {
		Prompt any `json:"prompt"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	prompt, ok := payload.Prompt.(string)
	if !ok || strings.TrimSpace(prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt must be a non-empty string"})
		return
	}
	if utf8.RuneCountInString(prompt) > maxPromptLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt too long"})
		return
	}

	raw, err := h.svc.Assist(c.Request.Context(), prompt)
	if err != nil {
		var upErr *llm.UpstreamError
		if errors.As(err, &upErr) {
			c.JSON(upErr.Status, gin.H{"error": "assistant upstream error"})
			return
		}
		log.Printf("assistant failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assistant failed"})
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// parseLimit clamps the limit query param to a sane range.
func parseLimit(s string) int {
	l, err := strconv.Atoi(s)
	if err != nil || l <= 0 {
		return 50
	}
	if l > 200 {
		return 200
	}
	return l
}
