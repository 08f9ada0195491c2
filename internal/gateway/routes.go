package gateway

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agentdesk/agentdesk/internal/agents"
	"github.com/agentdesk/agentdesk/internal/chat"
	"github.com/agentdesk/agentdesk/internal/skills"
	"github.com/agentdesk/agentdesk/internal/store"
)

const userKey = "userID"

func (s *Server) registerRoutes(api *gin.RouterGroup) {
	api.POST("/chat", s.handleChat)

	api.GET("/agents", s.handleListAgents)
	api.POST("/agents", s.handleCreateAgent)
	api.GET("/agents/:id", s.handleGetAgent)
	api.PUT("/agents/:id", s.handleUpdateAgent)
	api.DELETE("/agents/:id", s.handleDeleteAgent)

	api.GET("/agents/:id/skills", s.handleListSkills)
	api.POST("/agents/:id/skills", s.handleCreateSkill)
	api.DELETE("/agents/:id/skills/:skillId", s.handleDeleteSkill)

	api.GET("/conversations/:sessionId", s.handleGetConversation)
	api.DELETE("/conversations/:sessionId", s.handleDeleteConversation)

	api.GET("/usage/summary", s.handleUsageSummary)
	api.POST("/usage/voice", s.handleRecordVoiceUsage)
	api.PUT("/settings", s.handleUpdateSettings)
	api.GET("/settings", s.handleGetSettings)
}

// authMiddleware enforces the static bearer token when configured.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authToken == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token != s.authToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing bearer token"})
			return
		}
		c.Next()
	}
}

// userMiddleware requires the calling user's identity on every API route.
func (s *Server) userMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if user == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userKey)
}

func (s *Server) handleChat(c *gin.Context) {
	var body struct {
		SessionID  string `json:"sessionId"`
		Message    string `json:"message"`
		VoiceInput bool   `json:"voiceInput"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.SessionID == "" || body.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId and message are required"})
		return
	}

	resp, err := s.chat.Handle(c.Request.Context(), chat.Request{
		UserID:     currentUser(c),
		SessionID:  body.SessionID,
		Message:    body.Message,
		VoiceInput: body.VoiceInput,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chat pipeline failed"})
		return
	}
	if resp.Rejected != nil {
		c.Header("Retry-After", resp.Rejected.ResetTime.UTC().Format(time.RFC3339))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":     "rate limit exceeded",
			"resetTime": resp.Rejected.ResetTime.UTC(),
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListAgents(c *gin.Context) {
	roster, err := s.store.ListAgents(currentUser(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list agents"})
		return
	}
	if roster == nil {
		roster = []*agents.Agent{}
	}
	c.JSON(http.StatusOK, roster)
}

func (s *Server) handleCreateAgent(c *gin.Context) {
	var body struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		Expertise    []string `json:"expertise"`
		SystemPrompt string   `json:"systemPrompt"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	agent := &agents.Agent{
		ID:           uuid.NewString(),
		OwnerID:      currentUser(c),
		Name:         body.Name,
		Description:  body.Description,
		Expertise:    body.Expertise,
		SystemPrompt: body.SystemPrompt,
	}
	if agent.Expertise == nil {
		agent.Expertise = []string{}
	}
	if err := s.store.CreateAgent(agent); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create agent"})
		return
	}
	c.JSON(http.StatusCreated, agent)
}

func (s *Server) handleGetAgent(c *gin.Context) {
	agent, err := s.store.GetAgent(currentUser(c), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load agent"})
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (s *Server) handleUpdateAgent(c *gin.Context) {
	agent, err := s.store.GetAgent(currentUser(c), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load agent"})
		return
	}

	var body struct {
		Name         *string   `json:"name"`
		Description  *string   `json:"description"`
		Expertise    *[]string `json:"expertise"`
		SystemPrompt *string   `json:"systemPrompt"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.Name != nil {
		agent.Name = *body.Name
	}
	if body.Description != nil {
		agent.Description = *body.Description
	}
	if body.Expertise != nil {
		agent.Expertise = *body.Expertise
	}
	if body.SystemPrompt != nil {
		agent.SystemPrompt = *body.SystemPrompt
	}

	if err := s.store.UpdateAgent(agent); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update agent"})
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (s *Server) handleDeleteAgent(c *gin.Context) {
	err := s.store.DeleteAgent(currentUser(c), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete agent"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ownAgent loads the agent in the path, enforcing ownership. Writes the
// error response and returns nil when the agent is not visible.
func (s *Server) ownAgent(c *gin.Context) *agents.Agent {
	agent, err := s.store.GetAgent(currentUser(c), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return nil
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load agent"})
		return nil
	}
	return agent
}

func (s *Server) handleListSkills(c *gin.Context) {
	agent := s.ownAgent(c)
	if agent == nil {
		return
	}
	list, err := s.store.ListSkills(agent.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list skills"})
		return
	}
	if list == nil {
		list = []*skills.Skill{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateSkill(c *gin.Context) {
	agent := s.ownAgent(c)
	if agent == nil {
		return
	}

	var body struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Content     string          `json:"content"`
		Metadata    skills.Metadata `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	skill := &skills.Skill{
		ID:          uuid.NewString(),
		AgentID:     agent.ID,
		Name:        body.Name,
		Description: body.Description,
		Content:     body.Content,
		Metadata:    body.Metadata,
	}
	if err := s.store.CreateSkill(skill); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create skill"})
		return
	}
	c.JSON(http.StatusCreated, skill)
}

func (s *Server) handleDeleteSkill(c *gin.Context) {
	agent := s.ownAgent(c)
	if agent == nil {
		return
	}
	skill, err := s.store.GetSkill(c.Param("skillId"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && skill.AgentID != agent.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "skill not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load skill"})
		return
	}
	if err := s.store.DeleteSkill(skill.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete skill"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetConversation(c *gin.Context) {
	conv, err := s.store.GetConversation(currentUser(c), c.Param("sessionId"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	err := s.store.DeleteConversation(currentUser(c), c.Param("sessionId"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete conversation"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUsageSummary(c *gin.Context) {
	user := currentUser(c)

	startRaw, endRaw := c.Query("start"), c.Query("end")
	if startRaw != "" || endRaw != "" {
		start, err1 := time.Parse(time.RFC3339, startRaw)
		end, err2 := time.Parse(time.RFC3339, endRaw)
		if err1 != nil || err2 != nil || !end.After(start) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start and end must be RFC3339 with start < end"})
			return
		}
		summary, err := s.ledger.Breakdown(user, start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate usage"})
			return
		}
		c.JSON(http.StatusOK, summary)
		return
	}

	summary, err := s.ledger.Summary(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate usage"})
		return
	}
	budget, err := s.ledger.BudgetStatus(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check budget"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "budget": budget})
}

// handleRecordVoiceUsage records browser-side speech synthesis reported by
// the client. Server-side TTS is recorded by the chat pipeline itself.
func (s *Server) handleRecordVoiceUsage(c *gin.Context) {
	var body struct {
		Characters     int    `json:"characters"`
		ConversationID string `json:"conversationId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.Characters <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "characters must be positive"})
		return
	}

	log := &store.UsageLog{
		UserID:         currentUser(c),
		Service:        store.ServiceBrowserSpeech,
		Characters:     body.Characters,
		ConversationID: body.ConversationID,
		Success:        true,
	}
	if err := s.ledger.Record(log); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record usage"})
		return
	}
	c.JSON(http.StatusCreated, log)
}

func (s *Server) handleGetSettings(c *gin.Context) {
	settings, err := s.store.GetSettings(currentUser(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// settingsBody maps the JSON wire format onto explicit field updates:
// an absent field stays unchanged, null removes/resets, a value sets.
type settingsBody struct {
	APIKeys            map[string]*string `json:"apiKeys"`
	VoiceEnabled       optionalBool       `json:"voiceEnabled"`
	VoiceName          optionalString     `json:"voiceName"`
	Model              optionalString     `json:"model"`
	CachingEnabled     optionalBool       `json:"cachingEnabled"`
	LimitsEnabled      optionalBool       `json:"limitsEnabled"`
	MaxTokensPerUser   optionalInt        `json:"maxTokensPerUser"`
	MaxRequestsPerHour optionalInt        `json:"maxRequestsPerHour"`
	MaxCostPerUser     optionalFloat      `json:"maxCostPerUser"`
	RequireAuth        optionalBool       `json:"requireAuth"`
	MonthlyBudget      optionalFloat      `json:"monthlyBudget"`
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var body settingsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	patch := store.SettingsPatch{
		VoiceEnabled:       body.VoiceEnabled.boolPatch(),
		VoiceName:          body.VoiceName.stringPatch(),
		Model:              body.Model.stringPatch(),
		CachingEnabled:     body.CachingEnabled.boolPatch(),
		LimitsEnabled:      body.LimitsEnabled.boolPatch(),
		MaxTokensPerUser:   body.MaxTokensPerUser.intPatch(),
		MaxRequestsPerHour: body.MaxRequestsPerHour.intPatch(),
		MaxCostPerUser:     body.MaxCostPerUser.floatPatch(),
		RequireAuth:        body.RequireAuth.boolPatch(),
		MonthlyBudget:      body.MonthlyBudget.floatPatch(),
	}
	if len(body.APIKeys) > 0 {
		patch.APIKeys = map[string]store.StringPatch{}
		for provider, value := range body.APIKeys {
			if value == nil {
				patch.APIKeys[provider] = store.StringPatch{Op: store.OpRemove}
			} else {
				patch.APIKeys[provider] = store.StringPatch{Op: store.OpSet, Value: *value}
			}
		}
	}

	settings, err := s.store.UpdateSettings(currentUser(c), patch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}
