package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agentsafe/agentsafe/internal/audit"
	"github.com/agentsafe/agentsafe/internal/store/pgaudit"
)

// Handlers groups the admin endpoint methods and their dependencies.
type Handlers struct {
	deps Deps
}

func (h *Handlers) tailAudit(c *gin.Context) {
	if h.deps.Ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger unavailable"})
		return
	}
	n := 100
	if q := c.Query("n"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			n = parsed
		}
	}
	events, err := h.deps.Ledger.Tail(n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handlers) auditReport(c *gin.Context) {
	if h.deps.Ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger unavailable"})
		return
	}
	n := 1000
	if q := c.Query("n"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			n = parsed
		}
	}
	events, err := h.deps.Ledger.Tail(n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Type", "text/markdown; charset=utf-8")
	c.Status(http.StatusOK)
	if err := audit.RenderMarkdown(c.Writer, events); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// queryAudit backs /api/v1/audit/query: indexed filtering by actor, tool,
// and decision against the Postgres mirror, for lookups a JSONL tail
// cannot do efficiently. Only registered when an audit mirror is
// configured (see NewRouter).
func (h *Handlers) queryAudit(c *gin.Context) {
	if h.deps.AuditMirror == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit mirror unavailable"})
		return
	}
	limit := 100
	if q := c.Query("limit"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	events, err := h.deps.AuditMirror.Query(c.Request.Context(), pgaudit.Filter{
		Actor:    c.Query("actor"),
		Tool:     c.Query("tool"),
		Decision: c.Query("decision"),
		Limit:    limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handlers) listGrants(c *gin.Context) {
	if h.deps.GrantStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "grant store unavailable"})
		return
	}
	active, err := h.deps.GrantStore.ActiveGrants()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"grants": active})
}

func (h *Handlers) issueGrant(c *gin.Context) {
	if h.deps.GrantStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "grant store unavailable"})
		return
	}
	var body struct {
		Actor      string `json:"actor"`
		Tool       string `json:"tool"`
		Scope      string `json:"scope"`
		TTLSeconds int    `json:"ttl_seconds"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	grant, err := h.deps.GrantStore.Issue(body.Actor, body.Tool, body.Scope, body.TTLSeconds, body.Reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, grant)
}

func (h *Handlers) revokeGrant(c *gin.Context) {
	if h.deps.GrantStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "grant store unavailable"})
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)
	if err := h.deps.GrantStore.Revoke(c.Param("grant_id"), body.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) listApprovals(c *gin.Context) {
	if h.deps.ApprovalStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "approval store unavailable"})
		return
	}
	status := c.DefaultQuery("status", "pending")
	reqs, err := h.deps.ApprovalStore.List(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

func (h *Handlers) createApproval(c *gin.Context) {
	if h.deps.ApprovalStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "approval store unavailable"})
		return
	}
	var body struct {
		Actor      string `json:"actor"`
		Tool       string `json:"tool"`
		Scope      string `json:"scope"`
		Reason     string `json:"reason"`
		TTLSeconds int    `json:"ttl_seconds"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.deps.ApprovalStore.Create(body.Actor, body.Tool, body.Scope, body.Reason, body.TTLSeconds)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *Handlers) approveApproval(c *gin.Context) {
	if h.deps.ApprovalStore == nil || h.deps.GrantStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "approval or grant store unavailable"})
		return
	}
	var body struct {
		Reviewer   string `json:"reviewer"`
		TTLSeconds int    `json:"ttl_seconds"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	grant, err := h.deps.ApprovalStore.Approve(c.Param("request_id"), body.Reviewer, body.TTLSeconds, body.Reason, h.deps.GrantStore)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"grant": grant})
}

func (h *Handlers) rejectApproval(c *gin.Context) {
	if h.deps.ApprovalStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "approval store unavailable"})
		return
	}
	var body struct {
		Reviewer string `json:"reviewer"`
		Reason   string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.ApprovalStore.Reject(c.Param("request_id"), body.Reviewer, body.Reason); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// decisionServer implements the remote-backend HTTP contract (spec §4.9):
// POST /v1/data/<decision_path> with {"input":{"action":...,"policy":...}}
// returning {"result": {"allow":...,"reason":...,"rule_id":...}}.
func (h *Handlers) decisionServer(c *gin.Context) {
	var body struct {
		Input map[string]any `json:"input"`
	}
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := h.deps.Decision.Evaluate(c.Request.Context(), body.Input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}
