// Package api provides the admin HTTP surface for agentsafe: health/ready
// probes and read access to the audit ledger, grant store, and approval
// store the proxy pipeline uses. It is distinct from the tool-call
// forwarding path (internal/proxy), which streams upstream bodies over
// plain net/http and never goes through gin.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentsafe/agentsafe/internal/approvals"
	"github.com/agentsafe/agentsafe/internal/audit"
	"github.com/agentsafe/agentsafe/internal/grants"
	"github.com/agentsafe/agentsafe/internal/opaengine"
	"github.com/agentsafe/agentsafe/internal/store/pgaudit"
)

// Deps holds the stores the admin API reads from. All fields are
// optional; handlers degrade to 503 when a dependency is nil.
type Deps struct {
	Ledger        *audit.Ledger
	GrantStore    *grants.Store
	ApprovalStore *approvals.Store
	Decision      *opaengine.Engine

	// AuditMirror backs /api/v1/audit/query with indexed filtering that a
	// JSONL tail cannot do efficiently. Nil disables the route entirely;
	// /api/v1/audit (the ledger tail) keeps working regardless.
	AuditMirror *pgaudit.DB
}

// NewRouter builds the gin engine for the admin surface.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.SetTrustedProxies(nil)
	r.Use(gin.Recovery())
	r.Use(securityHeadersMiddleware())
	r.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	h := &Handlers{deps: deps}

	r.GET("/health", healthCheck)
	r.GET("/ready", h.readiness)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/audit", h.tailAudit)
		v1.GET("/audit/report", h.auditReport)
		if deps.AuditMirror != nil {
			v1.GET("/audit/query", h.queryAudit)
		}

		v1.GET("/grants", h.listGrants)
		v1.POST("/grants", h.issueGrant)
		v1.POST("/grants/:grant_id/revoke", h.revokeGrant)

		v1.GET("/approvals", h.listApprovals)
		v1.POST("/approvals", h.createApproval)
		v1.POST("/approvals/:request_id/approve", h.approveApproval)
		v1.POST("/approvals/:request_id/reject", h.rejectApproval)
	}

	if deps.Decision != nil {
		r.POST("/v1/data/*decision_path", h.decisionServer)
	}

	return r
}

func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handlers) readiness(c *gin.Context) {
	checks := gin.H{}
	ready := true

	if h.deps.Ledger == nil {
		checks["ledger"] = "unavailable"
		ready = false
	} else {
		checks["ledger"] = "ok"
	}

	if h.deps.GrantStore == nil {
		checks["grant_store"] = "unavailable"
		ready = false
	} else {
		checks["grant_store"] = "ok"
	}

	if h.deps.ApprovalStore == nil {
		checks["approval_store"] = "unavailable"
		ready = false
	} else {
		checks["approval_store"] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}
