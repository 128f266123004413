package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/THL-Leo/llmail/internal/database"
)

// Actions recorded by the app.
const (
	ActionSignIn          = "sign_in"
	ActionSignInFailed    = "sign_in_failed"
	ActionSignOut         = "sign_out"
	ActionProfileCreated  = "profile_created"
	ActionPoliciesApplied = "policies_applied"
	ActionSchemaRequested = "schema_requested"
)

// Service writes security-relevant events to the audit_log table.
type Service struct {
	db database.Querier
}

func NewService(db database.Querier) *Service {
	return &Service{db: db}
}

// Log records an audit event. Write errors are ignored; audit logging must
// never break the main flow.
func (a *Service) Log(ctx context.Context, userID *string, action, resourceType, resourceID string, r *http.Request, metadata map[string]interface{}) {
	ip := extractClientIP(r)
	ua := r.Header.Get("User-Agent")

	var metaJSON []byte
	if metadata != nil {
		metaJSON, _ = json.Marshal(metadata)
	} else {
		metaJSON = []byte("{}")
	}

	a.db.Exec(ctx, `
		INSERT INTO audit_log (user_id, action, resource_type, resource_id, ip_address, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, userID, action, resourceType, resourceID, ip, ua, string(metaJSON))
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx > 0 {
		ip = ip[:idx]
	}
	return ip
}
