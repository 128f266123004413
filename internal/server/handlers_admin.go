package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/THL-Leo/llmail/internal/audit"
	"github.com/THL-Leo/llmail/internal/database"
	"github.com/THL-Leo/llmail/internal/profile"
	"github.com/THL-Leo/llmail/internal/sqlassets"
)

// ---------- Environment ----------

func (s *Server) handleEnvTest(w http.ResponseWriter, r *http.Request) {
	missing := s.cfg.MissingRequired()
	if len(missing) > 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":        false,
			"missingEnvVars": missing,
			"message":        "Some required environment variables are missing",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"missingEnvVars": []string{},
		"message":        "All required environment variables are set",
	})
}

// ---------- Database status ----------

func (s *Server) handleDBStatus(w http.ResponseWriter, r *http.Request) {
	if s.inspector == nil {
		s.notConfigured(w)
		return
	}

	statuses, err := s.inspector.CheckTables(r.Context())
	if err != nil {
		s.metrics.adminCheck("db_status", false)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Database connection failed",
			"error":   err.Error(),
		})
		return
	}

	// A table is "missing" only when the probe confirmed it absent; a failed
	// probe (st.Err set) never lands in missingTables.
	var missing []string
	ready := true
	for _, st := range statuses {
		if !st.Exists {
			ready = false
			if st.Err == nil {
				missing = append(missing, st.Name)
			}
		}
	}

	allTables, err := s.inspector.ListTables(r.Context())
	if err != nil {
		allTables = []string{}
	}

	s.metrics.adminCheck("db_status", true)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"connection":     "Connected",
		"allTables":      allTables,
		"requiredTables": statuses,
		"missingTables":  missing,
		"databaseReady":  ready,
	})
}

func (s *Server) handleCheckRLS(w http.ResponseWriter, r *http.Request) {
	if s.inspector == nil {
		s.notConfigured(w)
		return
	}

	statuses := s.inspector.CheckRLS(r.Context())

	enabled, failed := 0, 0
	for _, st := range statuses {
		switch {
		case st.Error != "":
			failed++
		case st.Enabled:
			enabled++
		}
	}

	msg := fmt.Sprintf("RLS enabled on %d of %d required tables", enabled, len(statuses))
	if failed > 0 {
		msg = fmt.Sprintf("%s (%d checks failed)", msg, failed)
	}

	s.metrics.adminCheck("check_rls", failed == 0)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"results": statuses,
		"message": msg,
	})
}

func (s *Server) handleCheckPolicies(w http.ResponseWriter, r *http.Request) {
	if s.inspector == nil {
		s.notConfigured(w)
		return
	}

	grouped, all, err := s.inspector.Policies(r.Context())
	if err != nil {
		s.metrics.adminCheck("check_policies", false)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Could not read policies",
			"error":   err.Error(),
			"note":    "The get_all_policies() helper may be missing. Fetch it from /api/sql-helper?type=utility and run it in your SQL console.",
		})
		return
	}

	s.metrics.adminCheck("check_policies", true)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"tablePolicies": grouped,
		"allPolicies":   all,
	})
}

func (s *Server) handleApplyProductionPolicies(w http.ResponseWriter, r *http.Request) {
	if s.inspector == nil {
		s.notConfigured(w)
		return
	}

	var req struct {
		Table string `json:"table"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "invalid JSON body",
		})
		return
	}

	var targets []string
	switch {
	case req.Table == "" || req.Table == "all":
		targets = database.RequiredTables
	case slices.Contains(database.RequiredTables, req.Table):
		targets = []string{req.Table}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("unknown table %q", req.Table),
		})
		return
	}

	results := make([]map[string]interface{}, 0, len(targets))
	allOK := true
	for _, table := range targets {
		res := map[string]interface{}{"table": table, "success": true}
		if err := s.inspector.ApplyProductionPolicies(r.Context(), table); err != nil {
			res["success"] = false
			res["error"] = err.Error()
			allOK = false
		} else {
			res["message"] = fmt.Sprintf("Production policies applied to %s", table)
		}
		results = append(results, res)
	}

	var userID *string
	if sess := s.FromRequest(r); sess != nil {
		userID = &sess.UserID
	}
	if s.audit != nil {
		s.audit.Log(r.Context(), userID, audit.ActionPoliciesApplied, "policies", req.Table, r, map[string]interface{}{
			"tables":  targets,
			"success": allOK,
		})
	}

	s.metrics.adminCheck("apply_policies", allOK)
	resp := map[string]interface{}{
		"success": allOK,
		"results": results,
	}
	if !allOK {
		resp["note"] = "Some tables failed. Fetch the SQL from /api/sql-helper?type=policies and run it manually."
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---------- SQL delivery ----------

func (s *Server) handleSetupDB(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SchemaType string `json:"schemaType"`
	}
	// A missing or malformed body means the full schema; this endpoint is
	// deliberately lenient so curl without -d works.
	_ = json.NewDecoder(r.Body).Decode(&req)

	sql, file := sqlassets.Schema(req.SchemaType)

	if s.audit != nil {
		var userID *string
		if sess := s.FromRequest(r); sess != nil {
			userID = &sess.UserID
		}
		s.audit.Log(r.Context(), userID, audit.ActionSchemaRequested, "schema", file, r, nil)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Run this SQL in your database console to set up the schema",
		"schema":  sql,
		"instructions": []string{
			"Open the SQL console for your database",
			"Paste the schema below and execute it",
			"Re-run /api/db-status to confirm all required tables exist",
		},
		"schemaFile": file,
	})
}

func (s *Server) handleSQLHelper(w http.ResponseWriter, r *http.Request) {
	sql, resolved := sqlassets.Helper(r.URL.Query().Get("type"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sql":  sql,
		"type": resolved,
	})
}

// ---------- Connectivity probes ----------

func (s *Server) handleDBTest(w http.ResponseWriter, r *http.Request) {
	if s.appDB == nil {
		s.notConfigured(w)
		return
	}

	if err := s.appDB.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}

	var one int
	if err := s.appDB.QueryRow(r.Context(), `SELECT 1`).Scan(&one); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Test query failed",
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Database connection is working",
	})
}

// handleDBDirect opens a fresh single connection outside the pool. It
// isolates pool problems from connectivity problems.
func (s *Server) handleDBDirect(w http.ResponseWriter, r *http.Request) {
	if s.cfg.DatabaseURL == "" {
		s.notConfigured(w)
		return
	}

	conn, err := pgx.Connect(r.Context(), s.cfg.DatabaseURL)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Direct connection failed",
			"error":   err.Error(),
		})
		return
	}
	defer conn.Close(r.Context())

	var version string
	if err := conn.QueryRow(r.Context(), `SELECT version()`).Scan(&version); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Version query failed",
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Direct database connection is working",
		"version": version,
	})
}

// ---------- Manual provisioning ----------

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	sess := s.FromRequest(r)
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"error":   "Not authenticated",
		})
		return
	}
	if s.provisioner == nil {
		s.notConfigured(w)
		return
	}

	created, err := s.provisioner.Ensure(r.Context(), profile.Identity{
		ID:        sess.UserID,
		Email:     sess.Email,
		Name:      sess.Name,
		AvatarURL: sess.Picture,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if created {
		s.metrics.provisioned.Inc()
		if s.audit != nil {
			s.audit.Log(r.Context(), &sess.UserID, audit.ActionProfileCreated, "profile", sess.UserID, r, nil)
		}
	}

	prof, err := s.provisioner.Get(r.Context(), sess.UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	msg := "Profile already exists"
	if created {
		msg = "Profile created"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": msg,
		"user":    prof,
	})
}

// notConfigured is the shared response for endpoints whose backing service
// is absent because required environment variables are missing.
func (s *Server) notConfigured(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"success":        false,
		"error":          "database is not configured",
		"missingEnvVars": s.cfg.MissingRequired(),
	})
}
