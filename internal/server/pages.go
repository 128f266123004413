package server

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/THL-Leo/llmail/internal/database"
	"github.com/THL-Leo/llmail/internal/middleware"
	"github.com/THL-Leo/llmail/internal/profile"
	"github.com/THL-Leo/llmail/internal/session"
)

// pageData is the payload handed to every page template.
type pageData struct {
	Title       string
	Session     *session.Session
	Profile     *profile.Profile
	Error       string
	CallbackURL string
}

const layoutHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} — llmail</title>
<style>
body{font-family:system-ui,sans-serif;max-width:720px;margin:2rem auto;padding:0 1rem;color:#1a1a1a}
nav{display:flex;gap:1rem;border-bottom:1px solid #ddd;padding-bottom:.75rem;margin-bottom:1.5rem}
nav a{text-decoration:none;color:#2563eb}
.error{background:#fee2e2;border:1px solid #fca5a5;padding:.5rem .75rem;border-radius:4px}
.btn{display:inline-block;background:#2563eb;color:#fff;padding:.5rem 1rem;border-radius:4px;text-decoration:none}
pre{background:#f4f4f5;padding:1rem;overflow-x:auto;border-radius:4px}
code{background:#f4f4f5;padding:.1rem .3rem;border-radius:3px}
</style>
</head>
<body>
<nav>
<a href="/">Home</a>
{{if .Session}}
<a href="/emails">Emails</a>
<a href="/profile">Profile</a>
<a href="/api/auth/signout">Sign out</a>
{{else}}
<a href="/signin">Sign in</a>
{{end}}
<a href="/db-setup">DB Setup</a>
<a href="/security-policies">Security</a>
</nav>
{{template "content" .}}
</body>
</html>`

func mustPage(content string) *template.Template {
	t := template.Must(template.New("layout").Parse(layoutHTML))
	template.Must(t.New("content").Parse(content))
	return t
}

var (
	homeTmpl = mustPage(`
<h1>llmail</h1>
<p>Smart email management with classification and per-user data isolation.</p>
{{if .Session}}
<p>Signed in as <strong>{{.Session.Email}}</strong>.</p>
<p><a class="btn" href="/emails">Go to your emails</a></p>
{{else}}
<p><a class="btn" href="/signin">Sign in with Google</a></p>
{{end}}`)

	signInTmpl = mustPage(`
<h1>Sign in</h1>
{{if .Error}}<p class="error">Sign-in failed: {{.Error}}</p>{{end}}
<p><a class="btn" href="/api/auth/signin{{if .CallbackURL}}?callbackUrl={{.CallbackURL}}{{end}}">Sign in with Google</a></p>
<p>Signing in grants access to your Gmail account for classification.</p>`)

	profileTmpl = mustPage(`
<h1>Profile</h1>
{{if .Profile}}
<dl>
<dt>ID</dt><dd><code>{{.Profile.ID}}</code></dd>
<dt>Email</dt><dd>{{.Profile.Email}}</dd>
{{if .Profile.FullName}}<dt>Name</dt><dd>{{.Profile.FullName}}</dd>{{end}}
<dt>Created</dt><dd>{{.Profile.CreatedAt.Format "2006-01-02 15:04"}}</dd>
</dl>
{{else}}
<p>Signed in as <strong>{{.Session.Email}}</strong>.</p>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<p>No stored profile yet. <a href="/api/create-profile">Create it now</a>.</p>
{{end}}`)

	emailsTmpl = mustPage(`
<h1>Emails</h1>
<p>Connected account: <strong>{{.Session.Email}}</strong></p>
<p>No email accounts are synced yet. Connect a mailbox to start classification.</p>`)

	dbSetupTmpl = mustPage(`
<h1>Database setup</h1>
<p>The app delivers its schema as SQL for you to run in your database console.</p>
<ol>
<li>Fetch the schema: <code>GET /api/setup-db</code> (POST <code>{"schemaType":"simplified"}</code> for the minimal variant)</li>
<li>Run the returned SQL in your console</li>
<li>Install the introspection helpers: <code>GET /api/sql-helper?type=utility</code></li>
<li>Verify with <code>GET /api/db-status</code></li>
</ol>
<p><a class="btn" href="/api/db-status">Check database status</a></p>`)

	securityTmpl = mustPage(`
<h1>Security policies</h1>
<p>Row level security keeps each user's data isolated. Development schemas
ship with permissive policies; apply the production set before going live.</p>
<ul>
<li><code>GET /api/check-rls</code> — is RLS enabled on every required table</li>
<li><code>GET /api/check-policies</code> — which policies are attached</li>
<li><code>POST /api/apply-production-policies</code> — replace dev policies with per-user ones</li>
<li><code>GET /api/sql-helper?type=policies</code> — the production policy SQL</li>
</ul>
<p><a class="btn" href="/api/check-rls">Check RLS now</a></p>`)
)

func (s *Server) render(w http.ResponseWriter, tmpl *template.Template, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("Page render failed", "page", data.Title, "error", err)
	}
}

func (s *Server) handleHomePage(w http.ResponseWriter, r *http.Request) {
	s.render(w, homeTmpl, pageData{Title: "Home", Session: s.FromRequest(r)})
}

func (s *Server) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// The template escapes CallbackURL in the query-string context.
	s.render(w, signInTmpl, pageData{
		Title:       "Sign in",
		Session:     s.FromRequest(r),
		Error:       q.Get("error"),
		CallbackURL: safeCallbackURL(q.Get("callbackUrl")),
	})
}

func (s *Server) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)
	data := pageData{Title: "Profile", Session: sess}

	// Read through the RLS transaction so the per-user policies apply.
	if s.appDB != nil && sess != nil {
		prof, err := profile.GetWithUserContext(r.Context(), s.appDB, database.UserContext{
			UserID: sess.UserID,
			Email:  sess.Email,
		})
		if err != nil {
			data.Error = "Could not load your profile from the database."
		} else {
			data.Profile = prof
		}
	}

	s.render(w, profileTmpl, data)
}

func (s *Server) handleEmailsPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, emailsTmpl, pageData{Title: "Emails", Session: middleware.GetSession(r)})
}

func (s *Server) handleDBSetupPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, dbSetupTmpl, pageData{Title: "Database setup", Session: s.FromRequest(r)})
}

func (s *Server) handleSecurityPoliciesPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, securityTmpl, pageData{Title: "Security policies", Session: s.FromRequest(r)})
}
