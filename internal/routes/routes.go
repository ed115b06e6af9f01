package routes

import (
	"net/http"

	"github.com/dirigovotes/dirigo/internal/app"
	"github.com/dirigovotes/dirigo/internal/handler"
	"github.com/dirigovotes/dirigo/internal/metrics"
	"github.com/dirigovotes/dirigo/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.DB, app.Cfg, app.AvatarService.Enabled())
	auth := handler.NewAuthHandler(app.AuthService, app.Signup, app.AuthLimiter, app.Cfg)
	account := handler.NewAccountHandler(app.UserService)
	profile := handler.NewProfileHandler(app.ProfileService)
	issue := handler.NewIssueHandler(app.IssueService)
	vote := handler.NewVoteHandler(app.VoteService)
	report := handler.NewReportHandler(app.ReportService)
	admin := handler.NewAdminHandler(app.AdminService)
	stream := handler.NewEventsHandler(app.Bus, app.AdminService)

	rateLimited := middleware.RateLimit(app.AuthLimiter)
	requireAdmin := middleware.RequireAdmin(app.AdminService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /api/config", health.PublicConfig)
	if app.Cfg.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	// Auth (rate limited)
	mux.HandleFunc("POST /api/auth/signup", rateLimited(auth.SignUp))
	mux.HandleFunc("POST /api/auth/accounts", rateLimited(auth.CreateAccount))
	mux.HandleFunc("POST /api/auth/signin", rateLimited(auth.SignIn))
	mux.HandleFunc("POST /api/auth/resend-verification", rateLimited(auth.ResendVerification))
	mux.HandleFunc("GET /api/auth/account-status", rateLimited(auth.AccountStatus))
	mux.HandleFunc("GET /api/auth/verify/{token}", auth.VerifyEmail)
	mux.HandleFunc("POST /api/auth/signout", middleware.RequireAuth(auth.SignOut))

	// Issues and positions
	mux.HandleFunc("GET /api/issues", issue.List)
	mux.HandleFunc("GET /api/issues/{id}", issue.Show)
	mux.HandleFunc("GET /api/issues/{id}/positions", issue.Positions)
	mux.HandleFunc("GET /api/positions/{id}", issue.Position)
	mux.HandleFunc("POST /api/positions/{id}/ghost-vote", vote.Ghost)

	// Client error reports
	mux.HandleFunc("POST /api/system-errors", rateLimited(report.ClientError))

	// ============================================================================
	// PROTECTED ROUTES (bearer token)
	// ============================================================================

	mux.HandleFunc("GET /api/auth/session", middleware.RequireAuth(auth.Session))
	mux.HandleFunc("GET /api/events", middleware.RequireAuth(stream.Stream))

	// Issues
	mux.HandleFunc("POST /api/issues", middleware.RequireAuth(issue.Create))
	mux.HandleFunc("DELETE /api/issues/{id}", middleware.RequireAuth(issue.Delete))
	mux.HandleFunc("POST /api/issues/{id}/positions", middleware.RequireAuth(issue.CreatePosition))

	// Votes
	mux.HandleFunc("POST /api/issues/{id}/vote", middleware.RequireAuth(vote.Cast))
	mux.HandleFunc("GET /api/issues/{id}/vote", middleware.RequireAuth(vote.Current))
	mux.HandleFunc("POST /api/vote-tracking", middleware.RequireAuth(vote.CreateTracking))
	mux.HandleFunc("GET /api/vote-tracking", middleware.RequireAuth(vote.CheckTracking))
	mux.HandleFunc("DELETE /api/vote-tracking", middleware.RequireAuth(vote.DeleteTracking))

	// Reports
	mux.HandleFunc("POST /api/reports/issue", middleware.RequireAuth(report.Issue))
	mux.HandleFunc("POST /api/reports/position", middleware.RequireAuth(report.Position))
	mux.HandleFunc("POST /api/reports/site", middleware.RequireAuth(report.Site))

	// Profile
	mux.HandleFunc("GET /api/profile", middleware.RequireAuth(profile.Show))
	mux.HandleFunc("PATCH /api/profile/name", middleware.RequireAuth(profile.UpdateName))
	mux.HandleFunc("POST /api/profile/avatar", middleware.RequireAuth(profile.UploadAvatar))
	mux.HandleFunc("DELETE /api/profile/avatar", middleware.RequireAuth(profile.DeleteAvatar))

	// Account
	mux.HandleFunc("GET /api/account", middleware.RequireAuth(account.Show))
	mux.HandleFunc("PATCH /api/account/password", middleware.RequireAuth(account.ChangePassword))
	mux.HandleFunc("DELETE /api/account", middleware.RequireAuth(account.DeleteAccount))

	// ============================================================================
	// ADMIN ROUTES
	// ============================================================================

	mux.HandleFunc("GET /api/admin/users", requireAdmin(admin.ListUsers))
	mux.HandleFunc("POST /api/admin/users/manage", requireAdmin(admin.ManageUser))
	mux.HandleFunc("GET /api/admin/users/lookup", requireAdmin(admin.LookupUser))
	mux.HandleFunc("GET /api/admin/users/search", requireAdmin(admin.SearchUsers))
	mux.HandleFunc("GET /api/admin/users/{id}", requireAdmin(admin.UserProfile))
	mux.HandleFunc("GET /api/admin/analytics", requireAdmin(admin.Analytics))
	mux.HandleFunc("GET /api/admin/system-errors", requireAdmin(report.RecentErrors))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		middleware.Error(w, http.StatusNotFound, "not found")
	})

	// Global middleware, outermost first
	return middleware.Stack{
		middleware.CORS, // preflight requests never reach auth
		middleware.RequestID,
		middleware.RequestLogging,
		middleware.Authenticate(app.AuthService),
	}.Then(mux)
}
