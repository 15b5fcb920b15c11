package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Exam     *handler.ExamHandler
	Question *handler.QuestionHandler
	Setting  *handler.SettingHandler
	Stats    *handler.StatsHandler
	System   *handler.SystemHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background goroutines owned by middlewares.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.GinMode != gin.TestMode {
		router.Use(gin.Logger())
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	authLimiter := middleware.NewRateLimiter(ctx, cfg.AuthRateLimit, time.Minute)
	requireUser := []gin.HandlerFunc{
		middleware.RequireUserJWT(authService),
		middleware.RejectRevokedTokens(authService),
	}

	// ─── 1. Exam Taker (Public) ────────────────────────────────────────
	exam := router.Group("/", middleware.NoStore())
	{
		exam.GET("/get-questions", handlers.Exam.GetQuestions)
		exam.GET("/exam-settings", handlers.Exam.GetExamSettings)
	}

	// ─── 2. Auth (Rate Limited) ────────────────────────────────────────
	auth := router.Group("/", authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)
	}

	// ─── 3. Exam Taker (JWT) ───────────────────────────────────────────
	user := router.Group("/", append(requireUser, middleware.NoStore())...)
	{
		user.POST("/submit-exam", handlers.Exam.SubmitExam)
		user.GET("/user-results/:email", handlers.Exam.GetUserResults)
		user.POST("/logout", handlers.Auth.Logout)
	}

	// ─── 4. Admin (JWT + RBAC) ─────────────────────────────────────────
	admin := router.Group("/",
		middleware.RequireAdminJWT(authService),
		middleware.RejectRevokedTokens(authService),
	)
	{
		// Dashboard counters
		admin.GET("/admin/stats",
			middleware.RequirePermission(model.PermissionStatsRead),
			handlers.Stats.GetOverview,
		)
		admin.GET("/admin/stats/questions",
			middleware.RequirePermission(model.PermissionStatsRead),
			handlers.Stats.CountQuestions,
		)
		admin.GET("/admin/stats/users",
			middleware.RequirePermission(model.PermissionStatsRead),
			handlers.Stats.CountUsers,
		)
		admin.GET("/admin/stats/exams",
			middleware.RequirePermission(model.PermissionStatsRead),
			handlers.Stats.CountExams,
		)

		// Runtime health
		admin.GET("/admin/system/metrics",
			middleware.RequirePermission(model.PermissionStatsRead),
			handlers.System.Metrics,
		)
		admin.GET("/admin/system/metrics/stream",
			middleware.RequirePermission(model.PermissionStatsRead),
			handlers.System.MetricsStream,
		)

		// Question bank
		admin.GET("/admin/questions",
			middleware.RequirePermission(model.PermissionQuestionsRead),
			handlers.Question.ListQuestions,
		)
		admin.POST("/add-question",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.AddQuestion,
		)
		admin.PUT("/admin/questions/:id",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.ReplaceQuestion,
		)
		admin.DELETE("/admin/questions/:id",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.DeleteQuestion,
		)
		admin.DELETE("/admin/questions",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.DeleteAllQuestions,
		)
		admin.POST("/add-bulk-questions",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.AddBulkQuestions,
		)
		admin.POST("/upload-questions",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.UploadQuestions,
		)

		// Exam settings
		admin.POST("/update-exam-settings",
			middleware.RequirePermission(model.PermissionSettingsWrite),
			handlers.Setting.UpdateExamSettings,
		)
	}

	// ─── 5. WebSocket (Admin WS Auth) ──────────────────────────────────
	ws := router.Group("/ws")
	ws.Use(
		middleware.RequireAdminWSAuth(authService),
		middleware.RejectRevokedTokens(authService),
		middleware.RequirePermission(model.PermissionResultsRead),
	)
	{
		ws.GET("/admin/results/stream", handlers.WS.ResultsStream)
	}

	return router
}
