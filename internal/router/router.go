package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/handler"
	"github.com/stemsi/elearn-backend/internal/i18n"
	"github.com/stemsi/elearn-backend/internal/logger"
	"github.com/stemsi/elearn-backend/internal/middleware"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth        *handler.AuthHandler
	StudentMgmt *handler.StudentManagementHandler
	Course      *handler.CourseHandler
	Exam        *handler.ExamHandler
	Attempt     *handler.AttemptHandler
	Media       *handler.MediaHandler
	WS          *handler.WSHandler
	Monitor     *handler.MonitorHandler
	Dashboard   *handler.DashboardHandler
	System      *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background helpers such as the rate limiter sweeper.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(logger.Middleware(log), gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "Accept-Language"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID and locale apply to every response envelope.
	router.Use(response.RequestIDMiddleware(), i18n.Middleware())

	router.Use(middleware.Brotli())

	// Uploaded files get random names and are never rewritten.
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(365*24*time.Hour, true))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	requireAuth := middleware.RequireAuth(authService)

	// ─── 1. Auth Group (Rate Limited) ──────────────────────────────────
	authLimiter := middleware.NewRateLimiter(ctx, 30, time.Minute)
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", requireAuth, handlers.Auth.Me)
		auth.POST("/logout", requireAuth, handlers.Auth.Logout)
	}

	// ─── 2. Public Catalogue ───────────────────────────────────────────
	public := router.Group("/api/v1")
	{
		public.GET("/courses", handlers.Course.ListCourses)
		public.GET("/courses/:id", handlers.Course.GetCourse)
	}

	// ─── 3. Student Group (JWT + live token) ───────────────────────────
	attemptLimiter := middleware.NewRateLimiter(ctx, 120, time.Minute)
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(requireAuth, middleware.RequireStudent(), middleware.NoStore())
	{
		studentAPI.GET("/courses", handlers.Course.MyCourses)
		studentAPI.POST("/courses/:id/enroll", handlers.Course.Enroll)
		studentAPI.GET("/courses/:id/exam", handlers.Exam.ExamForCourse)

		studentAPI.POST("/exams/:exam_id/attempts", handlers.Attempt.StartAttempt)
		studentAPI.GET("/attempts", handlers.Attempt.History)

		attempts := studentAPI.Group("/attempts/:attempt_id")
		attempts.Use(attemptLimiter.PerUser())
		{
			attempts.GET("", handlers.Attempt.GetAttempt)
			attempts.PUT("/answer", handlers.Attempt.SelectAnswer)
			attempts.POST("/goto", handlers.Attempt.GoTo)
			attempts.POST("/finish", handlers.Attempt.FinishAttempt)
			attempts.POST("/record", handlers.Attempt.RetryRecord)
		}
	}

	// One-shot submission keeps its original path.
	router.POST("/api/v1/exams/:id/submit", requireAuth, middleware.RequireStudent(), handlers.Attempt.SubmitExam)

	// ─── 4. WebSocket Group (query token) ──────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService), middleware.RequireStudent())
	{
		ws.GET("/student/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 5. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(requireAuth, middleware.RequireAdmin())
	{
		adminAPI.GET("/dashboard", handlers.Dashboard.GetDashboardData)

		adminAPI.POST("/uploads/material", handlers.Media.UploadMaterial)
		adminAPI.POST("/uploads/image", handlers.Media.UploadImage)

		adminAPI.GET("/students", handlers.StudentMgmt.ListStudents)
		adminAPI.POST("/students", handlers.StudentMgmt.CreateStudent)
		adminAPI.GET("/students/:id", handlers.StudentMgmt.GetStudent)
		adminAPI.PUT("/students/:id", handlers.StudentMgmt.UpdateStudent)
		adminAPI.DELETE("/students/:id", handlers.StudentMgmt.DeleteStudent)

		adminAPI.POST("/courses", handlers.Course.CreateCourse)
		adminAPI.PUT("/courses/:id", handlers.Course.UpdateCourse)
		adminAPI.DELETE("/courses/:id", handlers.Course.DeleteCourse)
		adminAPI.POST("/courses/:id/materials", handlers.Course.AddMaterial)

		adminAPI.GET("/exams", handlers.Exam.ListExams)
		adminAPI.POST("/exams", handlers.Exam.CreateExam)
		adminAPI.GET("/exams/:id", handlers.Exam.GetExam)
		adminAPI.PUT("/exams/:id", handlers.Exam.UpdateExam)
		adminAPI.DELETE("/exams/:id", handlers.Exam.DeleteExam)
		adminAPI.GET("/exams/:id/attempts", handlers.Attempt.ListExamAttempts)
		adminAPI.GET("/exams/:id/monitor", handlers.Monitor.MonitorExamSSE)

		adminAPI.GET("/attempts/:attempt_id", handlers.Attempt.GetRecordedAttempt)

		adminAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
