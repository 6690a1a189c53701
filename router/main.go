package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/config"
	"github.com/stgeorges/biolms/database"
	"github.com/stgeorges/biolms/handlers"
	admin_handlers "github.com/stgeorges/biolms/handlers/admin"
	auth_handlers "github.com/stgeorges/biolms/handlers/auth"
	course_handlers "github.com/stgeorges/biolms/handlers/course"
	curriculum_handlers "github.com/stgeorges/biolms/handlers/curriculum"
	discussion_handlers "github.com/stgeorges/biolms/handlers/discussion"
	enrollment_handlers "github.com/stgeorges/biolms/handlers/enrollment"
	essay_handlers "github.com/stgeorges/biolms/handlers/essay"
	library_handlers "github.com/stgeorges/biolms/handlers/library"
	liveclass_handlers "github.com/stgeorges/biolms/handlers/liveclass"
	notification_handlers "github.com/stgeorges/biolms/handlers/notification"
	payment_handlers "github.com/stgeorges/biolms/handlers/payment"
	quiz_handlers "github.com/stgeorges/biolms/handlers/quiz"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services"
	"github.com/stgeorges/biolms/services/cron"
	"github.com/stgeorges/biolms/services/filestore"
	"github.com/stgeorges/biolms/utils/auth"
	"github.com/stgeorges/biolms/utils/cache"
	"github.com/stgeorges/biolms/utils/middleware"
	"gorm.io/gorm"
)

// SetupRoutes wires every route group. store is the primary GORM store;
// reportStore serves the admin aggregate reports and may be the legacy
// raw-SQL store when REPORT_STORE=pq.
func SetupRoutes(app *fiber.App, store database.Storage, reportStore database.Storage, cronManager *cron.Manager, env *config.EnviornmentVariable) {
	jwtSecret := env.JWT_SECRET
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "biolms-api"
	}

	jwtConfig := auth.JWTConfig{
		Secret:        jwtSecret,
		Expiry:        24 * time.Hour,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis cache for brute force protection
	redisURL := env.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection will be disabled.", err)
	}

	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil && err == nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)
	blacklistService := auth.NewBlacklistService(db)

	files, err := filestore.NewLocalStore(env.UPLOAD_DIR)
	if err != nil {
		log.Fatalf("Failed to prepare upload directory: %v", err)
	}
	maxUpload := int64(env.MAX_UPLOAD_MB) * 1024 * 1024

	// Services
	enrollmentService := services.NewEnrollmentService(db, env.ENROLL_ALLOW_RETRY_AFTER_DECLINE)
	curriculumService := services.NewCurriculumService(db)
	quizService := services.NewQuizService(db)
	essayService := services.NewEssayService(db, files, env.ALLOWED_EXTENSIONS, maxUpload)
	liveClassService := services.NewLiveClassService(db)
	notificationService := services.NewNotificationService(db)
	libraryService := services.NewLibraryService(db, files, env.ALLOWED_EXTENSIONS, maxUpload)

	// Handlers
	healthHandler := handlers.NewHealthHandler(store)
	authHandler := auth_handlers.NewHandler(db, jwtManager, blacklistService, bruteForceProtection)
	paymentHandler := payment_handlers.NewHandler(db)
	courseHandler := course_handlers.NewHandler(db)
	enrollmentHandler := enrollment_handlers.NewHandler(enrollmentService)
	curriculumHandler := curriculum_handlers.NewHandler(curriculumService, enrollmentService, files, env.ALLOWED_EXTENSIONS, maxUpload)
	quizHandler := quiz_handlers.NewHandler(quizService, enrollmentService)
	essayHandler := essay_handlers.NewHandler(essayService, enrollmentService)
	liveClassHandler := liveclass_handlers.NewHandler(liveClassService, enrollmentService)
	discussionHandler := discussion_handlers.NewHandler(db, enrollmentService)
	notificationHandler := notification_handlers.NewHandler(notificationService, enrollmentService)
	libraryHandler := library_handlers.NewHandler(libraryService)
	adminHandler := admin_handlers.NewHandler(db, reportStore, blacklistService, cronManager)

	// Security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check endpoint (public)
	app.Get("/ping", healthHandler.Check)

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}
	authGroup.Post("/refresh", authHandler.Refresh)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/change-password", authMiddleware.Required(), authHandler.ChangePassword)
	authGroup.Get("/profile", authMiddleware.Required(), authHandler.Profile)
	authGroup.Put("/profile", authMiddleware.Required(), authHandler.UpdateProfile)

	// Course catalog
	courseGroup := api.Group("/courses", authMiddleware.Required())
	courseGroup.Get("/", courseHandler.List)
	courseGroup.Get("/:id", courseHandler.Get)
	courseGroup.Post("/", authMiddleware.RequireAdmin(), courseHandler.Create)
	courseGroup.Put("/:id", authMiddleware.RequireAdmin(), courseHandler.Update)
	courseGroup.Put("/:id/teacher", authMiddleware.RequireAdmin(), courseHandler.AssignTeacher)
	courseGroup.Delete("/:id", authMiddleware.RequireAdmin(), courseHandler.Delete)

	// Enrollment
	courseGroup.Post("/:id/enroll", authMiddleware.RequireRole(model.RoleStudent), enrollmentHandler.Request)
	courseGroup.Get("/:id/enrollments", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), enrollmentHandler.ListForCourse)
	api.Get("/enrollments/mine", authMiddleware.RequireRole(model.RoleStudent), enrollmentHandler.Mine)
	api.Post("/enrollments/:id/approve", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), enrollmentHandler.Approve)
	api.Post("/enrollments/:id/decline", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), enrollmentHandler.Decline)

	// Curriculum tree
	courseGroup.Get("/:id/curriculum", curriculumHandler.Tree)
	courseGroup.Post("/:id/modules", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.CreateModule)
	moduleGroup := api.Group("/modules", authMiddleware.Required())
	moduleGroup.Put("/:id", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.UpdateModule)
	moduleGroup.Put("/:id/position", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.MoveModule)
	moduleGroup.Delete("/:id", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.DeleteModule)
	moduleGroup.Post("/:id/topics", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.CreateTopic)
	topicGroup := api.Group("/topics", authMiddleware.Required())
	topicGroup.Put("/:id", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.UpdateTopic)
	topicGroup.Put("/:id/position", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.MoveTopic)
	topicGroup.Delete("/:id", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.DeleteTopic)
	topicGroup.Post("/:id/lessons", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.CreateLesson)
	lessonGroup := api.Group("/lessons", authMiddleware.Required())
	lessonGroup.Get("/:id", curriculumHandler.GetLesson)
	lessonGroup.Put("/:id", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.UpdateLesson)
	lessonGroup.Put("/:id/position", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.MoveLesson)
	lessonGroup.Delete("/:id", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.DeleteLesson)
	lessonGroup.Post("/:id/media", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), curriculumHandler.UploadLessonMedia)
	lessonGroup.Get("/:id/media/:file", curriculumHandler.LessonMedia)

	// Quizzes
	courseGroup.Get("/:id/quizzes", quizHandler.ListForCourse)
	courseGroup.Post("/:id/quizzes", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), quizHandler.Create)
	quizGroup := api.Group("/quizzes", authMiddleware.Required())
	quizGroup.Get("/:id", quizHandler.Get)
	quizGroup.Delete("/:id", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), quizHandler.Delete)
	quizGroup.Post("/:id/submit", authMiddleware.RequireRole(model.RoleStudent), quizHandler.Submit)
	quizGroup.Get("/:id/submission", authMiddleware.RequireRole(model.RoleStudent), quizHandler.MySubmission)
	quizGroup.Get("/:id/submissions", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), quizHandler.Submissions)

	// Essays
	courseGroup.Get("/:id/essays", essayHandler.ListForCourse)
	courseGroup.Post("/:id/essays", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), essayHandler.Create)
	essayGroup := api.Group("/essays", authMiddleware.Required())
	essayGroup.Get("/:id", essayHandler.Get)
	essayGroup.Post("/:id/submit", authMiddleware.RequireRole(model.RoleStudent), essayHandler.Submit)
	essayGroup.Get("/:id/submission", authMiddleware.RequireRole(model.RoleStudent), essayHandler.MySubmission)
	essayGroup.Get("/:id/submissions", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), essayHandler.Submissions)
	api.Post("/submissions/:id/grade", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), essayHandler.Grade)
	api.Get("/submissions/:id/file", authMiddleware.Required(), essayHandler.DownloadSubmission)

	// Live classes
	courseGroup.Post("/:id/live", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), liveClassHandler.Start)
	courseGroup.Get("/:id/live", liveClassHandler.Active)
	courseGroup.Get("/:id/live/history", liveClassHandler.History)
	api.Post("/live/:id/end", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), liveClassHandler.End)

	// Discussions
	courseGroup.Get("/:id/discussions", discussionHandler.List)
	courseGroup.Post("/:id/discussions", discussionHandler.Create)
	discussionGroup := api.Group("/discussions", authMiddleware.Required())
	discussionGroup.Get("/:id", discussionHandler.Get)
	discussionGroup.Post("/:id/replies", discussionHandler.Reply)
	discussionGroup.Post("/:id/pin", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), discussionHandler.Pin)
	discussionGroup.Delete("/:id", discussionHandler.Delete)

	// Notifications
	notificationGroup := api.Group("/notifications", authMiddleware.Required())
	notificationGroup.Post("/", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), notificationHandler.Send)
	notificationGroup.Get("/", notificationHandler.List)
	notificationGroup.Get("/unread", notificationHandler.UnreadCount)
	notificationGroup.Post("/:id/read", notificationHandler.MarkAsRead)
	notificationGroup.Post("/read-all", notificationHandler.MarkAllAsRead)

	// File library
	libraryGroup := api.Group("/library", authMiddleware.Required())
	libraryGroup.Get("/", libraryHandler.List)
	libraryGroup.Get("/categories", libraryHandler.Categories)
	libraryGroup.Get("/:id", libraryHandler.Get)
	libraryGroup.Get("/:id/file", libraryHandler.Download)
	libraryGroup.Post("/", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), libraryHandler.Upload)
	libraryGroup.Put("/:id", authMiddleware.RequireRole(model.RoleTeacher, model.RoleAdmin), libraryHandler.Update)
	libraryGroup.Delete("/:id", authMiddleware.RequireRole(model.RoleAdmin), libraryHandler.Delete)

	// Payment
	api.Post("/payment", authMiddleware.RequireRole(model.RoleStudent), paymentHandler.Pay)

	// Admin
	adminGroup := api.Group("/admin", authMiddleware.RequireAdmin())
	adminGroup.Get("/users", adminHandler.ListUsers)
	adminGroup.Post("/users", adminHandler.CreateUser)
	adminGroup.Get("/users/unpaid", paymentHandler.ListUnpaid)
	adminGroup.Get("/users/:id", adminHandler.GetUser)
	adminGroup.Put("/users/:id/role", adminHandler.SetRole)
	adminGroup.Delete("/users/:id", adminHandler.DeleteUser)
	adminGroup.Put("/users/:id/payment", paymentHandler.SetPaid)
	adminGroup.Get("/reports/enrollments", adminHandler.EnrollmentReport)
	adminGroup.Get("/reports/quizzes", adminHandler.QuizReport)
	adminGroup.Get("/cron/logs", adminHandler.CronLogs)
	adminGroup.Post("/cron/:name/run", adminHandler.TriggerCron)
}
