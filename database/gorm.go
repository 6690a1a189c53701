package database

import (
	"fmt"
	"log"
	"time"

	"github.com/stgeorges/biolms/config"
	"github.com/stgeorges/biolms/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GORMStore struct {
	db *gorm.DB
}

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM() (*GORMStore, error) {
	getEnv, err := config.Get()
	if err != nil {
		return nil, err
	}

	// Build DSN (Data Source Name)
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		getEnv.DB_HOST,
		getEnv.DB_USER_NAME,
		getEnv.DB_PASSWORD,
		getEnv.DB_NAME,
		getEnv.DB_PORT,
		getEnv.DB_SSL_MODE,
	)

	// Configure GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)
	if getEnv.GO_ENV == "production" {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: false,
		PrepareStmt:            true,
	})
	if err != nil {
		log.Println("Unable to connect to PostgreSQL with GORM:", err)
		return nil, err
	}

	// Get underlying *sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Successfully connected to PostgreSQL Database with GORM.")

	return &GORMStore{db: db}, nil
}

// Init runs AutoMigrate for all models and creates the partial unique
// indexes that close the check-then-write races (single active live
// class per course, single non-declined enrollment per student+course).
func (s *GORMStore) Init() error {
	log.Println("Running GORM AutoMigrate for all models...")

	err := s.db.AutoMigrate(
		// Identity
		&model.User{},
		&model.JWTTokenBlacklist{},

		// Catalog & enrollment
		&model.Course{},
		&model.Enrollment{},

		// Curriculum tree
		&model.CourseModule{},
		&model.Topic{},
		&model.Lesson{},

		// Assessment
		&model.Quiz{},
		&model.QuizQuestion{},
		&model.QuizSubmission{},
		&model.QuizAnswer{},
		&model.Essay{},
		&model.EssaySubmission{},

		// Live sessions
		&model.LiveClass{},

		// Discussion
		&model.Discussion{},
		&model.Reply{},

		// Notification
		&model.Notification{},
		&model.NotificationRecipient{},

		// Library
		&model.LibraryResource{},

		// Background jobs
		&model.CronJobLog{},
	)
	if err != nil {
		log.Println("Error running AutoMigrate:", err)
		return err
	}

	// AutoMigrate cannot express partial unique indexes; create them
	// explicitly. These back the application-level checks with a real
	// storage constraint.
	constraints := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_live_class_single_active
			ON live_classes (course_id)
			WHERE ended_at IS NULL AND deleted_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollment_single_open
			ON enrollments (student_id, course_id)
			WHERE status <> 'declined' AND deleted_at IS NULL`,
	}
	for _, ddl := range constraints {
		if err := s.db.Exec(ddl).Error; err != nil {
			log.Println("Error creating constraint index:", err)
			return err
		}
	}

	log.Println("GORM AutoMigrate completed successfully!")
	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	log.Println("Closing GORM PostgreSQL connection...")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the GORM DB instance for use in services/handlers
func (s *GORMStore) GetDB() interface{} {
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CourseEnrollmentReport aggregates enrollment counts per course
func (s *GORMStore) CourseEnrollmentReport() ([]model.CourseEnrollmentReport, error) {
	var rows []model.CourseEnrollmentReport
	err := s.db.Raw(`
		SELECT c.id AS course_id,
		       c.title,
		       c.max_students,
		       COUNT(e.id) FILTER (WHERE e.status = 'approved') AS approved_count,
		       COUNT(e.id) FILTER (WHERE e.status = 'pending')  AS pending_count,
		       COUNT(e.id) FILTER (WHERE e.status = 'declined') AS declined_count
		FROM courses c
		LEFT JOIN enrollments e ON e.course_id = c.id AND e.deleted_at IS NULL
		WHERE c.deleted_at IS NULL
		GROUP BY c.id, c.title, c.max_students
		ORDER BY c.id`).Scan(&rows).Error
	return rows, err
}

// QuizScoreReport aggregates submission counts and average percentages per quiz
func (s *GORMStore) QuizScoreReport() ([]model.QuizScoreReport, error) {
	var rows []model.QuizScoreReport
	err := s.db.Raw(`
		SELECT q.id AS quiz_id,
		       q.title,
		       q.course_id,
		       COUNT(s.id) AS submission_count,
		       COALESCE(AVG(s.percentage), 0) AS average_percent
		FROM quizzes q
		LEFT JOIN quiz_submissions s ON s.quiz_id = q.id AND s.deleted_at IS NULL
		WHERE q.deleted_at IS NULL
		GROUP BY q.id, q.title, q.course_id
		ORDER BY q.id`).Scan(&rows).Error
	return rows, err
}
