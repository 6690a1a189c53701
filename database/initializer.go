package database

import (
	"log"
	"strings"
)

func (s *PostgreSQLStore) Initialize() error {
	// Init all enums
	log.Println("Initializing PostgresSQL Database.", "Initializing Enums")
	if err := s.InitEnums(); err != nil {
		return err
	}
	// Init all tables
	log.Println("Initializing PostgresSQL Database.", "Initializing Tables")
	if err := s.InitTables(); err != nil {
		return err
	}
	return nil
}

func (s *PostgreSQLStore) InitEnums() error {
	// Init all the enums
	query := `
		DO $$
		BEGIN
           	IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'user_role') THEN
				CREATE TYPE user_role AS ENUM ('admin', 'teacher', 'student');
           	END IF;
		END $$;

		DO $$
		BEGIN
           	IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'course_level') THEN
				CREATE TYPE course_level AS ENUM ('lower_secondary', 'advanced');
           	END IF;
		END $$;

		DO $$
		BEGIN
           	IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'enrollment_status') THEN
				CREATE TYPE enrollment_status AS ENUM ('pending', 'approved', 'declined');
           	END IF;
		END $$;

		DO $$
		BEGIN
           	IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'quiz_option') THEN
				CREATE TYPE quiz_option AS ENUM ('A', 'B', 'C', 'D');
           	END IF;
		END $$;

		DO $$
		BEGIN
           	IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'notification_scope') THEN
				CREATE TYPE notification_scope AS ENUM ('all', 'course', 'user');
           	END IF;
		END $$;
	`
	_, err := s.db.Exec(query)

	return err
}

func (s *PostgreSQLStore) InitTables() error {
	//
	// Init all the tables
	//

	// users table
	users_table := `
	CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        email VARCHAR(512) UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        first_name VARCHAR(100) NOT NULL,
        last_name VARCHAR(100) NOT NULL,
        date_of_birth DATE NOT NULL,
        role user_role NOT NULL DEFAULT 'student',
        has_paid BOOLEAN NOT NULL DEFAULT FALSE,
        token_version INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMP DEFAULT NOW()
	);
	`

	// courses table
	courses_table := `
	CREATE TABLE IF NOT EXISTS courses (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        title VARCHAR(200) NOT NULL,
        description TEXT NOT NULL,
        level course_level NOT NULL,
        max_students INTEGER NOT NULL DEFAULT 50,
        teacher_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
        created_at TIMESTAMP DEFAULT NOW()
    );
	`

	// enrollments table: one non-declined row per (student, course)
	enrollments_table := `
	CREATE TABLE IF NOT EXISTS enrollments (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        student_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
        status enrollment_status NOT NULL DEFAULT 'pending',
        requested_at TIMESTAMP DEFAULT NOW(),
        responded_at TIMESTAMP
    );
	CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollment_single_open
		ON enrollments (student_id, course_id) WHERE status <> 'declined';
	`

	// curriculum tree tables, cascade per level
	curriculum_tables := `
	CREATE TABLE IF NOT EXISTS modules (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
        title VARCHAR(200) NOT NULL,
        description TEXT,
        "order" INTEGER NOT NULL DEFAULT 0
    );
	CREATE TABLE IF NOT EXISTS topics (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        module_id INTEGER NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
        title VARCHAR(200) NOT NULL,
        description TEXT,
        "order" INTEGER NOT NULL DEFAULT 0
    );
	CREATE TABLE IF NOT EXISTS lessons (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
        title VARCHAR(200) NOT NULL,
        description TEXT,
        theory_text TEXT,
        video_url VARCHAR(500),
        video_file VARCHAR(200),
        image_files TEXT,
        is_lab_lesson BOOLEAN NOT NULL DEFAULT FALSE,
        "order" INTEGER NOT NULL DEFAULT 0
    );
	`

	// quiz tables
	quiz_tables := `
	CREATE TABLE IF NOT EXISTS quizzes (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
        title VARCHAR(200) NOT NULL,
        description TEXT,
        total_points INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMP DEFAULT NOW()
    );
	CREATE TABLE IF NOT EXISTS quiz_questions (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        quiz_id INTEGER NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
        question_text TEXT NOT NULL,
        option_a VARCHAR(500) NOT NULL,
        option_b VARCHAR(500) NOT NULL,
        option_c VARCHAR(500) NOT NULL,
        option_d VARCHAR(500) NOT NULL,
        correct_option quiz_option NOT NULL,
        points INTEGER NOT NULL DEFAULT 1,
        "order" INTEGER NOT NULL DEFAULT 0
    );
	CREATE TABLE IF NOT EXISTS quiz_submissions (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        student_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        quiz_id INTEGER NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
        total_score INTEGER NOT NULL DEFAULT 0,
        percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
        submitted_at TIMESTAMP DEFAULT NOW(),
        UNIQUE(student_id, quiz_id)
    );
	CREATE TABLE IF NOT EXISTS quiz_answers (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        submission_id INTEGER NOT NULL REFERENCES quiz_submissions(id) ON DELETE CASCADE,
        question_id INTEGER NOT NULL REFERENCES quiz_questions(id) ON DELETE CASCADE,
        selected_option quiz_option NOT NULL,
        points_earned INTEGER NOT NULL DEFAULT 0
    );
	`

	// essay tables
	essay_tables := `
	CREATE TABLE IF NOT EXISTS essays (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
        title VARCHAR(200) NOT NULL,
        question_text TEXT NOT NULL,
        allows_file_upload BOOLEAN NOT NULL DEFAULT FALSE,
        max_points INTEGER NOT NULL DEFAULT 100,
        due_date TIMESTAMP,
        created_at TIMESTAMP DEFAULT NOW()
    );
	CREATE TABLE IF NOT EXISTS essay_submissions (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        student_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        essay_id INTEGER NOT NULL REFERENCES essays(id) ON DELETE CASCADE,
        text_content TEXT,
        uploaded_file VARCHAR(200),
        original_name VARCHAR(255),
        score INTEGER CHECK (score >= 0),
        feedback TEXT,
        graded BOOLEAN NOT NULL DEFAULT FALSE,
        graded_at TIMESTAMP,
        submitted_at TIMESTAMP DEFAULT NOW(),
        UNIQUE(student_id, essay_id)
    );
	`

	// live classes: at most one active (ended_at NULL) row per course
	live_classes_table := `
	CREATE TABLE IF NOT EXISTS live_classes (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
        title VARCHAR(200) NOT NULL,
        description TEXT,
        stream_url VARCHAR(500) NOT NULL,
        started_at TIMESTAMP DEFAULT NOW(),
        ended_at TIMESTAMP
    );
	CREATE UNIQUE INDEX IF NOT EXISTS idx_live_class_single_active
		ON live_classes (course_id) WHERE ended_at IS NULL;
	`

	// discussion tables
	discussion_tables := `
	CREATE TABLE IF NOT EXISTS discussions (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
        author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        title VARCHAR(200) NOT NULL,
        content TEXT NOT NULL,
        is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMP DEFAULT NOW()
    );
	CREATE TABLE IF NOT EXISTS replies (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        discussion_id INTEGER NOT NULL REFERENCES discussions(id) ON DELETE CASCADE,
        author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        content TEXT NOT NULL,
        created_at TIMESTAMP DEFAULT NOW()
    );
	`

	// notification tables
	notification_tables := `
	CREATE TABLE IF NOT EXISTS notifications (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        sender_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        scope notification_scope NOT NULL,
        course_id INTEGER REFERENCES courses(id) ON DELETE SET NULL,
        title VARCHAR(255) NOT NULL,
        message TEXT NOT NULL,
        metadata JSONB,
        created_at TIMESTAMP DEFAULT NOW()
    );
	CREATE TABLE IF NOT EXISTS notification_recipients (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        notification_id INTEGER NOT NULL REFERENCES notifications(id) ON DELETE CASCADE,
        user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        read_at TIMESTAMP,
        created_at TIMESTAMP DEFAULT NOW(),
        UNIQUE(notification_id, user_id)
    );
	`

	// library resources table
	library_table := `
	CREATE TABLE IF NOT EXISTS library_resources (
        id INTEGER PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
        title VARCHAR(200) NOT NULL,
        description TEXT,
        author VARCHAR(200),
        tags VARCHAR(500),
        category VARCHAR(100),
        file_name VARCHAR(255) NOT NULL,
        stored_name VARCHAR(200) NOT NULL,
        file_size BIGINT NOT NULL DEFAULT 0,
        uploaded_by INTEGER REFERENCES users(id) ON DELETE SET NULL,
        created_at TIMESTAMP DEFAULT NOW()
    );
	`

	all_tables := strings.Join([]string{
		users_table,
		courses_table,
		enrollments_table,
		curriculum_tables,
		quiz_tables,
		essay_tables,
		live_classes_table,
		discussion_tables,
		notification_tables,
		library_table,
	}, "")

	_, err := s.db.Exec(all_tables)
	return err
}
