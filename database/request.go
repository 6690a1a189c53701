package database

import (
	"database/sql"

	"github.com/stgeorges/biolms/model"
)

// CourseEnrollmentReport aggregates enrollment counts per course
func (s *PostgreSQLStore) CourseEnrollmentReport() ([]model.CourseEnrollmentReport, error) {
	query := `
		SELECT c.id,
		       c.title,
		       c.max_students,
		       COUNT(e.id) FILTER (WHERE e.status = 'approved'),
		       COUNT(e.id) FILTER (WHERE e.status = 'pending'),
		       COUNT(e.id) FILTER (WHERE e.status = 'declined')
		FROM courses c
		LEFT JOIN enrollments e ON e.course_id = c.id
		GROUP BY c.id, c.title, c.max_students
		ORDER BY c.id;
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []model.CourseEnrollmentReport{}
	for rows.Next() {
		report, err := scanIntoEnrollmentReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}

	return reports, rows.Err()
}

// QuizScoreReport aggregates submission counts and average percentages per quiz
func (s *PostgreSQLStore) QuizScoreReport() ([]model.QuizScoreReport, error) {
	query := `
		SELECT q.id,
		       q.title,
		       q.course_id,
		       COUNT(s.id),
		       COALESCE(AVG(s.percentage), 0)
		FROM quizzes q
		LEFT JOIN quiz_submissions s ON s.quiz_id = q.id
		GROUP BY q.id, q.title, q.course_id
		ORDER BY q.id;
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []model.QuizScoreReport{}
	for rows.Next() {
		report, err := scanIntoQuizReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}

	return reports, rows.Err()
}

func scanIntoEnrollmentReport(rows *sql.Rows) (*model.CourseEnrollmentReport, error) {
	report := new(model.CourseEnrollmentReport)
	err := rows.Scan(
		&report.CourseID,
		&report.Title,
		&report.MaxStudents,
		&report.ApprovedCount,
		&report.PendingCount,
		&report.DeclinedCount,
	)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func scanIntoQuizReport(rows *sql.Rows) (*model.QuizScoreReport, error) {
	report := new(model.QuizScoreReport)
	err := rows.Scan(
		&report.QuizID,
		&report.Title,
		&report.CourseID,
		&report.SubmissionCount,
		&report.AveragePercent,
	)
	if err != nil {
		return nil, err
	}
	return report, nil
}
