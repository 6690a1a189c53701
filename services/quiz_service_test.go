package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stgeorges/biolms/model"
)

func createQuiz(t *testing.T, svc *QuizService, courseID uint, questions []QuestionInput) *model.Quiz {
	t.Helper()
	quiz, err := svc.Create(context.Background(), courseID, "Cell Division", "", questions)
	if err != nil {
		t.Fatalf("failed to create quiz: %v", err)
	}
	return quiz
}

func TestQuizCreateDerivesTotalPoints(t *testing.T) {
	db := newTestDB(t)
	svc := NewQuizService(db)
	course := createCourse(t, db, "Biology", 10, nil)

	quiz := createQuiz(t, svc, course.ID, []QuestionInput{
		{Text: "Q1", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: model.QuizOptionA, Points: 2},
		{Text: "Q2", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: model.QuizOptionB, Points: 3},
	})

	if quiz.TotalPoints != 5 {
		t.Fatalf("expected total points 5, got %d", quiz.TotalPoints)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(quiz.Questions))
	}
}

func TestQuizCreateRejectsEmpty(t *testing.T) {
	db := newTestDB(t)
	svc := NewQuizService(db)
	course := createCourse(t, db, "Biology", 10, nil)

	_, err := svc.Create(context.Background(), course.ID, "Empty", "", nil)
	if !errors.Is(err, ErrQuizNoQuestions) {
		t.Fatalf("expected ErrQuizNoQuestions, got %v", err)
	}
}

func TestQuizSubmitGrading(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewQuizService(db)
	course := createCourse(t, db, "Biology", 10, nil)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)

	quiz := createQuiz(t, svc, course.ID, []QuestionInput{
		{Text: "Q1", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: model.QuizOptionA, Points: 2},
		{Text: "Q2", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: model.QuizOptionB, Points: 3},
	})

	// Correct on the 3-point question, wrong on the 2-point one
	answers := map[uint]model.QuizOption{
		quiz.Questions[0].ID: model.QuizOptionC,
		quiz.Questions[1].ID: model.QuizOptionB,
	}
	submission, err := svc.Submit(ctx, student.ID, quiz.ID, answers)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if submission.TotalScore != 3 {
		t.Errorf("expected score 3, got %d", submission.TotalScore)
	}
	if math.Abs(submission.Percentage-60.0) > 1e-9 {
		t.Errorf("expected percentage 60, got %f", submission.Percentage)
	}
	if len(submission.Answers) != 2 {
		t.Fatalf("expected 2 graded answers, got %d", len(submission.Answers))
	}

	for _, answer := range submission.Answers {
		switch answer.QuestionID {
		case quiz.Questions[0].ID:
			if answer.PointsEarned != 0 {
				t.Errorf("wrong answer earned %d points", answer.PointsEarned)
			}
		case quiz.Questions[1].ID:
			if answer.PointsEarned != 3 {
				t.Errorf("correct answer earned %d points, want 3", answer.PointsEarned)
			}
		}
	}
}

func TestQuizSubmitOnce(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewQuizService(db)
	course := createCourse(t, db, "Biology", 10, nil)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)

	quiz := createQuiz(t, svc, course.ID, []QuestionInput{
		{Text: "Q1", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: model.QuizOptionA},
	})

	answers := map[uint]model.QuizOption{quiz.Questions[0].ID: model.QuizOptionA}
	if _, err := svc.Submit(ctx, student.ID, quiz.ID, answers); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if _, err := svc.Submit(ctx, student.ID, quiz.ID, answers); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestQuizSubmitAnswerMismatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewQuizService(db)
	course := createCourse(t, db, "Biology", 10, nil)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)

	quiz := createQuiz(t, svc, course.ID, []QuestionInput{
		{Text: "Q1", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: model.QuizOptionA},
		{Text: "Q2", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: model.QuizOptionB},
	})

	// Missing an answer
	partial := map[uint]model.QuizOption{quiz.Questions[0].ID: model.QuizOptionA}
	if _, err := svc.Submit(ctx, student.ID, quiz.ID, partial); !errors.Is(err, ErrAnswerMismatch) {
		t.Fatalf("expected ErrAnswerMismatch for partial answers, got %v", err)
	}

	// Unknown question ID
	bogus := map[uint]model.QuizOption{
		quiz.Questions[0].ID: model.QuizOptionA,
		99999:                model.QuizOptionB,
	}
	if _, err := svc.Submit(ctx, student.ID, quiz.ID, bogus); !errors.Is(err, ErrAnswerMismatch) {
		t.Fatalf("expected ErrAnswerMismatch for unknown question, got %v", err)
	}

	// Invalid option letter
	invalid := map[uint]model.QuizOption{
		quiz.Questions[0].ID: model.QuizOption("E"),
		quiz.Questions[1].ID: model.QuizOptionB,
	}
	if _, err := svc.Submit(ctx, student.ID, quiz.ID, invalid); !errors.Is(err, ErrAnswerMismatch) {
		t.Fatalf("expected ErrAnswerMismatch for invalid option, got %v", err)
	}
}

func TestQuizGradesAreFrozenAfterEdit(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewQuizService(db)
	course := createCourse(t, db, "Biology", 10, nil)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)

	quiz := createQuiz(t, svc, course.ID, []QuestionInput{
		{Text: "Q1", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: model.QuizOptionA, Points: 4},
	})

	answers := map[uint]model.QuizOption{quiz.Questions[0].ID: model.QuizOptionA}
	submission, err := svc.Submit(ctx, student.ID, quiz.ID, answers)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// Changing the correct option afterwards must not affect the
	// stored score.
	if err := db.Model(&model.QuizQuestion{}).
		Where("id = ?", quiz.Questions[0].ID).
		Update("correct_option", model.QuizOptionD).Error; err != nil {
		t.Fatalf("failed to edit question: %v", err)
	}

	stored, err := svc.SubmissionForStudent(ctx, student.ID, quiz.ID)
	if err != nil {
		t.Fatalf("failed to reload submission: %v", err)
	}
	if stored.TotalScore != submission.TotalScore {
		t.Fatalf("score changed after quiz edit: %d -> %d", submission.TotalScore, stored.TotalScore)
	}
}
