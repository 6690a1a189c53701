package database

import (
	"fmt"
	"os"
	"time"

	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/utils/auth"
	"gorm.io/gorm"
)

// RunSeeds populates the database with the initial admin account and,
// in development, a small demo data set. Seeding is idempotent: rows
// are matched by email or title and never duplicated.
func RunSeeds(db *gorm.DB) error {
	if err := seedAdmin(db); err != nil {
		return err
	}
	if os.Getenv("GO_ENV") == "" || os.Getenv("GO_ENV") == "development" {
		if err := seedDemoData(db); err != nil {
			return err
		}
	}
	return nil
}

// seedAdmin creates the admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD. Skipped when either variable is missing.
func seedAdmin(db *gorm.DB) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		fmt.Println("ADMIN_EMAIL / ADMIN_PASSWORD not set, skipping admin creation")
		return nil
	}

	var count int64
	if err := db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		fmt.Printf("Admin %s already exists\n", email)
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Site",
		LastName:     "Admin",
		DateOfBirth:  time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		Role:         model.RoleAdmin,
		HasPaid:      true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	fmt.Printf("Created admin %s\n", email)
	return nil
}

func seedDemoData(db *gorm.DB) error {
	teacher, err := seedUser(db, "teacher@example.com", "Teacher123!", "Grace", "Okafor", model.RoleTeacher, true)
	if err != nil {
		return err
	}
	if _, err := seedUser(db, "student@example.com", "Student123!", "Daniel", "Mensah", model.RoleStudent, true); err != nil {
		return err
	}

	var course model.Course
	err = db.Where("title = ?", "Introduction to Cell Biology").First(&course).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	course = model.Course{
		Title:       "Introduction to Cell Biology",
		Description: "Cell structure, transport and division for lower secondary students.",
		Level:       model.CourseLevelLowerSecondary,
		MaxStudents: 50,
		TeacherID:   &teacher.ID,
		Modules: []model.CourseModule{
			{
				Title: "Cell Structure",
				Order: 1,
				Topics: []model.Topic{
					{
						Title: "Organelles",
						Order: 1,
						Lessons: []model.Lesson{
							{
								Title:      "The nucleus and mitochondria",
								TheoryText: "The nucleus stores genetic material; mitochondria release energy through respiration.",
								Order:      1,
							},
							{
								Title:       "Observing cells under a microscope",
								IsLabLesson: true,
								Order:       2,
							},
						},
					},
				},
			},
		},
	}
	if err := db.Create(&course).Error; err != nil {
		return err
	}
	fmt.Printf("Created demo course %q\n", course.Title)
	return nil
}

func seedUser(db *gorm.DB, email, password, firstName, lastName string, role model.Role, hasPaid bool) (*model.User, error) {
	var user model.User
	err := db.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user = model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		DateOfBirth:  time.Date(1995, 6, 15, 0, 0, 0, 0, time.UTC),
		Role:         role,
		HasPaid:      hasPaid,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	fmt.Printf("Created %s user %s\n", role, email)
	return &user, nil
}
