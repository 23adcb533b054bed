package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stemsi/elearn-backend/internal/database"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type seedCourse struct {
	course model.Course
	exam   seedExam
}

type seedExam struct {
	title     string
	minutes   int
	questions []model.QuestionInput
}

func q(text string, correct int, options ...string) model.QuestionInput {
	return model.QuestionInput{Question: text, Options: options, CorrectAnswer: &correct}
}

var demoCourses = []seedCourse{
	{
		course: model.Course{
			Title:       "Go Fundamentals",
			Description: "Types, control flow, and the standard library.",
			Instructor:  "Ayu Lestari",
			Duration:    "6 weeks",
			Level:       model.CourseLevelBeginner,
			Category:    "Programming",
			Tags:        []string{"go", "backend"},
			Syllabus:    []string{"Syntax", "Slices and maps", "Errors", "Testing"},
		},
		exam: seedExam{
			title:   "Go Fundamentals Final",
			minutes: 10,
			questions: []model.QuestionInput{
				q("What is the zero value of a string?", 1, "nil", `""`, `" "`, "undefined"),
				q("Which keyword starts a goroutine?", 0, "go", "async", "spawn", "thread"),
				q("What does len() return for a nil slice?", 2, "-1", "panic", "0", "nil"),
				q("Which package formats text output?", 3, "io", "os", "strings", "fmt"),
				q("How are errors usually returned?", 0, "As the last return value", "By panicking", "Through globals", "Via exceptions"),
			},
		},
	},
	{
		course: model.Course{
			Title:       "Relational Databases",
			Description: "Modelling data and writing SQL that scales.",
			Instructor:  "Hendra Gunawan",
			Duration:    "4 weeks",
			Level:       model.CourseLevelIntermediate,
			Price:       19.99,
			Category:    "Data",
			Tags:        []string{"sql", "postgres"},
			Syllabus:    []string{"Normal forms", "Joins", "Indexes", "Transactions"},
		},
		exam: seedExam{
			title:   "SQL Checkpoint",
			minutes: 5,
			questions: []model.QuestionInput{
				q("Which clause filters grouped rows?", 2, "WHERE", "ORDER BY", "HAVING", "LIMIT"),
				q("Which join keeps all rows from the left table?", 1, "INNER JOIN", "LEFT JOIN", "CROSS JOIN", "SELF JOIN"),
				q("What does ACID's I stand for?", 3, "Indexing", "Integrity", "Insertion", "Isolation"),
			},
		},
	},
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert an admin, a demo student, and demo courses with exams",
		Args:  cobra.NoArgs,
		RunE:  runSeed,
	}
	cmd.Flags().String("password", "elearn123", "Password for the seeded accounts")
	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	cfg, log := loadConfig(v)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	courseRepo := repository.NewCourseRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	out := cmd.OutOrStdout()

	hash, err := bcrypt.GenerateFromPassword([]byte(v.GetString("password")), cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	fmt.Fprintln(out, "=== Seeding demo data ===")

	accounts := []*model.User{
		{Name: "Admin", Email: "admin@elearn.local", Role: model.RoleAdmin},
		{Name: "Budi Santoso", Email: "student@elearn.local", Role: model.RoleStudent},
	}
	for _, u := range accounts {
		u.PasswordHash = string(hash)
		err := userRepo.Create(ctx, u)
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			existing, err := userRepo.GetByEmail(ctx, u.Email)
			if err != nil {
				return fmt.Errorf("load %s: %w", u.Email, err)
			}
			*u = *existing
			fmt.Fprintf(out, "Found existing %s %s (ID %d)\n", u.Role, u.Email, u.ID)
		case err != nil:
			return fmt.Errorf("create %s: %w", u.Email, err)
		default:
			fmt.Fprintf(out, "Created %s %s (ID %d)\n", u.Role, u.Email, u.ID)
		}
	}
	student := accounts[1]

	for _, sc := range demoCourses {
		c := sc.course
		if err := courseRepo.Create(ctx, &c); err != nil {
			return fmt.Errorf("create course %q: %w", c.Title, err)
		}

		e := &model.Exam{
			CourseID:        c.ID,
			Title:           sc.exam.title,
			Description:     "Final check for " + c.Title,
			DurationMinutes: sc.exam.minutes,
		}
		for _, in := range sc.exam.questions {
			e.Questions = append(e.Questions, in.ToQuestion())
		}
		if err := examRepo.Create(ctx, e); err != nil {
			return fmt.Errorf("create exam for %q: %w", c.Title, err)
		}

		if _, err := courseRepo.Enroll(ctx, student.ID, c.ID); err != nil {
			return fmt.Errorf("enroll demo student in %q: %w", c.Title, err)
		}
		fmt.Fprintf(out, "Created course %q with exam %q (%d questions)\n", c.Title, e.Title, len(e.Questions))
	}

	fmt.Fprintln(out, "\nSeed completed!")
	return nil
}
