package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/pictalk/pictalk-backend/internal/config"
	"github.com/pictalk/pictalk-backend/internal/database"
	"github.com/pictalk/pictalk-backend/internal/logger"
	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/pictalk/pictalk-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// create-examiner provisions an examiner account from the terminal. The
// first SUPERADMIN has to come from somewhere before the HTTP API can
// provision the rest.
func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	examinerRepo := repository.NewExaminerRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Examiner ===")

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println()
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	fmt.Print("Enter Kind (SUPERADMIN/ADMIN/USER, default SUPERADMIN): ")
	kindStr, _ := reader.ReadString('\n')
	kindStr = strings.ToUpper(strings.TrimSpace(kindStr))
	kind := model.ExaminerKindSuperadmin
	switch kindStr {
	case "", string(model.ExaminerKindSuperadmin):
	case string(model.ExaminerKindAdmin):
		kind = model.ExaminerKindAdmin
	case string(model.ExaminerKindUser):
		kind = model.ExaminerKindUser
	default:
		fmt.Println("Error: Kind must be SUPERADMIN, ADMIN or USER")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	examiner := &model.Examiner{
		Email:        email,
		Name:         name,
		PasswordHash: string(hashedPassword),
		Kind:         kind,
	}

	if err := examinerRepo.Create(ctx, examiner); err != nil {
		log.Fatal().Err(err).Msg("Failed to create examiner")
	}

	fmt.Printf("\nSuccess! Examiner '%s' (%s) created with ID: %d\n", examiner.Name, examiner.Email, examiner.ID)
}
