package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/service"
)

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

	// ─── Initialize Service ────────────────────────────────────────────
	// Admin creation never touches the token deny-list.
	authService := service.NewAuthService(cfg,
		repository.NewUserRepository(pool),
		repository.NewAdminRepository(pool),
		nil,
		log,
	)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Admin ===")

	// Name
	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	// Email
	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	// Password
	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 8 {
		fmt.Println("Error: Password must be at least 8 characters")
		return
	}

	// Permissions
	all := model.AllPermissionCodes()
	fmt.Printf("Permissions, comma separated (default: %s): ", strings.Join(all, ","))
	permLine, _ := reader.ReadString('\n')
	permissions, err := parsePermissions(permLine, all)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	admin, err := authService.CreateAdmin(ctx, name, email, password, permissions)
	if err != nil {
		var conflict *service.ConflictError
		if errors.As(err, &conflict) {
			fmt.Printf("Error: %s\n", conflict.Message)
			return
		}
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! Admin '%s' (%s) created with ID: %d\n", admin.Name, admin.Email, admin.ID)
	fmt.Printf("Permissions: %s\n", strings.Join(admin.Permissions, ", "))
}

// parsePermissions returns all when line is blank and rejects unknown codes.
func parsePermissions(line string, all []string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return all, nil
	}
	known := make(map[string]bool, len(all))
	for _, p := range all {
		known[p] = true
	}

	var out []string
	for _, raw := range strings.Split(line, ",") {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		if !known[p] {
			return nil, fmt.Errorf("unknown permission %q", p)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, errors.New("at least one permission is required")
	}
	return out, nil
}
