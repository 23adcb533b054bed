package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stemsi/elearn-backend/internal/database"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Interactively create an administrator account",
		Args:  cobra.NoArgs,
		RunE:  runCreateAdmin,
	}
	cmd.Flags().String("name", "", "Admin name (prompted when empty)")
	cmd.Flags().String("email", "", "Admin email (prompted when empty)")
	return cmd
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	cfg, log := loadConfig(v)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// ─── CLI Input ─────────────────────────────────────────────────────
	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())
	fmt.Fprintln(out, "=== Create New Admin User ===")

	name, err := promptLine(reader, out, "Enter Name: ", v.GetString("name"))
	if err != nil {
		return err
	}
	email, err := promptLine(reader, out, "Enter Email: ", v.GetString("email"))
	if err != nil {
		return err
	}

	fmt.Fprint(out, "Enter Password: ")
	password, err := readPassword(reader)
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if len(password) < 6 {
		return errors.New("password must be at least 6 characters")
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	admin := &model.User{
		Name:         name,
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
	}
	if err := repository.NewUserRepository(pool).Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return fmt.Errorf("a user with email %s already exists", admin.Email)
		}
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Fprintf(out, "\nSuccess! Admin '%s' (%s) created with ID: %d\n", admin.Name, admin.Email, admin.ID)
	return nil
}

func promptLine(r *bufio.Reader, out io.Writer, label, preset string) (string, error) {
	if preset != "" {
		return strings.TrimSpace(preset), nil
	}
	fmt.Fprint(out, label)
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%s is required", strings.TrimSuffix(strings.TrimPrefix(label, "Enter "), ": "))
	}
	return line, nil
}

// readPassword hides input on a terminal and falls back to a plain line
// when stdin is piped.
func readPassword(r *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		return string(b), err
	}
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
