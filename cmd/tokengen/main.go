package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/reliefdesk/reliefdesk-backend/internal/auth"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"github.com/reliefdesk/reliefdesk-backend/internal/database"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
)

func main() {
	email := flag.String("email", "", "Issue a token for the user with this email")
	role := flag.String("role", "", "Issue a token for an ad-hoc user with this role")
	userID := flag.String("user", "", "User id for --role tokens (default: random)")
	flag.Parse()

	if (*email == "") == (*role == "") {
		fmt.Fprintf(os.Stderr, "Usage: %s --email <email> | --role <role> [--user <uuid>]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s --role \"Head of Programmes\"\n", os.Args[0])
		os.Exit(1)
	}

	cfg := config.Load()
	ctx := context.Background()

	id, rawRole, err := resolveSubject(ctx, cfg, *email, *role, *userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	canonical, ok := rbac.Normalize(rawRole)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: %v: %q\n", auth.ErrUnknownRole, rawRole)
		os.Exit(1)
	}

	jwtService, err := auth.NewJWTService([]byte(cfg.JWT.SigningKey), cfg.JWT.Issuer, cfg.JWT.Expiry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating JWT service: %v\n", err)
		os.Exit(1)
	}

	token, err := jwtService.GenerateToken(ctx, id, string(canonical))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Token for %s (%s), valid for %s:\n", id, canonical, cfg.JWT.Expiry)
	fmt.Println(token)
}

func resolveSubject(ctx context.Context, cfg *config.Config, email, role, userID string) (uuid.UUID, string, error) {
	if role != "" {
		if userID == "" {
			return uuid.New(), role, nil
		}
		id, err := uuid.Parse(userID)
		if err != nil {
			return uuid.Nil, "", fmt.Errorf("invalid --user: %w", err)
		}
		return id, role, nil
	}

	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	user, err := database.NewUserDirectory(db).GetByEmail(ctx, email)
	if errors.Is(err, database.ErrUserNotFound) {
		return uuid.Nil, "", fmt.Errorf("no user with email %s", email)
	}
	if err != nil {
		return uuid.Nil, "", err
	}

	id, err := uuid.Parse(user.ID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("user %s has a non-UUID id %q", email, user.ID)
	}
	return id, user.Role, nil
}
