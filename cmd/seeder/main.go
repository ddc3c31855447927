package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"github.com/reliefdesk/reliefdesk-backend/internal/database"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
	"gopkg.in/yaml.v3"
)

type SeedData struct {
	Users    []database.User `yaml:"users"`
	Requests []Request       `yaml:"requests"`
}

// Request is created as submitted by its requester, then walked through
// History with the same rules the API enforces.
type Request struct {
	Title          string `yaml:"title"`
	Description    string `yaml:"description"`
	RequesterEmail string `yaml:"requester_email"`
	History        []Step `yaml:"history"`
}

type Step struct {
	To   string `yaml:"to"`
	By   string `yaml:"by"` // email of the acting user
	Note string `yaml:"note"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return errors.New("command required")
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "seed":
		return seedCommand(args)
	case "nuke":
		return nukeCommand(args)
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func seedCommand(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	file := fs.String("file", "", "YAML file to seed from")
	dir := fs.String("dir", "", "Directory of YAML files to seed from")
	dryRun := fs.Bool("dry-run", false, "Validate files without making database changes")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	files, err := resolveFiles(*file, *dir)
	if err != nil {
		return err
	}

	seedData, err := loadSeedData(files)
	if err != nil {
		return fmt.Errorf("failed to load seed data: %w", err)
	}

	if err := validateSeedData(seedData); err != nil {
		return err
	}
	if *dryRun {
		return nil
	}

	ctx := context.Background()
	cfg := config.Load()
	seedDB, err := database.New(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer seedDB.Close()

	if err := seedDB.Migrate(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	fmt.Printf("seeding database from %d file(s)\n", len(files))
	return applySeedData(ctx, seedDB, seedData)
}

func nukeCommand(args []string) error {
	fs := flag.NewFlagSet("nuke", flag.ExitOnError)
	force := fs.Bool("force", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if !*force && !confirmNuke() {
		fmt.Println("operation cancelled")
		return nil
	}

	return nukeDatabase()
}

func resolveFiles(file, dir string) ([]string, error) {
	if file == "" && dir == "" {
		return nil, errors.New("must specify either --file or --dir")
	}

	if file != "" && dir != "" {
		return nil, errors.New("cannot specify both --file and --dir")
	}

	if file != "" {
		return []string{file}, nil
	}

	return findYAMLFiles(dir)
}

func findYAMLFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && isYAMLFile(path) {
			files = append(files, path)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", dir, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no YAML files found in directory: %s", dir)
	}

	return files, nil
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func loadSeedData(files []string) (*SeedData, error) {
	combined := &SeedData{}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", file, err)
		}

		var fileData SeedData
		if err := yaml.Unmarshal(data, &fileData); err != nil {
			return nil, fmt.Errorf("failed to parse YAML in %s: %w", file, err)
		}

		// Combine data from all files
		combined.Users = append(combined.Users, fileData.Users...)
		combined.Requests = append(combined.Requests, fileData.Requests...)
	}

	return combined, nil
}

// validateSeedData checks references and statuses. Whether each history
// step is permitted is only known when it is applied.
func validateSeedData(data *SeedData) error {
	var errs []error
	emails := make(map[string]bool, len(data.Users))
	for _, u := range data.Users {
		if u.Email == "" {
			errs = append(errs, errors.New("user without email"))
			continue
		}
		if _, ok := rbac.Normalize(u.Role); !ok {
			errs = append(errs, fmt.Errorf("user %s has unknown role %q", u.Email, u.Role))
		}
		emails[u.Email] = true
	}

	for _, r := range data.Requests {
		if !emails[r.RequesterEmail] {
			errs = append(errs, fmt.Errorf("request %q: requester %s not found", r.Title, r.RequesterEmail))
		}
		for _, step := range r.History {
			if _, ok := rbac.ParseStatus(step.To); !ok {
				errs = append(errs, fmt.Errorf("request %q: unknown status %q", r.Title, step.To))
			}
			if !emails[step.By] {
				errs = append(errs, fmt.Errorf("request %q: actor %s not found", r.Title, step.By))
			}
		}
	}

	fmt.Printf("  Users: %d\n", len(data.Users))
	fmt.Printf("  Requests: %d\n", len(data.Requests))
	if err := errors.Join(errs...); err != nil {
		return err
	}
	fmt.Println("data structure is valid")
	return nil
}

func applySeedData(ctx context.Context, db *database.Database, data *SeedData) error {
	users := database.NewUserDirectory(db)
	store := database.NewRequestStore(db)
	executor := workflow.NewExecutor(store, access.NewGuard("", ""))

	byEmail := make(map[string]database.User, len(data.Users))
	for _, user := range data.Users {
		if user.ID == "" {
			user.ID = uuid.NewString()
		}
		if err := users.Upsert(ctx, user); err != nil {
			return err
		}
		byEmail[user.Email] = user
		fmt.Printf("created user: %s (%s)\n", user.Email, user.Role)
	}

	for _, r := range data.Requests {
		requester := byEmail[r.RequesterEmail]
		req := &workflow.Request{
			Title:       r.Title,
			Description: r.Description,
			Status:      rbac.StatusSubmitted,
			RequesterID: requester.ID,
		}
		if err := store.CreateRequest(ctx, req); err != nil {
			return fmt.Errorf("failed to create request %s: %w", r.Title, err)
		}
		if _, err := store.AppendAuditEntry(ctx, workflow.AuditEntry{
			RequestID:   req.ID,
			Description: "Request submitted",
			Metadata:    map[string]any{"actor_id": requester.ID, "status": string(req.Status)},
			CreatedAt:   req.CreatedAt,
		}); err != nil {
			return fmt.Errorf("failed to audit request %s: %w", r.Title, err)
		}

		current := req.Status
		for _, step := range r.History {
			actor := byEmail[step.By]
			rec, err := executor.RequestTransition(ctx, workflow.TransitionRequest{
				RequestID:     req.ID,
				CurrentStatus: string(current),
				TargetStatus:  step.To,
				Actor:         access.Identity{IsAuthenticated: true, Role: actor.Role, UserID: actor.ID},
				Note:          step.Note,
			})
			if err != nil {
				return fmt.Errorf("request %s: %s cannot move it to %s: %w", r.Title, step.By, step.To, err)
			}
			current = rec.ToStatus
		}
		fmt.Printf("created request: %s (%s)\n", r.Title, current.Label())
	}

	fmt.Println("seeding completed")
	return nil
}

func nukeDatabase() error {
	cfg := config.Load()

	db, err := database.New(context.Background(), &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	fmt.Println("rolling back all migrations...")
	if err := db.Reset(); err != nil {
		return fmt.Errorf("failed to reset migrations: %w", err)
	}

	fmt.Println("applying all migrations...")
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	fmt.Println("database reset complete - ready for seeding")
	return nil
}

func confirmNuke() bool {
	fmt.Print("warning: this will delete all data from the database. are you sure? (yes/no): ")

	var response string
	if _, err := fmt.Scanln(&response); err != nil {
		return false
	}

	return strings.ToLower(strings.TrimSpace(response)) == "yes"
}

func printUsage() {
	fmt.Println("Seeder Tool - Database seeding utility for ReliefDesk")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  seeder <command> [flags]")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  seed        Seed users and requests from YAML files")
	fmt.Println("  nuke        Delete all data from database")
	fmt.Println("  help        Show this help message")
	fmt.Println()
	fmt.Println("SEED FLAGS:")
	fmt.Println("  --file      Path to a single YAML file")
	fmt.Println("  --dir       Path to directory containing YAML files")
	fmt.Println("  --dry-run   Validate files without making database changes")
	fmt.Println()
	fmt.Println("NUKE FLAGS:")
	fmt.Println("  --force     Skip confirmation prompt")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  seeder seed --file seed/dev.yaml")
	fmt.Println("  seeder seed --dir ./seed/ --dry-run")
	fmt.Println("  seeder nuke --force")
}
