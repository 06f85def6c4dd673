package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sparkchat/backend/internal/auth"
	"sparkchat/backend/internal/config"
	"sparkchat/backend/internal/models"
	"sparkchat/backend/internal/storage"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

  token <user_id> [username]   issue a 24h development token
  user <user_id> <username>    create or update a user row
  connect <user_a> <user_b>    create or accept the connection between two users
  block <user_a> <user_b>      mark the pair BLOCKED
  unblock <user_a> <user_b>    mark the pair REMOVED`

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command, args := os.Args[1], os.Args[2:]

	// token needs no database
	if command == "token" {
		if len(args) < 1 {
			fmt.Println("Usage: admin token <user_id> [username]")
			os.Exit(1)
		}
		id := auth.Identity{ID: args[0]}
		if len(args) > 1 {
			id.Username = args[1]
		}
		tok, err := auth.IssueToken(cfg.JWTSecret, id, 24*time.Hour)
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	if len(args) != 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	storageSvc := storage.NewStorageService(db)
	ctx := context.Background()

	switch command {
	case "user":
		if err := saveUser(ctx, storageSvc, args[0], args[1]); err != nil {
			log.Fatalf("Error saving user: %v", err)
		}
		fmt.Printf("User %s saved.\n", args[0])
	case "connect":
		conn, err := setPairStatus(ctx, storageSvc, args[0], args[1], models.ConnectionAccepted)
		if err != nil {
			log.Fatalf("Error connecting users: %v", err)
		}
		fmt.Printf("Connection %d between %s and %s is ACCEPTED.\n", conn.ID, args[0], args[1])
	case "block":
		conn, err := setPairStatus(ctx, storageSvc, args[0], args[1], models.ConnectionBlocked)
		if err != nil {
			log.Fatalf("Error blocking users: %v", err)
		}
		fmt.Printf("Connection %d is BLOCKED.\n", conn.ID)
	case "unblock":
		conn, err := setPairStatus(ctx, storageSvc, args[0], args[1], models.ConnectionRemoved)
		if err != nil {
			log.Fatalf("Error unblocking users: %v", err)
		}
		fmt.Printf("Connection %d is REMOVED.\n", conn.ID)
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func saveUser(ctx context.Context, s storage.Storage, id, username string) error {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		user = &models.User{ID: id}
	}
	user.Username = username
	if user.DisplayName == "" {
		user.DisplayName = username
	}
	return s.SaveUser(ctx, user)
}

// setPairStatus creates the pair's connection with status, or moves the
// existing one to it. a is the requester of a new row.
func setPairStatus(ctx context.Context, s storage.Storage, a, b string, status models.ConnectionStatus) (*models.Connection, error) {
	if a == b {
		return nil, fmt.Errorf("a user cannot be connected to themselves")
	}
	conn, err := s.FindConnectionBetween(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		conn = models.NewConnection(a, b, status)
		if err := s.CreateConnection(ctx, conn); err != nil {
			return nil, err
		}
		return conn, nil
	}
	if conn.Status == status {
		return conn, nil
	}
	if err := s.UpdateConnectionStatus(ctx, conn.ID, status); err != nil {
		return nil, err
	}
	conn.Status = status
	return conn, nil
}
