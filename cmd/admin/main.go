package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"helpline/backend/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  add-operator <telegram_id>            grant the operator role
  remove-operator <telegram_id>         revoke the operator role
  make-admin <telegram_id>              grant the admin role
  drop-admin <telegram_id>              revoke the admin role
  set-topics <telegram_id> <a,b,c>      replace an operator's topic tags
  list-operators                        print all operators
  list-admins                           print all admins
`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	storageSvc := storage.NewStorageService(db, nil) // No redis needed for the admin CLI

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	switch command := os.Args[1]; command {
	case "add-operator":
		setRole(storageSvc, requireID(), storageSvc.SetOperatorRole, true, "is now an operator")
	case "remove-operator":
		setRole(storageSvc, requireID(), storageSvc.SetOperatorRole, false, "is no longer an operator")
	case "make-admin":
		setRole(storageSvc, requireID(), storageSvc.SetAdminRole, true, "is now an admin")
	case "drop-admin":
		setRole(storageSvc, requireID(), storageSvc.SetAdminRole, false, "is no longer an admin")
	case "set-topics":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin set-topics <telegram_id> <a,b,c>")
			os.Exit(1)
		}
		id := parseID(os.Args[2])
		topics := splitTopics(os.Args[3])
		if err := storageSvc.SetOperatorTopics(id, topics); err != nil {
			log.Fatalf("Error setting topics: %v", err)
		}
		fmt.Printf("Topics for %d set to %v.\n", id, topics)
	case "list-operators":
		operators, err := storageSvc.ListOperators()
		if err != nil {
			log.Fatalf("Error listing operators: %v", err)
		}
		for _, op := range operators {
			fmt.Printf("#%d\ttg:%d\ttopics:%s\n", op.LocalID, op.TelegramID, strings.Join(op.Topics, ","))
		}
	case "list-admins":
		admins, err := storageSvc.ListAdmins()
		if err != nil {
			log.Fatalf("Error listing admins: %v", err)
		}
		for _, admin := range admins {
			fmt.Printf("#%d\ttg:%d\n", admin.LocalID, admin.TelegramID)
		}
	default:
		fmt.Print(usage)
		os.Exit(1)
	}
}

func requireID() int64 {
	if len(os.Args) != 3 {
		fmt.Print(usage)
		os.Exit(1)
	}
	return parseID(os.Args[2])
}

func parseID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		fmt.Println("Invalid telegram id. Please provide an integer.")
		os.Exit(1)
	}
	return id
}

// setRole registers the identity if it never contacted the bot, then flips
// the flag, so roles can be prepared ahead of first contact.
func setRole(s *storage.Service, id int64, update func(int64, bool) error, value bool, verb string) {
	if _, err := s.SaveUserIfNotExists(id); err != nil {
		log.Fatalf("Error registering user: %v", err)
	}
	if err := update(id, value); err != nil {
		log.Fatalf("Error updating role: %v", err)
	}
	fmt.Printf("User %d %s.\n", id, verb)
}

func splitTopics(arg string) []string {
	var topics []string
	for _, t := range strings.Split(arg, ",") {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			topics = append(topics, trimmed)
		}
	}
	return topics
}
