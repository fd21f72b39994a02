// Command useradd creates an account. There is no registration endpoint;
// accounts are provisioned from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"soldi/internal/auth"
	"soldi/internal/config"
	"soldi/internal/storage"
)

func main() {
	_ = godotenv.Load()

	username := flag.String("username", "", "username for the new account")
	password := flag.String("password", "", "password for the new account")
	flag.Parse()

	*username = strings.TrimSpace(*username)
	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: useradd -username <name> -password <password>")
		os.Exit(2)
	}
	if len(*password) < 8 {
		fmt.Fprintln(os.Stderr, "password must be at least 8 characters")
		os.Exit(2)
	}

	cfg := config.Load()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}

	id, err := repo.CreateUser(context.Background(), *username, hash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created user %q (id %d)\n", *username, id)
}
