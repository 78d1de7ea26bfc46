package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/eldtechnologies/chatterbox/internal/config"
	"github.com/eldtechnologies/chatterbox/internal/crypto"
	"github.com/eldtechnologies/chatterbox/internal/models"
	"github.com/eldtechnologies/chatterbox/internal/store"
)

func main() {
	name := flag.String("name", "", "Full name")
	email := flag.String("email", "", "Email address")
	password := flag.String("password", "", "Plain-text password (hashed with bcrypt)")
	flag.Parse()

	if *name == "" || *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "Usage: adduser -name <full-name> -email <email> -password <password>")
		os.Exit(1)
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ds, kind, err := store.Open(ctx, cfg.DatabaseURL, cfg.MongoDatabase, cfg.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer ds.Close()

	hash, err := crypto.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	user := &models.User{FullName: *name, Email: *email, Password: hash}
	if err := ds.CreateUser(ctx, user); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create user: %v\n", err)
		os.Exit(1)
	}

	token, err := crypto.IssueSessionToken([]byte(cfg.JWTSecret), user.ID, 15*24*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created user %s in %s\n", user.ID, kind)
	fmt.Printf("Token: %s\n", token)
}
