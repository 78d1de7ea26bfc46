package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/eldtechnologies/chatterbox/internal/config"
	"github.com/eldtechnologies/chatterbox/internal/crypto"
)

func main() {
	userID := flag.String("user", "", "User ID to issue the token for")
	ttl := flag.Duration("ttl", 15*24*time.Hour, "Token lifetime")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "Usage: token -user <user-id> [-ttl 360h]")
		fmt.Fprintln(os.Stderr, "  Signs with JWT_SECRET from the environment or .env")
		os.Exit(1)
	}

	cfg := config.Load()

	token, err := crypto.IssueSessionToken([]byte(cfg.JWTSecret), *userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		os.Exit(1)
	}

	// Output in forms ready to paste
	fmt.Printf("Authorization: Bearer %s\n", token)
	fmt.Printf("Cookie: jwt=%s\n", token)
}
