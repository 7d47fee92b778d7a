// Command token mints a bearer token for a user id, signed with the same
// secret the server verifies with. It is meant for local testing against
// the /api routes.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"ordertrack/internal/auth"
	"ordertrack/internal/commons"
)

func main() {
	configPath := flag.String("config", "config.yaml", "optional YAML config overlay")
	userID := flag.String("user", "", "user id to put in the user_id claim")
	flag.Parse()

	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := commons.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	token, err := auth.NewAuthenticator(cfg.Auth.Secret, zap.NewNop()).Issue(*userID)
	if err != nil {
		log.Fatalf("issuing token: %v", err)
	}
	fmt.Println(token)
}
