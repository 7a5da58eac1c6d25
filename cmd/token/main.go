package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cclastrib/backend/internal/infrastructure/auth"
	"github.com/cclastrib/backend/internal/infrastructure/config"
)

// token issues a JWT for the admin endpoints.
func main() {
	var (
		subject string
		role    string
	)
	flag.StringVar(&subject, "subject", "admin", "Token subject")
	flag.StringVar(&role, "role", auth.RoleAdmin, "Token role (admin or viewer)")
	flag.Parse()

	if role != auth.RoleAdmin && role != auth.RoleViewer {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", role)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	svc := auth.NewJWTService(cfg.JWT)
	token, expiresAt, err := svc.GenerateToken(subject, role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
}
