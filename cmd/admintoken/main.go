// Command admintoken mints a bearer token for the back-office API.
//
//	ADMIN_JWT_SECRET=... go run ./cmd/admintoken -subject ops@example.com -ttl 24h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mkrell/selene/internal/middleware"
)

func main() {
	subject := flag.String("subject", "", "admin identity embedded in the token (email)")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_JWT_SECRET is not set")
		os.Exit(1)
	}
	if *subject == "" {
		fmt.Fprintln(os.Stderr, "-subject is required")
		os.Exit(1)
	}

	token, err := middleware.GenerateAdminToken(*subject, secret, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "token generation failed:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
