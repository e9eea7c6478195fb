// Command devtoken prints an access token signed with JWT_SECRET, for local testing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/identity"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	id := flag.String("id", "", "user id (token subject)")
	name := flag.String("name", "", "display name")
	email := flag.String("email", "", "email")
	role := flag.String("role", identity.RoleBuyer, "buyer | seller | admin")
	flag.Parse()

	if *id == "" {
		fmt.Fprintln(os.Stderr, "devtoken: -id is required")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
	tok, err := identity.NewIssuer(cfg.JWTSecret, cfg.JWTTTL).Issue(identity.Identity{
		ID: *id, Name: *name, Email: *email, Role: *role,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
