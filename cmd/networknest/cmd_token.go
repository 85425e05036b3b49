package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/networknest/networknest/internal/auth"
	"github.com/networknest/networknest/internal/config"
)

// runToken prints a signed bearer token for a user id.
func runToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	user := fs.String("user", "", "user id the token identifies (required)")
	ttl := fs.Duration("ttl", 0, "token lifetime (default: auth.token_ttl)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *user == "" {
		fmt.Fprintln(os.Stderr, "error: --user is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *ttl == 0 {
		*ttl = cfg.GetDuration("auth.token_ttl")
	}

	authn, err := auth.New(cfg.GetString("auth.jwt_secret"), cfg.GetString("auth.issuer"), zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	tok, err := authn.Issue(*user, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
