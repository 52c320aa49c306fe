package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"petsession/internal/adapter/httpapi"
	"petsession/internal/adapter/profilecache"
	"petsession/internal/adapter/securestore"
	"petsession/internal/app"
	"petsession/internal/config"
	"petsession/internal/provider"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the config file")
	email := flag.String("email", "", "email for login")
	password := flag.String("password", "", "password for login")
	code := flag.String("code", "", "google auth code for the google command")
	appleToken := flag.String("apple-token", "", "apple identity token for the apple command")
	name := flag.String("name", "", "display name for apple sign-in")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "status"
	}

	cfg := config.MustLoad(*configPath)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store, err := securestore.New(cfg.Store.Dir, cfg.Store.Secret)
	if err != nil {
		log.Fatalf("secure store: %v", err)
	}
	cache := profilecache.New(cfg.Cache.Path)
	client := httpapi.New(cfg.API.BaseURL,
		httpapi.WithLogger(logger),
		httpapi.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		httpapi.WithRetryPolicy(cfg.API.ReadRetries, cfg.API.RetryBackoff),
	)

	session := app.New(client, store, cache, logger)
	ctx := context.Background()
	session.Restore(ctx)

	switch cmd {
	case "status":
	case "login":
		if *email == "" || *password == "" {
			log.Fatal("login requires -email and -password")
		}
		session.SignIn(ctx, *email, *password)
	case "logout":
		session.Logout(ctx)
	case "refresh":
		session.RefreshTokensIfPossible(ctx)
	case "google-url":
		google := mustGoogle(ctx, cfg)
		fmt.Println(google.AuthCodeURL("petsession"))
	case "google":
		if *code == "" {
			log.Fatal("google requires -code (obtain one via google-url)")
		}
		google := mustGoogle(ctx, cfg)
		id, err := google.Exchange(ctx, *code)
		if err != nil {
			log.Fatalf("google exchange: %v", err)
		}
		session.GoogleSignin(ctx, id.Token, id.Email)
	case "apple":
		if *appleToken == "" {
			log.Fatal("apple requires -apple-token")
		}
		id, err := provider.AppleIdentity(*appleToken, *name)
		if err != nil {
			log.Fatalf("apple token: %v", err)
		}
		session.AppleSignin(ctx, id.Token, id.Email, id.Name)
	default:
		log.Fatalf("unknown command %q (want status, login, logout, refresh, google-url, google or apple)", cmd)
	}

	printSnapshot(session.Snapshot())
}

func mustGoogle(ctx context.Context, cfg *config.Config) *provider.Google {
	g, err := provider.NewGoogle(ctx, cfg.Google.Issuer, cfg.Google.ClientID,
		cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	if err != nil {
		log.Fatalf("google provider: %v", err)
	}
	return g
}

func printSnapshot(snap app.Snapshot) {
	fmt.Printf("state: %s\n", snap.State)
	if snap.User != nil {
		fmt.Printf("user: %s <%s>\n", snap.User.Name, snap.User.Email)
	}
	if snap.PendingEmail != "" {
		fmt.Printf("pending verification for: %s\n", snap.PendingEmail)
	}
	if snap.RequiresProfileCompletion {
		fmt.Println("profile: incomplete")
	}
	if snap.LastError != "" {
		fmt.Printf("error: %s\n", snap.LastError)
	}
}
