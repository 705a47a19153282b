package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/api"
	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/config"
	"github.com/terrascenik/server/db"
	"github.com/terrascenik/server/logger"
	"github.com/terrascenik/server/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Check for command-line arguments
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations(cfg, log)
			return
		case "export":
			dir := "database-dump"
			if len(os.Args) > 2 {
				dir = os.Args[2]
			}
			runExport(cfg, log, dir)
			return
		case "clear-db":
			runDatabaseClear(cfg, log)
			return
		default:
			log.Fatal("unknown command", zap.String("command", os.Args[1]))
		}
	}

	// Start the server
	startServer(cfg, log)
}

func openStore(cfg *config.Config, log *zap.Logger) *db.Store {
	store, err := db.Open(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("database initialization error", zap.Error(err))
	}
	return store
}

func closeStore(store *db.Store, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		log.Warn("error closing database", zap.Error(err))
		return
	}
	log.Info("database connection closed")
}

func runMigrations(cfg *config.Config, log *zap.Logger) {
	store := openStore(cfg, log)
	defer closeStore(store, log)

	log.Info("starting database migrations", zap.String("driver", store.Driver()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := store.Migrate(ctx); err != nil {
		log.Fatal("migration error", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Uploads.Dir, 0755); err != nil {
		log.Fatal("could not create upload directory", zap.String("dir", cfg.Uploads.Dir), zap.Error(err))
	}
	log.Info("migrations completed successfully", zap.Strings("collections", models.Collections))
}

func startServer(cfg *config.Config, log *zap.Logger) {
	if cfg.Session.Secret == config.DefaultSessionSecret {
		log.Warn("using the development session secret; set SESSION_SECRET in production")
	}

	store := openStore(cfg, log)
	defer closeStore(store, log)

	sessionStore, err := session.NewStore(context.Background(), cfg.Session)
	if err != nil {
		log.Fatal("session store initialization error", zap.Error(err))
	}
	sessions := session.NewManager(sessionStore, cfg.Session.Name)

	// Graceful shutdown setup
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	server := api.NewApiServer(cfg, store, sessions, log)
	errs := make(chan error, 1)
	go func() {
		errs <- server.Run()
	}()

	select {
	case err := <-errs:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
	case <-quit:
		log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("shutdown error", zap.Error(err))
		}
	}
}

func runDatabaseClear(cfg *config.Config, log *zap.Logger) {
	store := openStore(cfg, log)
	defer closeStore(store, log)

	log.Info("preparing to clear database")
	in := bufio.NewReader(os.Stdin)

	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	confirmation, _ := in.ReadString('\n')
	if strings.TrimSpace(confirmation) != "yes" {
		log.Info("database clearing cancelled")
		return
	}

	fmt.Printf("Enter collections to clear (comma separated, one of %s) or leave blank to clear all: ",
		strings.Join(models.Collections, ", "))
	names, _ := in.ReadString('\n')

	collections, unknown := parseCollections(names)
	for _, name := range unknown {
		log.Warn("unknown collection", zap.String("collection", name))
	}
	if len(collections) == 0 {
		log.Info("nothing to clear")
		return
	}

	if err := store.Drop(context.Background(), collections...); err != nil {
		log.Fatal("error clearing database", zap.Error(err))
	}
	log.Info("database cleared successfully", zap.Strings("collections", collections))
}

// parseCollections splits a comma separated list. A blank list selects every
// collection, relationships first.
func parseCollections(input string) (known, unknown []string) {
	input = strings.TrimSpace(input)
	if input == "" {
		all := make([]string, 0, len(models.Collections))
		for i := len(models.Collections) - 1; i >= 0; i-- {
			all = append(all, models.Collections[i])
		}
		return all, nil
	}

	valid := make(map[string]bool, len(models.Collections))
	for _, c := range models.Collections {
		valid[c] = true
	}
	for _, name := range strings.Split(input, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if valid[name] {
			known = append(known, name)
		} else {
			unknown = append(unknown, name)
		}
	}
	return known, unknown
}
