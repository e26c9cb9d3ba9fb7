package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"pulse/backend/internal/config"
	"pulse/backend/internal/storage"

	"github.com/joho/godotenv"
)

var errUsage = errors.New(`Usage: admin <command> [args]

Commands:
  ban <user_id>        block a user from logging in
  unban <user_id>      lift a block
  online               list users with a live connection
  presence <user_id>   show the presence record of a user
  history [n]          print the n most recent chat messages
  clear-history        drop the chat history
  stats                analytics event counts`)

// app opens the stores a command needs on first use.
type app struct {
	cfg config.Config
	out io.Writer

	users     *storage.UserRepository
	presence  *storage.PresenceStore
	history   *storage.HistoryStore
	analytics *storage.AnalyticsStore

	closers []func() error
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	a := &app{cfg: config.Load(), out: os.Stdout}
	err := a.run(context.Background(), os.Args[1:])
	a.close()

	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "ban", "unban":
		if len(args) != 2 {
			return errUsage
		}
		users, err := a.userRepo()
		if err != nil {
			return err
		}
		blocked := args[0] == "ban"
		if err := users.SetBlocked(ctx, args[1], blocked); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "User %s has been %sned.\n", args[1], args[0])
	case "online":
		presence, err := a.presenceStore(ctx)
		if err != nil {
			return err
		}
		online, err := presence.Online(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%d user(s) online\n", len(online))
		for _, id := range online {
			fmt.Fprintln(a.out, id)
		}
	case "presence":
		if len(args) != 2 {
			return errUsage
		}
		presence, err := a.presenceStore(ctx)
		if err != nil {
			return err
		}
		record, err := presence.Get(ctx, args[1])
		if err != nil {
			return err
		}
		lastSeen := "never"
		if record.LastSeenAt != nil {
			lastSeen = record.LastSeenAt.Format(time.RFC3339)
		}
		fmt.Fprintf(a.out, "user=%s online=%t lastSeen=%s\n", record.UserID, record.Online, lastSeen)
	case "history":
		var n int64
		if len(args) > 1 {
			parsed, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || parsed < 1 {
				return fmt.Errorf("%w\n\ninvalid count %q", errUsage, args[1])
			}
			n = parsed
		}
		history, err := a.historyStore(ctx)
		if err != nil {
			return err
		}
		entries, err := history.Recent(ctx, n)
		if err != nil {
			return err
		}
		for _, env := range entries {
			fmt.Fprintf(a.out, "%s [%s] %s: %v\n", env.Timestamp.Format(time.RFC3339), env.Type, env.UserID, env.Payload)
		}
	case "clear-history":
		history, err := a.historyStore(ctx)
		if err != nil {
			return err
		}
		if err := history.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Chat history cleared.")
	case "stats":
		analytics, err := a.analyticsStore()
		if err != nil {
			return err
		}
		counts, err := analytics.CountByType(ctx)
		if err != nil {
			return err
		}
		for _, c := range counts {
			fmt.Fprintf(a.out, "%-20s %d\n", c.EventType, c.Count)
		}
	default:
		return fmt.Errorf("%w\n\nunknown command %q", errUsage, args[0])
	}
	return nil
}

func (a *app) userRepo() (*storage.UserRepository, error) {
	if a.users == nil {
		db, err := storage.OpenPostgres(a.cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		a.users = storage.NewUserRepository(db)
	}
	return a.users, nil
}

func (a *app) presenceStore(ctx context.Context) (*storage.PresenceStore, error) {
	if a.presence == nil {
		if err := a.openRedis(ctx); err != nil {
			return nil, err
		}
	}
	return a.presence, nil
}

func (a *app) historyStore(ctx context.Context) (*storage.HistoryStore, error) {
	if a.history == nil {
		if err := a.openRedis(ctx); err != nil {
			return nil, err
		}
	}
	return a.history, nil
}

func (a *app) openRedis(ctx context.Context) error {
	rdb, err := storage.OpenRedis(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, rdb.Close)
	a.presence = storage.NewPresenceStore(rdb)
	a.history = storage.NewHistoryStore(rdb, a.cfg.HistoryLimit)
	return nil
}

func (a *app) analyticsStore() (*storage.AnalyticsStore, error) {
	if a.analytics == nil {
		db, err := storage.OpenMySQL(a.cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.analytics = storage.NewAnalyticsStore(db)
	}
	return a.analytics, nil
}

func (a *app) close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Printf("Warning: close failed: %v", err)
		}
	}
}
