package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"thrive/internal/api"
	"thrive/internal/config"
	"thrive/internal/db"
	"thrive/pkg/achievement"
	"thrive/pkg/activity"
	"thrive/pkg/dashboard"
	"thrive/pkg/lifecycle"
	"thrive/pkg/task"
	"thrive/pkg/user"
)

type stores struct {
	tasks    task.Store
	users    user.Store
	activity activity.Store
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		log.Fatalf("thrive: %v", err)
	}
}

// run wires the stores and serves until ctx is done. Errors are returned so
// deferred closes run before the process exits.
func run(ctx context.Context, cfg *config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st := stores{
		tasks:    task.NewMemStore(),
		users:    user.NewMemStore(),
		activity: activity.NewMemStore(),
	}
	if cfg.Store == config.StorePostgres {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer pool.Close()
		st = stores{
			tasks:    task.NewPgStore(pool),
			users:    user.NewPgStore(pool),
			activity: activity.NewPgStore(pool),
		}
	}

	// Ensure tables exist
	if err := st.users.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure users table: %w", err)
	}
	if err := st.tasks.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure tasks table: %w", err)
	}
	if err := st.activity.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure activity table: %w", err)
	}

	events := st.activity
	if len(cfg.KafkaBrokers) > 0 {
		pub := activity.NewPublisher(st.activity, activity.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer pub.Close()
		events = pub
		log.Printf("publishing activity to %s on %v", cfg.KafkaTopic, cfg.KafkaBrokers)
	}

	engine := achievement.New(st.users, st.tasks, events, achievement.WithLocation(loc))
	svc := lifecycle.New(st.tasks, st.users, engine, events)
	dash := dashboard.New(st.tasks, cfg.PublicTaskLimit)
	server := api.New(svc, dash, engine, st.users, events)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("thrive listening on :%s (store=%s)", cfg.Port, cfg.Store)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
	return nil
}
