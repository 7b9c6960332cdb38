// Command spine resolves the single legal command for an actor on a
// transaction and prints the decision context and resolution as JSON, or
// submits a signed partner fact through the federation trust boundary. It is a
// thin caller of the library APIs, exactly like every other consumer.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/deedgrid/spine/pkg/config"
	"github.com/deedgrid/spine/pkg/decision"
	"github.com/deedgrid/spine/pkg/federation"
	"github.com/deedgrid/spine/pkg/law"
	"github.com/deedgrid/spine/pkg/observability"
	"github.com/deedgrid/spine/pkg/store"
)

func main() {
	actorID := flag.String("actor", "", "actor id to resolve a command for")
	transactionID := flag.String("txn", "", "transaction id")
	factPath := flag.String("fact", "", "path to a signed fact JSON to submit through the trust boundary")
	flag.Parse()

	if *factPath == "" && (*actorID == "" || *transactionID == "") {
		fmt.Fprintln(os.Stderr, "usage: spine -actor <id> -txn <id> | spine -fact <file>")
		os.Exit(2)
	}

	ctx := context.Background()
	cfg := config.Load()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:  "deedgrid-spine",
		LogLevel:     cfg.LogLevel,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Insecure:     true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "observability init: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	events, atts, err := openStores(cfg)
	if err != nil {
		slog.Error("store init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	if *factPath != "" {
		if err := submitFact(ctx, cfg, atts, *factPath); err != nil {
			slog.Error("fact rejected", "path", *factPath, "err", err)
			os.Exit(1)
		}
		return
	}

	builder := decision.NewBuilder(events, atts, nil)
	dc := builder.Build(ctx, *actorID, *transactionID)
	resolution := law.Resolve(dc)

	if cfg.RedisAddr != "" {
		hints := store.NewReadinessHintStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), time.Hour)
		if err := hints.Put(ctx, *transactionID, dc.Readiness); err != nil {
			slog.Warn("readiness hint update failed", "transaction_id", *transactionID, "err", err)
		}
	}

	out, err := json.MarshalIndent(map[string]any{
		"context":    dc,
		"resolution": resolution,
	}, "", "  ")
	if err != nil {
		slog.Error("encode output", "err", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
	if resolution.Type == "none" && dc.Blocked() {
		os.Exit(3)
	}
}

// submitFact runs one signed fact through the full intake pipeline and prints
// what the spine made of it.
func submitFact(ctx context.Context, cfg *config.Config, atts store.AttestationStore, path string) error {
	registry, err := federation.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fact federation.Fact
	if err := json.Unmarshal(data, &fact); err != nil {
		return fmt.Errorf("parse fact %q: %w", path, err)
	}

	intake := federation.NewIntake(registry, atts, slog.Default(), rate.Limit(10), 10)
	interp, err := intake.Submit(ctx, fact)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(interp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func openStores(cfg *config.Config) (store.EventStore, store.AttestationStore, error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemoryEventStore(), store.NewMemoryAttestationStore(), nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		s, err := store.NewSQLiteStore(db)
		if err != nil {
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return s, s, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		s := store.NewPostgresStore(db)
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
