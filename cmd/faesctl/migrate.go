package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/libfaes/eventstream/logging"
	"github.com/libfaes/eventstream/migration"
	"github.com/libfaes/eventstream/model"
	"github.com/libfaes/eventstream/store"
)

// migrationService is shared by every faesctl subcommand invoked within
// this process. Since each faesctl invocation is its own process, status/
// pause/resume/cancel only see migrations started earlier in the *same*
// command line (this binary is a demo driver, not a daemon) — see DESIGN.md.
var migrationService = migration.NewService(nil, logging.New(logging.DefaultConfig("faesctl")))

var (
	migrateDryRun      bool
	migrateEventCount  int
	migrateTarget      string
	migrateFailFast    bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "run a single-document migration against two in-memory streams",
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status <migration-id>",
	Short: "print a migration's current status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, ok := migrationService.GetMigrationStatus(args[0])
		if !ok {
			return fmt.Errorf("unknown migration id %q", args[0])
		}
		fmt.Println(status)
		return nil
	},
}

var migratePauseCmd = &cobra.Command{
	Use:   "pause <migration-id>",
	Short: "pause a running migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		migrationService.Pause(args[0])
		return nil
	},
}

var migrateResumeCmd = &cobra.Command{
	Use:   "resume <migration-id>",
	Short: "resume a paused migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		migrationService.Resume(args[0])
		return nil
	},
}

var migrateCancelCmd = &cobra.Command{
	Use:   "cancel <migration-id>",
	Short: "cancel a running migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		migrationService.Cancel(args[0])
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "plan the migration without writing anything")
	migrateCmd.Flags().IntVar(&migrateEventCount, "events", 10, "number of demo events to seed on the source stream")
	migrateCmd.Flags().StringVar(&migrateTarget, "target", "demo-stream-v2", "target stream identifier")
	migrateCmd.Flags().BoolVar(&migrateFailFast, "fail-fast", false, "abort verification on the first failed check")
	migrateCmd.AddCommand(migrateStatusCmd, migratePauseCmd, migrateResumeCmd, migrateCancelCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	sourceDataStore := store.NewMemoryDataStore()
	sourceDocStore := store.NewMemoryDocumentStore()
	targetDataStore := store.NewMemoryDataStore()

	doc := &model.ObjectDocument{
		ObjectId:   "demo",
		ObjectName: "faesctl-demo",
		Active: model.StreamInformation{
			StreamIdentifier:     "demo-stream",
			DataStore:            "source",
			DocumentStore:        "source",
			CurrentStreamVersion: -1,
		},
	}
	if err := sourceDocStore.Set(ctx, doc); err != nil {
		return fmt.Errorf("seed document: %w", err)
	}
	events := make([]model.Event, migrateEventCount)
	for i := range events {
		events[i] = model.Event{EventType: "DemoEvent", EventVersion: i}
	}
	if len(events) > 0 {
		if err := sourceDataStore.Append(ctx, doc, events); err != nil {
			return fmt.Errorf("seed events: %w", err)
		}
		doc.Active.CurrentStreamVersion = len(events) - 1
		if err := sourceDocStore.Set(ctx, doc); err != nil {
			return fmt.Errorf("persist seeded version: %w", err)
		}
	}

	resolver := migration.NewStaticResolver(
		map[string]store.DataStore{"source": sourceDataStore, "target": targetDataStore},
		map[string]store.DocumentStore{"source": sourceDocStore},
	)

	built, err := migration.NewBuilder(doc, doc.Active.StreamIdentifier).
		CopyToNewStream(migrateTarget).
		WithDataStore("target").
		WithDocumentStore("source").
		WithDryRun(migrateDryRun).
		WithVerification(model.VerificationConfig{FailFast: migrateFailFast}).
		Build()
	if err != nil {
		return fmt.Errorf("build migration: %w", err)
	}

	id := migrationService.Start(ctx, built, resolver)
	for {
		status, ok := migrationService.GetMigrationStatus(id)
		if !ok || status.IsTerminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	result := migrationService.GetResult(id)
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
