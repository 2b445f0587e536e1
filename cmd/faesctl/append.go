package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/libfaes/eventstream/eventtype"
	"github.com/libfaes/eventstream/logging"
	"github.com/libfaes/eventstream/model"
	"github.com/libfaes/eventstream/session"
	"github.com/libfaes/eventstream/store"
)

// DemoEvent is the payload appendCmd commits, standing in for whatever
// event types a real application would register.
type DemoEvent struct {
	Sequence int    `json:"sequence"`
	Note     string `json:"note"`
}

type demoEventCodec struct{}

func (demoEventCodec) Marshal(payload any) ([]byte, error) { return json.Marshal(payload) }
func (demoEventCodec) Unmarshal(data []byte, _ int) (any, error) {
	var v DemoEvent
	err := json.Unmarshal(data, &v)
	return v, err
}

var (
	appendCount int
	appendNote  string
)

var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "append demo events to an in-memory stream and commit them",
	RunE:  runAppend,
}

func init() {
	appendCmd.Flags().IntVar(&appendCount, "count", 1, "number of demo events to append")
	appendCmd.Flags().StringVar(&appendNote, "note", "faesctl demo", "note payload for each event")
}

func runAppend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := logging.New(logging.DefaultConfig("faesctl"))

	dataStore := store.NewMemoryDataStore()
	documentStore := store.NewMemoryDocumentStore()

	doc := &model.ObjectDocument{
		ObjectId:   "demo",
		ObjectName: "faesctl-demo",
		Active: model.StreamInformation{
			StreamIdentifier:     "demo-stream",
			DataStore:            "primary",
			DocumentStore:        "primary",
			CurrentStreamVersion: -1,
		},
	}
	if err := documentStore.Set(ctx, doc); err != nil {
		return fmt.Errorf("seed document: %w", err)
	}

	registry := eventtype.New()
	if err := registry.Add(DemoEvent{}, "DemoEvent", 1, demoEventCodec{}); err != nil {
		return fmt.Errorf("register event type: %w", err)
	}
	registry.Freeze()

	sess := session.New(doc, dataStore, documentStore, registry, session.Hooks{}, logger)
	for i := 0; i < appendCount; i++ {
		if err := sess.Append(DemoEvent{Sequence: i, Note: appendNote}); err != nil {
			return fmt.Errorf("append event %d: %w", i, err)
		}
	}
	if err := sess.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	fmt.Printf("appended %d event(s) to %q, stream now at version %d (document version %q)\n",
		appendCount, doc.Active.StreamIdentifier, doc.Active.CurrentStreamVersion, doc.Version)
	return nil
}
