package migration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/lock"
	"github.com/libfaes/eventstream/model"
	"github.com/sirupsen/logrus"
)

// BulkItem is one (document, source stream) pair the bulk runner migrates.
type BulkItem struct {
	SourceDocument         *model.ObjectDocument
	SourceStreamIdentifier string
}

// MigrationFailure records one bulk item that could not be built or run.
type MigrationFailure struct {
	SourceStreamIdentifier string
	Err                    error
}

// BulkMigrationProgress is reported as items finish.
type BulkMigrationProgress struct {
	TotalItems         int
	Completed          int
	Failed             int
	InProgress         int
	PercentageComplete float64
	CurrentDocumentId  string
}

// BulkMigrationResult is the outcome of running every item in a
// BulkRunner, keyed by source stream identifier.
type BulkMigrationResult struct {
	Results  map[string]*Result
	Failures []MigrationFailure

	// Status is StatusCompleted when every item succeeded and
	// StatusFailed when at least one did not.
	Status model.MigrationStatus
	// ErrorMessage summarizes the first three failures plus the total
	// failure count. Empty when Failures is empty.
	ErrorMessage string
	// Exception is the first failure's error, nil when Failures is empty.
	Exception error
}

// summarizeFailures renders up to the first three failures as
// "stream: err" pairs, noting how many more were omitted.
func summarizeFailures(failures []MigrationFailure) string {
	if len(failures) == 0 {
		return ""
	}
	n := len(failures)
	if n > 3 {
		n = 3
	}
	parts := make([]string, 0, n)
	for _, f := range failures[:n] {
		parts = append(parts, fmt.Sprintf("%s: %v", f.SourceStreamIdentifier, f.Err))
	}
	summary := fmt.Sprintf("%d failure(s), first %d: %s", len(failures), n, strings.Join(parts, "; "))
	if len(failures) > n {
		summary = fmt.Sprintf("%s (and %d more)", summary, len(failures)-n)
	}
	return summary
}

// BulkMigrationBuilder assembles a BulkRunner from a fixed item list plus
// shared configuration applied to every item's underlying Builder.
type BulkMigrationBuilder struct {
	items           []BulkItem
	targetNamer     func(sourceStreamIdentifier string) string
	maxConcurrency  int
	continueOnError bool
	onProgress      func(BulkMigrationProgress)
	template        func(*Builder) *Builder
	errs            []error
}

// NewBulkMigrationBuilder starts a BulkMigrationBuilder over items, with
// MaxConcurrency 4 and ContinueOnError true, so by default one bad stream
// does not block the rest of a fleet.
func NewBulkMigrationBuilder(items []BulkItem) *BulkMigrationBuilder {
	return &BulkMigrationBuilder{items: items, maxConcurrency: 4, continueOnError: true}
}

// CopyToNewStreams sets the per-item target stream naming function.
// Required.
func (b *BulkMigrationBuilder) CopyToNewStreams(namer func(sourceStreamIdentifier string) string) *BulkMigrationBuilder {
	b.targetNamer = namer
	return b
}

// WithMaxConcurrency bounds how many item migrations run at once. n <= 0
// resets to the default of 4.
func (b *BulkMigrationBuilder) WithMaxConcurrency(n int) *BulkMigrationBuilder {
	if n <= 0 {
		n = 4
	}
	b.maxConcurrency = n
	return b
}

// WithContinueOnError controls whether one item's failure stops the rest
// of the batch from starting.
func (b *BulkMigrationBuilder) WithContinueOnError(continueOnError bool) *BulkMigrationBuilder {
	b.continueOnError = continueOnError
	return b
}

// WithBulkProgress registers a callback invoked as items complete.
func (b *BulkMigrationBuilder) WithBulkProgress(cb func(BulkMigrationProgress)) *BulkMigrationBuilder {
	b.onProgress = cb
	return b
}

// WithTemplate applies fn to every item's per-stream Builder before
// Build, the mechanism for sharing a transformer, backup config,
// verification config, and store names across the whole batch.
func (b *BulkMigrationBuilder) WithTemplate(fn func(*Builder) *Builder) *BulkMigrationBuilder {
	b.template = fn
	return b
}

// WithLiveMigration is accepted for forward API compatibility but always
// rejected: bulk runs are copy-transform snapshots of each source stream
// at the moment they start, not live streaming migrations.
func (b *BulkMigrationBuilder) WithLiveMigration(liveMigration bool) *BulkMigrationBuilder {
	if liveMigration {
		b.errs = append(b.errs, fmt.Errorf("migration: %w: live migration is not supported for bulk runs", faeserrors.ErrNotImplemented))
	}
	return b
}

// Build validates the batch configuration and constructs the Built
// context for every item, returning a ready-to-run BulkRunner.
func (b *BulkMigrationBuilder) Build() (*BulkRunner, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.targetNamer == nil {
		return nil, fmt.Errorf("migration: %w: CopyToNewStreams is required", faeserrors.ErrValidation)
	}

	builts := make([]*Built, 0, len(b.items))
	var failures []MigrationFailure
	for _, item := range b.items {
		builder := NewBuilder(item.SourceDocument, item.SourceStreamIdentifier).
			CopyToNewStream(b.targetNamer(item.SourceStreamIdentifier))
		if b.template != nil {
			builder = b.template(builder)
		}
		built, err := builder.Build()
		if err != nil {
			failures = append(failures, MigrationFailure{SourceStreamIdentifier: item.SourceStreamIdentifier, Err: err})
			continue
		}
		builts = append(builts, built)
	}

	return &BulkRunner{
		builts:          builts,
		buildFailures:   failures,
		maxConcurrency:  b.maxConcurrency,
		continueOnError: b.continueOnError,
		onProgress:      b.onProgress,
	}, nil
}

// BulkRunner drives a bounded-concurrency pool of Executors, one per item
// that built successfully.
type BulkRunner struct {
	builts          []*Built
	buildFailures   []MigrationFailure
	maxConcurrency  int
	continueOnError bool
	onProgress      func(BulkMigrationProgress)
}

// Run executes every item's migration, respecting the configured
// concurrency bound, and aggregates the outcome. When continueOnError is
// false, a failing item cancels ctx for the rest of the batch. Once ctx is
// cancelled no further items are started; those items appear in neither
// Results nor Failures. Items already in flight are left to finish, since
// the saga's between-event checkpoint does not observe ctx.
func (r *BulkRunner) Run(ctx context.Context, resolver StoreResolver, lockProv lock.Provider, logger *logrus.Entry) *BulkMigrationResult {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(map[string]*Result, len(r.builts))
	failures := append([]MigrationFailure{}, r.buildFailures...)
	var mu sync.Mutex

	total := len(r.builts) + len(r.buildFailures)
	completed := len(r.buildFailures)
	failed := len(r.buildFailures)
	report := func(inProgress int, currentDocumentId string) {
		if r.onProgress == nil {
			return
		}
		var pct float64
		if total > 0 {
			pct = float64(completed) / float64(total) * 100
		}
		p := BulkMigrationProgress{
			TotalItems:         total,
			Completed:          completed,
			Failed:             failed,
			InProgress:         inProgress,
			PercentageComplete: pct,
			CurrentDocumentId:  currentDocumentId,
		}
		r.onProgress(p)
	}

	sem := make(chan struct{}, r.maxConcurrency)
	var wg sync.WaitGroup
	var inFlight int // guarded by mu, not atomic

	for _, built := range r.builts {
		built := built
		docId := ""
		if built.Context.SourceDocument != nil {
			docId = built.Context.SourceDocument.ObjectId
		}
		sem <- struct{}{}
		if runCtx.Err() != nil {
			<-sem
			break
		}
		wg.Add(1)

		mu.Lock()
		inFlight++
		report(int(inFlight), docId)
		mu.Unlock()

		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()

			exec := NewExecutor(built, resolver, lockProv, logger)
			result := exec.Run(runCtx)

			mu.Lock()
			inFlight--
			results[built.Context.SourceStreamIdentifier] = result
			completed++
			if !result.Success {
				failed++
				failures = append(failures, MigrationFailure{SourceStreamIdentifier: built.Context.SourceStreamIdentifier, Err: result.Err})
				if !r.continueOnError {
					cancel()
				}
			}
			report(int(inFlight), docId)
			mu.Unlock()
		}()
	}

	wg.Wait()

	status := model.StatusCompleted
	if len(failures) > 0 {
		status = model.StatusFailed
	}
	var exception error
	if len(failures) > 0 {
		exception = failures[0].Err
	}
	return &BulkMigrationResult{
		Results:      results,
		Failures:     failures,
		Status:       status,
		ErrorMessage: summarizeFailures(failures),
		Exception:    exception,
	}
}
