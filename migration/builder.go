package migration

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/model"
)

// Built is what Builder.Build produces: the frozen context the executor
// runs against, plus an optional plan seeded via FromDryRunPlan.
type Built struct {
	Context    model.MigrationContext
	SeedPlan   *MigrationPlan
	OnProgress func(Snapshot)
}

// Builder assembles a model.MigrationContext through order-independent,
// fluent setters. Every setter returns the same *Builder so calls chain;
// invalid arguments are recorded rather than panicking, and surface
// together from Build.
type Builder struct {
	ctx        model.MigrationContext
	seedPlan   *MigrationPlan
	onProgress func(Snapshot)
	errs       []error
}

// NewBuilder starts a Builder for migrating sourceStreamIdentifier off of
// sourceDocument. Both arguments are required; either being empty/nil
// surfaces as an error from Build.
func NewBuilder(sourceDocument *model.ObjectDocument, sourceStreamIdentifier string) *Builder {
	b := &Builder{ctx: model.MigrationContext{
		MigrationId:            uuid.NewString(),
		SourceDocument:         sourceDocument,
		SourceStreamIdentifier: sourceStreamIdentifier,
		Strategy:               model.StrategyCopyAndTransform,
	}}
	if sourceDocument == nil {
		b.errs = append(b.errs, fmt.Errorf("migration: %w: source document is required", faeserrors.ErrValidation))
	}
	if sourceStreamIdentifier == "" {
		b.errs = append(b.errs, fmt.Errorf("migration: %w: source stream identifier is required", faeserrors.ErrValidation))
	}
	return b
}

// CopyToNewStream sets the target stream identifier. Required.
func (b *Builder) CopyToNewStream(targetStreamIdentifier string) *Builder {
	if targetStreamIdentifier == "" {
		b.errs = append(b.errs, fmt.Errorf("migration: %w: target stream identifier is required", faeserrors.ErrValidation))
		return b
	}
	b.ctx.TargetStreamIdentifier = targetStreamIdentifier
	return b
}

// WithStrategy overrides the default CopyAndTransform strategy.
func (b *Builder) WithStrategy(strategy model.MigrationStrategy) *Builder {
	b.ctx.Strategy = strategy
	return b
}

// WithTransformer sets the single event transformer applied during copy.
func (b *Builder) WithTransformer(t model.EventTransformer) *Builder {
	b.ctx.Transformer = t
	return b
}

// WithPipeline sets a chain of transformers, applied in order.
func (b *Builder) WithPipeline(pipeline []model.EventTransformer) *Builder {
	b.ctx.Pipeline = pipeline
	return b
}

// WithLockOptions requests a distributed lock be held for the saga's
// duration.
func (b *Builder) WithLockOptions(opts model.LockOptions) *Builder {
	b.ctx.LockOptions = &opts
	return b
}

// WithBackupConfig requests a backup before any target-stream writes.
func (b *Builder) WithBackupConfig(cfg model.BackupConfig) *Builder {
	b.ctx.BackupConfig = &cfg
	return b
}

// WithBackupProvider supplies the collaborator that actually performs the
// backup and restore.
func (b *Builder) WithBackupProvider(p model.BackupProvider) *Builder {
	b.ctx.BackupProvider = p
	return b
}

// WithBookClosing requests post-cutover bookkeeping on the terminated
// source stream.
func (b *Builder) WithBookClosing(cfg model.BookClosingConfig) *Builder {
	b.ctx.BookClosing = &cfg
	return b
}

// WithVerification requests the Verify phase run the given checks.
func (b *Builder) WithVerification(cfg model.VerificationConfig) *Builder {
	b.ctx.Verification = &cfg
	return b
}

// WithProgress configures progress reporting cadence and the callback the
// executor's ProgressTracker delivers each Snapshot to. onProgress may be
// nil, in which case snapshots are computed on cfg's cadence but delivered
// nowhere. cfg lives on model.MigrationContext, but the
// callback itself is carried on Built instead of model.ProgressConfig
// since Snapshot is defined in this package and model must not import it.
func (b *Builder) WithProgress(cfg model.ProgressConfig, onProgress func(Snapshot)) *Builder {
	b.ctx.Progress = &cfg
	b.onProgress = onProgress
	return b
}

// WithDataStore sets the logical data store name the executor resolves at
// run time.
func (b *Builder) WithDataStore(name string) *Builder {
	b.ctx.DataStore = name
	return b
}

// WithDocumentStore sets the logical document store name the executor
// resolves at run time.
func (b *Builder) WithDocumentStore(name string) *Builder {
	b.ctx.DocumentStore = name
	return b
}

// WithDryRun marks the migration as a plan-only run.
func (b *Builder) WithDryRun(dryRun bool) *Builder {
	b.ctx.IsDryRun = dryRun
	return b
}

// WithPauseSupport enables the cooperative pause/resume flag.
func (b *Builder) WithPauseSupport(supported bool) *Builder {
	b.ctx.SupportsPause = supported
	return b
}

// WithRollbackSupport enables compensating rollback on saga failure.
func (b *Builder) WithRollbackSupport(supported bool) *Builder {
	b.ctx.SupportsRollback = supported
	return b
}

// WithMetadata attaches free-form metadata to the migration context.
func (b *Builder) WithMetadata(metadata map[string]string) *Builder {
	b.ctx.Metadata = metadata
	return b
}

// FromDryRunPlan pre-seeds the builder with a previously computed dry-run
// plan, so a caller that already ran a dry run does not pay for
// recomputing risks and prerequisites before a live run.
func (b *Builder) FromDryRunPlan(plan *MigrationPlan) *Builder {
	b.seedPlan = plan
	return b
}

// Build validates the accumulated configuration and freezes it into a
// Built value. Errors accumulated by individual setters, plus any
// structural violation caught here, are joined into a single error.
func (b *Builder) Build() (*Built, error) {
	var errs []error
	errs = append(errs, b.errs...)

	if b.ctx.TargetStreamIdentifier == "" {
		errs = append(errs, fmt.Errorf("migration: %w: CopyToNewStream is required", faeserrors.ErrValidation))
	} else if b.ctx.SourceStreamIdentifier != "" && b.ctx.TargetStreamIdentifier == b.ctx.SourceStreamIdentifier {
		errs = append(errs, fmt.Errorf("migration: %w: source and target stream identifiers must differ", faeserrors.ErrValidation))
	}
	if b.ctx.Strategy != model.StrategyCopyAndTransform {
		errs = append(errs, fmt.Errorf("migration: %w: strategy %q is not yet implemented", faeserrors.ErrNotImplemented, b.ctx.Strategy))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	b.ctx.StartedAt = time.Now()
	return &Built{Context: b.ctx, SeedPlan: b.seedPlan, OnProgress: b.onProgress}, nil
}
