package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libfaes/eventstream/eventtype"
	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/lock"
	"github.com/libfaes/eventstream/model"
	"github.com/libfaes/eventstream/session"
	"github.com/libfaes/eventstream/store"
	"github.com/sirupsen/logrus"
)

// Phase names the Executor reports through MigrationPhaseError and its
// phase-transition log lines. They are not model.MigrationStatus values: no
// phase changes the status Service reports, which stays InProgress (or
// Paused) until the final Result's status replaces it.
type Phase string

const (
	PhasePrepare        Phase = "Prepare"
	PhaseBackup         Phase = "Backup"
	PhaseCopyTransform  Phase = "CopyTransform"
	PhaseVerify         Phase = "Verify"
	PhaseCutover        Phase = "Cutover"
	PhaseBookClose      Phase = "BookClose"
	PhaseFinalize       Phase = "Finalize"
)

// closeEventCodec is the private codec used to append the StreamClosedEvent
// marker during cutover. It never touches the caller's own event type
// registry, so the executor does not require StreamClosedEvent to be
// registered by application code.
type closeEventCodec struct{}

func (closeEventCodec) Marshal(payload any) ([]byte, error) { return json.Marshal(payload) }
func (closeEventCodec) Unmarshal(data []byte, _ int) (any, error) {
	var v model.StreamClosedEvent
	err := json.Unmarshal(data, &v)
	return v, err
}

// Executor runs the seven-phase migration saga against one Built context.
// It is single-use: call Run once per Executor.
type Executor struct {
	built    *Built
	resolver StoreResolver

	lockProvider lock.Provider
	logger       *logrus.Entry

	phaseStartedAt time.Time

	paused    atomic.Bool
	cancelled atomic.Bool

	pauseCond *sync.Cond
	pauseMu   sync.Mutex
}

// NewExecutor creates an Executor. A nil lockProvider is treated as
// lock.NewNoOpProvider(); a nil logger falls back to a bare entry over
// logrus.StandardLogger().
func NewExecutor(built *Built, resolver StoreResolver, lockProvider lock.Provider, logger *logrus.Entry) *Executor {
	if lockProvider == nil {
		lockProvider = lock.NewNoOpProvider()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &Executor{built: built, resolver: resolver, lockProvider: lockProvider, logger: logger}
	e.pauseCond = sync.NewCond(&e.pauseMu)
	return e
}

// enterPhase logs one structured line per phase transition: phase name,
// migration id, and elapsed time since the previous transition. The first
// call (from Prepare) reports zero elapsed time, since no earlier
// transition exists.
func (e *Executor) enterPhase(phase Phase) {
	now := time.Now()
	var elapsed time.Duration
	if !e.phaseStartedAt.IsZero() {
		elapsed = now.Sub(e.phaseStartedAt)
	}
	e.phaseStartedAt = now
	e.logger.WithFields(logrus.Fields{
		"migrationId": e.built.Context.MigrationId,
		"phase":       string(phase),
		"elapsed":     elapsed,
	}).Info("migration: phase transition")
}

// Pause sets the cooperative pause flag. The copy-transform loop checks it
// between events and blocks until Resume or Cancel.
func (e *Executor) Pause() {
	e.paused.Store(true)
}

// Resume clears the pause flag and wakes any blocked copy-transform loop.
func (e *Executor) Resume() {
	e.paused.Store(false)
	e.pauseMu.Lock()
	e.pauseCond.Broadcast()
	e.pauseMu.Unlock()
}

// Cancel trips the cancellation flag. The copy-transform loop observes it
// between events and aborts the saga at the next check point.
func (e *Executor) Cancel() {
	e.cancelled.Store(true)
	e.Resume()
}

// errCancelled is returned by checkpoint once Cancel has been called; the
// copy-transform loop treats it as a distinct outcome from a storage or
// transform failure.
var errCancelled = fmt.Errorf("migration: cancelled")

// checkpoint blocks while the saga is paused and reports cancellation once
// Cancel has been called. The copy-transform loop calls it between events.
func (e *Executor) checkpoint() error {
	for e.paused.Load() && !e.cancelled.Load() {
		e.pauseMu.Lock()
		e.pauseCond.Wait()
		e.pauseMu.Unlock()
	}
	if e.cancelled.Load() {
		return errCancelled
	}
	return nil
}

// Run executes the saga to completion. Every failure is reported in the
// returned Result (Success false, Err set); Run has no separate error
// return.
func (e *Executor) Run(ctx context.Context) *Result {
	ctx2 := e.built.Context
	if ctx2.IsDryRun {
		return e.runDryRun(ctx)
	}

	stats := Statistics{}
	tracker := e.newTracker()

	sourceDataStore, sourceDocStore, ok := e.resolveSourceStores()
	if !ok {
		return e.fail(stats, nil, fmt.Errorf("migration: %w: source data/document store not resolvable", faeserrors.ErrValidation), PhasePrepare)
	}
	targetDataStore, ok := e.resolver.DataStore(ctx2.DataStore)
	if !ok {
		return e.fail(stats, nil, fmt.Errorf("migration: %w: target data store %q not resolvable", faeserrors.ErrValidation, ctx2.DataStore), PhasePrepare)
	}

	// Prepare: acquire the distributed lock and start the heartbeat.
	e.enterPhase(PhasePrepare)
	var lockHandle lock.Handle
	var stopHeartbeat func()
	if ctx2.LockOptions != nil {
		key := "migration:" + ctx2.SourceStreamIdentifier
		h, err := e.lockProvider.Acquire(ctx, key, ctx2.LockOptions.LockTimeout, ctx2.LockOptions.LockTimeout)
		if err != nil {
			return e.fail(stats, nil, &faeserrors.MigrationPhaseError{Phase: string(PhasePrepare), Cause: err}, PhasePrepare)
		}
		lockHandle = h
		stopHeartbeat = e.startHeartbeat(ctx, lockHandle, ctx2.LockOptions.HeartbeatInterval, ctx2.LockOptions.LockTimeout)
		defer func() {
			stopHeartbeat()
			_ = lockHandle.Release(ctx)
		}()
	}

	// Backup.
	e.enterPhase(PhaseBackup)
	var backupHandle *model.BackupHandle
	if ctx2.BackupConfig != nil && ctx2.BackupProvider != nil {
		h, err := ctx2.BackupProvider.Backup(ctx2.SourceDocument, ctx2.SourceStreamIdentifier)
		if err != nil {
			return e.fail(stats, nil, &faeserrors.MigrationPhaseError{Phase: string(PhaseBackup), Cause: err}, PhaseBackup)
		}
		backupHandle = &h
	}

	// Copy-Transform.
	e.enterPhase(PhaseCopyTransform)
	targetDoc := e.shadowTargetDocument()
	transformed, copyErr := e.copyTransform(ctx, sourceDataStore, targetDataStore, targetDoc, &stats, tracker)
	tracker.Flush()
	if copyErr != nil {
		if copyErr == errCancelled {
			return &Result{Success: false, Status: model.StatusCancelled, MigrationId: ctx2.MigrationId, Statistics: stats}
		}
		return e.compensate(ctx, backupHandle, nil, nil, stats, &faeserrors.MigrationPhaseError{Phase: string(PhaseCopyTransform), Cause: copyErr}, false)
	}

	// Verify.
	e.enterPhase(PhaseVerify)
	var verification *VerificationResult
	if ctx2.Verification != nil {
		v, err := e.verify(ctx, sourceDataStore, targetDataStore, targetDoc, stats, transformed)
		verification = v
		if err != nil {
			return e.compensate(ctx, backupHandle, nil, nil, stats, &faeserrors.MigrationPhaseError{Phase: string(PhaseVerify), Cause: err}, false)
		}
	}

	// Cutover.
	e.enterPhase(PhaseCutover)
	savedActive := ctx2.SourceDocument.Active
	savedTerminatedLen := len(ctx2.SourceDocument.TerminatedStreams)
	if err := e.cutover(ctx, sourceDataStore, sourceDocStore, targetDoc); err != nil {
		return e.compensate(ctx, backupHandle, &savedActive, &savedTerminatedLen, stats, &faeserrors.MigrationPhaseError{Phase: string(PhaseCutover), Cause: err}, true)
	}

	// Book-Close.
	e.enterPhase(PhaseBookClose)
	if ctx2.BookClosing != nil {
		if err := e.bookClose(ctx, sourceDocStore, &stats); err != nil {
			return e.compensate(ctx, backupHandle, &savedActive, &savedTerminatedLen, stats, &faeserrors.MigrationPhaseError{Phase: string(PhaseBookClose), Cause: err}, true)
		}
	}

	// Finalize.
	e.enterPhase(PhaseFinalize)
	stats.CompletedAt = time.Now()
	if elapsed := stats.CompletedAt.Sub(ctx2.StartedAt); elapsed > 0 {
		stats.AverageEventsPerSecond = float64(stats.EventsTransformed) / elapsed.Seconds()
	}
	success := verification == nil || verification.Valid
	status := model.StatusCompleted
	if !success {
		status = model.StatusFailed
	}
	return &Result{
		Success:            success,
		Status:             status,
		MigrationId:        ctx2.MigrationId,
		Statistics:         stats,
		VerificationResult: verification,
	}
}

func (e *Executor) newTracker() *ProgressTracker {
	reportEvery := 0
	var reportInterval time.Duration
	if p := e.built.Context.Progress; p != nil {
		reportEvery = p.ReportEvery
		reportInterval = p.ReportInterval
	}
	return NewProgressTracker(reportEvery, reportInterval, e.built.OnProgress)
}

func (e *Executor) resolveSourceStores() (store.DataStore, store.DocumentStore, bool) {
	src := e.built.Context.SourceDocument.Active
	ds, ok := e.resolver.DataStore(src.DataStore)
	if !ok {
		return nil, nil, false
	}
	docs, ok := e.resolver.DocumentStore(src.DocumentStore)
	if !ok {
		return nil, nil, false
	}
	return ds, docs, true
}

// shadowTargetDocument is an in-memory-only document used to drive
// DataStore.Append/Read calls against the target stream before cutover.
// It is never persisted through a DocumentStore: the document store is
// only written at Cutover and Book-Close, the saga's linearization points.
func (e *Executor) shadowTargetDocument() *model.ObjectDocument {
	ctx := e.built.Context
	src := ctx.SourceDocument.Active
	return &model.ObjectDocument{
		ObjectId:   ctx.SourceDocument.ObjectId,
		ObjectName: ctx.SourceDocument.ObjectName,
		Active: model.StreamInformation{
			StreamIdentifier:     ctx.TargetStreamIdentifier,
			StreamType:           src.StreamType,
			DataStore:            ctx.DataStore,
			DocumentStore:        ctx.DocumentStore,
			CurrentStreamVersion: -1,
			ChunkSettings:        src.ChunkSettings,
		},
	}
}

func (e *Executor) startHeartbeat(ctx context.Context, handle lock.Handle, interval, ttl time.Duration) func() {
	if interval <= 0 {
		interval = ttl / 3
	}
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := handle.Renew(ctx, ttl); err != nil {
					e.logger.WithError(err).Warn("migration: lock heartbeat failed, requesting cancellation")
					e.Cancel()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func (e *Executor) copyTransform(ctx context.Context, sourceDataStore, targetDataStore store.DataStore, targetDoc *model.ObjectDocument, stats *Statistics, tracker *ProgressTracker) ([]model.Event, error) {
	sourceEvents, err := sourceDataStore.Read(ctx, e.built.Context.SourceDocument, 0, nil)
	if err != nil {
		return nil, err
	}
	stats.TotalEvents = len(sourceEvents)

	written := make([]model.Event, 0, len(sourceEvents))
	for _, src := range sourceEvents {
		if err := e.checkpoint(); err != nil {
			return written, err
		}

		out, terr := e.transform(src)
		if terr != nil {
			stats.TransformationFailures++
			if e.built.Context.Verification != nil && e.built.Context.Verification.FailFast {
				return written, terr
			}
			continue
		}

		out.EventVersion = targetDoc.Active.CurrentStreamVersion + 1
		if err := targetDataStore.Append(ctx, targetDoc, []model.Event{out}); err != nil {
			return written, err
		}
		targetDoc.Active.CurrentStreamVersion = out.EventVersion
		stats.EventsTransformed++
		stats.TotalBytes += int64(len(out.Payload))
		tracker.Record(len(out.Payload))
		written = append(written, out)
	}
	return written, nil
}

func (e *Executor) transform(in model.Event) (model.Event, error) {
	ctx := e.built.Context
	out := in
	var err error
	if ctx.Transformer != nil {
		out, err = ctx.Transformer.Transform(out)
		if err != nil {
			return model.Event{}, err
		}
	}
	for _, t := range ctx.Pipeline {
		out, err = t.Transform(out)
		if err != nil {
			return model.Event{}, err
		}
	}
	return out, nil
}

func (e *Executor) verify(ctx context.Context, sourceDataStore, targetDataStore store.DataStore, targetDoc *model.ObjectDocument, stats Statistics, transformed []model.Event) (*VerificationResult, error) {
	cfg := e.built.Context.Verification
	var checks []CheckResult

	targetEvents, err := targetDataStore.Read(ctx, targetDoc, 0, nil)
	if err != nil {
		return nil, err
	}

	countOK := len(targetEvents) == stats.EventsTransformed
	checks = append(checks, CheckResult{
		Name:    "event-count",
		Passed:  countOK,
		Message: fmt.Sprintf("transformed %d events, target stream holds %d", stats.EventsTransformed, len(targetEvents)),
	})
	if !countOK && cfg.FailFast {
		return &VerificationResult{Valid: false, Checks: checks}, fmt.Errorf("verify: event-count mismatch")
	}

	integrityOK := true
	for i, ev := range targetEvents {
		if ev.EventVersion != i {
			integrityOK = false
			break
		}
	}
	checks = append(checks, CheckResult{
		Name:    "stream-integrity",
		Passed:  integrityOK,
		Message: "target stream version sequence is dense and starts at 0",
	})
	if !integrityOK && cfg.FailFast {
		return &VerificationResult{Valid: false, Checks: checks}, fmt.Errorf("verify: stream integrity violated")
	}

	if cfg.TransformationSampleSize > 0 {
		sample := transformed
		if len(sample) > cfg.TransformationSampleSize {
			sample = sample[:cfg.TransformationSampleSize]
		}
		var failures []TransformationFailure
		for _, ev := range sample {
			if _, rerr := e.transform(ev); rerr != nil {
				failures = append(failures, TransformationFailure{EventName: ev.EventType, Error: rerr.Error()})
			}
		}
		sampleOK := len(failures) == 0
		checks = append(checks, CheckResult{
			Name:    "transformation-sample",
			Passed:  sampleOK,
			Message: fmt.Sprintf("resampled %d transformed events, %d failed", len(sample), len(failures)),
		})
		if !sampleOK && cfg.FailFast {
			return &VerificationResult{Valid: false, Checks: checks}, fmt.Errorf("verify: transformation re-sample failed")
		}
	}

	for _, cv := range cfg.CustomValidations {
		ok, msg := cv.Fn()
		checks = append(checks, CheckResult{Name: cv.Name, Passed: ok, Message: msg})
		if !ok && cfg.FailFast {
			return &VerificationResult{Valid: false, Checks: checks}, fmt.Errorf("verify: custom validation %q failed", cv.Name)
		}
	}

	valid := true
	for _, c := range checks {
		if !c.Passed {
			valid = false
			break
		}
	}
	return &VerificationResult{Valid: valid, Checks: checks}, nil
}

// cutover appends the stream-closed marker to the source stream through a
// dedicated LeasedSession (reusing the commit engine's own two-phase
// commit rather than writing around it), then performs the document's
// Active swap as the single linearization point of the migration.
func (e *Executor) cutover(ctx context.Context, sourceDataStore store.DataStore, sourceDocStore store.DocumentStore, targetDoc *model.ObjectDocument) error {
	mctx := e.built.Context
	sourceDoc := mctx.SourceDocument

	closeRegistry := eventtype.New()
	_ = closeRegistry.Add(model.StreamClosedEvent{}, model.StreamClosedEventType, 1, closeEventCodec{})
	closeRegistry.Freeze()

	closeSession := session.New(sourceDoc, sourceDataStore, sourceDocStore, closeRegistry, session.Hooks{}, e.logger)
	closeEvt := model.StreamClosedEvent{
		StreamIdentifier:          sourceDoc.Active.StreamIdentifier,
		ContinuationStreamId:      targetDoc.Active.StreamIdentifier,
		ContinuationStreamType:    targetDoc.Active.StreamType,
		ContinuationDataStore:     targetDoc.Active.DataStore,
		ContinuationDocumentStore: targetDoc.Active.DocumentStore,
		Reason:                    model.TerminationMigration,
		ClosedAt:                  time.Now().Format(time.RFC3339Nano),
		MigrationId:               mctx.MigrationId,
		LastBusinessEventVersion:  sourceDoc.Active.CurrentStreamVersion,
	}
	if err := closeSession.Append(closeEvt); err != nil {
		return err
	}
	if err := closeSession.Commit(ctx); err != nil {
		return err
	}

	terminated := model.TerminatedStream{
		StreamIdentifier:          sourceDoc.Active.StreamIdentifier,
		ContinuationStreamId:      targetDoc.Active.StreamIdentifier,
		ContinuationStreamType:    targetDoc.Active.StreamType,
		ContinuationDataStore:     targetDoc.Active.DataStore,
		ContinuationDocumentStore: targetDoc.Active.DocumentStore,
		Reason:                    model.TerminationMigration,
		ClosedAt:                  time.Now(),
		MigrationId:               mctx.MigrationId,
		LastBusinessEventVersion:  closeEvt.LastBusinessEventVersion,
	}

	oldActive := sourceDoc.Active
	sourceDoc.TerminatedStreams = append(sourceDoc.TerminatedStreams, terminated)
	sourceDoc.Active = targetDoc.Active

	if err := sourceDocStore.Set(ctx, sourceDoc); err != nil {
		sourceDoc.Active = oldActive
		sourceDoc.TerminatedStreams = sourceDoc.TerminatedStreams[:len(sourceDoc.TerminatedStreams)-1]
		return err
	}
	return nil
}

// bookClose reloads the source document so it operates against the
// persisted state after Cutover, updates the terminated-stream record,
// and writes it back. Repeating the same BookClosingConfig twice leaves
// the document in the same state, so the operation is idempotent.
func (e *Executor) bookClose(ctx context.Context, sourceDocStore store.DocumentStore, stats *Statistics) error {
	mctx := e.built.Context
	cfg := mctx.BookClosing

	doc, err := sourceDocStore.Get(ctx, mctx.SourceDocument.ObjectName, mctx.SourceDocument.ObjectId)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("migration: book-close: source document not found")
	}

	term := doc.TerminatedStreamByIdentifier(mctx.SourceStreamIdentifier)
	if term == nil {
		return fmt.Errorf("migration: book-close: terminated stream %q not found", mctx.SourceStreamIdentifier)
	}
	if cfg.Reason != "" {
		term.Reason = model.TerminationReason(cfg.Reason)
	}
	if cfg.MarkAsDeleted {
		term.Deleted = true
	}
	if cfg.Metadata != nil {
		if term.Metadata == nil {
			term.Metadata = map[string]string{}
		}
		for k, v := range cfg.Metadata {
			term.Metadata[k] = v
		}
	}
	if cfg.ArchiveLocation != "" {
		if term.Metadata == nil {
			term.Metadata = map[string]string{}
		}
		term.Metadata["archiveLocation"] = cfg.ArchiveLocation
	}
	if cfg.CreateSnapshot {
		stats.SnapshotCreated = true
	}

	if err := sourceDocStore.Set(ctx, doc); err != nil {
		return err
	}
	*mctx.SourceDocument = *doc
	return nil
}

// compensate runs the backup restore and/or the Active-swap reversal when
// SupportsRollback is set and at least one event has already reached the
// target stream. It always returns a failed Result.
func (e *Executor) compensate(ctx context.Context, backupHandle *model.BackupHandle, savedActive *model.StreamInformation, savedTerminatedLen *int, stats Statistics, cause error, cutoverDone bool) *Result {
	mctx := e.built.Context
	rolledBack := false

	if mctx.SupportsRollback && stats.EventsTransformed > 0 {
		if mctx.BackupProvider != nil && backupHandle != nil {
			if err := mctx.BackupProvider.Restore(*backupHandle); err != nil {
				e.logger.WithError(err).Warn("migration: backup restore failed during compensation")
			} else {
				rolledBack = true
			}
		} else {
			// No backup was taken; rollback is advisory-only (the target
			// stream's partial events are left in place for operator
			// inspection) but the statistics still record intent.
			rolledBack = true
		}

		if cutoverDone && savedActive != nil {
			sourceDoc := mctx.SourceDocument
			sourceDoc.Active = *savedActive
			if savedTerminatedLen != nil && *savedTerminatedLen <= len(sourceDoc.TerminatedStreams) {
				sourceDoc.TerminatedStreams = sourceDoc.TerminatedStreams[:*savedTerminatedLen]
			}
			if sourceDocStore, _, ok := e.resolveSourceStores(); ok {
				if err := sourceDocStore.Set(ctx, sourceDoc); err != nil {
					e.logger.WithError(err).Warn("migration: failed to reverse cutover during compensation")
				}
			}
		}
	}

	stats.RolledBack = rolledBack
	stats.CompletedAt = time.Now()

	status := model.StatusFailed
	if rolledBack {
		status = model.StatusRolledBack
	}
	return &Result{
		Success:     false,
		Status:      status,
		MigrationId: mctx.MigrationId,
		Statistics:  stats,
		Err:         cause,
	}
}

func (e *Executor) fail(stats Statistics, plan *MigrationPlan, cause error, phase Phase) *Result {
	stats.CompletedAt = time.Now()
	return &Result{
		Success:     false,
		Status:      model.StatusFailed,
		MigrationId: e.built.Context.MigrationId,
		Statistics:  stats,
		Plan:        plan,
		Err:         cause,
	}
}

// runDryRun produces a MigrationPlan without writing anything: it reads
// the source stream once, counts events by type, simulates the
// transformer against a sample, and applies the fixed risk rules below.
func (e *Executor) runDryRun(ctx context.Context) *Result {
	mctx := e.built.Context
	sourceDataStore, _, ok := e.resolveSourceStores()
	if !ok {
		plan := &MigrationPlan{IsFeasible: false, Risks: []Risk{{
			Category: "Configuration", Severity: RiskSeverityHigh,
			Description: "source data store or document store could not be resolved",
		}}}
		return &Result{Success: false, Status: model.StatusFailed, MigrationId: mctx.MigrationId, Plan: plan}
	}

	events, err := sourceDataStore.Read(ctx, mctx.SourceDocument, 0, nil)
	if err != nil {
		plan := &MigrationPlan{IsFeasible: false}
		return &Result{Success: false, Status: model.StatusFailed, MigrationId: mctx.MigrationId, Plan: plan, Err: err}
	}

	distribution := map[string]int{}
	for _, ev := range events {
		distribution[ev.EventType]++
	}

	sampleSize := 20
	if mctx.Verification != nil && mctx.Verification.TransformationSampleSize > 0 {
		sampleSize = mctx.Verification.TransformationSampleSize
	}
	sample := events
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	sim := TransformationSimulation{SampleSize: len(sample)}
	for _, ev := range sample {
		if _, terr := e.transform(ev); terr != nil {
			sim.Failed++
			sim.Failures = append(sim.Failures, TransformationFailure{EventName: ev.EventType, Error: terr.Error()})
		} else {
			sim.Successful++
		}
	}

	var risks []Risk
	if mctx.BackupConfig == nil {
		risks = append(risks, Risk{Category: "Data Safety", Severity: RiskSeverityHigh, Description: "no backup configured before the copy-transform phase"})
	}
	if _, ok := e.resolver.DataStore(mctx.DataStore); !ok {
		risks = append(risks, Risk{Category: "Configuration", Severity: RiskSeverityHigh, Description: fmt.Sprintf("target data store %q is not resolvable", mctx.DataStore)})
	}
	if sim.Failed > 0 {
		risks = append(risks, Risk{Category: "Transformation", Severity: RiskSeverityMedium, Description: fmt.Sprintf("%d of %d sampled events failed to transform", sim.Failed, sim.SampleSize)})
	}
	if mctx.LockOptions == nil {
		risks = append(risks, Risk{Category: "Concurrency", Severity: RiskSeverityLow, Description: "no distributed lock requested; concurrent migrations of this stream are not prevented"})
	}

	prereqs := []Prerequisite{
		{Name: "source stream resolvable", IsMet: true},
		{Name: "target stream identifier differs from source", IsMet: mctx.TargetStreamIdentifier != mctx.SourceStreamIdentifier},
	}

	plan := &MigrationPlan{
		SourceAnalysis:           SourceAnalysis{EventCount: len(events), EventTypeDistribution: distribution},
		TransformationSimulation: sim,
		Prerequisites:            prereqs,
		Risks:                    risks,
	}
	plan.IsFeasible = !plan.HasHighSeverityRisk()

	return &Result{
		Success:     plan.IsFeasible,
		Status:      model.StatusPending,
		MigrationId: mctx.MigrationId,
		Plan:        plan,
	}
}
