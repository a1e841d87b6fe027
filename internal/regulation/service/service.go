package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"domus/internal/auditlog"
	"domus/internal/directory"
	regmetrics "domus/internal/regulation/metrics"
	"domus/internal/regulation/models"
	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
	"domus/pkg/platform/sentinel"
	"domus/pkg/requestcontext"
)

// Store persists regulations. FindActiveByResidence returns
// sentinel.ErrNotFound when the residence has no active regulation.
type Store interface {
	Create(ctx context.Context, regulation *models.Regulation) error
	FindByID(ctx context.Context, regulationID id.RegulationID) (*models.Regulation, error)
	ListByResidence(ctx context.Context, residenceID id.ResidenceID) ([]*models.Regulation, error)
	FindActiveByResidence(ctx context.Context, residenceID id.ResidenceID) (*models.Regulation, error)
	Update(ctx context.Context, regulation *models.Regulation) error
	Delete(ctx context.Context, regulationID id.RegulationID) error
}

// AuditLog receives lifecycle entries. Only this service appends.
type AuditLog interface {
	Append(ctx context.Context, entry auditlog.Entry) error
}

// ActiveCache fronts FindActiveByResidence. Optional; nil disables caching.
// The read path repopulates with SetIfAbsent so a reader holding a pre-swap
// regulation cannot overwrite the value a committed swap wrote; mutations
// use Set unconditionally.
type ActiveCache interface {
	Get(ctx context.Context, residenceID id.ResidenceID) (*models.Regulation, bool, error)
	Set(ctx context.Context, residenceID id.ResidenceID, regulation *models.Regulation) error
	SetIfAbsent(ctx context.Context, residenceID id.ResidenceID, regulation *models.Regulation) error
	Invalidate(ctx context.Context, residenceID id.ResidenceID) error
}

// EventSink receives lifecycle events for downstream consumers (the
// notification sender). Publishing is fire-and-forget: a sink failure never
// affects the committed state change.
type EventSink interface {
	Publish(ctx context.Context, key string, payload any) error
}

// LifecycleEvent is the payload published to the event sink.
type LifecycleEvent struct {
	Action       auditlog.Action `json:"action"`
	RegulationID id.RegulationID `json:"regulationId"`
	ResidenceID  id.ResidenceID  `json:"residenceId"`
	Version      string          `json:"version"`
	OccurredAt   time.Time       `json:"occurredAt"`
}

// Service owns the regulation lifecycle. All mutations go through here so the
// single-active invariant, the audit trail, and cache invalidation stay in
// one place.
type Service struct {
	store      Store
	audit      AuditLog
	residences directory.ResidenceDirectory
	tx         StoreTx
	logger     *slog.Logger
	metrics    *regmetrics.Metrics
	cache      ActiveCache
	events     EventSink
	tracer     trace.Tracer
}

type Option func(*Service)

// WithTx replaces the default in-memory transaction boundary, typically with
// the Postgres adapter from cmd/server.
func WithTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *regmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithActiveCache(cache ActiveCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithEventSink(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

func New(store Store, audit AuditLog, residences directory.ResidenceDirectory, opts ...Option) *Service {
	s := &Service{
		store:      store,
		audit:      audit,
		residences: residences,
		tx:         newShardedTx(),
		tracer:     otel.Tracer("domus/regulation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the residence and version, stores the regulation, and
// writes a CREATED audit entry. When req.Activate is set, the previous active
// regulation (if any) is archived within the same transaction.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (*models.Regulation, error) {
	if _, err := s.residences.GetResidenceByID(ctx, req.ResidenceID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "residence not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve residence")
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	regulation, err := models.New(id.NewRegulationID(), req.ResidenceID, req.Version, req.FileName, req.FileRef, req.FileSize, actor.ID, now)
	if err != nil {
		return nil, err
	}

	var demoted *models.Regulation
	err = s.tx.RunInTx(ctx, req.ResidenceID, func(txCtx context.Context) error {
		if req.Activate {
			current, err := s.store.FindActiveByResidence(txCtx, req.ResidenceID)
			switch {
			case err == nil:
				current.ApplyDeactivation(now)
				if err := s.store.Update(txCtx, current); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive previous regulation")
				}
				demoted = current
			case !errors.Is(err, sentinel.ErrNotFound):
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve active regulation")
			}
			regulation.ApplyActivation(now)
		}
		if err := s.store.Create(txCtx, regulation); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create regulation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.Append(ctx, s.entryFor(ctx, auditlog.ActionCreated, regulation, auditlog.CreatedMetadata{
		Version:  regulation.Version,
		FileName: regulation.FileName,
		FileSize: regulation.FileSize,
	})); err != nil {
		return nil, err
	}
	if demoted != nil {
		if err := s.audit.Append(ctx, s.entryFor(ctx, auditlog.ActionDeactivated, demoted, auditlog.DeactivatedMetadata{
			SuccessorID: regulation.ID,
		})); err != nil {
			return nil, err
		}
	}

	if req.Activate {
		s.refreshActive(ctx, req.ResidenceID, regulation)
		s.publishEvent(ctx, auditlog.ActionActivated, regulation, now)
	}
	s.publishEvent(ctx, auditlog.ActionCreated, regulation, now)
	if s.metrics != nil {
		s.metrics.RegulationsCreated.Inc()
	}
	return regulation, nil
}

// GetByID returns one regulation.
func (s *Service) GetByID(ctx context.Context, regulationID id.RegulationID) (*models.Regulation, error) {
	regulation, err := s.store.FindByID(ctx, regulationID)
	if err != nil {
		return nil, wrapRegulationErr(err)
	}
	return regulation, nil
}

// GetByResidence lists a residence's regulations, newest publication first.
func (s *Service) GetByResidence(ctx context.Context, residenceID id.ResidenceID) ([]*models.Regulation, error) {
	regulations, err := s.store.ListByResidence(ctx, residenceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list regulations")
	}
	return regulations, nil
}

// GetActive returns the residence's single active regulation, or nil when
// none exists. Reads go through the cache when one is configured.
func (s *Service) GetActive(ctx context.Context, residenceID id.ResidenceID) (*models.Regulation, error) {
	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, residenceID)
		if err != nil {
			// Cache trouble must not break reads; fall through to the store.
			s.log(ctx, slog.LevelWarn, "active regulation cache read failed", "error", err)
		} else if hit {
			return cached, nil
		}
	}

	regulation, err := s.store.FindActiveByResidence(ctx, residenceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve active regulation")
	}

	if s.cache != nil {
		// If-absent: a swap committing after the store read above has
		// already written its own value, which must win.
		if err := s.cache.SetIfAbsent(ctx, residenceID, regulation); err != nil {
			s.log(ctx, slog.LevelWarn, "active regulation cache write failed", "error", err)
		}
	}
	return regulation, nil
}

// Update applies a partial update. Setting Activate on an archived regulation
// runs the same swap as SetActive before the field changes are applied.
// An explicit Activate=false is ignored: archiving happens only through a
// successor's activation.
func (s *Service) Update(ctx context.Context, regulationID id.RegulationID, req models.UpdateRequest) (*models.Regulation, error) {
	if req.Version != nil && strings.TrimSpace(*req.Version) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "regulation version must not be empty")
	}

	regulation, err := s.store.FindByID(ctx, regulationID)
	if err != nil {
		return nil, wrapRegulationErr(err)
	}

	if req.Activate != nil && *req.Activate && !regulation.IsActive {
		if _, err := s.SetActive(ctx, regulation.ResidenceID, regulationID); err != nil {
			return nil, err
		}
	}

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, regulation.ResidenceID, func(txCtx context.Context) error {
		// Re-read inside the boundary: a concurrent swap may have changed
		// the activation state since the pre-read, and writing the whole
		// struct back from a stale copy would resurrect or drop it.
		current, err := s.store.FindByID(txCtx, regulationID)
		if err != nil {
			return wrapRegulationErr(err)
		}
		if req.Version != nil {
			current.Version = strings.TrimSpace(*req.Version)
		}
		if req.FileName != nil {
			current.FileName = *req.FileName
		}
		if req.FileRef != nil {
			current.FileRef = *req.FileRef
		}
		if req.FileSize != nil {
			current.FileSize = *req.FileSize
		}
		current.UpdatedAt = now
		if err := s.store.Update(txCtx, current); err != nil {
			return wrapRegulationErr(err)
		}
		regulation = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if regulation.IsActive {
		// Field changes on the active regulation must reach cached readers.
		s.refreshActive(ctx, regulation.ResidenceID, regulation)
	}
	return regulation, nil
}

// Delete removes an archived regulation and writes a DELETED audit entry.
// Deleting the active regulation violates the lifecycle and is rejected.
func (s *Service) Delete(ctx context.Context, regulationID id.RegulationID) error {
	regulation, err := s.store.FindByID(ctx, regulationID)
	if err != nil {
		return wrapRegulationErr(err)
	}

	err = s.tx.RunInTx(ctx, regulation.ResidenceID, func(txCtx context.Context) error {
		// Re-check inside the boundary: a concurrent swap may have activated
		// the target after the pre-read, and an active regulation must never
		// be deleted.
		current, err := s.store.FindByID(txCtx, regulationID)
		if err != nil {
			return wrapRegulationErr(err)
		}
		if err := current.CanDelete(); err != nil {
			return err
		}
		if err := s.store.Delete(txCtx, current.ID); err != nil {
			return wrapRegulationErr(err)
		}
		regulation = current
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.audit.Append(ctx, s.entryFor(ctx, auditlog.ActionDeleted, regulation, auditlog.DeletedMetadata{
		Version:  regulation.Version,
		FileName: regulation.FileName,
	})); err != nil {
		return err
	}
	s.publishEvent(ctx, auditlog.ActionDeleted, regulation, requestcontext.Now(ctx))
	return nil
}

// SetActive atomically makes the target regulation the residence's active
// one. Inside a single transaction it archives the current active regulation
// (at most one, by invariant) and activates the target. Activating the
// already-active regulation is a no-op and appends nothing to the audit
// trail.
//
// The audit writes happen after the transaction commits: the lifecycle state
// is authoritative, the trail is advisory. A crash or write failure between
// commit and audit leaves state consistent with an incomplete trail, which
// this system accepts; failures are logged and counted, never surfaced.
func (s *Service) SetActive(ctx context.Context, residenceID id.ResidenceID, targetID id.RegulationID) (*models.SetActiveResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "regulation.SetActive")
	defer span.End()

	now := requestcontext.Now(ctx)
	result := &models.SetActiveResult{NewActiveID: targetID}

	var previous, target *models.Regulation
	err := s.tx.RunInTx(ctx, residenceID, func(txCtx context.Context) error {
		t, err := s.store.FindByID(txCtx, targetID)
		if err != nil {
			return wrapRegulationErr(err)
		}
		if t.ResidenceID != residenceID {
			return dErrors.New(dErrors.CodeValidation, "regulation does not belong to this residence")
		}
		if t.IsActive {
			result.NoOp = true
			return nil
		}

		current, err := s.store.FindActiveByResidence(txCtx, residenceID)
		switch {
		case err == nil:
			current.ApplyDeactivation(now)
			if err := s.store.Update(txCtx, current); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive previous regulation")
			}
			previous = current
		case !errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve active regulation")
		}

		t.ApplyActivation(now)
		if err := s.store.Update(txCtx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate regulation")
		}
		target = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.NoOp {
		if s.metrics != nil {
			s.metrics.ActivationNoOps.Inc()
		}
		return result, nil
	}

	if previous != nil {
		previousID := previous.ID
		result.PreviousActiveID = &previousID
	}

	// Post-commit, best-effort: DEACTIVATED for the demoted regulation
	// first, then ACTIVATED for the target.
	if previous != nil {
		s.appendAuditLogged(ctx, s.entryFor(ctx, auditlog.ActionDeactivated, previous, auditlog.DeactivatedMetadata{
			SuccessorID: target.ID,
		}))
	}
	s.appendAuditLogged(ctx, s.entryFor(ctx, auditlog.ActionActivated, target, auditlog.ActivatedMetadata{
		PreviousActiveID: result.PreviousActiveID,
	}))

	s.refreshActive(ctx, residenceID, target)
	s.publishEvent(ctx, auditlog.ActionActivated, target, now)
	if s.metrics != nil {
		s.metrics.ActivationSwaps.Inc()
		s.metrics.ObserveSetActive(start)
	}
	return result, nil
}

func (s *Service) entryFor(ctx context.Context, action auditlog.Action, regulation *models.Regulation, metadata auditlog.Metadata) auditlog.Entry {
	actor := requestcontext.Actor(ctx)
	return auditlog.Entry{
		ID:               id.NewEntryID(),
		RegulationID:     regulation.ID,
		ResidenceID:      regulation.ResidenceID,
		Action:           action,
		PerformedBy:      actor.ID,
		PerformedByEmail: actor.Email,
		PerformedByName:  actor.Name,
		Timestamp:        requestcontext.Now(ctx),
		Metadata:         metadata,
	}
}

// appendAuditLogged is the post-commit variant of audit writing: failures are
// logged and counted because the state change is already committed.
func (s *Service) appendAuditLogged(ctx context.Context, entry auditlog.Entry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log(ctx, slog.LevelError, "post-commit audit write failed",
			"action", string(entry.Action),
			"regulation_id", entry.RegulationID.String(),
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.AuditWriteFailures.Inc()
		}
	}
}

// refreshActive replaces the cached active regulation after a lifecycle
// mutation. Delete first so a failed write degrades to a miss, then write
// the new value unconditionally: together with the read path's if-absent
// repopulation this keeps an in-flight reader holding the superseded
// regulation from pinning it in the cache until the TTL expires.
func (s *Service) refreshActive(ctx context.Context, residenceID id.ResidenceID, regulation *models.Regulation) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, residenceID); err != nil {
		s.log(ctx, slog.LevelWarn, "active regulation cache invalidation failed",
			"residence_id", residenceID.String(),
			"error", err,
		)
		return
	}
	if err := s.cache.Set(ctx, residenceID, regulation); err != nil {
		s.log(ctx, slog.LevelWarn, "active regulation cache write failed",
			"residence_id", residenceID.String(),
			"error", err,
		)
	}
}

func (s *Service) publishEvent(ctx context.Context, action auditlog.Action, regulation *models.Regulation, now time.Time) {
	if s.events == nil {
		return
	}
	event := LifecycleEvent{
		Action:       action,
		RegulationID: regulation.ID,
		ResidenceID:  regulation.ResidenceID,
		Version:      regulation.Version,
		OccurredAt:   now,
	}
	if err := s.events.Publish(ctx, regulation.ResidenceID.String(), event); err != nil {
		s.log(ctx, slog.LevelWarn, "lifecycle event publish failed",
			"action", string(action),
			"regulation_id", regulation.ID.String(),
			"error", err,
		)
	}
}

func (s *Service) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.Log(ctx, level, msg, args...)
}

func wrapRegulationErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "regulation not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "regulation store failure")
}
