package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"pathways-backend/internal/metrics"
	"pathways-backend/internal/models"
	"pathways-backend/internal/pathway"
	"pathways-backend/internal/repository"
)

type DraftSessionStore interface {
	Get(ctx context.Context, userID uuid.UUID, tripID string) (*models.DraftSession, error)
	Save(ctx context.Context, userID uuid.UUID, s *models.DraftSession) error
}

type ScheduleStore interface {
	ListByTrip(ctx context.Context, userID uuid.UUID, tripID string) ([]models.ScheduleBlock, error)
	Create(ctx context.Context, b *models.ScheduleBlock) error
	Delete(ctx context.Context, userID uuid.UUID, tripID, blockID string) error
	ReplaceGenerated(ctx context.Context, userID uuid.UUID, tripID string, merge repository.MergeFunc) ([]models.ScheduleBlock, error)
}

type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type JobQueue interface {
	Push(ctx context.Context, job *models.Job) error
}

type PathwayDeps struct {
	Drafts       *pathway.DraftGenerator
	Finalizer    *pathway.Finalizer
	Materializer *pathway.Materializer
	Flight       pathway.SingleFlight
	Sessions     DraftSessionStore
	Schedule     ScheduleStore
	Jobs         JobStore
	Queue        JobQueue
	Notifier     Notifier
	Log          zerolog.Logger
}

// PathwayService drives a caregiver's pathway session: day selection,
// drafts and their edits, finalization and writing the schedule.
type PathwayService struct {
	drafts       *pathway.DraftGenerator
	finalizer    *pathway.Finalizer
	materializer *pathway.Materializer
	resolver     pathway.DaySetResolver
	flight       pathway.SingleFlight
	sessions     DraftSessionStore
	schedule     ScheduleStore
	jobs         JobStore
	queue        JobQueue
	notifier     Notifier
	log          zerolog.Logger
}

func NewPathwayService(d PathwayDeps) *PathwayService {
	if d.Flight == nil {
		d.Flight = pathway.NewMemoryFlight()
	}
	if d.Notifier == nil {
		d.Notifier = NopNotifier{}
	}
	return &PathwayService{
		drafts:       d.Drafts,
		finalizer:    d.Finalizer,
		materializer: d.Materializer,
		flight:       d.Flight,
		sessions:     d.Sessions,
		schedule:     d.Schedule,
		jobs:         d.Jobs,
		queue:        d.Queue,
		notifier:     d.Notifier,
		log:          d.Log,
	}
}

// ResolveDays turns a day selection into the dates to plan for.
func (s *PathwayService) ResolveDays(req models.DaySetRequest) ([]string, error) {
	return s.resolver.Resolve(pathway.DaySelection{
		TripStart:  req.StartDate,
		TripEnd:    req.EndDate,
		Mode:       pathway.SelectionMode(req.Mode),
		RangeStart: req.RangeStart,
		RangeEnd:   req.RangeEnd,
		Selected:   req.SelectedDays,
	})
}

// GenerateDrafts asks for a fresh set of drafts and carries any edits whose
// draft id survives onto the new set.
func (s *PathwayService) GenerateDrafts(ctx context.Context, userID uuid.UUID, req models.DraftRequest) (*models.DraftResponse, error) {
	effort, err := validateRound(req.TripID, req.SelectedDates, req.EffortMode)
	if err != nil {
		return nil, err
	}

	key := pathway.SessionKey(userID.String(), req.TripID)
	if !s.flight.TryAcquire(ctx, key) {
		return nil, pathway.ErrBusy
	}
	defer s.flight.Release(ctx, key)

	drafts, err := s.drafts.Generate(ctx, req.LearnerProfile, req.Trip, req.SelectedDates, effort)
	metrics.DraftGenerations.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		s.log.Warn().Err(err).Str("trip_id", req.TripID).Int("days", len(req.SelectedDates)).Msg("draft generation failed")
		return nil, err
	}

	return s.storeRound(ctx, userID, req.TripID, req.SelectedDates, req.EffortMode, drafts, false)
}

// FallbackDrafts stores the locally built basic continuous draft set.
func (s *PathwayService) FallbackDrafts(ctx context.Context, userID uuid.UUID, req models.DraftRequest) (*models.DraftResponse, error) {
	effort, err := validateRound(req.TripID, req.SelectedDates, req.EffortMode)
	if err != nil {
		return nil, err
	}
	metrics.DraftGenerations.WithLabelValues("fallback").Inc()
	drafts := pathway.FallbackDrafts(req.Trip, req.SelectedDates, effort)
	return s.storeRound(ctx, userID, req.TripID, req.SelectedDates, req.EffortMode, drafts, true)
}

func (s *PathwayService) storeRound(ctx context.Context, userID uuid.UUID, tripID string, dates []string, effort models.EffortSelection, drafts []models.PathwayDraft, fallback bool) (*models.DraftResponse, error) {
	overlay := pathway.Overlay{}
	prev, err := s.sessions.Get(ctx, userID, tripID)
	switch {
	case err == nil:
		overlay = pathway.Overlay(prev.Edits).Reconcile(drafts)
	case !errors.Is(err, repository.ErrSessionNotFound):
		s.log.Warn().Err(err).Str("trip_id", tripID).Msg("failed to load previous draft session, edits not carried over")
	}

	session := &models.DraftSession{
		TripID:     tripID,
		DateSet:    dates,
		EffortMode: effort,
		Drafts:     drafts,
		Edits:      overlay,
		Fallback:   fallback,
	}
	if err := s.sessions.Save(ctx, userID, session); err != nil {
		return nil, fmt.Errorf("failed to save draft session: %w", err)
	}
	return sessionResponse(session), nil
}

func sessionResponse(session *models.DraftSession) *models.DraftResponse {
	overlay := pathway.Overlay(session.Edits)
	return &models.DraftResponse{
		Drafts:         overlay.EffectiveAll(session.Drafts),
		EditedDraftIDs: overlay.EditedIDs(),
		Fallback:       session.Fallback,
	}
}

func (s *PathwayService) loadSession(ctx context.Context, userID uuid.UUID, tripID string) (*models.DraftSession, error) {
	if tripID == "" {
		return nil, &ValidationError{Fields: map[string]string{"tripId": "Trip id is required"}}
	}
	session, err := s.sessions.Get(ctx, userID, tripID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, &NotFoundError{Message: "No drafts have been generated for this trip"}
	}
	if err != nil {
		return nil, err
	}
	if session.Edits == nil {
		session.Edits = map[string]models.PathwayDraft{}
	}
	return session, nil
}

func (s *PathwayService) GetDrafts(ctx context.Context, userID uuid.UUID, tripID string) (*models.DraftResponse, error) {
	session, err := s.loadSession(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	return sessionResponse(session), nil
}

// SaveEdit stores a caregiver's edit of one draft and returns the draft as
// it will now be finalized.
func (s *PathwayService) SaveEdit(ctx context.Context, userID uuid.UUID, draftID string, req models.DraftEditRequest) (*models.PathwayDraft, error) {
	session, err := s.loadSession(ctx, userID, req.TripID)
	if err != nil {
		return nil, err
	}
	overlay := pathway.Overlay(session.Edits)
	if _, ok := overlay.Effective(draftID, session.Drafts); !ok {
		return nil, &NotFoundError{Message: "Draft not found"}
	}

	edited := req.Draft
	edited.ID = draftID
	if err := pathway.ValidateEditedDraft(edited, session.DateSet); err != nil {
		return nil, err
	}

	overlay.Save(draftID, edited)
	if err := s.sessions.Save(ctx, userID, session); err != nil {
		return nil, fmt.Errorf("failed to save draft session: %w", err)
	}
	effective, _ := overlay.Effective(draftID, session.Drafts)
	return &effective, nil
}

func (s *PathwayService) DiscardEdit(ctx context.Context, userID uuid.UUID, tripID, draftID string) (*models.PathwayDraft, error) {
	session, err := s.loadSession(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	overlay := pathway.Overlay(session.Edits)
	base, ok := overlay.Effective(draftID, session.Drafts)
	if !ok {
		return nil, &NotFoundError{Message: "Draft not found"}
	}
	overlay.Discard(draftID)
	if err := s.sessions.Save(ctx, userID, session); err != nil {
		return nil, fmt.Errorf("failed to save draft session: %w", err)
	}
	base, _ = overlay.Effective(draftID, session.Drafts)
	return &base, nil
}

// Finalize expands the chosen draft into a detailed plan. The upstream call
// keeps running if the client goes away.
func (s *PathwayService) Finalize(ctx context.Context, userID uuid.UUID, req models.FinalizeRequest) (*models.FinalPathwayPlan, error) {
	in, err := s.finalizeInput(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	key := pathway.SessionKey(userID.String(), req.TripID)
	if !s.flight.TryAcquire(ctx, key) {
		return nil, pathway.ErrBusy
	}
	defer s.flight.Release(ctx, key)

	plan, err := s.finalizer.Finalize(ctx, in)
	metrics.FinalizeOutcomes.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		s.log.Warn().Err(err).Str("trip_id", req.TripID).Str("draft_id", req.ChosenDraftID).Msg("finalize failed")
		return nil, err
	}
	return plan, nil
}

// finalizeInput validates a finalize request and resolves the chosen draft,
// from the request when inlined or from the stored session otherwise.
func (s *PathwayService) finalizeInput(ctx context.Context, userID uuid.UUID, req models.FinalizeRequest) (pathway.FinalizeInput, error) {
	effort, err := validateRound(req.TripID, req.SelectedDates, req.EffortMode)
	if err != nil {
		return pathway.FinalizeInput{}, err
	}

	var chosen models.PathwayDraft
	switch {
	case req.ChosenDraft != nil:
		chosen = *req.ChosenDraft
	case req.ChosenDraftID != "":
		session, err := s.loadSession(ctx, userID, req.TripID)
		if err != nil {
			return pathway.FinalizeInput{}, err
		}
		d, ok := pathway.Overlay(session.Edits).Effective(req.ChosenDraftID, session.Drafts)
		if !ok {
			return pathway.FinalizeInput{}, &NotFoundError{Message: "Chosen draft not found"}
		}
		chosen = d
	default:
		return pathway.FinalizeInput{}, &ValidationError{Fields: map[string]string{"chosenDraftId": "A chosen draft is required"}}
	}

	return pathway.FinalizeInput{
		Chosen:  chosen,
		Edited:  req.EditedDraft,
		DateSet: req.SelectedDates,
		Effort:  effort,
		Profile: req.LearnerProfile,
		Trip:    req.Trip,
		Privacy: pathway.PrivacyOptions{
			VenueLinksEnabled:  req.VenueLinksEnabled,
			ShowExactAddresses: req.ShowExactAddresses,
		},
	}, nil
}

// Materialize writes plan into the trip's schedule, replacing earlier
// generated blocks and keeping manual ones.
func (s *PathwayService) Materialize(ctx context.Context, userID uuid.UUID, tripID string, req models.MaterializeRequest) ([]models.ScheduleBlock, error) {
	if tripID == "" {
		return nil, &ValidationError{Fields: map[string]string{"tripId": "Trip id is required"}}
	}
	if err := pathway.ValidatePlan(req.Plan); err != nil {
		var perr *pathway.PlanValidationError
		if errors.As(err, &perr) {
			return nil, &ValidationError{Fields: perr.Fields}
		}
		return nil, err
	}
	blocks, err := s.schedule.ReplaceGenerated(ctx, userID, tripID, func(existing []models.ScheduleBlock) ([]models.ScheduleBlock, error) {
		return s.materializer.Materialize(req.Plan, existing, tripID, req.TripLocation)
	})
	if err != nil {
		return nil, err
	}

	generated := 0
	for _, b := range blocks {
		if b.IsGenerated {
			generated++
		}
	}
	s.notifier.Notify(ctx, userID, fmt.Sprintf("Schedule updated with %d activities", generated), ToastSuccess)
	return blocks, nil
}

// ApplyDraft schedules a draft directly, one block per day, without the
// detailed-plan call.
func (s *PathwayService) ApplyDraft(ctx context.Context, userID uuid.UUID, tripID string, req models.ApplyDraftRequest) ([]models.ScheduleBlock, error) {
	effort, err := validateRound(tripID, req.SelectedDates, req.EffortMode)
	if err != nil {
		return nil, err
	}
	plan, err := pathway.PlanFromDraft(req.Draft, req.SelectedDates, effort, "")
	if err != nil {
		return nil, err
	}
	return s.Materialize(ctx, userID, tripID, models.MaterializeRequest{TripLocation: req.TripLocation, Plan: plan})
}

func (s *PathwayService) ListSchedule(ctx context.Context, userID uuid.UUID, tripID string) ([]models.ScheduleBlock, error) {
	blocks, err := s.schedule.ListByTrip(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []models.ScheduleBlock{}
	}
	return blocks, nil
}

// CreateBlock adds a manual block. Manual blocks survive every
// regeneration.
func (s *PathwayService) CreateBlock(ctx context.Context, userID uuid.UUID, tripID string, req models.CreateBlockRequest) (*models.ScheduleBlock, error) {
	fields := make(map[string]string)
	if _, err := time.Parse(pathway.DateLayout, req.Date); err != nil {
		fields["date"] = "Date must be YYYY-MM-DD"
	}
	if strings.TrimSpace(req.Title) == "" {
		fields["title"] = "Title is required"
	}
	if req.Duration <= 0 {
		fields["duration"] = "Duration must be a positive number of minutes"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	b := &models.ScheduleBlock{
		ID:          uuid.NewString(),
		TripID:      tripID,
		UserID:      userID,
		Date:        req.Date,
		StartTime:   pathway.RebindStartTime(req.Date, req.StartTime),
		Duration:    req.Duration,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    req.Location,
		Notes:       req.Notes,
		IsGenerated: false,
		CreatedAt:   time.Now().UTC(),
		ImageURL:    req.ImageURL,
		ImageAlt:    req.ImageAlt,
		ImageMode:   models.ImageModeNone,
	}
	if req.ImageURL != "" {
		b.ImageMode = models.ImageModeCustom
	}
	if err := s.schedule.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *PathwayService) DeleteBlock(ctx context.Context, userID uuid.UUID, tripID, blockID string) error {
	err := s.schedule.Delete(ctx, userID, tripID, blockID)
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Message: "Schedule block not found"}
	}
	return err
}

// EnqueueApply queues a finalize-and-materialize job. Inputs are checked
// up front so a job never starts from a request that cannot succeed.
func (s *PathwayService) EnqueueApply(ctx context.Context, userID uuid.UUID, req models.FinalizeRequest) (*models.Job, error) {
	in, err := s.finalizeInput(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	if in.Edited != nil {
		if err := pathway.ValidateEditedDraft(*in.Edited, in.DateSet); err != nil {
			return nil, err
		}
	}
	// Pin the resolved draft so the job does not depend on the session.
	req.ChosenDraft = &in.Chosen

	config, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	job := &models.Job{
		UserID:     userID,
		Type:       models.JobTypePathwayApply,
		TripID:     req.TripID,
		ConfigJSON: config,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	if err := s.queue.Push(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to enqueue pathway-apply job")
		_ = s.jobs.UpdateStatus(ctx, job.ID, models.JobStatusFailed)
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

// RunApplyJob executes a queued pathway-apply job: finalize, then write the
// schedule.
func (s *PathwayService) RunApplyJob(ctx context.Context, job *models.Job, progress func(step int, name string)) (*models.ApplyResult, error) {
	var req models.FinalizeRequest
	if err := json.Unmarshal(job.ConfigJSON, &req); err != nil {
		return nil, fmt.Errorf("invalid job config: %w", err)
	}

	progress(2, "Writing the detailed plan")
	plan, err := s.Finalize(ctx, job.UserID, req)
	if err != nil {
		return nil, err
	}

	progress(3, "Updating the schedule")
	blocks, err := s.Materialize(ctx, job.UserID, req.TripID, models.MaterializeRequest{
		TripLocation: req.Trip.BaseLocation,
		Plan:         *plan,
	})
	if err != nil {
		return nil, err
	}
	return &models.ApplyResult{Plan: *plan, Blocks: blocks}, nil
}

// GetJob returns a job owned by userID.
func (s *PathwayService) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "Job not found"}
	}
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, &NotFoundError{Message: "Job not found"}
	}
	return job, nil
}

// validateRound checks the inputs shared by draft, finalize and apply
// requests.
func validateRound(tripID string, dates []string, sel models.EffortSelection) (pathway.EffortMode, error) {
	fields := make(map[string]string)
	if strings.TrimSpace(tripID) == "" {
		fields["tripId"] = "Trip id is required"
	}
	if len(dates) == 0 {
		if len(fields) > 0 {
			return pathway.EffortMode{}, &ValidationError{Fields: fields}
		}
		return pathway.EffortMode{}, pathway.ErrNothingToPlan
	}
	prev := ""
	for _, d := range dates {
		if _, err := time.Parse(pathway.DateLayout, d); err != nil {
			fields["selectedDates"] = fmt.Sprintf("%q is not a YYYY-MM-DD date", d)
			break
		}
		if d <= prev {
			fields["selectedDates"] = "Dates must be ascending and unique"
			break
		}
		prev = d
	}
	effort, err := pathway.ParseEffort(sel)
	if err != nil {
		fields["effortMode"] = err.Error()
	}
	if len(fields) > 0 {
		return pathway.EffortMode{}, &ValidationError{Fields: fields}
	}
	return effort, nil
}
