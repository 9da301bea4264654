package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cvadapt-backend/internal/events"
	"cvadapt-backend/internal/jobpostings"
	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/resumes"
	"cvadapt-backend/internal/shared/metrics"
	"cvadapt-backend/internal/shared/telemetry"
	"cvadapt-backend/internal/slots"
)

// Models selects which model serves each pipeline tier.
type Models struct {
	Classify string
	Batch    string
	Summary  string
}

// Orchestrator runs generation tasks end to end on the worker side. Offers
// run sequentially, the phases inside one offer fan out where the data
// allows it.
type Orchestrator struct {
	Repo           Repo
	Resumes        resumes.Repo
	Generated      resumes.GeneratedRepo
	Postings       *jobpostings.Service
	LLM            llm.Client
	Events         events.Publisher
	Transcripts    *Recorder
	Refunder       *Refunder
	Slots          *slots.Registry
	Models         Models
	TargetLanguage string
}

// offerResult is the per-phase outcome blob stored on the offer row.
type offerResult struct {
	Classification ClassificationStats `json:"classification"`
	Experiences    int                 `json:"experiences"`
	Projects       int                 `json:"projects"`
	Extras         int                 `json:"extras"`
	Modifications  int                 `json:"modifications"`
}

// Run executes one queued task. When msg names an offer, only that offer
// runs (single-offer retry), otherwise every pending offer runs in index
// order. The final task status depends on what survived: cancellation wins,
// then one completed offer is enough to call the task completed.
func (o *Orchestrator) Run(ctx context.Context, taskID, offerID string) error {
	task, err := o.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	// A redelivered message must not reopen a settled task. Single-offer
	// retries arrive with the task already terminal, those pass through.
	if offerID == "" && task.Status != TaskPending && task.Status != TaskRunning {
		telemetry.Warn("generation.task_already_settled", map[string]any{"task": task.ID, "status": task.Status})
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if o.Slots != nil {
		if err := o.Slots.Acquire(task.UserID, task.ID, cancel); err != nil {
			return fmt.Errorf("acquire slot: %w", err)
		}
		defer o.Slots.Release(task.UserID, task.ID)
	}

	metrics.IncTaskStarted()
	telemetry.Info("generation.task_started", map[string]any{"task": task.ID, "mode": task.Mode, "offers": task.TotalOffers})
	if err := o.Repo.UpdateTaskStatus(runCtx, task.ID, TaskRunning, ""); err != nil {
		return err
	}

	source, err := o.Resumes.GetByID(runCtx, task.UserID, task.ResumeID)
	if err != nil {
		o.failTask(ctx, task, fmt.Sprintf("load source resume: %v", err))
		return err
	}

	offers, err := o.Repo.ListOffers(runCtx, task.ID)
	if err != nil {
		o.failTask(ctx, task, fmt.Sprintf("list offers: %v", err))
		return err
	}
	if offerID != "" {
		offers = filterOffer(offers, offerID)
	}

	for _, offer := range offers {
		if offer.Status != OfferPending {
			continue
		}
		if runCtx.Err() != nil {
			break
		}
		if err := o.runOffer(runCtx, task, offer, source); err != nil && IsCancellation(err) {
			break
		}
	}

	// Status writes below use the parent context, the run context may
	// already be cancelled.
	if runCtx.Err() != nil {
		o.sweepCancelled(ctx, task)
		if err := o.Repo.UpdateTaskStatus(ctx, task.ID, TaskCancelled, "cancelled by user"); err != nil {
			return err
		}
		telemetry.Info("generation.task_cancelled", map[string]any{"task": task.ID})
		return nil
	}

	// Recount from storage so a failed retry of one offer cannot fail a
	// task whose other offers already completed.
	completed := 0
	all, err := o.Repo.ListOffers(ctx, task.ID)
	if err != nil {
		return err
	}
	for _, offer := range all {
		if offer.Status == OfferCompleted {
			completed++
		}
	}

	if completed > 0 {
		if err := o.Repo.UpdateTaskStatus(ctx, task.ID, TaskCompleted, ""); err != nil {
			return err
		}
		telemetry.Info("generation.task_completed", map[string]any{"task": task.ID, "completed": completed, "total": task.TotalOffers})
		return nil
	}
	o.failTask(ctx, task, "all offers failed")
	return nil
}

func (o *Orchestrator) failTask(ctx context.Context, task Task, reason string) {
	if err := o.Repo.UpdateTaskStatus(ctx, task.ID, TaskFailed, reason); err != nil {
		telemetry.Error("generation.task_status_update_failed", map[string]any{"task": task.ID, "error": err.Error()})
	}
	telemetry.Error("generation.task_failed", map[string]any{"task": task.ID, "reason": reason})
}

// runOffer drives one offer through the whole pipeline. Failures refund the
// offer and move on, cancellation refunds and propagates.
func (o *Orchestrator) runOffer(ctx context.Context, task Task, offer Offer, source resumes.Resume) error {
	start := time.Now()
	p := &pipeline{
		repo:       o.Repo,
		llm:        o.LLM,
		events:     o.Events,
		transcript: o.Transcripts,
		task:       task,
		offer:      offer,
	}

	if err := o.Repo.UpdateOfferStatus(ctx, offer.ID, OfferExtracting, ""); err != nil {
		return err
	}
	p.publish(ctx, PhaseExtraction, "offer", events.StatusRunning, 0, 0, "")

	generatedID, err := o.adaptOffer(ctx, p, task, offer, source)
	if err != nil {
		if IsCancellation(err) {
			o.finishOffer(ctx, task, offer, OfferCancelled, "cancelled")
			metrics.IncOfferCancelled()
			p.publish(context.WithoutCancel(ctx), PhaseRecompose, "offer", events.StatusCancelled, 0, 0, "")
			return err
		}
		o.finishOffer(ctx, task, offer, OfferFailed, err.Error())
		metrics.IncOfferFailed()
		p.publish(ctx, PhaseRecompose, "offer", events.StatusFailed, 0, 0, err.Error())
		return err
	}

	if err := o.Repo.UpdateOfferStatus(ctx, offer.ID, OfferCompleted, ""); err != nil {
		return err
	}
	if err := o.Repo.IncrementCompletedOffers(ctx, task.ID); err != nil {
		telemetry.Warn("generation.completed_counter_failed", map[string]any{"task": task.ID, "error": err.Error()})
	}
	metrics.IncOfferCompleted()
	metrics.ObserveOfferDurationMs(float64(time.Since(start).Milliseconds()))
	p.publish(ctx, PhaseRecompose, "offer", events.StatusCompleted, 0, 0, "")
	telemetry.Info("generation.offer_completed", map[string]any{
		"task": task.ID, "offer": offer.ID, "generatedResume": generatedID, "durationMs": time.Since(start).Milliseconds(),
	})
	return nil
}

// finishOffer records a terminal offer status and refunds its credits.
func (o *Orchestrator) finishOffer(ctx context.Context, task Task, offer Offer, status, reason string) {
	// Cancellation must still persist state, so detach from the run context.
	ctx = context.WithoutCancel(ctx)
	if err := o.Repo.UpdateOfferStatus(ctx, offer.ID, status, reason); err != nil {
		telemetry.Error("generation.offer_status_update_failed", map[string]any{"offer": offer.ID, "error": err.Error()})
	}
	if o.Refunder != nil {
		if _, err := o.Refunder.RefundOffer(ctx, task, offer); err != nil {
			telemetry.Error("generation.refund_failed", map[string]any{"offer": offer.ID, "error": err.Error()})
		}
	}
}

// sweepCancelled marks every offer that has not reached a terminal status
// as cancelled and refunds each one.
func (o *Orchestrator) sweepCancelled(ctx context.Context, task Task) {
	offers, err := o.Repo.ListOffers(ctx, task.ID)
	if err != nil {
		telemetry.Error("generation.cancel_sweep_failed", map[string]any{"task": task.ID, "error": err.Error()})
		return
	}
	for _, offer := range offers {
		if !offerActive(offer.Status) {
			continue
		}
		o.finishOffer(ctx, task, offer, OfferCancelled, "cancelled")
		metrics.IncOfferCancelled()
	}
}

// adaptOffer runs the pipeline phases for one offer and persists the
// generated resume. Returns the generated resume id.
func (o *Orchestrator) adaptOffer(ctx context.Context, p *pipeline, task Task, offer Offer, source resumes.Resume) (string, error) {
	posting, err := o.extractPosting(ctx, p, offer)
	if err != nil {
		return "", err
	}
	if err := o.Repo.UpdateOfferStatus(ctx, offer.ID, OfferRunning, ""); err != nil {
		return "", err
	}
	doc := source.Content
	lang := o.TargetLanguage
	if lang == "" {
		lang = "francais"
	}

	classification, err := p.runClassification(ctx, o.Models.Classify, doc, posting)
	if err != nil {
		return "", fmt.Errorf("classification: %w", err)
	}
	keptExperiences, keptProjects, stats := applyClassification(doc, classification)

	// First parallel tier on Cache A: experiences, projects, extras.
	cacheA := buildCacheA(posting)
	var sections adaptedSections
	var expMods, projMods, extraMods []resumes.Modification

	// Phases inside a tier fail independently. A failing sibling must not
	// cancel the others, their subtask rows should record real outcomes.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		sections.Experiences, expMods, err = p.runBatchExperiences(ctx, o.Models.Batch, cacheA, keptExperiences, lang)
		return err
	})
	g.Go(func() error {
		var err error
		sections.Projects, projMods, err = p.runBatchProjects(ctx, o.Models.Batch, cacheA, keptProjects, lang)
		return err
	})
	g.Go(func() error {
		var err error
		sections.Extras, extraMods, err = p.runBatchExtras(ctx, o.Models.Batch, cacheA, doc.Extras, lang)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	// Second tier on Cache B: skills and summary read the adapted sections.
	cacheB := buildCacheB(posting, sections.Experiences, sections.Projects)
	var skillMods, summaryMods []resumes.Modification

	var g2 errgroup.Group
	g2.Go(func() error {
		var err error
		sections.Skills, skillMods, err = p.runBatchSkills(ctx, o.Models.Summary, cacheB, doc.Skills, lang)
		return err
	})
	g2.Go(func() error {
		var err error
		sections.Summary, summaryMods, err = p.runBatchSummary(ctx, o.Models.Summary, cacheB, doc, sections.Experiences, posting, lang)
		return err
	})
	if err := g2.Wait(); err != nil {
		return "", err
	}

	languages, langMods, err := p.adaptLanguages(ctx, o.Models.Summary, doc.Languages, posting, lang)
	if err != nil {
		return "", err
	}
	sections.Languages = languages

	sections.Modifications = flattenModifications(expMods, projMods, extraMods, skillMods, summaryMods, langMods)

	generated := resumes.GeneratedResume{
		ID:             uuid.NewString(),
		UserID:         task.UserID,
		SourceResumeID: source.ID,
		OfferID:        offer.ID,
		FileName:       generateFileName(source.FileName, posting.Content.Title),
		Content:        composeDocument(doc, posting, sections),
		Modifications:  sections.Modifications,
		CreatedAt:      time.Now().UTC(),
	}
	snapshot := resumes.Version{
		ID:                uuid.NewString(),
		GeneratedResumeID: generated.ID,
		Version:           0,
		Content:           doc,
		Label:             "source",
		CreatedAt:         generated.CreatedAt,
	}
	if err := o.Generated.Create(ctx, generated, snapshot); err != nil {
		return "", fmt.Errorf("store generated resume: %w", err)
	}

	results, err := json.Marshal(offerResult{
		Classification: stats,
		Experiences:    len(sections.Experiences),
		Projects:       len(sections.Projects),
		Extras:         len(sections.Extras),
		Modifications:  len(sections.Modifications),
	})
	if err != nil {
		return "", err
	}
	if err := o.Repo.SetOfferResult(ctx, offer.ID, generated.ID, results); err != nil {
		telemetry.Warn("generation.offer_result_write_failed", map[string]any{"offer": offer.ID, "error": err.Error()})
	}
	return generated.ID, nil
}

func flattenModifications(groups ...[]resumes.Modification) []resumes.Modification {
	var out []resumes.Modification
	for _, group := range groups {
		out = append(out, group...)
	}
	return out
}

func filterOffer(offers []Offer, offerID string) []Offer {
	for _, offer := range offers {
		if offer.ID == offerID {
			return []Offer{offer}
		}
	}
	return nil
}
