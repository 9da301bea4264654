package generation

import (
	"context"
	"sync"
	"testing"

	"cvadapt-backend/internal/credits"
	"cvadapt-backend/internal/jobpostings"
	"cvadapt-backend/internal/llm"
	"cvadapt-backend/internal/resumes"
	"cvadapt-backend/internal/slots"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	repo         *MemoryRepo
	postings     *jobpostings.MemoryRepo
	generated    *resumes.MemoryGeneratedRepo
	ledger       *credits.MemoryLedger
	client       *scriptedLLM
}

func newTestOrchestrator(t *testing.T, client llm.Client, extraOffers ...Offer) orchestratorFixture {
	t.Helper()
	disableBackoff(t)

	repo := NewMemoryRepo()
	offers := append([]Offer{
		{ID: "offer-1", TaskID: "task-1", OfferIndex: 0, JobPostingID: "posting-1", Status: OfferPending},
	}, extraOffers...)
	task := Task{ID: "task-1", UserID: "user-1", ResumeID: "resume-1", Mode: ModeSingle, Status: TaskPending, CreditCost: 2, TotalOffers: len(offers)}
	if task.TotalOffers > 1 {
		task.Mode = ModeMulti
	}
	if err := repo.CreateTask(context.Background(), task, offers); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	sources := resumes.NewMemoryRepo()
	if err := sources.Create(context.Background(), resumes.Resume{
		ID: "resume-1", UserID: "user-1", FileName: "cv_jean.json", Content: testDocument(),
	}); err != nil {
		t.Fatalf("create resume: %v", err)
	}

	postings := jobpostings.NewMemoryRepo()
	if err := postings.Create(context.Background(), testPosting()); err != nil {
		t.Fatalf("create posting: %v", err)
	}

	generated := resumes.NewMemoryGeneratedRepo()
	ledger := credits.NewMemoryLedger(map[string]int{"user-1": 0})

	scripted, _ := client.(*scriptedLLM)
	return orchestratorFixture{
		orchestrator: &Orchestrator{
			Repo:      repo,
			Resumes:   sources,
			Generated: generated,
			Postings:  &jobpostings.Service{Repo: postings},
			LLM:       client,
			Refunder:  &Refunder{Repo: repo, Ledger: ledger},
			Slots:     slots.NewRegistry(),
			Models:    Models{Classify: "model-classify", Batch: "model-batch", Summary: "model-summary"},
		},
		repo:      repo,
		postings:  postings,
		generated: generated,
		ledger:    ledger,
		client:    scripted,
	}
}

func TestOrchestratorRunCompletesTask(t *testing.T) {
	client := newScriptedLLM()
	fx := newTestOrchestrator(t, client)

	if err := fx.orchestrator.Run(t.Context(), "task-1", ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	task, err := fx.repo.GetTask(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Status != TaskCompleted {
		t.Fatalf("task status = %s, want %s (error: %s)", task.Status, TaskCompleted, task.Error)
	}
	if task.CompletedOffers != 1 {
		t.Fatalf("completed offers = %d, want 1", task.CompletedOffers)
	}

	offer, err := fx.repo.GetOffer(context.Background(), "offer-1")
	if err != nil {
		t.Fatalf("GetOffer: %v", err)
	}
	if offer.Status != OfferCompleted {
		t.Fatalf("offer status = %s, want %s", offer.Status, OfferCompleted)
	}
	if offer.GeneratedResumeID == "" {
		t.Fatalf("offer must reference the generated resume")
	}
	if len(offer.BatchResults) == 0 {
		t.Fatalf("offer must carry batch results")
	}

	stored, err := fx.generated.GetByID(context.Background(), "user-1", offer.GeneratedResumeID)
	if err != nil {
		t.Fatalf("generated resume: %v", err)
	}
	if stored.Content.Header.CurrentTitle != "Backend Engineer" {
		t.Fatalf("generated title = %q", stored.Content.Header.CurrentTitle)
	}
	snapshot, err := fx.generated.GetVersion(context.Background(), offer.GeneratedResumeID, 0)
	if err != nil {
		t.Fatalf("source snapshot: %v", err)
	}
	if snapshot.Label != "source" || snapshot.Content.Header.CurrentTitle != "Developpeur" {
		t.Fatalf("snapshot = %+v", snapshot)
	}

	// Classification, two experiences, one project, extras, skills, summary,
	// languages.
	subtasks, err := fx.repo.ListSubtasks(context.Background(), "offer-1")
	if err != nil {
		t.Fatalf("ListSubtasks: %v", err)
	}
	if len(subtasks) != 8 {
		t.Fatalf("subtasks = %d, want 8", len(subtasks))
	}
	for _, sub := range subtasks {
		if sub.Status != SubtaskCompleted {
			t.Fatalf("subtask %s/%d status = %s", sub.Phase, sub.ItemIndex, sub.Status)
		}
	}

	if got := fx.ledger.Balance("user-1"); got != 0 {
		t.Fatalf("a successful offer must not refund, balance = %d", got)
	}
}

func TestOrchestratorRoutesModelsPerTier(t *testing.T) {
	client := newScriptedLLM()
	fx := newTestOrchestrator(t, client)

	if err := fx.orchestrator.Run(t.Context(), "task-1", ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if reqs := client.requestsFor("cv_classification"); len(reqs) != 1 || reqs[0].Model != "model-classify" {
		t.Fatalf("classification requests = %+v", reqs)
	}
	if reqs := client.requestsFor("adapted_experience"); len(reqs) != 2 || reqs[0].Model != "model-batch" {
		t.Fatalf("experience requests = %d", len(reqs))
	}
	if reqs := client.requestsFor("adapted_summary"); len(reqs) != 1 || reqs[0].Model != "model-summary" {
		t.Fatalf("summary requests = %+v", reqs)
	}
	if reqs := client.requestsFor("skills_review"); len(reqs) != 1 || reqs[0].Model != "model-summary" {
		t.Fatalf("skills requests = %+v", reqs)
	}
}

func TestOrchestratorFailsTaskWhenAllOffersFail(t *testing.T) {
	client := newScriptedLLM()
	client.fail("cv_classification", Permanentf("schema rejected"))
	fx := newTestOrchestrator(t, client)

	if err := fx.orchestrator.Run(t.Context(), "task-1", ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	task, _ := fx.repo.GetTask(context.Background(), "task-1")
	if task.Status != TaskFailed {
		t.Fatalf("task status = %s, want %s", task.Status, TaskFailed)
	}
	if task.Error != "all offers failed" {
		t.Fatalf("task error = %q", task.Error)
	}

	offer, _ := fx.repo.GetOffer(context.Background(), "offer-1")
	if offer.Status != OfferFailed {
		t.Fatalf("offer status = %s, want %s", offer.Status, OfferFailed)
	}
	if !offer.CreditsRefunded {
		t.Fatalf("failed offer must be refunded")
	}
	if got := fx.ledger.Balance("user-1"); got != 2 {
		t.Fatalf("balance = %d, want the per-offer cost back", got)
	}
}

func TestOrchestratorIgnoresSettledTask(t *testing.T) {
	client := newScriptedLLM()
	fx := newTestOrchestrator(t, client)
	if err := fx.repo.UpdateTaskStatus(context.Background(), "task-1", TaskCancelled, "cancelled by user"); err != nil {
		t.Fatalf("settle task: %v", err)
	}
	if err := fx.repo.UpdateOfferStatus(context.Background(), "offer-1", OfferCancelled, "cancelled"); err != nil {
		t.Fatalf("settle offer: %v", err)
	}

	// A redelivered queue message must not reopen the task.
	if err := fx.orchestrator.Run(t.Context(), "task-1", ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	task, _ := fx.repo.GetTask(context.Background(), "task-1")
	if task.Status != TaskCancelled {
		t.Fatalf("task status = %s, want %s", task.Status, TaskCancelled)
	}
	offer, _ := fx.repo.GetOffer(context.Background(), "offer-1")
	if offer.Status != OfferCancelled {
		t.Fatalf("offer status = %s, want %s", offer.Status, OfferCancelled)
	}
	if len(client.requests) != 0 {
		t.Fatalf("settled task must not reach the model, got %d calls", len(client.requests))
	}
}

func TestOrchestratorExtractsStagedPosting(t *testing.T) {
	client := newScriptedLLM()
	fx := newTestOrchestrator(t, client,
		Offer{ID: "offer-2", TaskID: "task-1", OfferIndex: 1, JobPostingID: "posting-2", Status: OfferPending})
	if err := fx.postings.Create(context.Background(), jobpostings.JobPosting{
		ID: "posting-2", UserID: "user-1", SourceHash: "hash-2",
		RawText: "Globex recrute un Backend Engineer. Go, PostgreSQL.",
	}); err != nil {
		t.Fatalf("create posting: %v", err)
	}

	if err := fx.orchestrator.Run(t.Context(), "task-1", ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	offer, _ := fx.repo.GetOffer(context.Background(), "offer-2")
	if offer.Status != OfferCompleted {
		t.Fatalf("offer-2 status = %s, want %s (error: %s)", offer.Status, OfferCompleted, offer.Error)
	}
	if offer.JobTitle != "Backend Engineer" {
		t.Fatalf("offer-2 title = %q, want the extracted title", offer.JobTitle)
	}

	posting, err := fx.postings.GetByID(context.Background(), "posting-2")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if posting.Title != "Backend Engineer" || posting.Content.Company != "Globex" {
		t.Fatalf("posting not updated: title=%q company=%q", posting.Title, posting.Content.Company)
	}

	countExtractions := func(offerID string) int {
		subtasks, err := fx.repo.ListSubtasks(context.Background(), offerID)
		if err != nil {
			t.Fatalf("ListSubtasks: %v", err)
		}
		n := 0
		for _, sub := range subtasks {
			if sub.Phase == PhaseExtraction {
				if sub.Status != SubtaskCompleted {
					t.Fatalf("extraction subtask status = %s", sub.Status)
				}
				n++
			}
		}
		return n
	}
	if got := countExtractions("offer-2"); got != 1 {
		t.Fatalf("offer-2 extraction subtasks = %d, want 1", got)
	}
	// offer-1's posting was already extracted, the phase must be skipped.
	if got := countExtractions("offer-1"); got != 0 {
		t.Fatalf("offer-1 extraction subtasks = %d, want 0", got)
	}
}

func TestOrchestratorFailsOfferWhenExtrasFail(t *testing.T) {
	client := newScriptedLLM()
	client.fail("adapted_extras", Permanentf("schema rejected"))
	fx := newTestOrchestrator(t, client)

	if err := fx.orchestrator.Run(t.Context(), "task-1", ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	task, _ := fx.repo.GetTask(context.Background(), "task-1")
	if task.Status != TaskFailed {
		t.Fatalf("task status = %s, want %s", task.Status, TaskFailed)
	}
	offer, _ := fx.repo.GetOffer(context.Background(), "offer-1")
	if offer.Status != OfferFailed {
		t.Fatalf("offer status = %s, want %s", offer.Status, OfferFailed)
	}
	if !offer.CreditsRefunded {
		t.Fatalf("failed offer must be refunded")
	}
	if got := fx.ledger.Balance("user-1"); got != 2 {
		t.Fatalf("balance = %d, want the per-offer cost back", got)
	}

	// The sibling phases of the tier must finish with their own outcomes.
	subtasks, err := fx.repo.ListSubtasks(context.Background(), "offer-1")
	if err != nil {
		t.Fatalf("ListSubtasks: %v", err)
	}
	for _, sub := range subtasks {
		switch sub.Phase {
		case PhaseExperiences, PhaseProjects:
			if sub.Status != SubtaskCompleted {
				t.Fatalf("subtask %s/%d status = %s (error: %s)", sub.Phase, sub.ItemIndex, sub.Status, sub.Error)
			}
		case PhaseExtras:
			if sub.Status != SubtaskFailed {
				t.Fatalf("extras subtask status = %s, want %s", sub.Status, SubtaskFailed)
			}
		}
	}
}

func TestOrchestratorIsolatesOfferFailure(t *testing.T) {
	client := newScriptedLLM()
	client.failWhen("cv_classification", "Data Engineer", Permanentf("schema rejected"))
	fx := newTestOrchestrator(t, client,
		Offer{ID: "offer-2", TaskID: "task-1", OfferIndex: 1, JobPostingID: "posting-2", Status: OfferPending})

	other := testPosting()
	other.ID = "posting-2"
	other.Title = "Data Engineer"
	other.Content.Title = "Data Engineer"
	if err := fx.postings.Create(context.Background(), other); err != nil {
		t.Fatalf("create posting: %v", err)
	}

	if err := fx.orchestrator.Run(t.Context(), "task-1", ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	task, _ := fx.repo.GetTask(context.Background(), "task-1")
	if task.Status != TaskCompleted {
		t.Fatalf("task status = %s, want %s (error: %s)", task.Status, TaskCompleted, task.Error)
	}

	first, _ := fx.repo.GetOffer(context.Background(), "offer-1")
	if first.Status != OfferCompleted || first.CreditsRefunded {
		t.Fatalf("offer-1 = %s refunded=%v, want completed without refund", first.Status, first.CreditsRefunded)
	}
	second, _ := fx.repo.GetOffer(context.Background(), "offer-2")
	if second.Status != OfferFailed {
		t.Fatalf("offer-2 status = %s, want %s", second.Status, OfferFailed)
	}
	if !second.CreditsRefunded {
		t.Fatalf("failed offer must be refunded")
	}
	if got := fx.ledger.Balance("user-1"); got != 2 {
		t.Fatalf("balance = %d, want one per-offer refund", got)
	}
}

func TestOrchestratorRetryFailureKeepsCompletedTask(t *testing.T) {
	client := newScriptedLLM()
	client.fail("cv_classification", Permanentf("schema rejected"))
	fx := newTestOrchestrator(t, client,
		Offer{ID: "offer-2", TaskID: "task-1", OfferIndex: 1, JobPostingID: "posting-1", Status: OfferPending})
	if err := fx.repo.UpdateTaskStatus(context.Background(), "task-1", TaskCompleted, ""); err != nil {
		t.Fatalf("settle task: %v", err)
	}
	if err := fx.repo.UpdateOfferStatus(context.Background(), "offer-1", OfferCompleted, ""); err != nil {
		t.Fatalf("complete offer: %v", err)
	}

	if err := fx.orchestrator.Run(t.Context(), "task-1", "offer-2"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The failed retry must not drag down a task with completed offers.
	task, _ := fx.repo.GetTask(context.Background(), "task-1")
	if task.Status != TaskCompleted {
		t.Fatalf("task status = %s, want %s (error: %s)", task.Status, TaskCompleted, task.Error)
	}
	retried, _ := fx.repo.GetOffer(context.Background(), "offer-2")
	if retried.Status != OfferFailed || !retried.CreditsRefunded {
		t.Fatalf("offer-2 = %s refunded=%v, want failed with refund", retried.Status, retried.CreditsRefunded)
	}
}

// cancellingLLM cancels the task through the slot registry during the first
// call, the way a user cancel request lands mid pipeline.
type cancellingLLM struct {
	*scriptedLLM
	once   sync.Once
	cancel func()
}

func (c *cancellingLLM) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	out, err := c.scriptedLLM.Complete(ctx, req)
	c.once.Do(c.cancel)
	return out, err
}

func TestOrchestratorCancelMidRun(t *testing.T) {
	client := &cancellingLLM{scriptedLLM: newScriptedLLM()}
	fx := newTestOrchestrator(t, client)
	client.cancel = func() { fx.orchestrator.Slots.Cancel("task-1") }

	if err := fx.orchestrator.Run(t.Context(), "task-1", ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	task, _ := fx.repo.GetTask(context.Background(), "task-1")
	if task.Status != TaskCancelled {
		t.Fatalf("task status = %s, want %s", task.Status, TaskCancelled)
	}
	offer, _ := fx.repo.GetOffer(context.Background(), "offer-1")
	if offer.Status != OfferCancelled {
		t.Fatalf("offer status = %s, want %s", offer.Status, OfferCancelled)
	}
	if !offer.CreditsRefunded {
		t.Fatalf("cancelled offer must be refunded")
	}
	if got := fx.ledger.Balance("user-1"); got != 2 {
		t.Fatalf("balance = %d, want 2", got)
	}
}

func TestOrchestratorCancelSweepLeavesCompletedOffer(t *testing.T) {
	client := &cancellingLLM{scriptedLLM: newScriptedLLM()}
	fx := newTestOrchestrator(t, client,
		Offer{ID: "offer-2", TaskID: "task-1", OfferIndex: 1, JobPostingID: "posting-1", Status: OfferCompleted},
		Offer{ID: "offer-3", TaskID: "task-1", OfferIndex: 2, JobPostingID: "posting-1", Status: OfferPending})
	client.cancel = func() { fx.orchestrator.Slots.Cancel("task-1") }

	if err := fx.orchestrator.Run(t.Context(), "task-1", ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	task, _ := fx.repo.GetTask(context.Background(), "task-1")
	if task.Status != TaskCancelled {
		t.Fatalf("task status = %s, want %s", task.Status, TaskCancelled)
	}

	// The sweep settles the interrupted and the never-started offers but
	// must leave the completed one alone.
	done, _ := fx.repo.GetOffer(context.Background(), "offer-2")
	if done.Status != OfferCompleted || done.CreditsRefunded {
		t.Fatalf("offer-2 = %s refunded=%v, want completed without refund", done.Status, done.CreditsRefunded)
	}
	for _, id := range []string{"offer-1", "offer-3"} {
		offer, _ := fx.repo.GetOffer(context.Background(), id)
		if offer.Status != OfferCancelled {
			t.Fatalf("%s status = %s, want %s", id, offer.Status, OfferCancelled)
		}
		if !offer.CreditsRefunded {
			t.Fatalf("%s must be refunded", id)
		}
	}
	if got := fx.ledger.Balance("user-1"); got != 4 {
		t.Fatalf("balance = %d, want two per-offer refunds", got)
	}
}

func TestOrchestratorSingleOfferRetryFilter(t *testing.T) {
	client := newScriptedLLM()
	fx := newTestOrchestrator(t, client,
		Offer{ID: "offer-2", TaskID: "task-1", OfferIndex: 1, JobPostingID: "posting-1", Status: OfferPending})

	// A retry message naming offer-2 must leave offer-1 alone.
	if err := fx.orchestrator.Run(t.Context(), "task-1", "offer-2"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	retried, _ := fx.repo.GetOffer(context.Background(), "offer-2")
	if retried.Status != OfferCompleted {
		t.Fatalf("offer-2 status = %s, want %s", retried.Status, OfferCompleted)
	}
	untouched, _ := fx.repo.GetOffer(context.Background(), "offer-1")
	if untouched.Status != OfferPending {
		t.Fatalf("offer-1 status = %s, want %s", untouched.Status, OfferPending)
	}
	task, _ := fx.repo.GetTask(context.Background(), "task-1")
	if task.Status != TaskCompleted {
		t.Fatalf("task status = %s, want %s", task.Status, TaskCompleted)
	}
}
