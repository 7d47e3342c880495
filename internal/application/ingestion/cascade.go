package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/ingestion"
	"github.com/crm/backend/internal/domain/integration"
	"github.com/crm/backend/internal/domain/lead"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Step names one post-create cascade hook
type Step string

const (
	StepAddress         Step = "address"
	StepResponsibles    Step = "responsibles"
	StepProductInterest Step = "product_interest"
	StepFollowUp        Step = "follow_up"
	StepNonPurchaseTag  Step = "non_purchase_tag"
)

// StepStatus is the outcome of one cascade hook
type StepStatus string

const (
	StepDone    StepStatus = "done"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// StepResult records what one cascade hook did
type StepResult struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// CascadeInput is what the hooks see for one freshly created lead
type CascadeInput struct {
	Config *integration.Config
	Lead   *lead.Lead
	Draft  *ingestion.Draft
	Now    time.Time
}

// CascadeRepositories groups the stores written by the cascade
type CascadeRepositories struct {
	Addresses        lead.AddressRepository
	Responsibles     lead.ResponsibleRepository
	FollowUps        lead.FollowUpRepository
	ProductInterests lead.ProductInterestRepository
	NonPurchaseTags  lead.NonPurchaseTagRepository
}

// errSkipped is returned by a hook whose prerequisite is not configured
var errSkipped = errors.New("skipped")

type cascadeHook struct {
	step Step
	run  func(ctx context.Context, in CascadeInput) error
}

// Cascade runs the ordered post-create hooks. Hooks are independent: a failed
// hook is logged and reported, and never stops the others or undoes the lead.
type Cascade struct {
	repos   CascadeRepositories
	hooks   []cascadeHook
	metrics *telemetry.IngestionMetrics
}

// NewCascade creates the cascade with the standard hook order
func NewCascade(repos CascadeRepositories) *Cascade {
	c := &Cascade{repos: repos}
	c.hooks = []cascadeHook{
		{step: StepAddress, run: c.createAddress},
		{step: StepResponsibles, run: c.assignResponsibles},
		{step: StepProductInterest, run: c.linkProduct},
		{step: StepFollowUp, run: c.scheduleFollowUp},
		{step: StepNonPurchaseTag, run: c.tagNonPurchase},
	}
	return c
}

// SetMetrics sets the metrics collector
func (c *Cascade) SetMetrics(m *telemetry.IngestionMetrics) {
	c.metrics = m
}

// Run executes every hook in order and returns one result per hook
func (c *Cascade) Run(ctx context.Context, in CascadeInput) []StepResult {
	if c == nil {
		return nil
	}
	results := make([]StepResult, 0, len(c.hooks))
	for _, h := range c.hooks {
		results = append(results, c.runHook(ctx, h, in))
	}
	return results
}

func (c *Cascade) runHook(ctx context.Context, h cascadeHook, in CascadeInput) (res StepResult) {
	res = StepResult{Step: h.step, Status: StepDone}
	defer func() {
		if p := recover(); p != nil {
			res = c.failed(ctx, h.step, in, fmt.Errorf("panic: %v", p))
		}
	}()

	err := h.run(ctx, in)
	switch {
	case err == nil:
	case errors.Is(err, errSkipped):
		res.Status = StepSkipped
	default:
		res = c.failed(ctx, h.step, in, err)
	}
	return res
}

func (c *Cascade) failed(ctx context.Context, step Step, in CascadeInput, err error) StepResult {
	logger.L(ctx).Warn("Cascade step failed",
		zap.String("step", string(step)),
		zap.String("lead_id", in.Lead.ID.String()),
		zap.Error(err))
	c.metrics.RecordCascadeFailure(ctx, string(step))
	return StepResult{Step: step, Status: StepFailed, Error: err.Error()}
}

func (c *Cascade) createAddress(ctx context.Context, in CascadeInput) error {
	if !in.Draft.HasAddress() {
		return errSkipped
	}
	return c.repos.Addresses.Create(ctx, lead.NewAddressFromFields(in.Lead, in.Draft.Address))
}

func (c *Cascade) assignResponsibles(ctx context.Context, in CascadeInput) error {
	if len(in.Config.DefaultResponsibleIDs) == 0 {
		return errSkipped
	}
	var errs []error
	for _, userID := range in.Config.DefaultResponsibleIDs {
		if err := c.repos.Responsibles.Create(ctx, lead.NewResponsible(in.Lead, userID)); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Cascade) linkProduct(ctx context.Context, in CascadeInput) error {
	if in.Config.DefaultProductID == nil {
		return errSkipped
	}
	return c.repos.ProductInterests.Create(ctx, lead.NewProductInterest(in.Lead, *in.Config.DefaultProductID))
}

func (c *Cascade) scheduleFollowUp(ctx context.Context, in CascadeInput) error {
	responsibleID, ok := in.Config.FirstResponsible()
	if !ok || !in.Config.FollowUpEnabled() {
		return errSkipped
	}
	description := fmt.Sprintf("Retorno automático: lead recebido via %s", in.Config.Name)
	return c.repos.FollowUps.Create(ctx, lead.NewFollowUp(in.Lead, responsibleID, in.Now, in.Config.FollowUpDays, description))
}

func (c *Cascade) tagNonPurchase(ctx context.Context, in CascadeInput) error {
	if in.Config.DefaultNonPurchaseReasonID == nil {
		return errSkipped
	}
	return c.repos.NonPurchaseTags.Create(ctx, lead.NewNonPurchaseTag(in.Lead, *in.Config.DefaultNonPurchaseReasonID))
}
