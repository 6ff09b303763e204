package browser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/relaycrm/relaysync/internal/store"
)

// DefaultAppURL is the platform web application the plans drive.
const DefaultAppURL = "https://app.gohighlevel.com"

// Item is one local-only resource to create through the UI, decomposed
// into ordered declarative steps.
type Item struct {
	Collection string `json:"collection" yaml:"collection"`
	Action     string `json:"action" yaml:"action"`
	LocalID    string `json:"local_id" yaml:"local_id"`
	Name       string `json:"name" yaml:"name"`
	Steps      []Step `json:"steps" yaml:"steps"`
}

// Plan is an ordered automation plan for one tenant.
type Plan struct {
	GeneratedAt    time.Time      `json:"generated_at" yaml:"generated_at"`
	TenantID       string         `json:"tenant_id" yaml:"tenant_id"`
	RemoteTenantID string         `json:"remote_tenant_id" yaml:"remote_tenant_id"`
	Summary        map[string]int `json:"summary" yaml:"summary"`
	Items          []Item         `json:"items" yaml:"items"`
}

// LocalIDs returns the plan's local row IDs for one collection.
func (p *Plan) LocalIDs(collection string) map[string]bool {
	out := make(map[string]bool)
	for _, item := range p.Items {
		if item.Collection == collection {
			out[item.LocalID] = true
		}
	}
	return out
}

// Builder compiles export plans from local rows lacking remote IDs.
type Builder struct {
	store  *store.Store
	appURL string
	logger *slog.Logger
}

// NewBuilder creates a plan builder. appURL falls back to the platform
// default when empty.
func NewBuilder(st *store.Store, appURL string, logger *slog.Logger) *Builder {
	if appURL == "" {
		appURL = DefaultAppURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: st, appURL: appURL, logger: logger}
}

// BuildExportPlan emits one plan item per local-only row of each UI-only
// resource type. Step order within an item is deterministic: it derives
// from the row's fields and its ordered children.
func (b *Builder) BuildExportPlan(tenantID, remoteTenantID string) (*Plan, error) {
	plan := &Plan{
		GeneratedAt:    time.Now().UTC(),
		TenantID:       tenantID,
		RemoteTenantID: remoteTenantID,
		Summary:        make(map[string]int),
	}

	builders := []struct {
		collection string
		build      func(*Plan, string) error
	}{
		{"forms", b.addFormItems},
		{"surveys", b.addSurveyItems},
		{"campaigns", b.addCampaignItems},
		{"funnels", b.addFunnelItems},
		{"workflows", b.addWorkflowItems},
	}
	for _, bb := range builders {
		before := len(plan.Items)
		if err := bb.build(plan, tenantID); err != nil {
			return nil, fmt.Errorf("failed to plan %s: %w", bb.collection, err)
		}
		plan.Summary[bb.collection] = len(plan.Items) - before
	}
	return plan, nil
}

func (b *Builder) addFormItems(plan *Plan, tenantID string) error {
	forms, err := b.store.ListMissingRemoteID(tenantID, store.KindForm)
	if err != nil {
		return err
	}
	for _, form := range forms {
		steps := b.createResourceSteps("form", "/sites/forms", form)
		fields, err := b.store.ListChildren(form.ID, store.KindFormField)
		if err != nil {
			return err
		}
		for i, field := range fields {
			steps = append(steps, b.addChildSteps("field", i, field.Str("label"), field.Str("field_type"))...)
		}
		steps = append(steps, saveSteps("form")...)
		plan.Items = append(plan.Items, Item{
			Collection: "forms",
			Action:     "create_form_with_fields",
			LocalID:    form.ID,
			Name:       form.Name,
			Steps:      steps,
		})
	}
	return nil
}

func (b *Builder) addSurveyItems(plan *Plan, tenantID string) error {
	surveys, err := b.store.ListMissingRemoteID(tenantID, store.KindSurvey)
	if err != nil {
		return err
	}
	for _, survey := range surveys {
		steps := b.createResourceSteps("survey", "/sites/surveys", survey)
		questions, err := b.store.ListChildren(survey.ID, store.KindSurveyQuestion)
		if err != nil {
			return err
		}
		for i, q := range questions {
			steps = append(steps, b.addChildSteps("question", i, q.Str("question_text"), q.Str("question_type"))...)
		}
		steps = append(steps, saveSteps("survey")...)
		plan.Items = append(plan.Items, Item{
			Collection: "surveys",
			Action:     "create_survey_with_questions",
			LocalID:    survey.ID,
			Name:       survey.Name,
			Steps:      steps,
		})
	}
	return nil
}

func (b *Builder) addCampaignItems(plan *Plan, tenantID string) error {
	campaigns, err := b.store.ListMissingRemoteID(tenantID, store.KindCampaign)
	if err != nil {
		return err
	}
	for _, campaign := range campaigns {
		steps := b.createResourceSteps("campaign", "/marketing/campaigns", campaign)
		children, err := b.store.ListChildren(campaign.ID, store.KindCampaignStep)
		if err != nil {
			return err
		}
		for i, child := range children {
			label := child.Str("subject")
			if label == "" {
				label = child.Str("step_type")
			}
			steps = append(steps, b.addChildSteps("step", i, label, child.Str("step_type"))...)
		}
		steps = append(steps, saveSteps("campaign")...)
		plan.Items = append(plan.Items, Item{
			Collection: "campaigns",
			Action:     "create_campaign_with_steps",
			LocalID:    campaign.ID,
			Name:       campaign.Name,
			Steps:      steps,
		})
	}
	return nil
}

func (b *Builder) addFunnelItems(plan *Plan, tenantID string) error {
	funnels, err := b.store.ListMissingRemoteID(tenantID, store.KindFunnel)
	if err != nil {
		return err
	}
	for _, funnel := range funnels {
		steps := b.createResourceSteps("funnel", "/funnels", funnel)
		pages, err := b.store.ListChildren(funnel.ID, store.KindFunnelPage)
		if err != nil {
			return err
		}
		for i, page := range pages {
			steps = append(steps, b.addChildSteps("page", i, page.Name, page.Str("url_slug"))...)
		}
		steps = append(steps, saveSteps("funnel")...)
		plan.Items = append(plan.Items, Item{
			Collection: "funnels",
			Action:     "create_funnel_with_pages",
			LocalID:    funnel.ID,
			Name:       funnel.Name,
			Steps:      steps,
		})
	}
	return nil
}

// addWorkflowItems rebuilds workflows from their audited raw payloads at
// name-and-trigger fidelity. Step-for-step recreation of arbitrary
// workflow graphs through the UI is not reliable; the rebuilt workflow is
// created named and triggered, ready for manual completion.
func (b *Builder) addWorkflowItems(plan *Plan, tenantID string) error {
	workflows, err := b.store.ListMissingRemoteID(tenantID, store.KindWorkflow)
	if err != nil {
		return err
	}
	for _, wf := range workflows {
		trigger := wf.Str("trigger")
		if trigger == "" {
			if raw := b.rawWorkflowTrigger(tenantID, wf); raw != "" {
				trigger = raw
			}
		}

		steps := []Step{
			navigateStep("navigate_workflows", deeplink(b.appURL, "/automation/workflows")),
			findStep("find_create_workflow", "create workflow button or new workflow"),
			waitStep("wait_workflow_editor", 1500*time.Millisecond),
			findStep("find_workflow_name", "workflow name input"),
			typeStep("enter_workflow_name", wf.Name),
		}
		if trigger != "" {
			steps = append(steps,
				findStep("find_add_trigger", "add trigger button"),
				findStep("select_trigger", trigger+" trigger option"),
			)
		}
		steps = append(steps, saveSteps("workflow")...)

		plan.Items = append(plan.Items, Item{
			Collection: "workflows",
			Action:     "create_workflow_stub",
			LocalID:    wf.ID,
			Name:       wf.Name,
			Steps:      steps,
		})
	}
	return nil
}

// rawWorkflowTrigger recovers the trigger from the audited payload of the
// workflow this row was imported from, when one exists.
func (b *Builder) rawWorkflowTrigger(tenantID string, wf *store.Entity) string {
	sourceID := wf.Str("source_remote_id")
	if sourceID == "" {
		return ""
	}
	raw, err := b.store.GetRaw(tenantID, "workflow", sourceID)
	if err != nil || raw == nil {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(raw.Payload, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"trigger", "triggerType", "type"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// createResourceSteps opens the collection page, starts a new resource,
// and names it.
func (b *Builder) createResourceSteps(noun, path string, e *store.Entity) []Step {
	steps := []Step{
		navigateStep("navigate_"+noun+"s", deeplink(b.appURL, path)),
		findStep("find_create_"+noun, fmt.Sprintf("create %s button or new %s", noun, noun)),
		waitStep("wait_"+noun+"_editor", 1500*time.Millisecond),
		findStep("find_"+noun+"_name", noun+" name input"),
		typeStep("enter_"+noun+"_name", e.Name),
	}
	if desc := e.Str("description"); desc != "" {
		steps = append(steps,
			findStep("find_"+noun+"_description", noun+" description field"),
			typeStep("enter_"+noun+"_description", desc),
		)
	}
	return steps
}

// addChildSteps appends one ordered child (field, question, step, page).
func (b *Builder) addChildSteps(noun string, index int, label, kind string) []Step {
	prefix := fmt.Sprintf("%s_%d", noun, index+1)
	steps := []Step{
		findStep(prefix+"_add", "add "+noun+" button"),
	}
	if kind != "" {
		steps = append(steps, findStep(prefix+"_kind", kind+" "+noun+" option"))
	}
	steps = append(steps,
		findStep(prefix+"_label", noun+" label or title input"),
		typeStep(prefix+"_enter", label),
		keyStep(prefix+"_commit", "Enter", 1),
	)
	return steps
}

func saveSteps(noun string) []Step {
	click := clickStep("save_" + noun)
	click.WaitAfter = 1500 * time.Millisecond
	return []Step{
		findStep("find_save_"+noun, "save "+noun+" button"),
		click,
		screenshotStep("verify_"+noun+"_saved", noun+"_saved"),
	}
}
