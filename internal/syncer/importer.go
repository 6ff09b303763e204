package syncer

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/relaycrm/relaysync/internal/remote"
	"github.com/relaycrm/relaysync/internal/store"
)

// Importer maps remote payloads into local entities. Every imported payload
// is also written to the raw audit table before mapping so the original
// shape survives schema changes.
type Importer struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewImporter(st *store.Store, logger *slog.Logger) *Importer {
	return &Importer{store: st, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (im *Importer) saveRaw(tenantID, kind string, rec remote.Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := im.store.UpsertRaw(tenantID, kind, rec.ID(), payload); err != nil {
		im.logger.Warn("raw payload upsert failed", "kind", kind, "remote_id", rec.ID(), "error", err)
	}
}

// upsert matches the incoming entity by remote ID first, then by the given
// fallback lookup, and creates a new row when neither finds anything. The
// returned bool reports whether a row was created.
func (im *Importer) upsert(e *store.Entity, fallback func() (*store.Entity, error)) (*store.Entity, bool, error) {
	existing, err := im.store.GetByRemoteID(e.TenantID, e.Kind, e.RemoteID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil && fallback != nil {
		existing, err = fallback()
		if err != nil {
			return nil, false, err
		}
	}

	now := im.now()
	if existing != nil {
		existing.Name = e.Name
		existing.Position = e.Position
		if e.ParentID != "" {
			existing.ParentID = e.ParentID
		}
		if existing.RemoteID == "" {
			existing.RemoteID = e.RemoteID
		}
		if e.RemoteTenantID != "" {
			existing.RemoteTenantID = e.RemoteTenantID
		}
		if existing.Fields == nil {
			existing.Fields = map[string]any{}
		}
		for k, v := range e.Fields {
			existing.Fields[k] = v
		}
		existing.LastSyncedAt = &now
		if err := im.store.Update(existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	e.LastSyncedAt = &now
	if err := im.store.Insert(e); err != nil {
		return nil, false, err
	}
	return e, true, nil
}

func (im *Importer) count(result *SyncResult, created bool) {
	if created {
		result.Created++
	} else {
		result.Updated++
	}
}

// ImportTags upserts tags by remote ID with a name fallback so tags created
// locally before the first sync adopt the remote ID instead of duplicating.
func (im *Importer) ImportTags(tenantID string, recs []remote.Record) SyncResult {
	var result SyncResult
	for _, rec := range recs {
		name := rec.Str("name")
		if name == "" {
			result.Skipped++
			continue
		}
		im.saveRaw(tenantID, store.KindTag, rec)

		_, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindTag,
			Name:     name,
			RemoteID: rec.ID(),
		}, func() (*store.Entity, error) {
			return im.store.FindByName(tenantID, store.KindTag, name)
		})
		if err != nil {
			result.errorf("tag %q: %v", name, err)
			continue
		}
		im.count(&result, created)
	}
	return result
}

func (im *Importer) ImportCustomFields(tenantID string, recs []remote.Record) SyncResult {
	var result SyncResult
	for _, rec := range recs {
		name := rec.Str("name")
		if name == "" {
			result.Skipped++
			continue
		}
		im.saveRaw(tenantID, store.KindCustomField, rec)

		fieldKey := rec.Str("fieldKey", "field_key")
		_, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindCustomField,
			Name:     name,
			RemoteID: rec.ID(),
			Fields: map[string]any{
				"field_key": fieldKey,
				"data_type": strings.ToLower(rec.Str("dataType", "data_type")),
			},
		}, func() (*store.Entity, error) {
			return im.store.FindByField(tenantID, store.KindCustomField, "field_key", fieldKey)
		})
		if err != nil {
			result.errorf("custom field %q: %v", name, err)
			continue
		}
		im.count(&result, created)
	}
	return result
}

func (im *Importer) ImportCustomValues(tenantID string, recs []remote.Record) SyncResult {
	var result SyncResult
	for _, rec := range recs {
		name := rec.Str("name")
		if name == "" {
			result.Skipped++
			continue
		}
		im.saveRaw(tenantID, store.KindCustomValue, rec)

		_, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindCustomValue,
			Name:     name,
			RemoteID: rec.ID(),
			Fields:   map[string]any{"value": rec.Str("value")},
		}, func() (*store.Entity, error) {
			return im.store.FindByName(tenantID, store.KindCustomValue, name)
		})
		if err != nil {
			result.errorf("custom value %q: %v", name, err)
			continue
		}
		im.count(&result, created)
	}
	return result
}

// ImportPipelines upserts pipelines and their stages. Stages are matched to
// existing rows by remote ID, then by name within the pipeline, and land at
// the position the remote listing gives them. The returned map translates
// remote stage IDs to local stage IDs for opportunity imports.
func (im *Importer) ImportPipelines(tenantID string, recs []remote.Record) (SyncResult, map[string]string) {
	var result SyncResult
	stageMap := make(map[string]string)

	for _, rec := range recs {
		name := rec.Str("name")
		if name == "" {
			result.Skipped++
			continue
		}
		im.saveRaw(tenantID, store.KindPipeline, rec)

		pipeline, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindPipeline,
			Name:     name,
			RemoteID: rec.ID(),
		}, func() (*store.Entity, error) {
			return im.store.FindByName(tenantID, store.KindPipeline, name)
		})
		if err != nil {
			result.errorf("pipeline %q: %v", name, err)
			continue
		}
		im.count(&result, created)

		for i, stageRec := range rec.List("stages") {
			stageName := stageRec.Str("name")
			im.saveRaw(tenantID, store.KindPipelineStage, stageRec)

			stage, _, err := im.upsert(&store.Entity{
				TenantID: tenantID,
				Kind:     store.KindPipelineStage,
				ParentID: pipeline.ID,
				Position: i,
				Name:     stageName,
				RemoteID: stageRec.ID(),
			}, func() (*store.Entity, error) {
				children, err := im.store.ListChildren(pipeline.ID, store.KindPipelineStage)
				if err != nil {
					return nil, err
				}
				for _, c := range children {
					if c.Name == stageName {
						return c, nil
					}
				}
				return nil, nil
			})
			if err != nil {
				result.errorf("pipeline %q stage %q: %v", name, stageName, err)
				continue
			}
			if id := stageRec.ID(); id != "" {
				stageMap[id] = stage.ID
			}
		}
	}
	return result, stageMap
}

// contactFields flattens the remote contact payload into the local field
// bag. Tags ride along as a name list since tags are matched by name.
func contactFields(rec remote.Record) map[string]any {
	fields := map[string]any{
		"first_name":  rec.Str("firstName", "first_name"),
		"last_name":   rec.Str("lastName", "last_name"),
		"email":       rec.Str("email"),
		"phone":       rec.Str("phone"),
		"company":     rec.Str("companyName", "company"),
		"address":     rec.Str("address1", "address"),
		"city":        rec.Str("city"),
		"state":       rec.Str("state"),
		"postal_code": rec.Str("postalCode", "postal_code"),
		"country":     rec.Str("country"),
		"source":      rec.Str("source"),
	}
	var tags []any
	if raw, ok := rec["tags"].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok && s != "" {
				tags = append(tags, s)
			}
		}
	}
	if len(tags) > 0 {
		fields["tags"] = tags
	}
	if cf, ok := rec["customFields"]; ok {
		fields["custom_fields"] = cf
	}
	return fields
}

func contactName(rec remote.Record) string {
	if n := rec.Str("contactName", "name"); n != "" {
		return n
	}
	full := strings.TrimSpace(rec.Str("firstName", "first_name") + " " + rec.Str("lastName", "last_name"))
	if full != "" {
		return full
	}
	return rec.Str("email")
}

// ImportContacts upserts contacts by remote ID with an email fallback.
// Returns a map from remote contact IDs to local IDs for dependent imports.
func (im *Importer) ImportContacts(tenantID string, recs []remote.Record) (SyncResult, map[string]string) {
	var result SyncResult
	contactMap := make(map[string]string)

	for _, rec := range recs {
		im.saveRaw(tenantID, store.KindContact, rec)
		name := contactName(rec)
		if name == "" {
			result.Skipped++
			continue
		}
		fields := contactFields(rec)
		email, _ := fields["email"].(string)

		contact, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindContact,
			Name:     name,
			RemoteID: rec.ID(),
			Fields:   fields,
		}, func() (*store.Entity, error) {
			return im.store.FindByField(tenantID, store.KindContact, "email", email)
		})
		if err != nil {
			result.errorf("contact %q: %v", name, err)
			continue
		}
		im.count(&result, created)
		if id := rec.ID(); id != "" {
			contactMap[id] = contact.ID
		}
	}
	return result, contactMap
}

// ImportOpportunities upserts one pipeline's opportunities, resolving stage
// and contact references through the maps built by earlier phases.
func (im *Importer) ImportOpportunities(tenantID, pipelineRemoteID string, recs []remote.Record, stageMap, contactMap map[string]string) SyncResult {
	var result SyncResult

	pipeline, err := im.store.GetByRemoteID(tenantID, store.KindPipeline, pipelineRemoteID)
	if err != nil {
		result.errorf("opportunities: %v", err)
		return result
	}
	if pipeline == nil {
		// Duplicate logical pipelines can list under a different remote ID.
		// Recover the local pipeline through any mapped stage in the batch.
		for _, rec := range recs {
			stageLocal := stageMap[rec.Str("pipelineStageId")]
			if stageLocal == "" {
				continue
			}
			if p := im.pipelineOfStage(tenantID, stageLocal); p != nil {
				pipeline = p
				break
			}
		}
	}
	if pipeline == nil {
		result.errorf("pipeline %s not found locally", pipelineRemoteID)
		return result
	}

	for _, rec := range recs {
		name := rec.Str("name", "title")
		im.saveRaw(tenantID, store.KindOpportunity, rec)

		fields := map[string]any{
			"status": rec.Str("status"),
		}
		if v, ok := rec.Int("monetaryValue"); ok {
			fields["monetary_value"] = v
		}
		if stageLocal := stageMap[rec.Str("pipelineStageId")]; stageLocal != "" {
			fields["stage_id"] = stageLocal
		}
		if contactLocal := contactMap[rec.Str("contactId")]; contactLocal != "" {
			fields["contact_id"] = contactLocal
		}

		_, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindOpportunity,
			ParentID: pipeline.ID,
			Name:     name,
			RemoteID: rec.ID(),
			Fields:   fields,
		}, nil)
		if err != nil {
			result.errorf("opportunity %q: %v", name, err)
			continue
		}
		im.count(&result, created)
	}
	return result
}

func (im *Importer) pipelineOfStage(tenantID, stageLocalID string) *store.Entity {
	stages, err := im.store.ListKind(tenantID, store.KindPipelineStage)
	if err != nil {
		return nil
	}
	for _, stage := range stages {
		if stage.ID != stageLocalID || stage.ParentID == "" {
			continue
		}
		pipelines, err := im.store.ListKind(tenantID, store.KindPipeline)
		if err != nil {
			return nil
		}
		for _, p := range pipelines {
			if p.ID == stage.ParentID {
				return p
			}
		}
	}
	return nil
}

// ImportNotes upserts a contact's notes.
func (im *Importer) ImportNotes(tenantID string, contact *store.Entity, recs []remote.Record) SyncResult {
	var result SyncResult
	for _, rec := range recs {
		im.saveRaw(tenantID, store.KindNote, rec)
		body := rec.Str("body")

		_, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindNote,
			ParentID: contact.ID,
			Name:     noteTitle(body),
			RemoteID: rec.ID(),
			Fields:   map[string]any{"body": body},
		}, nil)
		if err != nil {
			result.errorf("note for contact %q: %v", contact.Name, err)
			continue
		}
		im.count(&result, created)
	}
	return result
}

func noteTitle(body string) string {
	line := strings.TrimSpace(body)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > 80 {
		line = line[:80]
	}
	if line == "" {
		return "(empty note)"
	}
	return line
}

// ImportTasks upserts a contact's tasks.
func (im *Importer) ImportTasks(tenantID string, contact *store.Entity, recs []remote.Record) SyncResult {
	var result SyncResult
	for _, rec := range recs {
		im.saveRaw(tenantID, store.KindTask, rec)
		title := rec.Str("title", "name")
		if title == "" {
			result.Skipped++
			continue
		}

		_, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindTask,
			ParentID: contact.ID,
			Name:     title,
			RemoteID: rec.ID(),
			Fields: map[string]any{
				"body":      rec.Str("body", "description"),
				"due_date":  rec.Str("dueDate", "due_date"),
				"completed": rec.Bool("completed"),
			},
		}, nil)
		if err != nil {
			result.errorf("task %q: %v", title, err)
			continue
		}
		im.count(&result, created)
	}
	return result
}

// ImportConversations upserts conversations and nests their messages.
// Messages keep the remote message ID; the provider ID column stays empty
// until a locally authored message is pushed out.
func (im *Importer) ImportConversations(tenantID string, recs []remote.Record, messages func(conversationID string) ([]remote.Record, error), contactMap map[string]string) SyncResult {
	var result SyncResult
	for _, rec := range recs {
		im.saveRaw(tenantID, store.KindConversation, rec)

		fields := map[string]any{
			"type":         rec.Str("type"),
			"last_message": rec.Str("lastMessageBody", "last_message"),
		}
		if contactLocal := contactMap[rec.Str("contactId")]; contactLocal != "" {
			fields["contact_id"] = contactLocal
		}
		name := rec.Str("fullName", "contactName")
		if name == "" {
			name = "conversation " + rec.ID()
		}

		conv, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindConversation,
			Name:     name,
			RemoteID: rec.ID(),
			Fields:   fields,
		}, nil)
		if err != nil {
			result.errorf("conversation %s: %v", rec.ID(), err)
			continue
		}
		im.count(&result, created)

		if messages == nil {
			continue
		}
		msgs, err := messages(rec.ID())
		if err != nil {
			result.errorf("messages for conversation %s: %v", rec.ID(), err)
			continue
		}
		for i, msg := range msgs {
			im.saveRaw(tenantID, store.KindMessage, msg)
			_, mcreated, err := im.upsert(&store.Entity{
				TenantID: tenantID,
				Kind:     store.KindMessage,
				ParentID: conv.ID,
				Position: i,
				Name:     msg.Str("type"),
				RemoteID: msg.ID(),
				Fields: map[string]any{
					"body":      msg.Str("body"),
					"direction": msg.Str("direction"),
					"status":    msg.Str("status"),
				},
			}, nil)
			if err != nil {
				result.errorf("message %s: %v", msg.ID(), err)
				continue
			}
			im.count(&result, mcreated)
		}
	}
	return result
}

// ImportCalendars upserts calendars and their appointments.
func (im *Importer) ImportCalendars(tenantID string, recs []remote.Record, appointments func(calendarID string) ([]remote.Record, error), contactMap map[string]string) SyncResult {
	var result SyncResult
	for _, rec := range recs {
		name := rec.Str("name")
		if name == "" {
			result.Skipped++
			continue
		}
		im.saveRaw(tenantID, store.KindCalendar, rec)

		cal, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindCalendar,
			Name:     name,
			RemoteID: rec.ID(),
			Fields:   map[string]any{"event_type": rec.Str("eventType", "calendarType")},
		}, func() (*store.Entity, error) {
			return im.store.FindByName(tenantID, store.KindCalendar, name)
		})
		if err != nil {
			result.errorf("calendar %q: %v", name, err)
			continue
		}
		im.count(&result, created)

		if appointments == nil {
			continue
		}
		appts, err := appointments(rec.ID())
		if err != nil {
			result.errorf("appointments for calendar %q: %v", name, err)
			continue
		}
		for _, appt := range appts {
			im.saveRaw(tenantID, store.KindAppointment, appt)
			fields := map[string]any{
				"start_time": appt.Str("startTime", "start_time"),
				"end_time":   appt.Str("endTime", "end_time"),
				"status":     appt.Str("appointmentStatus", "status"),
			}
			if contactLocal := contactMap[appt.Str("contactId")]; contactLocal != "" {
				fields["contact_id"] = contactLocal
			}
			_, acreated, err := im.upsert(&store.Entity{
				TenantID: tenantID,
				Kind:     store.KindAppointment,
				ParentID: cal.ID,
				Name:     appt.Str("title", "name"),
				RemoteID: appt.ID(),
				Fields:   fields,
			}, nil)
			if err != nil {
				result.errorf("appointment in calendar %q: %v", name, err)
				continue
			}
			im.count(&result, acreated)
		}
	}
	return result
}

// ImportForms upserts forms, their field definitions by position, and their
// submissions. Submissions are deduplicated by the remote submission ID and
// never updated after first insert.
func (im *Importer) ImportForms(tenantID string, recs []remote.Record, submissions func(formID string) ([]remote.Record, error)) SyncResult {
	var result SyncResult
	for _, rec := range recs {
		name := rec.Str("name")
		if name == "" {
			result.Skipped++
			continue
		}
		im.saveRaw(tenantID, store.KindForm, rec)

		form, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindForm,
			Name:     name,
			RemoteID: rec.ID(),
			Fields:   map[string]any{"source_remote_id": rec.ID()},
		}, func() (*store.Entity, error) {
			return im.store.FindByName(tenantID, store.KindForm, name)
		})
		if err != nil {
			result.errorf("form %q: %v", name, err)
			continue
		}
		im.count(&result, created)

		im.importChildDefs(tenantID, form, store.KindFormField, childRecords(rec, "fields", "formFields"),
			[]string{"label", "name", "placeholder"}, &result)

		if submissions == nil {
			continue
		}
		subs, err := submissions(rec.ID())
		if err != nil {
			result.errorf("submissions for form %q: %v", name, err)
			continue
		}
		im.importSubmissions(tenantID, form, store.KindFormSubmission, subs, &result)
	}
	return result
}

// ImportSurveys mirrors ImportForms for surveys and their questions.
func (im *Importer) ImportSurveys(tenantID string, recs []remote.Record, submissions func(surveyID string) ([]remote.Record, error)) SyncResult {
	var result SyncResult
	for _, rec := range recs {
		name := rec.Str("name")
		if name == "" {
			result.Skipped++
			continue
		}
		im.saveRaw(tenantID, store.KindSurvey, rec)

		survey, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindSurvey,
			Name:     name,
			RemoteID: rec.ID(),
			Fields:   map[string]any{"source_remote_id": rec.ID()},
		}, func() (*store.Entity, error) {
			return im.store.FindByName(tenantID, store.KindSurvey, name)
		})
		if err != nil {
			result.errorf("survey %q: %v", name, err)
			continue
		}
		im.count(&result, created)

		im.importChildDefs(tenantID, survey, store.KindSurveyQuestion, childRecords(rec, "questions", "surveyQuestions"),
			[]string{"question", "questionText", "label"}, &result)

		if submissions == nil {
			continue
		}
		subs, err := submissions(rec.ID())
		if err != nil {
			result.errorf("submissions for survey %q: %v", name, err)
			continue
		}
		im.importSubmissions(tenantID, survey, store.KindSurveySubmission, subs, &result)
	}
	return result
}

func childRecords(rec remote.Record, keys ...string) []remote.Record {
	for _, key := range keys {
		if children := rec.List(key); len(children) > 0 {
			return children
		}
	}
	return nil
}

func (im *Importer) importChildDefs(tenantID string, parent *store.Entity, kind string, children []remote.Record, nameKeys []string, result *SyncResult) {
	for i, child := range children {
		name := child.Str(nameKeys...)
		if name == "" {
			continue
		}
		fields := map[string]any{}
		if t := child.Str("type", "dataType"); t != "" {
			fields["type"] = t
		}
		_, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     kind,
			ParentID: parent.ID,
			Position: i,
			Name:     name,
			RemoteID: child.ID(),
			Fields:   fields,
		}, func() (*store.Entity, error) {
			siblings, err := im.store.ListChildren(parent.ID, kind)
			if err != nil {
				return nil, err
			}
			for _, s := range siblings {
				if s.Name == name {
					return s, nil
				}
			}
			return nil, nil
		})
		if err != nil {
			result.errorf("%s %q: %v", kind, name, err)
			continue
		}
		im.count(result, created)
	}
}

func (im *Importer) importSubmissions(tenantID string, parent *store.Entity, kind string, subs []remote.Record, result *SyncResult) {
	for _, sub := range subs {
		im.saveRaw(tenantID, kind, sub)
		id := sub.ID()
		if id == "" {
			// Submissions without an ID fall back to their timestamp so
			// re-imports stay idempotent.
			id = sub.Str("createdAt", "created_at", "timestamp")
		}
		if id == "" {
			result.Skipped++
			continue
		}

		existing, err := im.store.GetByRemoteID(tenantID, kind, id)
		if err != nil {
			result.errorf("%s %s: %v", kind, id, err)
			continue
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		now := im.now()
		entity := &store.Entity{
			TenantID:     tenantID,
			Kind:         kind,
			ParentID:     parent.ID,
			Name:         sub.Str("contactName", "email", "name"),
			RemoteID:     id,
			Fields:       map[string]any{"submitted_at": sub.Str("createdAt", "created_at")},
			LastSyncedAt: &now,
		}
		if others, ok := sub["others"]; ok {
			entity.Fields["answers"] = others
		}
		if err := im.store.Insert(entity); err != nil {
			result.errorf("%s %s: %v", kind, id, err)
			continue
		}
		result.Created++
	}
}

// ImportCampaigns upserts campaigns by remote ID with a name fallback.
func (im *Importer) ImportCampaigns(tenantID string, recs []remote.Record) SyncResult {
	var result SyncResult
	for _, rec := range recs {
		name := rec.Str("name")
		if name == "" {
			result.Skipped++
			continue
		}
		im.saveRaw(tenantID, store.KindCampaign, rec)

		_, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindCampaign,
			Name:     name,
			RemoteID: rec.ID(),
			Fields: map[string]any{
				"status":           rec.Str("status"),
				"source_remote_id": rec.ID(),
			},
		}, func() (*store.Entity, error) {
			return im.store.FindByName(tenantID, store.KindCampaign, name)
		})
		if err != nil {
			result.errorf("campaign %q: %v", name, err)
			continue
		}
		im.count(&result, created)
	}
	return result
}

// ImportFunnels upserts funnels and their pages by position.
func (im *Importer) ImportFunnels(tenantID string, recs []remote.Record, pages func(funnelID string) ([]remote.Record, error)) SyncResult {
	var result SyncResult
	for _, rec := range recs {
		name := rec.Str("name")
		if name == "" {
			result.Skipped++
			continue
		}
		im.saveRaw(tenantID, store.KindFunnel, rec)

		funnel, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindFunnel,
			Name:     name,
			RemoteID: rec.ID(),
			Fields:   map[string]any{"source_remote_id": rec.ID()},
		}, func() (*store.Entity, error) {
			return im.store.FindByName(tenantID, store.KindFunnel, name)
		})
		if err != nil {
			result.errorf("funnel %q: %v", name, err)
			continue
		}
		im.count(&result, created)

		pageRecs := childRecords(rec, "steps", "pages")
		if len(pageRecs) == 0 && pages != nil {
			pageRecs, err = pages(rec.ID())
			if err != nil {
				result.errorf("pages for funnel %q: %v", name, err)
				continue
			}
		}
		im.importChildDefs(tenantID, funnel, store.KindFunnelPage, pageRecs,
			[]string{"name", "slug", "path"}, &result)
	}
	return result
}

// ImportWorkflows upserts workflows. The source remote ID is kept in the
// field bag so a later UI rebuild on another tenant can recover the trigger
// from the raw payload.
func (im *Importer) ImportWorkflows(tenantID string, recs []remote.Record) SyncResult {
	var result SyncResult
	for _, rec := range recs {
		name := rec.Str("name")
		if name == "" {
			result.Skipped++
			continue
		}
		im.saveRaw(tenantID, store.KindWorkflow, rec)

		fields := map[string]any{
			"status":           rec.Str("status"),
			"source_remote_id": rec.ID(),
		}
		if trigger := rec.Str("trigger", "triggerType"); trigger != "" {
			fields["trigger"] = trigger
		}

		_, created, err := im.upsert(&store.Entity{
			TenantID: tenantID,
			Kind:     store.KindWorkflow,
			Name:     name,
			RemoteID: rec.ID(),
			Fields:   fields,
		}, func() (*store.Entity, error) {
			return im.store.FindByName(tenantID, store.KindWorkflow, name)
		})
		if err != nil {
			result.errorf("workflow %q: %v", name, err)
			continue
		}
		im.count(&result, created)
	}
	return result
}
