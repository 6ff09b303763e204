package syncer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/relaycrm/relaysync/internal/remote"
	"github.com/relaycrm/relaysync/internal/store"
)

// ExportRemote is the write surface of the remote client the exporter needs.
type ExportRemote interface {
	CreateTag(ctx context.Context, tenantID, name string) (remote.Record, error)
	CreateCustomField(ctx context.Context, tenantID string, fields remote.Record) (remote.Record, error)
	UpdateCustomField(ctx context.Context, tenantID, id string, fields remote.Record) (remote.Record, error)
	CreateCustomValue(ctx context.Context, tenantID string, fields remote.Record) (remote.Record, error)
	UpdateCustomValue(ctx context.Context, tenantID, id string, fields remote.Record) (remote.Record, error)
	CreateContact(ctx context.Context, tenantID string, fields remote.Record) (remote.Record, error)
	UpdateContact(ctx context.Context, id string, fields remote.Record) (remote.Record, error)
	CreateOpportunity(ctx context.Context, tenantID, pipelineID string, fields remote.Record) (remote.Record, error)
	CreateNote(ctx context.Context, contactID, body string) (remote.Record, error)
	UpdateNote(ctx context.Context, contactID, noteID, body string) (remote.Record, error)
	CreateTask(ctx context.Context, contactID string, fields remote.Record) (remote.Record, error)
	UpdateTask(ctx context.Context, contactID, taskID string, fields remote.Record) (remote.Record, error)
	SendMessage(ctx context.Context, tenantID string, fields remote.Record) (remote.Record, error)
	CreateAppointment(ctx context.Context, tenantID, calendarID string, fields remote.Record) (remote.Record, error)
	ListPipelines(ctx context.Context, tenantID string) ([]remote.Record, error)
}

// Exporter pushes local rows to the remote platform. Only rows that were
// never linked to a remote record are created; linked rows are updated when
// they changed since their last sync. A failing row is recorded and never
// aborts the rest of its batch.
type Exporter struct {
	store  *store.Store
	remote ExportRemote
	logger *slog.Logger
	now    func() time.Time
}

func NewExporter(st *store.Store, rem ExportRemote, logger *slog.Logger) *Exporter {
	return &Exporter{store: st, remote: rem, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// linkedID extracts the remote ID from a create response, synthesizing a
// local placeholder when the platform acknowledged the create without
// returning an ID. The placeholder keeps the row out of future export
// batches instead of creating duplicates on every run.
func linkedID(resp remote.Record, localID string) string {
	if id := resp.ID(); id != "" {
		return id
	}
	return "exported:" + localID
}

// needsUpdate reports whether a linked row changed since its last sync.
func needsUpdate(e *store.Entity) bool {
	if e.LastSyncedAt == nil {
		return true
	}
	return e.UpdatedAt.After(*e.LastSyncedAt)
}

func (ex *Exporter) link(e *store.Entity, resp remote.Record, remoteTenantID string, result *SyncResult) {
	id := linkedID(resp, e.ID)
	if err := ex.store.SetRemoteID(e.ID, id, remoteTenantID, ex.now()); err != nil {
		result.errorf("%s %q: record remote id: %v", e.Kind, e.Name, err)
		return
	}
	result.Created++
}

func (ex *Exporter) touch(e *store.Entity, result *SyncResult) {
	now := ex.now()
	if err := ex.store.MarkSynced(e.ID, now); err != nil {
		result.errorf("%s %q: record sync time: %v", e.Kind, e.Name, err)
		return
	}
	e.LastSyncedAt = &now
	e.UpdatedAt = now
	result.Updated++
}

// ExportTags creates remote tags for local-only tags.
func (ex *Exporter) ExportTags(ctx context.Context, tenantID, remoteTenantID string) SyncResult {
	var result SyncResult
	tags, err := ex.store.ListMissingRemoteID(tenantID, store.KindTag)
	if err != nil {
		result.errorf("tags: %v", err)
		return result
	}
	for _, tag := range tags {
		resp, err := ex.remote.CreateTag(ctx, remoteTenantID, tag.Name)
		if err != nil {
			result.errorf("tag %q: %v", tag.Name, err)
			continue
		}
		ex.link(tag, resp, remoteTenantID, &result)
	}
	return result
}

// ExportCustomFields creates local-only field definitions and updates
// linked ones that changed since their last sync.
func (ex *Exporter) ExportCustomFields(ctx context.Context, tenantID, remoteTenantID string) SyncResult {
	var result SyncResult
	defs, err := ex.store.ListKind(tenantID, store.KindCustomField)
	if err != nil {
		result.errorf("custom fields: %v", err)
		return result
	}
	for _, defn := range defs {
		fields := remote.Record{
			"name":     defn.Name,
			"dataType": exportDataType(defn.Str("data_type")),
		}
		if key := defn.Str("field_key"); key != "" {
			fields["fieldKey"] = key
		}

		if defn.RemoteID == "" {
			resp, err := ex.remote.CreateCustomField(ctx, remoteTenantID, fields)
			if err != nil {
				result.errorf("custom field %q: %v", defn.Name, err)
				continue
			}
			ex.link(defn, resp, remoteTenantID, &result)
			continue
		}
		if !needsUpdate(defn) || isPlaceholder(defn) {
			result.Skipped++
			continue
		}
		if _, err := ex.remote.UpdateCustomField(ctx, remoteTenantID, defn.RemoteID, fields); err != nil {
			result.errorf("custom field %q: %v", defn.Name, err)
			continue
		}
		ex.touch(defn, &result)
	}
	return result
}

// exportDataType maps local lowercase data types onto the platform's
// uppercase enum, defaulting to TEXT for anything unrecognized.
func exportDataType(local string) string {
	switch local {
	case "number", "numeric", "float", "decimal", "integer":
		return "NUMERICAL"
	case "date", "datetime":
		return "DATE"
	case "checkbox", "boolean", "bool":
		return "CHECKBOX"
	case "phone":
		return "PHONE"
	case "monetary":
		return "MONETARY"
	default:
		return "TEXT"
	}
}

// ExportCustomValues mirrors ExportCustomFields for custom values.
func (ex *Exporter) ExportCustomValues(ctx context.Context, tenantID, remoteTenantID string) SyncResult {
	var result SyncResult
	values, err := ex.store.ListKind(tenantID, store.KindCustomValue)
	if err != nil {
		result.errorf("custom values: %v", err)
		return result
	}
	for _, cv := range values {
		fields := remote.Record{"name": cv.Name, "value": cv.Str("value")}

		if cv.RemoteID == "" {
			resp, err := ex.remote.CreateCustomValue(ctx, remoteTenantID, fields)
			if err != nil {
				result.errorf("custom value %q: %v", cv.Name, err)
				continue
			}
			ex.link(cv, resp, remoteTenantID, &result)
			continue
		}
		if !needsUpdate(cv) || isPlaceholder(cv) {
			result.Skipped++
			continue
		}
		if _, err := ex.remote.UpdateCustomValue(ctx, remoteTenantID, cv.RemoteID, fields); err != nil {
			result.errorf("custom value %q: %v", cv.Name, err)
			continue
		}
		ex.touch(cv, &result)
	}
	return result
}

func contactPayload(c *store.Entity) remote.Record {
	fields := remote.Record{}
	set := func(remoteKey, localKey string) {
		if v := c.Str(localKey); v != "" {
			fields[remoteKey] = v
		}
	}
	set("firstName", "first_name")
	set("lastName", "last_name")
	set("email", "email")
	set("phone", "phone")
	set("companyName", "company")
	set("address1", "address")
	set("city", "city")
	set("state", "state")
	set("postalCode", "postal_code")
	set("country", "country")
	set("source", "source")
	if tags, ok := c.Fields["tags"].([]any); ok && len(tags) > 0 {
		fields["tags"] = tags
	}
	return fields
}

// ExportContacts creates local-only contacts and updates changed linked
// ones. Tags travel by name inside the contact payload.
func (ex *Exporter) ExportContacts(ctx context.Context, tenantID, remoteTenantID string) SyncResult {
	var result SyncResult
	contacts, err := ex.store.ListKind(tenantID, store.KindContact)
	if err != nil {
		result.errorf("contacts: %v", err)
		return result
	}
	for _, contact := range contacts {
		payload := contactPayload(contact)

		if contact.RemoteID == "" {
			resp, err := ex.remote.CreateContact(ctx, remoteTenantID, payload)
			if err != nil {
				result.errorf("contact %q: %v", contact.Name, err)
				continue
			}
			ex.link(contact, resp, remoteTenantID, &result)
			continue
		}
		if !needsUpdate(contact) || isPlaceholder(contact) {
			result.Skipped++
			continue
		}
		if _, err := ex.remote.UpdateContact(ctx, contact.RemoteID, payload); err != nil {
			result.errorf("contact %q: %v", contact.Name, err)
			continue
		}
		ex.touch(contact, &result)
	}
	return result
}

// ExportPipelines never writes. The pipeline API is read only, so local
// pipelines missing a remote ID are counted as skipped; they get linked by
// name recovery during opportunity export.
func (ex *Exporter) ExportPipelines(ctx context.Context, tenantID string) SyncResult {
	var result SyncResult
	pipelines, err := ex.store.ListMissingRemoteID(tenantID, store.KindPipeline)
	if err != nil {
		result.errorf("pipelines: %v", err)
		return result
	}
	result.Skipped = len(pipelines)
	return result
}

// ExportOpportunities creates local-only opportunities. An opportunity
// whose pipeline, stage, or contact has no remote counterpart yet is
// skipped so a later run can pick it up once its dependencies are linked.
func (ex *Exporter) ExportOpportunities(ctx context.Context, tenantID, remoteTenantID string) SyncResult {
	var result SyncResult
	opps, err := ex.store.ListMissingRemoteID(tenantID, store.KindOpportunity)
	if err != nil {
		result.errorf("opportunities: %v", err)
		return result
	}
	if len(opps) == 0 {
		return result
	}

	pipelinesByID, stagesByID, contactsByID, err := ex.loadReferences(tenantID)
	if err != nil {
		result.errorf("opportunities: %v", err)
		return result
	}
	ex.recoverPipelineIDs(ctx, remoteTenantID, opps, pipelinesByID, stagesByID, &result)

	for _, opp := range opps {
		pipeline := pipelinesByID[opp.ParentID]
		if pipeline == nil || pipeline.RemoteID == "" || isPlaceholder(pipeline) {
			result.Skipped++
			continue
		}
		fields := remote.Record{
			"name":   opp.Name,
			"status": orDefault(opp.Str("status"), "open"),
		}
		if v, ok := opp.Fields["monetary_value"]; ok {
			fields["monetaryValue"] = v
		}
		if stage := stagesByID[opp.Str("stage_id")]; stage != nil && stage.RemoteID != "" && !isPlaceholder(stage) {
			fields["pipelineStageId"] = stage.RemoteID
		} else {
			result.Skipped++
			continue
		}
		if contact := contactsByID[opp.Str("contact_id")]; contact != nil && contact.RemoteID != "" && !isPlaceholder(contact) {
			fields["contactId"] = contact.RemoteID
		} else {
			result.Skipped++
			continue
		}

		resp, err := ex.remote.CreateOpportunity(ctx, remoteTenantID, pipeline.RemoteID, fields)
		if err != nil {
			result.errorf("opportunity %q: %v", opp.Name, err)
			continue
		}
		ex.link(opp, resp, remoteTenantID, &result)
	}
	return result
}

func (ex *Exporter) loadReferences(tenantID string) (pipelines, stages, contacts map[string]*store.Entity, err error) {
	index := func(kind string) (map[string]*store.Entity, error) {
		rows, err := ex.store.ListKind(tenantID, kind)
		if err != nil {
			return nil, err
		}
		m := make(map[string]*store.Entity, len(rows))
		for _, row := range rows {
			m[row.ID] = row
		}
		return m, nil
	}
	if pipelines, err = index(store.KindPipeline); err != nil {
		return nil, nil, nil, err
	}
	if stages, err = index(store.KindPipelineStage); err != nil {
		return nil, nil, nil, err
	}
	if contacts, err = index(store.KindContact); err != nil {
		return nil, nil, nil, err
	}
	return pipelines, stages, contacts, nil
}

// recoverPipelineIDs links unlinked local pipelines and stages to their
// remote counterparts by normalized name before opportunities are pushed.
// Accounts configured by hand on both sides rely on this instead of importing
// first.
func (ex *Exporter) recoverPipelineIDs(ctx context.Context, remoteTenantID string, opps []*store.Entity, pipelinesByID, stagesByID map[string]*store.Entity, result *SyncResult) {
	needsMapping := false
	for _, opp := range opps {
		pipeline := pipelinesByID[opp.ParentID]
		stage := stagesByID[opp.Str("stage_id")]
		if (pipeline != nil && pipeline.RemoteID == "") || (stage != nil && stage.RemoteID == "") {
			needsMapping = true
			break
		}
	}
	if !needsMapping {
		return
	}

	remotePipelines, err := ex.remote.ListPipelines(ctx, remoteTenantID)
	if err != nil {
		result.errorf("opportunity export: pipeline list failed: %v", err)
		return
	}
	byName := make(map[string]remote.Record, len(remotePipelines))
	for _, rec := range remotePipelines {
		key := normalizeKey(rec.Str("name"))
		if key != "" {
			if _, dup := byName[key]; !dup {
				byName[key] = rec
			}
		}
	}

	now := ex.now()
	for _, pipeline := range pipelinesByID {
		rec, ok := byName[normalizeKey(pipeline.Name)]
		if !ok {
			continue
		}
		if pipeline.RemoteID == "" && rec.ID() != "" {
			if err := ex.store.SetRemoteID(pipeline.ID, rec.ID(), remoteTenantID, now); err != nil {
				result.errorf("pipeline %q: record remote id: %v", pipeline.Name, err)
				continue
			}
			pipeline.RemoteID = rec.ID()
		}
		stagesByRemoteName := make(map[string]string)
		for _, stageRec := range rec.List("stages") {
			key := normalizeKey(stageRec.Str("name"))
			if key != "" && stageRec.ID() != "" {
				stagesByRemoteName[key] = stageRec.ID()
			}
		}
		for _, stage := range stagesByID {
			if stage.ParentID != pipeline.ID || stage.RemoteID != "" {
				continue
			}
			remoteID, ok := stagesByRemoteName[normalizeKey(stage.Name)]
			if !ok {
				continue
			}
			if err := ex.store.SetRemoteID(stage.ID, remoteID, remoteTenantID, now); err != nil {
				result.errorf("stage %q: record remote id: %v", stage.Name, err)
				continue
			}
			stage.RemoteID = remoteID
		}
	}
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// isPlaceholder reports whether a row carries a synthesized remote ID that
// must never be sent back to the platform as a reference.
func isPlaceholder(e *store.Entity) bool {
	return strings.HasPrefix(e.RemoteID, "exported:")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ExportNotes pushes contact notes. Local-only notes are created, linked
// notes are updated only when they changed since the last sync. Notes whose
// contact has no remote counterpart are skipped.
func (ex *Exporter) ExportNotes(ctx context.Context, tenantID, remoteTenantID string) SyncResult {
	return ex.exportContactChildren(ctx, tenantID, remoteTenantID, store.KindNote,
		func(ctx context.Context, contactRemoteID string, note *store.Entity) (remote.Record, error) {
			return ex.remote.CreateNote(ctx, contactRemoteID, note.Str("body"))
		},
		func(ctx context.Context, contactRemoteID string, note *store.Entity) error {
			_, err := ex.remote.UpdateNote(ctx, contactRemoteID, note.RemoteID, note.Str("body"))
			return err
		})
}

// ExportTasks pushes contact tasks with the same dependency and staleness
// rules as notes.
func (ex *Exporter) ExportTasks(ctx context.Context, tenantID, remoteTenantID string) SyncResult {
	payload := func(task *store.Entity) remote.Record {
		fields := remote.Record{
			"title":     task.Name,
			"completed": task.Fields["completed"] == true,
		}
		if body := task.Str("body"); body != "" {
			fields["body"] = body
		}
		if due := task.Str("due_date"); due != "" {
			fields["dueDate"] = due
		}
		return fields
	}
	return ex.exportContactChildren(ctx, tenantID, remoteTenantID, store.KindTask,
		func(ctx context.Context, contactRemoteID string, task *store.Entity) (remote.Record, error) {
			return ex.remote.CreateTask(ctx, contactRemoteID, payload(task))
		},
		func(ctx context.Context, contactRemoteID string, task *store.Entity) error {
			_, err := ex.remote.UpdateTask(ctx, contactRemoteID, task.RemoteID, payload(task))
			return err
		})
}

func (ex *Exporter) exportContactChildren(
	ctx context.Context,
	tenantID, remoteTenantID, kind string,
	create func(ctx context.Context, contactRemoteID string, e *store.Entity) (remote.Record, error),
	update func(ctx context.Context, contactRemoteID string, e *store.Entity) error,
) SyncResult {
	var result SyncResult
	rows, err := ex.store.ListKind(tenantID, kind)
	if err != nil {
		result.errorf("%s: %v", kind, err)
		return result
	}
	contacts, err := ex.store.ListKind(tenantID, store.KindContact)
	if err != nil {
		result.errorf("%s: %v", kind, err)
		return result
	}
	contactsByID := make(map[string]*store.Entity, len(contacts))
	for _, c := range contacts {
		contactsByID[c.ID] = c
	}

	for _, row := range rows {
		contact := contactsByID[row.ParentID]
		if contact == nil || contact.RemoteID == "" || isPlaceholder(contact) {
			result.Skipped++
			continue
		}

		if row.RemoteID == "" {
			resp, err := create(ctx, contact.RemoteID, row)
			if err != nil {
				result.errorf("%s %q: %v", kind, row.Name, err)
				continue
			}
			ex.link(row, resp, remoteTenantID, &result)
			continue
		}
		if !needsUpdate(row) || isPlaceholder(row) {
			result.Skipped++
			continue
		}
		if err := update(ctx, contact.RemoteID, row); err != nil {
			result.errorf("%s %q: %v", kind, row.Name, err)
			continue
		}
		ex.touch(row, &result)
	}
	return result
}

// ExportMessages sends outbound messages that were authored locally and
// never delivered. Delivery is tracked through the provider ID column, so
// imported history is never re-sent.
func (ex *Exporter) ExportMessages(ctx context.Context, tenantID, remoteTenantID string) SyncResult {
	var result SyncResult
	messages, err := ex.store.ListMissingProviderID(tenantID, store.KindMessage)
	if err != nil {
		result.errorf("messages: %v", err)
		return result
	}
	if len(messages) == 0 {
		return result
	}

	conversations, err := ex.store.ListKind(tenantID, store.KindConversation)
	if err != nil {
		result.errorf("messages: %v", err)
		return result
	}
	conversationsByID := make(map[string]*store.Entity, len(conversations))
	for _, c := range conversations {
		conversationsByID[c.ID] = c
	}
	contacts, err := ex.store.ListKind(tenantID, store.KindContact)
	if err != nil {
		result.errorf("messages: %v", err)
		return result
	}
	contactsByID := make(map[string]*store.Entity, len(contacts))
	for _, c := range contacts {
		contactsByID[c.ID] = c
	}

	for _, msg := range messages {
		if msg.Str("direction") != "outbound" {
			result.Skipped++
			continue
		}
		conv := conversationsByID[msg.ParentID]
		if conv == nil {
			result.Skipped++
			continue
		}
		contact := contactsByID[conv.Str("contact_id")]
		if contact == nil || contact.RemoteID == "" || isPlaceholder(contact) {
			result.Skipped++
			continue
		}

		resp, err := ex.remote.SendMessage(ctx, remoteTenantID, remote.Record{
			"type":      orDefault(msg.Name, "SMS"),
			"contactId": contact.RemoteID,
			"message":   msg.Str("body"),
		})
		if err != nil {
			result.errorf("message in conversation %q: %v", conv.Name, err)
			continue
		}
		providerID := resp.Str("messageId", "id")
		if providerID == "" {
			providerID = "exported:" + msg.ID
		}
		msg.ProviderID = providerID
		now := ex.now()
		msg.LastSyncedAt = &now
		if err := ex.store.Update(msg); err != nil {
			result.errorf("message in conversation %q: record provider id: %v", conv.Name, err)
			continue
		}
		result.Created++
	}
	return result
}

// ExportAppointments books local-only appointments on linked calendars.
func (ex *Exporter) ExportAppointments(ctx context.Context, tenantID, remoteTenantID string) SyncResult {
	var result SyncResult
	appts, err := ex.store.ListMissingRemoteID(tenantID, store.KindAppointment)
	if err != nil {
		result.errorf("appointments: %v", err)
		return result
	}
	if len(appts) == 0 {
		return result
	}

	calendars, err := ex.store.ListKind(tenantID, store.KindCalendar)
	if err != nil {
		result.errorf("appointments: %v", err)
		return result
	}
	calendarsByID := make(map[string]*store.Entity, len(calendars))
	for _, c := range calendars {
		calendarsByID[c.ID] = c
	}
	contacts, err := ex.store.ListKind(tenantID, store.KindContact)
	if err != nil {
		result.errorf("appointments: %v", err)
		return result
	}
	contactsByID := make(map[string]*store.Entity, len(contacts))
	for _, c := range contacts {
		contactsByID[c.ID] = c
	}

	for _, appt := range appts {
		calendar := calendarsByID[appt.ParentID]
		if calendar == nil || calendar.RemoteID == "" || isPlaceholder(calendar) {
			result.Skipped++
			continue
		}
		fields := remote.Record{
			"title":     appt.Name,
			"startTime": appt.Str("start_time"),
			"endTime":   appt.Str("end_time"),
		}
		if contact := contactsByID[appt.Str("contact_id")]; contact != nil && contact.RemoteID != "" && !isPlaceholder(contact) {
			fields["contactId"] = contact.RemoteID
		} else {
			result.Skipped++
			continue
		}

		resp, err := ex.remote.CreateAppointment(ctx, remoteTenantID, calendar.RemoteID, fields)
		if err != nil {
			result.errorf("appointment %q: %v", appt.Name, err)
			continue
		}
		ex.link(appt, resp, remoteTenantID, &result)
	}
	return result
}
