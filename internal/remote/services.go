package remote

import (
	"context"
	"fmt"
	"strconv"
)

// Per-resource operations. List endpoints that page are collected through
// the pagination adapters; the platform is inconsistent about strategy, so
// contacts use the start-after cursor, conversations and opportunities use
// offset/limit, and form/survey submissions use page numbers.

// unwrap returns the singular payload nested under any of the given keys,
// falling back to the response itself. Create/update endpoints wrap the
// entity inconsistently ({"tag": {...}} vs the bare object).
func unwrap(resp Record, keys ...string) Record {
	for _, k := range keys {
		if child := resp.Child(k); child != nil {
			return child
		}
	}
	return resp
}

// --- Tags ---

func (c *Client) ListTags(ctx context.Context, tenantID string) ([]Record, error) {
	resp, err := c.get(ctx, "/tags/", tenantQuery(tenantID))
	if err != nil {
		return nil, err
	}
	return resp.List("tags"), nil
}

func (c *Client) CreateTag(ctx context.Context, tenantID, name string) (Record, error) {
	resp, err := c.post(ctx, "/tags/", Record{"name": name, "locationId": tenantID})
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "tag"), nil
}

// --- Custom fields ---

func (c *Client) ListCustomFields(ctx context.Context, tenantID string) ([]Record, error) {
	resp, err := c.get(ctx, "/locations/"+tenantID+"/customFields", nil)
	if err != nil {
		return nil, err
	}
	return resp.List("customFields"), nil
}

func (c *Client) CreateCustomField(ctx context.Context, tenantID string, fields Record) (Record, error) {
	resp, err := c.post(ctx, "/locations/"+tenantID+"/customFields", fields)
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "customField"), nil
}

func (c *Client) UpdateCustomField(ctx context.Context, tenantID, id string, fields Record) (Record, error) {
	resp, err := c.put(ctx, "/locations/"+tenantID+"/customFields/"+id, fields)
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "customField"), nil
}

// --- Custom values ---

func (c *Client) ListCustomValues(ctx context.Context, tenantID string) ([]Record, error) {
	resp, err := c.get(ctx, "/locations/"+tenantID+"/customValues", nil)
	if err != nil {
		return nil, err
	}
	return resp.List("customValues"), nil
}

func (c *Client) CreateCustomValue(ctx context.Context, tenantID string, fields Record) (Record, error) {
	resp, err := c.post(ctx, "/locations/"+tenantID+"/customValues", fields)
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "customValue"), nil
}

func (c *Client) UpdateCustomValue(ctx context.Context, tenantID, id string, fields Record) (Record, error) {
	resp, err := c.put(ctx, "/locations/"+tenantID+"/customValues/"+id, fields)
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "customValue"), nil
}

// --- Pipelines ---

func (c *Client) ListPipelines(ctx context.Context, tenantID string) ([]Record, error) {
	resp, err := c.get(ctx, "/opportunities/pipelines", tenantQuery(tenantID))
	if err != nil {
		return nil, err
	}
	return resp.List("pipelines"), nil
}

// --- Contacts ---

// ListContacts collects the tenant's full contact list through the
// start-after cursor endpoint.
func (c *Client) ListContacts(ctx context.Context, tenantID string) ([]Record, error) {
	fetch := func(limit int, afterID string, after int) (Record, error) {
		q := tenantQuery(tenantID)
		q.Set("limit", strconv.Itoa(limit))
		if afterID != "" {
			q.Set("startAfterId", afterID)
			q.Set("startAfter", strconv.Itoa(after))
		}
		return c.get(ctx, "/contacts/", q)
	}
	return CollectCursor(fetch, "contacts", c.page)
}

// ContactTotal returns the server-reported contact count without paging.
func (c *Client) ContactTotal(ctx context.Context, tenantID string) (int, error) {
	q := tenantQuery(tenantID)
	q.Set("limit", "1")
	resp, err := c.get(ctx, "/contacts/", q)
	if err != nil {
		return 0, err
	}
	total, _ := resp.Total()
	return total, nil
}

func (c *Client) CreateContact(ctx context.Context, tenantID string, fields Record) (Record, error) {
	fields["locationId"] = tenantID
	resp, err := c.post(ctx, "/contacts/", fields)
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "contact"), nil
}

func (c *Client) UpdateContact(ctx context.Context, id string, fields Record) (Record, error) {
	resp, err := c.put(ctx, "/contacts/"+id, fields)
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "contact"), nil
}

// --- Opportunities ---

func (c *Client) ListOpportunities(ctx context.Context, tenantID, pipelineID string) ([]Record, error) {
	fetch := func(limit, offset int) (Record, error) {
		return c.get(ctx, "/opportunities/pipelines/"+pipelineID+"/opportunities",
			limitOffsetQuery(tenantID, limit, offset))
	}
	return CollectOffset(fetch, "opportunities", c.page)
}

func (c *Client) CreateOpportunity(ctx context.Context, tenantID, pipelineID string, fields Record) (Record, error) {
	fields["locationId"] = tenantID
	fields["pipelineId"] = pipelineID
	resp, err := c.post(ctx, "/opportunities/", fields)
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "opportunity"), nil
}

// --- Notes and tasks (per contact) ---

func (c *Client) ListNotes(ctx context.Context, contactID string) ([]Record, error) {
	resp, err := c.get(ctx, "/contacts/"+contactID+"/notes", nil)
	if err != nil {
		return nil, err
	}
	return resp.List("notes"), nil
}

func (c *Client) CreateNote(ctx context.Context, contactID, body string) (Record, error) {
	resp, err := c.post(ctx, "/contacts/"+contactID+"/notes", Record{"body": body})
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "note"), nil
}

func (c *Client) UpdateNote(ctx context.Context, contactID, noteID, body string) (Record, error) {
	resp, err := c.put(ctx, "/contacts/"+contactID+"/notes/"+noteID, Record{"body": body})
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "note"), nil
}

func (c *Client) ListTasks(ctx context.Context, contactID string) ([]Record, error) {
	resp, err := c.get(ctx, "/contacts/"+contactID+"/tasks", nil)
	if err != nil {
		return nil, err
	}
	return resp.List("tasks"), nil
}

func (c *Client) CreateTask(ctx context.Context, contactID string, fields Record) (Record, error) {
	resp, err := c.post(ctx, "/contacts/"+contactID+"/tasks", fields)
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "task"), nil
}

func (c *Client) UpdateTask(ctx context.Context, contactID, taskID string, fields Record) (Record, error) {
	resp, err := c.put(ctx, "/contacts/"+contactID+"/tasks/"+taskID, fields)
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "task"), nil
}

// --- Conversations ---

func (c *Client) ListConversations(ctx context.Context, tenantID string) ([]Record, error) {
	fetch := func(limit, offset int) (Record, error) {
		return c.get(ctx, "/conversations/search", limitOffsetQuery(tenantID, limit, offset))
	}
	return CollectOffset(fetch, "conversations", c.page)
}

func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]Record, error) {
	resp, err := c.get(ctx, "/conversations/"+conversationID+"/messages", nil)
	if err != nil {
		return nil, err
	}
	// Some responses nest the list under messages.messages.
	if inner := resp.Child("messages"); inner != nil {
		return inner.List("messages"), nil
	}
	return resp.List("messages"), nil
}

func (c *Client) SendMessage(ctx context.Context, tenantID string, fields Record) (Record, error) {
	fields["locationId"] = tenantID
	resp, err := c.post(ctx, "/conversations/messages", fields)
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "message"), nil
}

// --- Calendars ---

func (c *Client) ListCalendars(ctx context.Context, tenantID string) ([]Record, error) {
	resp, err := c.get(ctx, "/calendars/", tenantQuery(tenantID))
	if err != nil {
		return nil, err
	}
	return resp.List("calendars"), nil
}

func (c *Client) ListAppointments(ctx context.Context, tenantID, calendarID string) ([]Record, error) {
	q := tenantQuery(tenantID)
	q.Set("calendarId", calendarID)
	resp, err := c.get(ctx, "/calendars/events/appointments", q)
	if err != nil {
		return nil, err
	}
	if events := resp.List("events"); len(events) > 0 {
		return events, nil
	}
	return resp.List("appointments"), nil
}

func (c *Client) CreateAppointment(ctx context.Context, tenantID, calendarID string, fields Record) (Record, error) {
	fields["locationId"] = tenantID
	fields["calendarId"] = calendarID
	resp, err := c.post(ctx, "/calendars/events/appointments", fields)
	if err != nil {
		return nil, err
	}
	return unwrap(resp, "appointment", "event"), nil
}

// --- Forms and surveys ---

func (c *Client) ListForms(ctx context.Context, tenantID string) ([]Record, error) {
	resp, err := c.get(ctx, "/forms/", tenantQuery(tenantID))
	if err != nil {
		return nil, err
	}
	return resp.List("forms"), nil
}

// ListFormSubmissions collects a form's submissions through the 1-based
// page-number endpoint.
func (c *Client) ListFormSubmissions(ctx context.Context, tenantID, formID string) ([]Record, error) {
	return c.listSubmissions(ctx, "/forms/submissions", tenantID, "formId", formID)
}

func (c *Client) ListSurveys(ctx context.Context, tenantID string) ([]Record, error) {
	resp, err := c.get(ctx, "/surveys/", tenantQuery(tenantID))
	if err != nil {
		return nil, err
	}
	return resp.List("surveys"), nil
}

func (c *Client) ListSurveySubmissions(ctx context.Context, tenantID, surveyID string) ([]Record, error) {
	return c.listSubmissions(ctx, "/surveys/submissions", tenantID, "surveyId", surveyID)
}

func (c *Client) listSubmissions(ctx context.Context, path, tenantID, idKey, id string) ([]Record, error) {
	fetch := func(page, limit int) (Record, error) {
		q := tenantQuery(tenantID)
		q.Set(idKey, id)
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(limit))
		return c.get(ctx, path, q)
	}
	return CollectPages(fetch, "submissions", c.page)
}

// --- Campaigns, funnels, workflows ---

func (c *Client) ListCampaigns(ctx context.Context, tenantID string) ([]Record, error) {
	resp, err := c.get(ctx, "/campaigns/", tenantQuery(tenantID))
	if err != nil {
		return nil, err
	}
	return resp.List("campaigns"), nil
}

func (c *Client) ListFunnels(ctx context.Context, tenantID string) ([]Record, error) {
	resp, err := c.get(ctx, "/funnels/funnel/list", tenantQuery(tenantID))
	if err != nil {
		return nil, err
	}
	return resp.List("funnels"), nil
}

func (c *Client) ListFunnelPages(ctx context.Context, tenantID, funnelID string) ([]Record, error) {
	q := tenantQuery(tenantID)
	q.Set("funnelId", funnelID)
	resp, err := c.get(ctx, "/funnels/page", q)
	if err != nil {
		return nil, err
	}
	return resp.List("pages"), nil
}

func (c *Client) ListWorkflows(ctx context.Context, tenantID string) ([]Record, error) {
	resp, err := c.get(ctx, "/workflows/", tenantQuery(tenantID))
	if err != nil {
		return nil, err
	}
	return resp.List("workflows"), nil
}

// ListCollection lists a resource collection by name. Reconciliation and
// snapshotting walk resource types generically; this keeps the switch in
// one place.
func (c *Client) ListCollection(ctx context.Context, tenantID, collection string) ([]Record, error) {
	switch collection {
	case "tags":
		return c.ListTags(ctx, tenantID)
	case "custom_fields":
		return c.ListCustomFields(ctx, tenantID)
	case "custom_values":
		return c.ListCustomValues(ctx, tenantID)
	case "pipelines":
		return c.ListPipelines(ctx, tenantID)
	case "calendars":
		return c.ListCalendars(ctx, tenantID)
	case "forms":
		return c.ListForms(ctx, tenantID)
	case "surveys":
		return c.ListSurveys(ctx, tenantID)
	case "campaigns":
		return c.ListCampaigns(ctx, tenantID)
	case "funnels":
		return c.ListFunnels(ctx, tenantID)
	case "workflows":
		return c.ListWorkflows(ctx, tenantID)
	default:
		return nil, fmt.Errorf("unknown remote collection: %s", collection)
	}
}
