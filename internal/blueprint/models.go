// Package blueprint captures the configuration of a tenant as a portable
// document and reconciles it against another tenant. A blueprint holds the
// desired shape of tags, custom fields, pipelines, calendars, and the UI-only
// marketing resources; the diff engine classifies each desired resource
// against a live snapshot and the provisioner applies the writable subset.
package blueprint

import "time"

// Capability describes how much of a resource type the public API exposes.
type Capability int

const (
	// FullCRUD resources can be created and updated through the API.
	FullCRUD Capability = iota
	// ReadOnly resources can be listed but not written.
	ReadOnly
	// UIOnly resources are invisible to write APIs and require manual
	// work or a scripted browser session.
	UIOnly
)

func (c Capability) String() string {
	switch c {
	case FullCRUD:
		return "full_crud"
	case ReadOnly:
		return "read_only"
	case UIOnly:
		return "ui_only"
	}
	return "unknown"
}

// Capabilities maps each resource collection to its API writability.
var Capabilities = map[string]Capability{
	"tags":          FullCRUD,
	"custom_fields": FullCRUD,
	"custom_values": FullCRUD,
	"pipelines":     ReadOnly,
	"calendars":     ReadOnly,
	"workflows":     UIOnly,
	"forms":         UIOnly,
	"surveys":       UIOnly,
	"campaigns":     UIOnly,
	"funnels":       UIOnly,
}

// Collections lists every resource type in snapshot and diff order.
var Collections = []string{
	"tags",
	"custom_fields",
	"custom_values",
	"pipelines",
	"calendars",
	"workflows",
	"forms",
	"surveys",
	"campaigns",
	"funnels",
}

type TagSpec struct {
	Name string `yaml:"name" json:"name"`
}

type CustomFieldSpec struct {
	Name        string `yaml:"name" json:"name"`
	FieldKey    string `yaml:"field_key,omitempty" json:"field_key,omitempty"`
	DataType    string `yaml:"data_type,omitempty" json:"data_type,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Position    int    `yaml:"position,omitempty" json:"position,omitempty"`
}

type CustomValueSpec struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

type StageSpec struct {
	Name     string `yaml:"name" json:"name"`
	Position int    `yaml:"position,omitempty" json:"position,omitempty"`
}

type PipelineSpec struct {
	Name   string      `yaml:"name" json:"name"`
	Stages []StageSpec `yaml:"stages,omitempty" json:"stages,omitempty"`
}

type CalendarSpec struct {
	Name      string `yaml:"name" json:"name"`
	EventType string `yaml:"event_type,omitempty" json:"event_type,omitempty"`
}

type WorkflowSpec struct {
	Name   string `yaml:"name" json:"name"`
	Status string `yaml:"status,omitempty" json:"status,omitempty"`
}

type FormSpec struct {
	Name string `yaml:"name" json:"name"`
}

type SurveySpec struct {
	Name string `yaml:"name" json:"name"`
}

type CampaignSpec struct {
	Name   string `yaml:"name" json:"name"`
	Status string `yaml:"status,omitempty" json:"status,omitempty"`
}

type FunnelSpec struct {
	Name  string   `yaml:"name" json:"name"`
	Steps []string `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// Metadata records where and when a blueprint was captured.
type Metadata struct {
	Name           string    `yaml:"name" json:"name"`
	Version        string    `yaml:"version,omitempty" json:"version,omitempty"`
	Description    string    `yaml:"description,omitempty" json:"description,omitempty"`
	SourceTenantID string    `yaml:"source_tenant_id,omitempty" json:"source_tenant_id,omitempty"`
	CreatedAt      time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
}

// Blueprint is the full desired-state document for one tenant.
type Blueprint struct {
	Metadata     Metadata          `yaml:"metadata" json:"metadata"`
	Tags         []TagSpec         `yaml:"tags,omitempty" json:"tags,omitempty"`
	CustomFields []CustomFieldSpec `yaml:"custom_fields,omitempty" json:"custom_fields,omitempty"`
	CustomValues []CustomValueSpec `yaml:"custom_values,omitempty" json:"custom_values,omitempty"`
	Pipelines    []PipelineSpec    `yaml:"pipelines,omitempty" json:"pipelines,omitempty"`
	Calendars    []CalendarSpec    `yaml:"calendars,omitempty" json:"calendars,omitempty"`
	Workflows    []WorkflowSpec    `yaml:"workflows,omitempty" json:"workflows,omitempty"`
	Forms        []FormSpec        `yaml:"forms,omitempty" json:"forms,omitempty"`
	Surveys      []SurveySpec      `yaml:"surveys,omitempty" json:"surveys,omitempty"`
	Campaigns    []CampaignSpec    `yaml:"campaigns,omitempty" json:"campaigns,omitempty"`
	Funnels      []FunnelSpec      `yaml:"funnels,omitempty" json:"funnels,omitempty"`
}

// Counts returns the number of resources per collection, in Collections order.
func (b *Blueprint) Counts() map[string]int {
	return map[string]int{
		"tags":          len(b.Tags),
		"custom_fields": len(b.CustomFields),
		"custom_values": len(b.CustomValues),
		"pipelines":     len(b.Pipelines),
		"calendars":     len(b.Calendars),
		"workflows":     len(b.Workflows),
		"forms":         len(b.Forms),
		"surveys":       len(b.Surveys),
		"campaigns":     len(b.Campaigns),
		"funnels":       len(b.Funnels),
	}
}
