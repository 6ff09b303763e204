package blueprint

import (
	"fmt"
	"strings"
)

// Operation classifications for a single resource in a plan.
const (
	OpCreate = "CREATE"
	OpUpdate = "UPDATE"
	OpOK     = "OK"
	OpExtra  = "EXTRA"
	OpManual = "MANUAL"
)

// Action is the planned disposition for one resource.
type Action struct {
	Collection string `yaml:"collection" json:"collection"`
	Name       string `yaml:"name" json:"name"`
	Op         string `yaml:"op" json:"op"`
	RemoteID   string `yaml:"remote_id,omitempty" json:"remote_id,omitempty"`
	Detail     string `yaml:"detail,omitempty" json:"detail,omitempty"`

	// Spec carries the desired resource for writable operations.
	Spec any `yaml:"-" json:"-"`
}

// Plan is the ordered list of actions needed to bring a live tenant in line
// with a blueprint.
type Plan struct {
	TenantID string
	Actions  []Action
	Summary  map[string]int
}

func (p *Plan) add(a Action) {
	p.Actions = append(p.Actions, a)
	p.Summary[a.Op]++
}

// item is one desired or live resource reduced to identity plus spec.
type item struct {
	key  string
	name string
	spec any
}

// ComputePlan classifies every desired resource against the live snapshot.
// Missing resources become CREATE when the type is writable and MANUAL when
// it is not. Matched resources with drift become UPDATE or MANUAL on the
// same rule, clean matches become OK, and live-only resources become EXTRA.
func ComputePlan(desired *Blueprint, live *Snapshot) *Plan {
	plan := &Plan{
		TenantID: live.Blueprint.Metadata.SourceTenantID,
		Summary:  make(map[string]int),
	}

	for _, collection := range Collections {
		capability := Capabilities[collection]
		want := collectionItems(desired, collection)
		have := collectionItems(live.Blueprint, collection)

		haveByKey := make(map[string]item, len(have))
		for _, it := range have {
			if _, dup := haveByKey[it.key]; !dup {
				haveByKey[it.key] = it
			}
		}

		matched := make(map[string]bool, len(want))
		for _, w := range want {
			liveItem, ok := haveByKey[w.key]
			if !ok {
				op := OpCreate
				if capability != FullCRUD {
					op = OpManual
				}
				plan.add(Action{Collection: collection, Name: w.name, Op: op, Spec: w.spec})
				continue
			}
			matched[w.key] = true
			remoteID := live.IDs[collection][w.key]
			drift := detectDrift(collection, w.spec, liveItem.spec)
			if drift == "" {
				plan.add(Action{Collection: collection, Name: w.name, Op: OpOK, RemoteID: remoteID})
				continue
			}
			op := OpUpdate
			if capability != FullCRUD {
				op = OpManual
			}
			plan.add(Action{
				Collection: collection,
				Name:       w.name,
				Op:         op,
				RemoteID:   remoteID,
				Detail:     drift,
				Spec:       w.spec,
			})
		}

		for _, h := range have {
			if !matched[h.key] {
				plan.add(Action{
					Collection: collection,
					Name:       h.name,
					Op:         OpExtra,
					RemoteID:   live.IDs[collection][h.key],
				})
			}
		}
	}

	return plan
}

func collectionItems(b *Blueprint, collection string) []item {
	var items []item
	switch collection {
	case "tags":
		for _, s := range b.Tags {
			items = append(items, item{key: s.Name, name: s.Name, spec: s})
		}
	case "custom_fields":
		for _, s := range b.CustomFields {
			items = append(items, item{key: fieldIdentity(s), name: s.Name, spec: s})
		}
	case "custom_values":
		for _, s := range b.CustomValues {
			items = append(items, item{key: s.Name, name: s.Name, spec: s})
		}
	case "pipelines":
		for _, s := range b.Pipelines {
			items = append(items, item{key: s.Name, name: s.Name, spec: s})
		}
	case "calendars":
		for _, s := range b.Calendars {
			items = append(items, item{key: s.Name, name: s.Name, spec: s})
		}
	case "workflows":
		for _, s := range b.Workflows {
			items = append(items, item{key: s.Name, name: s.Name, spec: s})
		}
	case "forms":
		for _, s := range b.Forms {
			items = append(items, item{key: s.Name, name: s.Name, spec: s})
		}
	case "surveys":
		for _, s := range b.Surveys {
			items = append(items, item{key: s.Name, name: s.Name, spec: s})
		}
	case "campaigns":
		for _, s := range b.Campaigns {
			items = append(items, item{key: s.Name, name: s.Name, spec: s})
		}
	case "funnels":
		for _, s := range b.Funnels {
			items = append(items, item{key: s.Name, name: s.Name, spec: s})
		}
	}
	return items
}

// detectDrift reports the first material difference between a desired spec
// and its live counterpart, or "" when they agree. Only fields the platform
// lets us observe reliably participate.
func detectDrift(collection string, desired, live any) string {
	switch collection {
	case "custom_fields":
		w, ok1 := desired.(CustomFieldSpec)
		h, ok2 := live.(CustomFieldSpec)
		if !ok1 || !ok2 {
			return ""
		}
		if w.DataType != "" && h.DataType != "" && w.DataType != h.DataType {
			return fmt.Sprintf("data_type %q != %q", h.DataType, w.DataType)
		}
		if w.Name != h.Name {
			return fmt.Sprintf("name %q != %q", h.Name, w.Name)
		}
	case "custom_values":
		w, ok1 := desired.(CustomValueSpec)
		h, ok2 := live.(CustomValueSpec)
		if !ok1 || !ok2 {
			return ""
		}
		if w.Value != h.Value {
			return fmt.Sprintf("value %q != %q", h.Value, w.Value)
		}
	case "workflows":
		w, ok1 := desired.(WorkflowSpec)
		h, ok2 := live.(WorkflowSpec)
		if !ok1 || !ok2 {
			return ""
		}
		if w.Status != "" && h.Status != "" && w.Status != h.Status {
			return fmt.Sprintf("status %q != %q", h.Status, w.Status)
		}
	case "pipelines":
		w, ok1 := desired.(PipelineSpec)
		h, ok2 := live.(PipelineSpec)
		if !ok1 || !ok2 {
			return ""
		}
		ws, hs := stageNames(w), stageNames(h)
		if ws != hs {
			return fmt.Sprintf("stages [%s] != [%s]", hs, ws)
		}
	}
	return ""
}

func stageNames(p PipelineSpec) string {
	names := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}
