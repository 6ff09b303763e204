package blueprint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relaycrm/relaysync/internal/remote"
)

// Writer is the subset of the remote client the provisioner needs.
type Writer interface {
	CreateTag(ctx context.Context, tenantID, name string) (remote.Record, error)
	CreateCustomField(ctx context.Context, tenantID string, fields remote.Record) (remote.Record, error)
	UpdateCustomField(ctx context.Context, tenantID, id string, fields remote.Record) (remote.Record, error)
	CreateCustomValue(ctx context.Context, tenantID string, fields remote.Record) (remote.Record, error)
	UpdateCustomValue(ctx context.Context, tenantID, id string, fields remote.Record) (remote.Record, error)
}

// ProvisionResult summarizes what Apply did with each planned action.
type ProvisionResult struct {
	Created int
	Updated int
	Manual  int
	Skipped int
	Errors  []string
	Actions []Action
}

// Apply executes the writable actions of a plan against a tenant. Only
// CREATE and UPDATE actions on full-CRUD collections touch the API; manual
// and extra actions are counted and left alone. Individual failures are
// collected as errors and never abort the rest of the plan.
func Apply(ctx context.Context, w Writer, tenantID string, plan *Plan, logger *slog.Logger) *ProvisionResult {
	result := &ProvisionResult{}

	for _, action := range plan.Actions {
		writable := Capabilities[action.Collection] == FullCRUD
		switch {
		case action.Op == OpCreate && writable:
			if err := createResource(ctx, w, tenantID, action); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("create %s/%s: %v", action.Collection, action.Name, err))
				logger.Warn("provision create failed", "collection", action.Collection, "name", action.Name, "error", err)
			} else {
				result.Created++
				action.Op = "CREATED"
			}
		case action.Op == OpUpdate && writable:
			if err := updateResource(ctx, w, tenantID, action); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("update %s/%s: %v", action.Collection, action.Name, err))
				logger.Warn("provision update failed", "collection", action.Collection, "name", action.Name, "error", err)
			} else {
				result.Updated++
				action.Op = "UPDATED"
			}
		case action.Op == OpManual:
			result.Manual++
		default:
			result.Skipped++
		}
		result.Actions = append(result.Actions, action)
	}

	return result
}

func createResource(ctx context.Context, w Writer, tenantID string, action Action) error {
	switch action.Collection {
	case "tags":
		_, err := w.CreateTag(ctx, tenantID, action.Name)
		return err
	case "custom_fields":
		spec, ok := action.Spec.(CustomFieldSpec)
		if !ok {
			return fmt.Errorf("missing field spec")
		}
		fields := remote.Record{"name": spec.Name}
		if spec.FieldKey != "" {
			fields["fieldKey"] = spec.FieldKey
		}
		if spec.DataType != "" {
			fields["dataType"] = spec.DataType
		}
		if spec.Placeholder != "" {
			fields["placeholder"] = spec.Placeholder
		}
		_, err := w.CreateCustomField(ctx, tenantID, fields)
		return err
	case "custom_values":
		spec, ok := action.Spec.(CustomValueSpec)
		if !ok {
			return fmt.Errorf("missing value spec")
		}
		_, err := w.CreateCustomValue(ctx, tenantID, remote.Record{
			"name":  spec.Name,
			"value": spec.Value,
		})
		return err
	}
	return fmt.Errorf("collection %q is not writable", action.Collection)
}

func updateResource(ctx context.Context, w Writer, tenantID string, action Action) error {
	if action.RemoteID == "" {
		return fmt.Errorf("no remote id")
	}
	switch action.Collection {
	case "custom_fields":
		spec, ok := action.Spec.(CustomFieldSpec)
		if !ok {
			return fmt.Errorf("missing field spec")
		}
		fields := remote.Record{"name": spec.Name}
		if spec.Placeholder != "" {
			fields["placeholder"] = spec.Placeholder
		}
		if spec.Position > 0 {
			fields["position"] = spec.Position
		}
		_, err := w.UpdateCustomField(ctx, tenantID, action.RemoteID, fields)
		return err
	case "custom_values":
		spec, ok := action.Spec.(CustomValueSpec)
		if !ok {
			return fmt.Errorf("missing value spec")
		}
		_, err := w.UpdateCustomValue(ctx, tenantID, action.RemoteID, remote.Record{
			"name":  spec.Name,
			"value": spec.Value,
		})
		return err
	}
	return fmt.Errorf("collection %q is not writable", action.Collection)
}
