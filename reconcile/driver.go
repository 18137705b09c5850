package reconcile

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/tim-schneider/nexsync/diffengine"
	"github.com/tim-schneider/nexsync/faults"
	"github.com/tim-schneider/nexsync/normalize"
	"github.com/tim-schneider/nexsync/resource"
	"github.com/tim-schneider/nexsync/schema"
	"github.com/tim-schneider/nexsync/server"
)

// DesiredSource supplies the declared desired state and the default layers
// to merge beneath each item. *config.Config satisfies it.
type DesiredSource interface {
	ResourceTypeNames() []string
	DesiredList(rt schema.ResourceType) ([]resource.Doc, error)
	LayersFor(rt schema.ResourceType) []resource.Value
}

// Request selects what one reconciliation run covers. An empty Types slice
// means every resource type the source declares. DryRun computes the same
// report without issuing any mutating call.
type Request struct {
	Types  []string
	DryRun bool
}

// Driver walks resource types in dependency order and converges each one:
// merge defaults, normalize, diff against the observed remote state, then
// create, update and delete through the collection client. Item failures
// are isolated; a failure to list a type's remote state fails that type
// without touching it.
type Driver struct {
	registry *schema.Registry
	client   server.CollectionClient
	source   DesiredSource
}

func NewDriver(registry *schema.Registry, client server.CollectionClient, source DesiredSource) *Driver {
	return &Driver{registry: registry, client: client, source: source}
}

// Run reconciles the requested resource types and returns one report entry
// per type. It returns a non-nil error only when the run could not start
// at all, for example when a requested type name is unknown.
func (d *Driver) Run(ctx context.Context, req Request) (*Report, error) {
	names := req.Types
	if len(names) == 0 {
		names = d.source.ResourceTypeNames()
	}
	for _, name := range names {
		if _, err := d.registry.Type(name); err != nil {
			return nil, err
		}
	}

	ordered, err := schema.OrderTypes(names)
	if err != nil {
		return nil, err
	}

	status, statusErr := d.serverStatus(ctx, ordered)

	report := &Report{DryRun: req.DryRun}
	for _, name := range ordered {
		rt, err := d.registry.Type(name)
		if err != nil {
			report.Types = append(report.Types, TypeResult{ResourceType: name, Err: err})
			continue
		}
		report.Types = append(report.Types, d.reconcileType(ctx, rt, status, statusErr, req.DryRun))
	}
	return report, nil
}

// serverStatus probes the server once per run, and only when a requested
// type is gated on edition or version.
func (d *Driver) serverStatus(ctx context.Context, names []string) (server.ServerStatus, error) {
	gated := false
	for _, name := range names {
		rt, err := d.registry.Type(name)
		if err != nil {
			continue
		}
		if rt.RequiresProFeature || rt.MinServerVersion != "" {
			gated = true
			break
		}
	}
	if !gated {
		return server.ServerStatus{}, nil
	}
	return d.client.Status(ctx)
}

func (d *Driver) reconcileType(ctx context.Context, rt schema.ResourceType, status server.ServerStatus, statusErr error, dryRun bool) TypeResult {
	result := TypeResult{ResourceType: rt.Name}

	if reason := gateReason(rt, status, statusErr); reason != "" {
		result.Skipped = true
		result.SkipReason = reason
		return result
	}

	sch, err := d.schemaFor(rt.Name)
	if err != nil {
		result.Err = err
		return result
	}

	rawItems, err := d.source.DesiredList(rt)
	if err != nil {
		result.Err = err
		return result
	}
	if rawItems == nil {
		result.Skipped = true
		result.SkipReason = "no desired state declared"
		return result
	}

	layers := d.source.LayersFor(rt)
	desired := make([]resource.Doc, 0, len(rawItems))
	for _, raw := range rawItems {
		merged := normalize.MergeLayers(append(append([]resource.Value{}, layers...), raw)...)
		doc, err := normalize.Item(merged, sch, rt)
		if err != nil {
			result.Items = append(result.Items, ItemResult{
				NaturalKey: normalize.NaturalKey(merged, rt),
				Err:        err,
			})
			continue
		}
		desired = append(desired, doc)
	}

	opts := diffengine.CompareOptions{
		KeepEmpty: sch.KeepEmptySet(),
		Suppress:  rt.SuppressCompare,
	}

	if rt.Singleton {
		d.reconcileSingleton(ctx, rt, sch, desired, opts, dryRun, &result)
		return result
	}
	d.reconcileCollection(ctx, rt, sch, desired, opts, dryRun, &result)
	return result
}

func (d *Driver) reconcileSingleton(ctx context.Context, rt schema.ResourceType, sch schema.Schema, desired []resource.Doc, opts diffengine.CompareOptions, dryRun bool, result *TypeResult) {
	if len(desired) == 0 {
		return
	}
	doc := desired[0]

	remote, err := d.client.GetSingleton(ctx, rt)
	if err != nil {
		if !faults.IsCategory(err, faults.NotFoundError) {
			result.Err = err
			return
		}
		remote = resource.Doc{}
	}
	remote = d.normalizeRemote(remote, sch, rt)

	record := diffengine.Singleton(rt.Name, doc, remote, opts)
	item := ItemResult{Action: record.Action, NaturalKey: record.NaturalKey, ChangedPaths: record.ChangedPaths, Desired: record.Desired}
	if record.Action == diffengine.ActionUpdate && !dryRun {
		item.Err = d.client.PutSingleton(ctx, rt, doc)
	}
	result.Items = append(result.Items, item)
}

func (d *Driver) reconcileCollection(ctx context.Context, rt schema.ResourceType, sch schema.Schema, desired []resource.Doc, opts diffengine.CompareOptions, dryRun bool, result *TypeResult) {
	remote, err := d.client.List(ctx, rt)
	if err != nil {
		result.Err = err
		return
	}
	remote = diffengine.FilterReadOnly(remote, rt.ReadOnlyField)
	for idx, item := range remote {
		remote[idx] = d.normalizeRemote(item, sch, rt)
	}

	// Collection orders deletes last, so a single pass applies creates and
	// updates before anything is removed.
	for _, record := range diffengine.Collection(desired, remote, rt.NaturalKeyField, opts) {
		item := ItemResult{Action: record.Action, NaturalKey: record.NaturalKey, ChangedPaths: record.ChangedPaths, Desired: record.Desired}
		if !dryRun {
			item.Err = d.execute(ctx, rt, record)
		}
		result.Items = append(result.Items, item)
	}
}

func (d *Driver) execute(ctx context.Context, rt schema.ResourceType, record diffengine.ChangeRecord) error {
	switch record.Action {
	case diffengine.ActionCreate:
		return d.client.Create(ctx, rt, record.Desired)
	case diffengine.ActionUpdate:
		return d.client.Update(ctx, rt, record.NaturalKey, record.Desired)
	case diffengine.ActionDelete:
		err := d.client.Delete(ctx, rt, record.NaturalKey)
		if err != nil && faults.IsCategory(err, faults.NotFoundError) {
			// Already gone; the desired state holds.
			return nil
		}
		return err
	default:
		return nil
	}
}

// normalizeRemote runs an observed document through the same schema the
// desired state uses, so a server still reporting legacy-shaped attributes
// compares equal to its canonical desired form. Documents the schema
// rejects are compared as observed.
func (d *Driver) normalizeRemote(remote resource.Doc, sch schema.Schema, rt schema.ResourceType) resource.Doc {
	normalized, err := normalize.Item(remote, sch, rt)
	if err != nil {
		return remote
	}
	return normalized
}

// schemaFor prefers the legacy-dialect schema when one is registered: its
// field map subsumes the canonical shape because unmapped keys pass
// through untouched, so mixed-dialect documents resolve in one pass.
func (d *Driver) schemaFor(name string) (schema.Schema, error) {
	sch, err := d.registry.Get(name, schema.DialectLegacy)
	if err == nil {
		return sch, nil
	}
	if !schema.IsUnknownSchemaError(err) {
		return schema.Schema{}, err
	}
	return d.registry.Get(name, schema.DialectCanonical)
}

func gateReason(rt schema.ResourceType, status server.ServerStatus, statusErr error) string {
	if !rt.RequiresProFeature && rt.MinServerVersion == "" {
		return ""
	}
	if statusErr != nil {
		return fmt.Sprintf("server status unavailable: %v", statusErr)
	}
	if rt.RequiresProFeature && !status.IsPro() {
		return fmt.Sprintf("requires the Pro edition, server reports %q", status.Edition)
	}
	if rt.MinServerVersion != "" {
		constraint, err := semver.NewConstraint(rt.MinServerVersion)
		if err != nil {
			return fmt.Sprintf("invalid version constraint %q", rt.MinServerVersion)
		}
		version, err := semver.NewVersion(status.Version)
		if err != nil {
			return fmt.Sprintf("server version %q is not comparable", status.Version)
		}
		if !constraint.Check(version) {
			return fmt.Sprintf("requires server version %s, server reports %s", rt.MinServerVersion, status.Version)
		}
	}
	return ""
}
