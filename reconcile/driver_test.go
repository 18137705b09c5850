package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/tim-schneider/nexsync/config"
	"github.com/tim-schneider/nexsync/diffengine"
	"github.com/tim-schneider/nexsync/faults"
	"github.com/tim-schneider/nexsync/normalize"
	"github.com/tim-schneider/nexsync/resource"
	"github.com/tim-schneider/nexsync/schema"
	"github.com/tim-schneider/nexsync/server"
)

type fakeClient struct {
	collections map[string][]resource.Doc
	singletons  map[string]resource.Doc
	status      server.ServerStatus
	statusErr   error
	listErr     map[string]error
	mutations   []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		collections: map[string][]resource.Doc{},
		singletons:  map[string]resource.Doc{},
		status:      server.ServerStatus{Edition: "PRO", Version: "3.61.0"},
		listErr:     map[string]error{},
	}
}

func (f *fakeClient) List(_ context.Context, rt schema.ResourceType) ([]resource.Doc, error) {
	if err := f.listErr[rt.Name]; err != nil {
		return nil, err
	}
	items := f.collections[rt.Name]
	copies := make([]resource.Doc, 0, len(items))
	for _, item := range items {
		copies = append(copies, resource.DeepCopy(item).(resource.Doc))
	}
	return copies, nil
}

func (f *fakeClient) Create(_ context.Context, rt schema.ResourceType, doc resource.Doc) error {
	f.mutations = append(f.mutations, "create "+rt.Name+"/"+f.keyOf(rt, doc))
	f.collections[rt.Name] = append(f.collections[rt.Name], resource.DeepCopy(doc).(resource.Doc))
	return nil
}

func (f *fakeClient) Update(_ context.Context, rt schema.ResourceType, naturalKey string, doc resource.Doc) error {
	f.mutations = append(f.mutations, "update "+rt.Name+"/"+naturalKey)
	for idx, item := range f.collections[rt.Name] {
		if f.keyOf(rt, item) == naturalKey {
			f.collections[rt.Name][idx] = resource.DeepCopy(doc).(resource.Doc)
			return nil
		}
	}
	return faults.NewTypedError(faults.NotFoundError, "no item "+naturalKey, nil)
}

func (f *fakeClient) Delete(_ context.Context, rt schema.ResourceType, naturalKey string) error {
	f.mutations = append(f.mutations, "delete "+rt.Name+"/"+naturalKey)
	items := f.collections[rt.Name]
	for idx, item := range items {
		if f.keyOf(rt, item) == naturalKey {
			f.collections[rt.Name] = append(items[:idx:idx], items[idx+1:]...)
			return nil
		}
	}
	return faults.NewTypedError(faults.NotFoundError, "no item "+naturalKey, nil)
}

func (f *fakeClient) GetSingleton(_ context.Context, rt schema.ResourceType) (resource.Doc, error) {
	doc, found := f.singletons[rt.Name]
	if !found {
		return nil, faults.NewTypedError(faults.NotFoundError, "no document", nil)
	}
	return resource.DeepCopy(doc).(resource.Doc), nil
}

func (f *fakeClient) PutSingleton(_ context.Context, rt schema.ResourceType, doc resource.Doc) error {
	f.mutations = append(f.mutations, "put "+rt.Name)
	f.singletons[rt.Name] = resource.DeepCopy(doc).(resource.Doc)
	return nil
}

func (f *fakeClient) Status(_ context.Context) (server.ServerStatus, error) {
	if f.statusErr != nil {
		return server.ServerStatus{}, f.statusErr
	}
	return f.status, nil
}

func (f *fakeClient) keyOf(rt schema.ResourceType, doc resource.Doc) string {
	value, _ := resource.GetPath(doc, rt.NaturalKeyField)
	return fmt.Sprintf("%v", value)
}

func userDoc(id string, email string, roles ...string) map[string]any {
	roleList := make([]any, 0, len(roles))
	for _, role := range roles {
		roleList = append(roleList, role)
	}
	return map[string]any{
		"userId":       id,
		"firstName":    "Test",
		"lastName":     "User",
		"emailAddress": email,
		"password":     "secret",
		"roles":        roleList,
	}
}

func remoteUserDoc(id string, email string, roles ...string) resource.Doc {
	doc := resource.Doc(userDoc(id, email, roles...))
	delete(doc, "password")
	doc["source"] = "default"
	doc["status"] = "active"
	return doc
}

func typeResult(t *testing.T, report *Report, name string) TypeResult {
	t.Helper()
	for _, result := range report.Types {
		if result.ResourceType == name {
			return result
		}
	}
	t.Fatalf("no result for type %q in %#v", name, report.Types)
	return TypeResult{}
}

func TestRunCreatesUpdatesAndDeletes(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.collections["user"] = []resource.Doc{
		remoteUserDoc("bob", "old@example.org", "nx-admin"),
		remoteUserDoc("carol", "carol@example.org"),
		{"userId": "system", "readOnly": true},
	}
	cfg := &config.Config{Resources: map[string]any{
		"user": []any{
			userDoc("alice", "alice@example.org", "nx-admin"),
			userDoc("bob", "bob@example.org", "nx-admin"),
		},
	}}

	driver := NewDriver(schema.NewCatalog(), client, cfg)
	report, err := driver.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed() {
		t.Fatalf("unexpected failure: %#v", report.Types)
	}

	summary := typeResult(t, report, "user").Summary()
	want := Summary{Created: 1, Updated: 1, Deleted: 1}
	if summary != want {
		t.Fatalf("unexpected summary: got %#v, want %#v", summary, want)
	}

	wantMutations := []string{"create user/alice", "update user/bob", "delete user/carol"}
	if len(client.mutations) != len(wantMutations) {
		t.Fatalf("unexpected mutations: %#v", client.mutations)
	}
	for idx, mutation := range wantMutations {
		if client.mutations[idx] != mutation {
			t.Fatalf("unexpected mutation order: got %#v, want %#v", client.mutations, wantMutations)
		}
	}

	for _, item := range client.collections["user"] {
		if item["userId"] == "system" {
			return
		}
	}
	t.Fatalf("read-only item was removed: %#v", client.collections["user"])
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	cfg := &config.Config{Resources: map[string]any{
		"user": []any{userDoc("alice", "alice@example.org", "nx-admin")},
		"anonymous-access": map[string]any{
			"enabled": true,
		},
	}}

	driver := NewDriver(schema.NewCatalog(), client, cfg)
	if _, err := driver.Run(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error on first run: %v", err)
	}
	client.mutations = nil

	report, err := driver.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}
	if len(client.mutations) != 0 {
		t.Fatalf("second run issued mutating calls: %#v", client.mutations)
	}
	for _, result := range report.Types {
		for _, item := range result.Items {
			if item.Action != diffengine.ActionUnchanged {
				t.Fatalf("second run classified %s/%s as %q", result.ResourceType, item.NaturalKey, item.Action)
			}
		}
	}
}

func TestRunDryRunMakesNoMutatingCalls(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.collections["user"] = []resource.Doc{remoteUserDoc("carol", "carol@example.org")}
	cfg := &config.Config{Resources: map[string]any{
		"user": []any{userDoc("alice", "alice@example.org")},
	}}

	driver := NewDriver(schema.NewCatalog(), client, cfg)
	report, err := driver.Run(context.Background(), Request{DryRun: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !report.DryRun {
		t.Fatalf("report does not carry the dry-run flag")
	}
	summary := typeResult(t, report, "user").Summary()
	want := Summary{Created: 1, Deleted: 1}
	if summary != want {
		t.Fatalf("unexpected summary: got %#v, want %#v", summary, want)
	}
	if report.PendingDeletes() != 1 {
		t.Fatalf("unexpected pending deletes: %d", report.PendingDeletes())
	}
	if len(client.mutations) != 0 {
		t.Fatalf("dry run issued mutating calls: %#v", client.mutations)
	}
	if len(client.collections["user"]) != 1 {
		t.Fatalf("dry run changed remote state: %#v", client.collections["user"])
	}
}

func TestRunSkipsGatedTypes(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.status = server.ServerStatus{Edition: "OSS", Version: "3.21.1"}
	cfg := &config.Config{Resources: map[string]any{
		"user-token-settings": map[string]any{"enabled": true},
		"cleanup-policy": []any{
			map[string]any{"name": "purge-old", "format": "maven2"},
		},
	}}

	driver := NewDriver(schema.NewCatalog(), client, cfg)
	report, err := driver.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed() {
		t.Fatalf("skipped types must not fail the run: %#v", report.Types)
	}

	tokens := typeResult(t, report, "user-token-settings")
	if !tokens.Skipped || tokens.SkipReason == "" {
		t.Fatalf("user-token-settings not skipped on OSS: %#v", tokens)
	}
	policies := typeResult(t, report, "cleanup-policy")
	if !policies.Skipped || policies.SkipReason == "" {
		t.Fatalf("cleanup-policy not skipped on 3.21.1: %#v", policies)
	}
	if len(client.mutations) != 0 {
		t.Fatalf("skipped types issued calls: %#v", client.mutations)
	}
}

func TestRunSkipsGatedTypesWhenStatusProbeFails(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.statusErr = faults.NewTypedError(faults.TransportError, "status endpoint unreachable", nil)
	client.collections["user"] = []resource.Doc{
		remoteUserDoc("alice", "alice@example.org"),
	}
	cfg := &config.Config{Resources: map[string]any{
		"cleanup-policy": []any{
			map[string]any{"name": "purge-old", "format": "maven2"},
		},
		"user": []any{userDoc("alice", "alice@example.org")},
	}}

	driver := NewDriver(schema.NewCatalog(), client, cfg)
	report, err := driver.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed() {
		t.Fatalf("probe failure must not fail the run: %#v", report.Types)
	}

	policies := typeResult(t, report, "cleanup-policy")
	if !policies.Skipped || policies.SkipReason == "" {
		t.Fatalf("gated type not skipped on probe failure: %#v", policies)
	}
	users := typeResult(t, report, "user")
	if users.Skipped || users.Err != nil {
		t.Fatalf("ungated type must proceed on probe failure: %#v", users)
	}
	if got := users.Summary(); got.Unchanged != 1 {
		t.Fatalf("expected converged user untouched, got %#v", got)
	}
	if len(client.mutations) != 0 {
		t.Fatalf("unexpected calls: %#v", client.mutations)
	}
}

func TestRunFailsTypeWhenListFails(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.listErr["user"] = faults.NewTypedError(faults.TransportError, "connection refused", nil)
	cfg := &config.Config{Resources: map[string]any{
		"user": []any{userDoc("alice", "alice@example.org")},
		"content-selector": []any{
			map[string]any{"name": "raw-selector", "expression": `format == "raw"`},
		},
	}}

	driver := NewDriver(schema.NewCatalog(), client, cfg)
	report, err := driver.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Failed() {
		t.Fatalf("list failure not reported: %#v", report.Types)
	}

	users := typeResult(t, report, "user")
	if users.Err == nil || !faults.IsCategory(users.Err, faults.TransportError) {
		t.Fatalf("unexpected type error: %v", users.Err)
	}
	if len(users.Items) != 0 {
		t.Fatalf("failed type still executed items: %#v", users.Items)
	}

	selectors := typeResult(t, report, "content-selector")
	if selectors.Failed() {
		t.Fatalf("healthy sibling type failed: %#v", selectors)
	}
	if selectors.Summary().Created != 1 {
		t.Fatalf("sibling type not reconciled: %#v", selectors.Summary())
	}
}

func TestRunIsolatesNormalizationFailures(t *testing.T) {
	t.Parallel()

	broken := userDoc("broken", "")
	delete(broken, "emailAddress")

	client := newFakeClient()
	cfg := &config.Config{Resources: map[string]any{
		"user": []any{broken, userDoc("alice", "alice@example.org")},
	}}

	driver := NewDriver(schema.NewCatalog(), client, cfg)
	report, err := driver.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Failed() {
		t.Fatalf("normalization failure not reported: %#v", report.Types)
	}

	users := typeResult(t, report, "user")
	summary := users.Summary()
	if summary.Failed != 1 || summary.Created != 1 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
	for _, item := range users.Items {
		if item.Err != nil {
			if item.NaturalKey != "broken" {
				t.Fatalf("failure attributed to wrong item: %#v", item)
			}
			if !normalize.IsNormalizationError(item.Err) {
				t.Fatalf("unexpected item error: %v", item.Err)
			}
		}
	}
}

func TestRunUpdatesSingleton(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.singletons["anonymous-access"] = resource.Doc{
		"enabled":   false,
		"userId":    "anonymous",
		"realmName": "NexusAuthorizingRealm",
	}
	cfg := &config.Config{Resources: map[string]any{
		"anonymous-access": map[string]any{"enabled": true},
	}}

	driver := NewDriver(schema.NewCatalog(), client, cfg)
	report, err := driver.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	access := typeResult(t, report, "anonymous-access")
	if access.Summary().Updated != 1 {
		t.Fatalf("singleton drift not applied: %#v", access)
	}
	if enabled, _ := client.singletons["anonymous-access"]["enabled"].(bool); !enabled {
		t.Fatalf("singleton not written: %#v", client.singletons["anonymous-access"])
	}
}

func TestRunComparesLegacyShapedDesiredState(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.collections["cleanup-policy"] = []resource.Doc{{
		"name":                    "purge-old",
		"format":                  "maven2",
		"notes":                   "",
		"criteriaLastBlobUpdated": int64(60),
	}}
	cfg := &config.Config{Resources: map[string]any{
		"cleanup-policy": []any{map[string]any{
			"name":   "purge-old",
			"format": "maven2",
			"criteria": map[string]any{
				"lastBlobUpdated": "5184000",
			},
		}},
	}}

	driver := NewDriver(schema.NewCatalog(), client, cfg)
	report, err := driver.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	policies := typeResult(t, report, "cleanup-policy")
	if policies.Summary().Unchanged != 1 {
		t.Fatalf("legacy desired shape did not converge: %#v", policies.Items)
	}
	if len(client.mutations) != 0 {
		t.Fatalf("converged state issued calls: %#v", client.mutations)
	}
}

func TestRunRejectsUnknownType(t *testing.T) {
	t.Parallel()

	driver := NewDriver(schema.NewCatalog(), newFakeClient(), &config.Config{Resources: map[string]any{}})
	_, err := driver.Run(context.Background(), Request{Types: []string{"flux-capacitor"}})
	if err == nil {
		t.Fatalf("expected an error for an unknown resource type")
	}
	if !faults.IsCategory(err, faults.SchemaError) {
		t.Fatalf("unexpected error category: %v", err)
	}
}

func TestRunTreatsMissingDeleteAsApplied(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.collections["role"] = []resource.Doc{
		{"id": "ghost", "name": "ghost"},
	}
	cfg := &config.Config{Resources: map[string]any{
		"role": []any{},
	}}

	// Another operator removes the role between LIST and DELETE.
	deleting := &racingClient{fakeClient: client}

	driver := NewDriver(schema.NewCatalog(), deleting, cfg)
	report, err := driver.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed() {
		t.Fatalf("missing delete target reported as failure: %#v", report.Types)
	}
	roles := typeResult(t, report, "role")
	if roles.Summary().Deleted != 1 {
		t.Fatalf("unexpected summary: %#v", roles.Summary())
	}
}

// racingClient empties the collection after LIST so every DELETE hits a
// missing item.
type racingClient struct {
	*fakeClient
}

func (r *racingClient) List(ctx context.Context, rt schema.ResourceType) ([]resource.Doc, error) {
	items, err := r.fakeClient.List(ctx, rt)
	r.fakeClient.collections[rt.Name] = nil
	return items, err
}
