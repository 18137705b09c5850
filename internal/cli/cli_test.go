package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tim-schneider/nexsync/config"
	"github.com/tim-schneider/nexsync/faults"
	"github.com/tim-schneider/nexsync/resource"
	"github.com/tim-schneider/nexsync/schema"
	"github.com/tim-schneider/nexsync/server"
)

type stubClient struct {
	remote    map[string][]resource.Doc
	mutations []string
}

func (s *stubClient) List(_ context.Context, rt schema.ResourceType) ([]resource.Doc, error) {
	items := make([]resource.Doc, 0, len(s.remote[rt.Name]))
	for _, item := range s.remote[rt.Name] {
		items = append(items, resource.DeepCopy(item).(resource.Doc))
	}
	return items, nil
}

func (s *stubClient) Create(_ context.Context, rt schema.ResourceType, _ resource.Doc) error {
	s.mutations = append(s.mutations, "create "+rt.Name)
	return nil
}

func (s *stubClient) Update(_ context.Context, rt schema.ResourceType, naturalKey string, _ resource.Doc) error {
	s.mutations = append(s.mutations, "update "+rt.Name+"/"+naturalKey)
	return nil
}

func (s *stubClient) Delete(_ context.Context, rt schema.ResourceType, naturalKey string) error {
	s.mutations = append(s.mutations, "delete "+rt.Name+"/"+naturalKey)
	return nil
}

func (s *stubClient) GetSingleton(_ context.Context, rt schema.ResourceType) (resource.Doc, error) {
	return nil, faults.NewTypedError(faults.NotFoundError, "no document", nil)
}

func (s *stubClient) PutSingleton(_ context.Context, rt schema.ResourceType, _ resource.Doc) error {
	s.mutations = append(s.mutations, "put "+rt.Name)
	return nil
}

func (s *stubClient) Status(_ context.Context) (server.ServerStatus, error) {
	return server.ServerStatus{Edition: "PRO", Version: "3.61.0"}, nil
}

const testDocument = `
server:
  base-url: https://nexus.example.com
  auth:
    basic-auth:
      username: admin
      password: admin123
resources:
  content-selector:
    - name: raw-selector
      expression: format == "raw"
`

func testDependencies(client *stubClient, document string) Dependencies {
	return Dependencies{
		Registry: schema.NewCatalog(),
		LoadConfig: func(string) (*config.Config, error) {
			return config.Parse([]byte(document))
		},
		NewClient: func(config.Server) (server.CollectionClient, error) {
			return client, nil
		},
	}
}

func runCommand(t *testing.T, deps Dependencies, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(deps)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPlanComputesWithoutMutating(t *testing.T) {
	t.Parallel()

	client := &stubClient{remote: map[string][]resource.Doc{}}
	out, err := runCommand(t, testDependencies(client, testDocument), "plan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.mutations) != 0 {
		t.Fatalf("plan issued mutating calls: %#v", client.mutations)
	}
	if !strings.Contains(out, "raw-selector") || !strings.Contains(out, "create") {
		t.Fatalf("plan output missing the pending create:\n%s", out)
	}
	if !strings.Contains(out, "(dry run)") {
		t.Fatalf("plan output missing the dry-run marker:\n%s", out)
	}
}

func TestPlanDetailsPrintsDesiredDocuments(t *testing.T) {
	t.Parallel()

	client := &stubClient{remote: map[string][]resource.Doc{}}
	out, err := runCommand(t, testDependencies(client, testDocument), "plan", "--details")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "# content-selector/raw-selector (create)") {
		t.Fatalf("details output missing the document header:\n%s", out)
	}
	if !strings.Contains(out, "expression:") {
		t.Fatalf("details output missing the document body:\n%s", out)
	}
}

func TestApplyConvergesDeclaredState(t *testing.T) {
	t.Parallel()

	client := &stubClient{remote: map[string][]resource.Doc{}}
	out, err := runCommand(t, testDependencies(client, testDocument), "apply")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.mutations) != 1 || client.mutations[0] != "create content-selector" {
		t.Fatalf("unexpected mutations: %#v", client.mutations)
	}
	if !strings.Contains(out, "1 created, 0 updated, 0 deleted, 0 unchanged, 0 failed") {
		t.Fatalf("unexpected totals line:\n%s", out)
	}
}

func TestApplyRefusesUnconfirmedDeletes(t *testing.T) {
	t.Parallel()

	client := &stubClient{remote: map[string][]resource.Doc{
		"content-selector": {{
			"name":       "stale-selector",
			"type":       "csel",
			"expression": `format == "npm"`,
		}},
	}}
	document := strings.Replace(testDocument, "raw-selector", "new-selector", 1)

	_, err := runCommand(t, testDependencies(client, document), "apply")
	if err == nil {
		t.Fatalf("expected a refusal for unconfirmed deletes")
	}
	if ExitCodeForError(err) != 2 {
		t.Fatalf("unexpected exit code %d for %v", ExitCodeForError(err), err)
	}
	for _, mutation := range client.mutations {
		if strings.HasPrefix(mutation, "delete") {
			t.Fatalf("refused run still deleted: %#v", client.mutations)
		}
	}
}

func TestApplyYesSkipsConfirmation(t *testing.T) {
	t.Parallel()

	client := &stubClient{remote: map[string][]resource.Doc{
		"content-selector": {{
			"name":       "stale-selector",
			"type":       "csel",
			"expression": `format == "npm"`,
		}},
	}}
	document := strings.Replace(testDocument, "raw-selector", "new-selector", 1)

	_, err := runCommand(t, testDependencies(client, document), "apply", "--yes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deleted := false
	for _, mutation := range client.mutations {
		if mutation == "delete content-selector/stale-selector" {
			deleted = true
		}
	}
	if !deleted {
		t.Fatalf("--yes did not apply the delete: %#v", client.mutations)
	}
}

func TestApplyDeclinedConfirmationAborts(t *testing.T) {
	t.Parallel()

	client := &stubClient{remote: map[string][]resource.Doc{
		"content-selector": {{
			"name":       "stale-selector",
			"type":       "csel",
			"expression": `format == "npm"`,
		}},
	}}
	document := strings.Replace(testDocument, "raw-selector", "new-selector", 1)

	deps := testDependencies(client, document)
	deps.Confirm = func(string) (bool, error) { return false, nil }

	_, err := runCommand(t, deps, "apply")
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected an abort, got %v", err)
	}
	if ExitCodeForError(err) != 3 {
		t.Fatalf("unexpected exit code %d", ExitCodeForError(err))
	}
	for _, mutation := range client.mutations {
		if strings.HasPrefix(mutation, "delete") {
			t.Fatalf("declined run still deleted: %#v", client.mutations)
		}
	}
}

func TestValidateRejectsBrokenDocuments(t *testing.T) {
	t.Parallel()

	document := `
server:
  base-url: https://nexus.example.com
  auth:
    basic-auth:
      username: admin
      password: admin123
resources:
  user:
    - userId: broken
      firstName: No
      lastName: Email
`
	_, err := runCommand(t, testDependencies(&stubClient{}, document), "validate")
	if err == nil {
		t.Fatalf("expected a validation error")
	}
	if ExitCodeForError(err) != 2 {
		t.Fatalf("unexpected exit code %d for %v", ExitCodeForError(err), err)
	}
}

func TestValidateAcceptsCompleteDocuments(t *testing.T) {
	t.Parallel()

	out, err := runCommand(t, testDependencies(&stubClient{}, testDocument), "validate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "configuration valid: 1 resource type(s), 1 item(s)") {
		t.Fatalf("unexpected validate output:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	deps := testDependencies(&stubClient{}, testDocument)
	deps.Version = "1.4.0"
	out, err := runCommand(t, deps, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "nexsync 1.4.0" {
		t.Fatalf("unexpected version output %q", out)
	}
}
