package cli

import (
	"errors"

	"github.com/tim-schneider/nexsync/config"
	"github.com/tim-schneider/nexsync/faults"
	"github.com/tim-schneider/nexsync/schema"
	"github.com/tim-schneider/nexsync/server"
)

// Dependencies carries the collaborators the commands run against. Tests
// swap in fakes; main wires the real catalog, loader and HTTP gateway.
type Dependencies struct {
	Registry   *schema.Registry
	LoadConfig func(source string) (*config.Config, error)
	NewClient  func(cfg config.Server) (server.CollectionClient, error)

	// Confirm asks before a run that would delete remote items. Nil means
	// non-interactive; deletes then require --yes.
	Confirm func(prompt string) (bool, error)

	Version string
}

// Execute runs the CLI and returns the command error, already printed by
// cobra's SilenceErrors handling in NewRootCommand.
func Execute(deps Dependencies) error {
	return NewRootCommand(deps).Execute()
}

// ErrReconciliationFailed signals that the run completed but one or more
// items failed; the report already names them.
var ErrReconciliationFailed = errors.New("reconciliation finished with failures")

// ErrAborted signals that the operator declined the delete confirmation.
var ErrAborted = errors.New("aborted")

// ExitCodeForError maps command errors onto stable exit codes: 0 clean,
// 2 configuration problems, 3 declined confirmation, 1 everything else
// including partially failed runs.
func ExitCodeForError(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, ErrAborted) {
		return 3
	}
	var typedErr *faults.TypedError
	if errors.As(err, &typedErr) && typedErr.Category == faults.ValidationError {
		return 2
	}
	return 1
}
