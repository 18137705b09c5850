package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tim-schneider/nexsync/faults"
)

// Reconciliation order is a fixed table, not a computed graph: the
// dependency set is closed and known in advance. Referenced entities come
// before their referents (blob stores before the repositories that use
// them, privileges before roles, hosted and proxy repositories before the
// groups that aggregate them).
var typeRanks = map[string]int{
	"file-blob-store":     0,
	"s3-blob-store":       0,
	"content-selector":    10,
	"routing-rule":        20,
	"cleanup-policy":      30,
	"ldap-connection":     40,
	"privilege":           50,
	"role":                60,
	"user":                70,
	"user-token-settings": 80,
}

const (
	rankHostedRepository = 100
	rankProxyRepository  = 110
	rankGroupRepository  = 120
	rankSecurityRealms   = 200
	rankAnonymousAccess  = 210
)

// CyclicDependencyError is reserved for a future graph-computed ordering;
// the fixed table cannot produce a cycle.
type CyclicDependencyError struct {
	err error
}

func (e *CyclicDependencyError) Error() string {
	if e == nil || e.err == nil {
		return "<nil>"
	}
	return e.err.Error()
}

func (e *CyclicDependencyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func IsCyclicDependencyError(err error) bool {
	var target *CyclicDependencyError
	return errors.As(err, &target)
}

// OrderTypes sorts resource type names into reconciliation order. The sort
// is stable so types of equal rank keep their requested order. Unknown
// names fail the whole call; a misspelled selector must not silently skip
// a pipeline.
func OrderTypes(names []string) ([]string, error) {
	ordered := make([]string, len(names))
	copy(ordered, names)

	for _, name := range ordered {
		if _, err := rankOf(name); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		left, _ := rankOf(ordered[i])
		right, _ := rankOf(ordered[j])
		return left < right
	})
	return ordered, nil
}

func rankOf(name string) (int, error) {
	if rank, found := typeRanks[name]; found {
		return rank, nil
	}

	switch repositoryKind(name) {
	case "hosted":
		return rankHostedRepository, nil
	case "proxy":
		return rankProxyRepository, nil
	case "group":
		return rankGroupRepository, nil
	}

	switch name {
	case "security-realms":
		return rankSecurityRealms, nil
	case "anonymous-access":
		return rankAnonymousAccess, nil
	}

	return 0, faults.NewTypedError(
		faults.SchemaError,
		fmt.Sprintf("resource type %q has no reconciliation order", name),
		nil,
	)
}
