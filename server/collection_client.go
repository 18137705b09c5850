package server

import (
	"context"
	"strings"

	"github.com/tim-schneider/nexsync/resource"
	"github.com/tim-schneider/nexsync/schema"
)

// ServerStatus carries the edition and version the server reports, used by
// the feature-availability gate.
type ServerStatus struct {
	Edition string
	Version string
}

// IsPro reports whether the server runs a licensed Pro edition.
func (s ServerStatus) IsPro() bool {
	return strings.EqualFold(strings.TrimSpace(s.Edition), "PRO")
}

// CollectionClient is the remote API collaborator the reconciliation
// driver talks to: one collection endpoint per resource type with list,
// create, update and delete semantics, plus the singleton variants and the
// status probe. Update is a full replace; implementations must return a
// NotFoundError-category fault for DELETE of a missing item so the driver
// can treat it as already satisfied.
type CollectionClient interface {
	List(ctx context.Context, rt schema.ResourceType) ([]resource.Doc, error)
	Create(ctx context.Context, rt schema.ResourceType, doc resource.Doc) error
	Update(ctx context.Context, rt schema.ResourceType, naturalKey string, doc resource.Doc) error
	Delete(ctx context.Context, rt schema.ResourceType, naturalKey string) error

	GetSingleton(ctx context.Context, rt schema.ResourceType) (resource.Doc, error)
	PutSingleton(ctx context.Context, rt schema.ResourceType, doc resource.Doc) error

	Status(ctx context.Context) (ServerStatus, error)
}
