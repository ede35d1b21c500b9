// Package tools implements the PocketBase MCP tools and the schema resource.
// Every data tool resolves the caller's identity first and scopes its
// backend call to records owned by that identity.
package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
	"github.com/jamesprial/pocketbase-mcp/internal/logging"
	"github.com/jamesprial/pocketbase-mcp/internal/mcp"
	"github.com/jamesprial/pocketbase-mcp/internal/pocketbase"
	"github.com/jamesprial/pocketbase-mcp/pkg/api"
)

const domain = "tools"

// Argument names.
const (
	argCollection = "collection"
	argUserID     = "user_id"
	argID         = "id"
	argData       = "data"
	argPage       = "page"
	argPerPage    = "perPage"
	argFilter     = "filter"
	argSort       = "sort"
)

// Paging bounds for get_records.
const (
	DefaultPage    = 1
	DefaultPerPage = 30
	MaxPerPage     = 500
)

// ErrNotOwned is reported for a record that is missing or owned by someone
// else. The two cases are deliberately indistinguishable.
var ErrNotOwned = errors.New("record not found or not owned by caller")

// IdentityResolver maps a caller identity to an internal user id.
type IdentityResolver interface {
	Resolve(ctx context.Context, callerID string) (string, error)
	// Forget drops a cached mapping that the backend no longer honours.
	Forget(callerID string)
}

// Deps are the collaborators shared by every tool.
type Deps struct {
	Client     pocketbase.Client
	Resolver   IdentityResolver
	OwnerField string
	SchemaPath string
	Logger     *zap.Logger
}

func (d *Deps) ownerField() string {
	if d.OwnerField == "" {
		return "user"
	}
	return d.OwnerField
}

func (d *Deps) logger() *zap.Logger {
	return logging.OrNop(d.Logger)
}

// All returns the six tools in catalog order.
func All(deps *Deps) []mcp.Tool {
	return []mcp.Tool{
		&ListCollections{deps: deps},
		&GetRecords{deps: deps},
		&CreateRecord{deps: deps},
		&UpdateRecord{deps: deps},
		&DeleteRecord{deps: deps},
		&ApplySchema{deps: deps},
	}
}

// Register adds every tool to tools and the schema resource to resources.
func Register(tools mcp.ToolRegistry, resources mcp.ResourceRegistry, deps *Deps) error {
	if deps == nil || deps.Client == nil {
		return fmt.Errorf("tools: backend client is required")
	}
	if deps.Resolver == nil {
		return fmt.Errorf("tools: identity resolver is required")
	}
	for _, t := range All(deps) {
		if err := tools.RegisterTool(t.Definition().Name, t); err != nil {
			return err
		}
	}
	if resources != nil {
		if err := resources.RegisterResource(api.SchemaResourceURI, NewSchemaResource(deps.SchemaPath)); err != nil {
			return err
		}
	}
	return nil
}

// objectSchema builds a JSON Schema object with the given properties.
func objectSchema(required []string, props map[string]any) map[string]any {
	req := make([]any, 0, len(required))
	for _, r := range required {
		req = append(req, r)
	}
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(req) > 0 {
		s["required"] = req
	}
	return s
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "minLength": 1, "description": description}
}

func collectionProp() map[string]any {
	return stringProp("Collection name or id")
}

func userIDProp() map[string]any {
	return stringProp("Caller identity; records are scoped to the internal user bound to it")
}

func validationErr(op, format string, args ...any) error {
	return internalerrors.New(domain, op, internalerrors.ErrValidation, fmt.Errorf(format, args...))
}

func backendErr(op string, err error) error {
	return internalerrors.New(domain, op, internalerrors.ErrBackend, err)
}

// requiredString returns a non-blank string argument.
func requiredString(op string, args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", validationErr(op, "%s is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", validationErr(op, "%s must be a string", key)
	}
	if strings.TrimSpace(s) == "" {
		return "", validationErr(op, "%s must not be empty", key)
	}
	return s, nil
}

// optionalString returns a string argument or "".
func optionalString(op string, args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", validationErr(op, "%s must be a string", key)
	}
	return s, nil
}

// optionalInt returns an integral number argument or def.
func optionalInt(op string, args map[string]any, key string, def, min, max int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	var n int
	switch x := v.(type) {
	case float64:
		if x != float64(int(x)) {
			return 0, validationErr(op, "%s must be an integer", key)
		}
		n = int(x)
	case int:
		n = x
	case int64:
		n = int(x)
	default:
		return 0, validationErr(op, "%s must be a number", key)
	}
	if n < min || (max > 0 && n > max) {
		if max > 0 {
			return 0, validationErr(op, "%s must be between %d and %d", key, min, max)
		}
		return 0, validationErr(op, "%s must be at least %d", key, min)
	}
	return n, nil
}

// requiredObject returns an object argument.
func requiredObject(op string, args map[string]any, key string) (map[string]any, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, validationErr(op, "%s is required", key)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, validationErr(op, "%s must be an object", key)
	}
	return obj, nil
}

// withOwner copies data and forces the owner field to uid.
// ownerRejected reports whether err is a PocketBase validation failure on the
// owner field, which is what a relation to a deleted user record produces.
func ownerRejected(err error, field string) bool {
	var apiErr *pocketbase.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		return false
	}
	_, ok := apiErr.Data[field]
	return ok
}

func withOwner(data map[string]any, field, uid string) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[field] = uid
	return out
}
