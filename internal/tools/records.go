package tools

import (
	"context"

	"go.uber.org/zap"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
	"github.com/jamesprial/pocketbase-mcp/internal/identity"
	"github.com/jamesprial/pocketbase-mcp/internal/mcp"
	"github.com/jamesprial/pocketbase-mcp/internal/pocketbase"
	"github.com/jamesprial/pocketbase-mcp/pkg/api"
)

// ListCollections returns every PocketBase collection.
type ListCollections struct {
	deps *Deps
}

// Definition implements mcp.Tool.
func (t *ListCollections) Definition() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name:        api.ToolListCollections,
		Description: "List all PocketBase collections with their fields.",
		InputSchema: objectSchema(nil, map[string]any{}),
	}
}

// Execute implements mcp.Tool.
func (t *ListCollections) Execute(ctx context.Context, _ map[string]any) (any, error) {
	cols, err := t.deps.Client.ListCollections(ctx)
	if err != nil {
		return nil, backendErr("ListCollections", err)
	}
	return cols, nil
}

// GetRecords lists the caller's records in a collection.
type GetRecords struct {
	deps *Deps
}

// Definition implements mcp.Tool.
func (t *GetRecords) Definition() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name:        api.ToolGetRecords,
		Description: "Query the caller's records in a collection with optional PocketBase filter, sort and pagination.",
		InputSchema: objectSchema([]string{argCollection, argUserID}, map[string]any{
			argCollection: collectionProp(),
			argUserID:     userIDProp(),
			argPage: map[string]any{
				"type": "integer", "minimum": 1, "default": DefaultPage,
				"description": "Page number, starting at 1",
			},
			argPerPage: map[string]any{
				"type": "integer", "minimum": 1, "maximum": MaxPerPage, "default": DefaultPerPage,
				"description": "Records per page",
			},
			argFilter: map[string]any{
				"type":        "string",
				"description": `PocketBase filter expression, e.g. title ~ "draft"`,
			},
			argSort: map[string]any{
				"type":        "string",
				"description": "Sort fields, e.g. -created,title",
			},
		}),
	}
}

// Execute implements mcp.Tool.
func (t *GetRecords) Execute(ctx context.Context, args map[string]any) (any, error) {
	const op = "GetRecords"
	collection, err := requiredString(op, args, argCollection)
	if err != nil {
		return nil, err
	}
	callerID, err := requiredString(op, args, argUserID)
	if err != nil {
		return nil, err
	}
	page, err := optionalInt(op, args, argPage, DefaultPage, 1, 0)
	if err != nil {
		return nil, err
	}
	perPage, err := optionalInt(op, args, argPerPage, DefaultPerPage, 1, MaxPerPage)
	if err != nil {
		return nil, err
	}
	filter, err := optionalString(op, args, argFilter)
	if err != nil {
		return nil, err
	}
	if err := identity.CheckCallerFilter(filter); err != nil {
		return nil, validationErr(op, "invalid %s: %w", argFilter, err)
	}
	sort, err := optionalString(op, args, argSort)
	if err != nil {
		return nil, err
	}

	uid, err := t.deps.Resolver.Resolve(ctx, callerID)
	if err != nil {
		return nil, err
	}

	res, err := t.deps.Client.GetList(ctx, collection, pocketbase.ListQuery{
		Page:    page,
		PerPage: perPage,
		Filter:  identity.OwnerFilter(t.deps.ownerField(), uid, filter),
		Sort:    sort,
	})
	if err != nil {
		return nil, backendErr(op, err)
	}
	return res, nil
}

// CreateRecord creates a record owned by the caller.
type CreateRecord struct {
	deps *Deps
}

// Definition implements mcp.Tool.
func (t *CreateRecord) Definition() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name:        api.ToolCreateRecord,
		Description: "Create a record in a collection. The owner field is set to the caller and cannot be overridden.",
		InputSchema: objectSchema([]string{argCollection, argUserID, argData}, map[string]any{
			argCollection: collectionProp(),
			argUserID:     userIDProp(),
			argData: map[string]any{
				"type":        "object",
				"description": "Record fields",
			},
		}),
	}
}

// Execute implements mcp.Tool.
func (t *CreateRecord) Execute(ctx context.Context, args map[string]any) (any, error) {
	const op = "CreateRecord"
	collection, err := requiredString(op, args, argCollection)
	if err != nil {
		return nil, err
	}
	callerID, err := requiredString(op, args, argUserID)
	if err != nil {
		return nil, err
	}
	data, err := requiredObject(op, args, argData)
	if err != nil {
		return nil, err
	}

	uid, err := t.deps.Resolver.Resolve(ctx, callerID)
	if err != nil {
		return nil, err
	}

	rec, err := t.deps.Client.Create(ctx, collection, withOwner(data, t.deps.ownerField(), uid))
	if err != nil && ownerRejected(err, t.deps.ownerField()) {
		// The cached user record may have been deleted; resolve once more.
		t.deps.Resolver.Forget(callerID)
		fresh, rerr := t.deps.Resolver.Resolve(ctx, callerID)
		if rerr != nil {
			return nil, rerr
		}
		if fresh != uid {
			t.deps.logger().Info("stale identity replaced",
				zap.String("stale", uid),
				zap.String("user", fresh),
			)
			rec, err = t.deps.Client.Create(ctx, collection, withOwner(data, t.deps.ownerField(), fresh))
		}
	}
	if err != nil {
		return nil, backendErr(op, err)
	}
	t.deps.logger().Debug("record created",
		zap.String("collection", collection),
		zap.String("record", rec.ID()),
	)
	return rec, nil
}

// UpdateRecord updates a record owned by the caller.
type UpdateRecord struct {
	deps *Deps
}

// Definition implements mcp.Tool.
func (t *UpdateRecord) Definition() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name:        api.ToolUpdateRecord,
		Description: "Update a record the caller owns. Ownership cannot be transferred.",
		InputSchema: objectSchema([]string{argCollection, argID, argUserID, argData}, map[string]any{
			argCollection: collectionProp(),
			argID:         stringProp("Record id"),
			argUserID:     userIDProp(),
			argData: map[string]any{
				"type":        "object",
				"description": "Fields to change",
			},
		}),
	}
}

// Execute implements mcp.Tool.
func (t *UpdateRecord) Execute(ctx context.Context, args map[string]any) (any, error) {
	const op = "UpdateRecord"
	collection, err := requiredString(op, args, argCollection)
	if err != nil {
		return nil, err
	}
	id, err := requiredString(op, args, argID)
	if err != nil {
		return nil, err
	}
	callerID, err := requiredString(op, args, argUserID)
	if err != nil {
		return nil, err
	}
	data, err := requiredObject(op, args, argData)
	if err != nil {
		return nil, err
	}

	uid, err := t.deps.Resolver.Resolve(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if err := ensureOwned(ctx, t.deps, op, collection, id, uid); err != nil {
		return nil, err
	}

	// Not atomic with the ownership check above; PocketBase has no
	// conditional update by filter.
	rec, err := t.deps.Client.Update(ctx, collection, id, withOwner(data, t.deps.ownerField(), uid))
	if err != nil {
		if pocketbase.IsNotFound(err) {
			return nil, notOwned(op, collection, id)
		}
		return nil, backendErr(op, err)
	}
	return rec, nil
}

// DeleteRecord deletes a record owned by the caller.
type DeleteRecord struct {
	deps *Deps
}

// DeleteResult is returned by delete_record.
type DeleteResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// Definition implements mcp.Tool.
func (t *DeleteRecord) Definition() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name:        api.ToolDeleteRecord,
		Description: "Delete a record the caller owns.",
		InputSchema: objectSchema([]string{argCollection, argID, argUserID}, map[string]any{
			argCollection: collectionProp(),
			argID:         stringProp("Record id"),
			argUserID:     userIDProp(),
		}),
	}
}

// Execute implements mcp.Tool.
func (t *DeleteRecord) Execute(ctx context.Context, args map[string]any) (any, error) {
	const op = "DeleteRecord"
	collection, err := requiredString(op, args, argCollection)
	if err != nil {
		return nil, err
	}
	id, err := requiredString(op, args, argID)
	if err != nil {
		return nil, err
	}
	callerID, err := requiredString(op, args, argUserID)
	if err != nil {
		return nil, err
	}

	uid, err := t.deps.Resolver.Resolve(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if err := ensureOwned(ctx, t.deps, op, collection, id, uid); err != nil {
		return nil, err
	}

	if err := t.deps.Client.Delete(ctx, collection, id); err != nil {
		if pocketbase.IsNotFound(err) {
			return nil, notOwned(op, collection, id)
		}
		return nil, backendErr(op, err)
	}
	return DeleteResult{Success: true, ID: id}, nil
}

// ensureOwned looks the record up scoped to uid.
func ensureOwned(ctx context.Context, deps *Deps, op, collection, id, uid string) error {
	_, err := deps.Client.GetFirstListItem(ctx, collection, identity.ScopedFilter(deps.ownerField(), uid, id))
	if err == nil {
		return nil
	}
	if pocketbase.IsNotFound(err) {
		return notOwned(op, collection, id)
	}
	return backendErr(op, err)
}

func notOwned(op, collection, id string) error {
	return internalerrors.New(domain, op, internalerrors.ErrNotFound, ErrNotOwned).
		WithContext("collection", collection).
		WithContext("id", id)
}
