package tools

import (
	"context"

	"go.uber.org/zap"

	"github.com/jamesprial/pocketbase-mcp/internal/mcp"
	"github.com/jamesprial/pocketbase-mcp/internal/schema"
	"github.com/jamesprial/pocketbase-mcp/pkg/api"
)

// ApplySchema imports the schema document without deleting collections
// missing from it.
type ApplySchema struct {
	deps *Deps
}

// Definition implements mcp.Tool.
func (t *ApplySchema) Definition() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name:        api.ToolApplySchema,
		Description: "Apply the server's schema document to PocketBase. Existing collections not in the document are kept.",
		InputSchema: objectSchema(nil, map[string]any{}),
	}
}

// Execute implements mcp.Tool.
func (t *ApplySchema) Execute(ctx context.Context, _ map[string]any) (any, error) {
	res, err := schema.Apply(ctx, t.deps.Client, t.deps.SchemaPath)
	if err != nil {
		return nil, err
	}
	t.deps.logger().Info("schema applied",
		zap.String("path", res.Path),
		zap.Int("collections", res.Collections),
	)
	return res, nil
}

// SchemaResource serves the schema document. The file is read on every
// request so edits show up without a restart.
type SchemaResource struct {
	path string
}

// NewSchemaResource returns a resource backed by the file at path.
func NewSchemaResource(path string) *SchemaResource {
	return &SchemaResource{path: path}
}

// Definition implements mcp.ResourceProvider.
func (r *SchemaResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         api.SchemaResourceURI,
		Name:        "PocketBase schema",
		Description: "Collection definitions applied by apply_schema",
		MimeType:    api.ContentTypeJSON,
	}
}

// Read implements mcp.ResourceProvider.
func (r *SchemaResource) Read(ctx context.Context) (*mcp.Resource, error) {
	raw, err := schema.Read(r.path)
	if err != nil {
		return nil, err
	}
	return &mcp.Resource{
		URI:      api.SchemaResourceURI,
		MimeType: api.ContentTypeJSON,
		Text:     string(raw),
	}, nil
}
