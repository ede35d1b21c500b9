// Package schema loads the PocketBase collection schema document and applies
// it through the collections import endpoint.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
	"github.com/jamesprial/pocketbase-mcp/internal/pocketbase"
)

const domain = "schema"

// Stage names the step of an apply that failed.
type Stage string

// Apply stages, in order.
const (
	StageRead     Stage = "read"
	StageParse    Stage = "parse"
	StageValidate Stage = "validate"
	StageImport   Stage = "import"
)

// StageError reports which stage of loading or applying the schema failed.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("failed to apply schema (%s %s): %s", e.Stage, e.Path, internalerrors.Message(e.Err))
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(op string, stage Stage, path string, err error) error {
	return internalerrors.New(domain, op, internalerrors.ErrSchemaApply, &StageError{Stage: stage, Path: path, Err: err})
}

// Read returns the raw schema document at path.
func Read(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, stageErr("Read", StageRead, path, err)
	}
	return raw, nil
}

// Parse decodes raw into a list of collection definitions. The document must
// be a JSON array whose elements are all objects.
func Parse(path string, raw []byte) ([]map[string]any, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, stageErr("Parse", StageParse, path, err)
	}
	items, ok := doc.([]any)
	if !ok {
		return nil, stageErr("Parse", StageValidate, path, fmt.Errorf("schema document must be a JSON array of collections"))
	}
	collections := make([]map[string]any, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, stageErr("Parse", StageValidate, path, fmt.Errorf("collection at index %d is not an object", i))
		}
		collections = append(collections, obj)
	}
	return collections, nil
}

// Load reads and parses the schema document at path.
func Load(path string) ([]map[string]any, error) {
	raw, err := Read(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, raw)
}

// Result summarises a successful apply.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Path        string `json:"path"`
	Collections int    `json:"collections"`
}

// Apply loads the document at path and imports it. Collections that exist in
// PocketBase but not in the document are left untouched.
func Apply(ctx context.Context, client pocketbase.Client, path string) (*Result, error) {
	collections, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := client.ImportCollections(ctx, collections, false); err != nil {
		return nil, stageErr("Apply", StageImport, path, err)
	}
	return &Result{
		Success:     true,
		Message:     "Schema applied successfully",
		Path:        path,
		Collections: len(collections),
	}, nil
}
