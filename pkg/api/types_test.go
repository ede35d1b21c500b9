package api

import (
	"strings"
	"testing"
)

func TestToolNameConstants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		got      string
		want     string
		constant string
	}{
		{name: "list collections", got: ToolListCollections, want: "list_collections", constant: "ToolListCollections"},
		{name: "get records", got: ToolGetRecords, want: "get_records", constant: "ToolGetRecords"},
		{name: "create record", got: ToolCreateRecord, want: "create_record", constant: "ToolCreateRecord"},
		{name: "update record", got: ToolUpdateRecord, want: "update_record", constant: "ToolUpdateRecord"},
		{name: "delete record", got: ToolDeleteRecord, want: "delete_record", constant: "ToolDeleteRecord"},
		{name: "apply schema", got: ToolApplySchema, want: "apply_schema", constant: "ToolApplySchema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.constant, tt.got, tt.want)
			}
		})
	}
}

func TestPathConstants(t *testing.T) {
	t.Parallel()

	for _, p := range []string{PathSSE, PathMessages, PathHealth, PathMetrics} {
		if !strings.HasPrefix(p, "/") {
			t.Errorf("path %q must be absolute", p)
		}
	}
	if QuerySessionID != "sessionId" {
		t.Errorf("QuerySessionID = %q, want sessionId", QuerySessionID)
	}
}
