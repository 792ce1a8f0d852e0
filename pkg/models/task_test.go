package models

import (
	"testing"
	"time"
)

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"ready is valid", TaskStatusReady, true},
		{"running is valid", TaskStatusRunning, true},
		{"completed is valid", TaskStatusCompleted, true},
		{"failed is valid", TaskStatusFailed, true},
		{"cancelled is valid", TaskStatusCancelled, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"unknown status is invalid", TaskStatus("unknown"), false},
		{"old done status is invalid", TaskStatus("done"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	terminal := map[TaskStatus]bool{
		TaskStatusPending:   false,
		TaskStatusReady:     false,
		TaskStatusRunning:   false,
		TaskStatusCompleted: true,
		TaskStatusFailed:    true,
		TaskStatusCancelled: true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("TaskStatus(%q).Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestTaskNode_Duration(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	n := &TaskNode{StartTime: start}
	if got := n.Duration(); got != 0 {
		t.Errorf("unsettled Duration() = %v, want 0", got)
	}

	n.EndTime = start.Add(1500 * time.Millisecond)
	if got := n.Duration(); got != 1500*time.Millisecond {
		t.Errorf("Duration() = %v, want 1.5s", got)
	}
}

func TestTaskPayload_ParamCount(t *testing.T) {
	p := TaskPayload{Kind: KindDeploy}
	if got := p.ParamCount(); got != 0 {
		t.Errorf("nil params ParamCount() = %d, want 0", got)
	}

	p.Params = DeployParams{Platform: "vercel", Environment: "prod"}
	if got := p.ParamCount(); got != 2 {
		t.Errorf("ParamCount() = %d, want 2", got)
	}
}

func TestParamsFromSlots_KnownKind(t *testing.T) {
	p := ParamsFromSlots("create_file", map[string]string{"fileType": "HTML", "target": "index.html"})

	cf, ok := p.(CreateFileParams)
	if !ok {
		t.Fatalf("expected CreateFileParams, got %T", p)
	}
	if cf.FileType != "HTML" || cf.Target != "index.html" {
		t.Errorf("unexpected params: %+v", cf)
	}
	if p.Kind() != KindCreateFile {
		t.Errorf("Kind() = %q, want %q", p.Kind(), KindCreateFile)
	}
}

func TestParamsFromSlots_UnknownKindIsOpaque(t *testing.T) {
	p := ParamsFromSlots("translate", map[string]string{"lang": "en", "empty": ""})

	op, ok := p.(OpaqueParams)
	if !ok {
		t.Fatalf("expected OpaqueParams, got %T", p)
	}
	if op.Type != "translate" {
		t.Errorf("Type = %q, want translate", op.Type)
	}
	if op.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (empty values dropped)", op.Len())
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(" Deploy "); got != KindDeploy {
		t.Errorf("KindOf(Deploy) = %q, want deploy", got)
	}
	if got := KindOf("something_else"); got != KindOpaque {
		t.Errorf("KindOf(unknown) = %q, want opaque", got)
	}
}

func TestParamKeys_Sorted(t *testing.T) {
	keys := ParamKeys(AnalyzeDataParams{OutputFormat: "csv", DataSource: "a.csv"})
	if len(keys) != 2 || keys[0] != "dataSource" || keys[1] != "outputFormat" {
		t.Errorf("ParamKeys = %v, want [dataSource outputFormat]", keys)
	}
	if ParamKeys(nil) != nil {
		t.Error("ParamKeys(nil) should be nil")
	}
}

func TestIntentNode_Clone(t *testing.T) {
	n := IntentNode{Intent: "deploy", Entities: map[string]string{"platform": "aws"}, Dependencies: []int{1}}
	c := n.Clone()
	c.Entities["platform"] = "vercel"
	c.Dependencies[0] = 9

	if n.Entities["platform"] != "aws" {
		t.Error("Clone shares Entities map")
	}
	if n.Dependencies[0] != 1 {
		t.Error("Clone shares Dependencies slice")
	}
}
