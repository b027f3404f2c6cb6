package cli

import (
	"encoding/json"
	"testing"
)

func TestDebugPathsCmd(t *testing.T) {
	ctx, out := setupTestContext(t, "user-1")

	if err := (&DebugPathsCmd{}).Run(ctx); err != nil {
		t.Fatalf("debug paths command failed: %v", err)
	}

	var paths map[string]string
	if err := json.Unmarshal(out.Bytes(), &paths); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out.String())
	}
	if paths["snapshot"] != ctx.Config.SnapshotPath {
		t.Errorf("snapshot path = %q, want %q", paths["snapshot"], ctx.Config.SnapshotPath)
	}
	if paths["lockfile"] != ctx.LockPath() {
		t.Errorf("lockfile path = %q, want %q", paths["lockfile"], ctx.LockPath())
	}
}

func TestDebugDumpCmd(t *testing.T) {
	ctx, out := setupTestContext(t, "user-1")
	initContext(t, ctx)

	if err := (&CaloriesAddCmd{Amount: 420}).Run(ctx); err != nil {
		t.Fatalf("calories add failed: %v", err)
	}

	out.Reset()
	if err := (&DebugDumpCmd{Entity: "calories"}).Run(ctx); err != nil {
		t.Fatalf("debug dump command failed: %v", err)
	}

	var dump struct {
		Entity string             `json:"entity"`
		Local  map[string]float64 `json:"local"`
		Remote map[string]float64 `json:"remote"`
	}
	if err := json.Unmarshal(out.Bytes(), &dump); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out.String())
	}
	if dump.Local["consumed"] != 420 || dump.Remote["consumed"] != 420 {
		t.Errorf("expected 420 kcal locally and remotely, got %+v", dump)
	}
}

func TestDebugDumpCmd_MissingRemoteRow(t *testing.T) {
	ctx, out := setupTestContext(t, "user-1")
	initContext(t, ctx)

	out.Reset()
	if err := (&DebugDumpCmd{Entity: "streak"}).Run(ctx); err != nil {
		t.Fatalf("debug dump command failed: %v", err)
	}

	var dump map[string]any
	if err := json.Unmarshal(out.Bytes(), &dump); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out.String())
	}
	if remote, ok := dump["remote"]; !ok || remote != nil {
		t.Errorf("expected a null remote row, got %v", dump["remote"])
	}
}

func TestDebugDumpCmd_InvalidDate(t *testing.T) {
	ctx, _ := setupTestContext(t, "user-1")
	initContext(t, ctx)

	if err := (&DebugDumpCmd{Entity: "water", Date: "03/10/2024"}).Run(ctx); err == nil {
		t.Error("expected an error for an invalid date")
	}
}
