package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"go-zctrl/config"
	"go-zctrl/rig"
	"go-zctrl/snapshot"
)

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newServer(t *testing.T) *Server {
	t.Helper()
	m, err := rig.New(config.DefaultConfig(), rig.Options{Store: snapshot.NewStore(t.TempDir())})
	if err != nil {
		t.Fatalf("rig.New: %v", err)
	}
	return New(m, "test")
}

func call(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", res.Content[0])
	}
	return text.Text, res.IsError
}

func decodeParam(t *testing.T, text string) rig.ParamInfo {
	t.Helper()
	var info rig.ParamInfo
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	return info
}

func TestListParams(t *testing.T) {
	s := newServer(t)
	text, isErr := call(t, s.listParams, nil)
	if isErr {
		t.Fatal(text)
	}
	var params []rig.ParamInfo
	if err := json.Unmarshal([]byte(text), &params); err != nil {
		t.Fatal(err)
	}
	if len(params) != len(config.DefaultConfig().Params) {
		t.Errorf("params = %d", len(params))
	}
}

func TestSetParam(t *testing.T) {
	s := newServer(t)

	text, isErr := call(t, s.setParam, map[string]any{"symbol": "resonance", "value": 0.5})
	if isErr || decodeParam(t, text).Value != 0.5 {
		t.Errorf("set value: %s", text)
	}

	text, isErr = call(t, s.setParam, map[string]any{"symbol": "wave", "label": "square"})
	if isErr || decodeParam(t, text).Label != "square" {
		t.Errorf("set label: %s", text)
	}

	if text, isErr = call(t, s.setParam, map[string]any{"symbol": "wave", "label": "pulse"}); !isErr {
		t.Errorf("unknown label accepted: %s", text)
	}
	if text, isErr = call(t, s.setParam, map[string]any{"symbol": "wave"}); !isErr {
		t.Errorf("missing value accepted: %s", text)
	}
	if text, isErr = call(t, s.setParam, map[string]any{"symbol": "nope", "value": 1.0}); !isErr {
		t.Errorf("unknown symbol accepted: %s", text)
	}
}

func TestNudgeToggleReset(t *testing.T) {
	s := newServer(t)

	text, _ := call(t, s.nudgeParam, map[string]any{"symbol": "octave", "steps": 2.0})
	if got := decodeParam(t, text).Label; got != "+2" {
		t.Errorf("nudge octave label = %q", got)
	}

	text, _ = call(t, s.toggleParam, map[string]any{"symbol": "chorus"})
	if info := decodeParam(t, text); info.Value != info.Max {
		t.Errorf("toggle chorus = %g", info.Value)
	}
	if _, isErr := call(t, s.toggleParam, map[string]any{"symbol": "cutoff"}); !isErr {
		t.Error("toggle on continuous parameter accepted")
	}

	text, _ = call(t, s.resetParam, map[string]any{"symbol": "octave"})
	if got := decodeParam(t, text).Value; got != 0 {
		t.Errorf("reset octave = %g", got)
	}
}

func TestCCModes(t *testing.T) {
	s := newServer(t)
	text, _ := call(t, s.ccModes, nil)
	if !strings.Contains(text, `"source": "* ch1 cc74"`) || !strings.Contains(text, `"mode": "unknown"`) {
		t.Errorf("cc modes = %s", text)
	}

	text, isErr := call(t, s.resetCCMode, map[string]any{"symbol": "cutoff"})
	if isErr || !strings.Contains(text, "1 bindings") {
		t.Errorf("reset cc mode = %s", text)
	}
}

func TestSnapshots(t *testing.T) {
	s := newServer(t)
	call(t, s.setParam, map[string]any{"symbol": "resonance", "value": 0.8})
	if text, isErr := call(t, s.saveSnapshot, map[string]any{"name": "pad"}); isErr {
		t.Fatal(text)
	}
	call(t, s.resetParam, map[string]any{"symbol": "resonance"})

	text, isErr := call(t, s.loadSnapshot, nil)
	if isErr || text != "Restored 1 parameters." {
		t.Errorf("load = %s", text)
	}
	text, _ = call(t, s.getParam, map[string]any{"symbol": "resonance"})
	if got := decodeParam(t, text).Value; got != 0.8 {
		t.Errorf("resonance after load = %g", got)
	}

	text, _ = call(t, s.listSnapshots, nil)
	if !strings.Contains(text, "pad") {
		t.Errorf("snapshots = %s", text)
	}
}

func TestSetCCMode(t *testing.T) {
	s := newServer(t)
	text, isErr := call(t, s.setCCMode, map[string]any{"symbol": "cutoff", "mode": "relative2"})
	if isErr || !strings.Contains(text, "1 bindings of cutoff to relative2") {
		t.Errorf("set cc mode = %s", text)
	}
	text, _ = call(t, s.ccModes, nil)
	if !strings.Contains(text, `"mode": "relative2"`) {
		t.Errorf("cc modes after set = %s", text)
	}

	if text, isErr = call(t, s.setCCMode, map[string]any{"symbol": "cutoff", "mode": "sideways"}); !isErr {
		t.Errorf("unknown mode accepted: %s", text)
	}
	if text, isErr = call(t, s.setCCMode, map[string]any{"symbol": "cutoff"}); !isErr {
		t.Errorf("missing mode accepted: %s", text)
	}
}

func TestLockParam(t *testing.T) {
	s := newServer(t)
	text, isErr := call(t, s.lockParam, map[string]any{"symbol": "resonance"})
	if isErr || !decodeParam(t, text).Readonly {
		t.Fatalf("lock = %s", text)
	}
	text, _ = call(t, s.setParam, map[string]any{"symbol": "resonance", "value": 0.9})
	if got := decodeParam(t, text).Value; got != 0.2 {
		t.Errorf("locked resonance set to %g", got)
	}

	text, _ = call(t, s.lockParam, map[string]any{"symbol": "resonance", "locked": false})
	if decodeParam(t, text).Readonly {
		t.Errorf("unlock = %s", text)
	}
}

func TestRenameDeleteSnapshot(t *testing.T) {
	s := newServer(t)
	text, isErr := call(t, s.saveSnapshot, map[string]any{"name": "pad"})
	if isErr {
		t.Fatal(text)
	}
	var info snapshot.SaveInfo
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		t.Fatal(err)
	}

	text, isErr = call(t, s.renameSnapshot, map[string]any{"filename": info.Filename, "name": "strings"})
	if isErr || !strings.HasSuffix(text, "_strings.json.") {
		t.Fatalf("rename = %s", text)
	}
	renamed := strings.TrimSuffix(strings.TrimPrefix(text, "Renamed to "), ".")

	if text, isErr = call(t, s.deleteSnapshot, map[string]any{"filename": "../" + renamed}); !isErr {
		t.Errorf("path outside the store accepted: %s", text)
	}
	if text, isErr = call(t, s.deleteSnapshot, map[string]any{"filename": renamed}); isErr {
		t.Fatalf("delete = %s", text)
	}
	text, _ = call(t, s.listSnapshots, nil)
	if strings.Contains(text, "strings") {
		t.Errorf("snapshots after delete = %s", text)
	}
}
