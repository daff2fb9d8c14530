// Package mcpserver exposes a rig's controllers as MCP tools so an
// assistant can read and edit synth parameters over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"go-zctrl/ccmode"
	"go-zctrl/debug"
	"go-zctrl/rig"
)

type Server struct {
	rig *rig.Manager
	mcp *server.MCPServer
}

// bindingView is the JSON shape of one CC binding
type bindingView struct {
	Source    string      `json:"source"`
	Symbol    string      `json:"symbol"`
	Mode      ccmode.Mode `json:"mode"`
	Candidate ccmode.Mode `json:"candidate,omitempty"`
	Streak    int         `json:"streak,omitempty"`
}

func New(m *rig.Manager, version string) *Server {
	s := &Server{
		rig: m,
		mcp: server.NewMCPServer("go-zctrl", version, server.WithToolCapabilities(false)),
	}

	symbol := mcp.WithString("symbol", mcp.Required(), mcp.Description("Parameter symbol, as listed by zctrl_list-params."))

	s.mcp.AddTool(mcp.NewTool("zctrl_list-params",
		mcp.WithDescription("Lists every synth parameter with its range, current value and display label."),
	), s.listParams)

	s.mcp.AddTool(mcp.NewTool("zctrl_get-param",
		mcp.WithDescription("Returns one parameter."),
		symbol,
	), s.getParam)

	s.mcp.AddTool(mcp.NewTool("zctrl_set-param",
		mcp.WithDescription("Sets a parameter by value or, for labeled parameters, by label. Values are clamped to the range."),
		symbol,
		mcp.WithNumber("value", mcp.Description("New value in engine units.")),
		mcp.WithString("label", mcp.Description("New label (e.g. \"saw\"). Takes precedence over value.")),
	), s.setParam)

	s.mcp.AddTool(mcp.NewTool("zctrl_nudge-param",
		mcp.WithDescription("Moves a parameter by a number of detents, as a relative encoder would."),
		symbol,
		mcp.WithNumber("steps", mcp.Required(), mcp.Description("Signed number of steps.")),
		mcp.WithBoolean("fine", mcp.Description("Use fine steps for continuous ranges.")),
	), s.nudgeParam)

	s.mcp.AddTool(mcp.NewTool("zctrl_toggle-param",
		mcp.WithDescription("Flips an on/off parameter."),
		symbol,
	), s.toggleParam)

	s.mcp.AddTool(mcp.NewTool("zctrl_reset-param",
		mcp.WithDescription("Returns a parameter to its default."),
		symbol,
	), s.resetParam)

	s.mcp.AddTool(mcp.NewTool("zctrl_cc-modes",
		mcp.WithDescription("Lists CC bindings with their detected encoder mode (absolute, relative1-3) and detection progress."),
	), s.ccModes)

	s.mcp.AddTool(mcp.NewTool("zctrl_reset-cc-mode",
		mcp.WithDescription("Restarts encoder mode detection on every binding of a parameter."),
		symbol,
	), s.resetCCMode)

	s.mcp.AddTool(mcp.NewTool("zctrl_set-cc-mode",
		mcp.WithDescription("Sets the encoder mode of every binding of a parameter by hand, skipping detection. \"auto\" restarts detection."),
		symbol,
		mcp.WithString("mode", mcp.Required(), mcp.Enum("auto", "absolute", "relative1", "relative2", "relative3")),
	), s.setCCMode)

	s.mcp.AddTool(mcp.NewTool("zctrl_lock-param",
		mcp.WithDescription("Locks a parameter against surface, assistant and engine input, or unlocks it."),
		symbol,
		mcp.WithBoolean("locked", mcp.Description("Lock state; defaults to true.")),
	), s.lockParam)

	s.mcp.AddTool(mcp.NewTool("zctrl_save-snapshot",
		mcp.WithDescription("Saves every parameter that differs from its default."),
		mcp.WithString("name", mcp.Description("Optional snapshot name.")),
	), s.saveSnapshot)

	s.mcp.AddTool(mcp.NewTool("zctrl_load-snapshot",
		mcp.WithDescription("Resets all parameters, then restores a snapshot."),
		mcp.WithString("filename", mcp.Description("Snapshot file; the most recent when omitted.")),
	), s.loadSnapshot)

	s.mcp.AddTool(mcp.NewTool("zctrl_list-snapshots",
		mcp.WithDescription("Lists saved snapshots, newest first."),
	), s.listSnapshots)

	s.mcp.AddTool(mcp.NewTool("zctrl_rename-snapshot",
		mcp.WithDescription("Renames a snapshot, keeping its timestamp."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Snapshot file, as listed by zctrl_list-snapshots.")),
		mcp.WithString("name", mcp.Description("New name; empty removes it.")),
	), s.renameSnapshot)

	s.mcp.AddTool(mcp.NewTool("zctrl_delete-snapshot",
		mcp.WithDescription("Deletes a snapshot file."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Snapshot file, as listed by zctrl_list-snapshots.")),
	), s.deleteSnapshot)

	return s
}

// Serve blocks serving MCP over stdin/stdout
func (s *Server) Serve() error {
	debug.Log("mcp", "serving on stdio")
	return server.ServeStdio(s.mcp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %v", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// paramResult reports a rig edit; rig errors are tool errors, not
// protocol errors
func paramResult(info rig.ParamInfo, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(info)
}

func (s *Server) listParams(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.rig.Params())
}

func (s *Server) getParam(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sym, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return paramResult(s.rig.Info(sym))
}

func (s *Server) setParam(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sym, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if label := request.GetString("label", ""); label != "" {
		debug.Log("mcp", "set %s label %q", sym, label)
		return paramResult(s.rig.SetLabel(sym, label))
	}

	if _, ok := request.GetArguments()["value"]; !ok {
		return mcp.NewToolResultError("either value or label is required"), nil
	}
	v, err := request.RequireFloat("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	debug.Log("mcp", "set %s = %g", sym, v)
	return paramResult(s.rig.Set(sym, v))
}

func (s *Server) nudgeParam(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sym, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	steps, err := request.RequireInt("steps")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return paramResult(s.rig.Nudge(sym, steps, request.GetBool("fine", false)))
}

func (s *Server) toggleParam(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sym, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return paramResult(s.rig.Toggle(sym))
}

func (s *Server) resetParam(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sym, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return paramResult(s.rig.Reset(sym))
}

func (s *Server) ccModes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	views := []bindingView{}
	for _, b := range s.rig.Registry().Bindings() {
		views = append(views, bindingView{
			Source:    b.Key.String(),
			Symbol:    b.Symbol,
			Mode:      b.Mode,
			Candidate: b.Candidate,
			Streak:    b.Streak,
		})
	}
	return jsonResult(views)
}

func (s *Server) resetCCMode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sym, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.rig.ResetModes(sym)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Detection restarted on %d bindings of %s.", n, sym)), nil
}

func (s *Server) setCCMode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sym, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := request.RequireString("mode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var mode ccmode.Mode
	if err := mode.UnmarshalText([]byte(name)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.rig.ForceModes(sym, mode)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	debug.Log("mcp", "%s cc mode %s on %d bindings", sym, mode, n)
	return mcp.NewToolResultText(fmt.Sprintf("Set %d bindings of %s to %s.", n, sym, mode)), nil
}

func (s *Server) lockParam(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sym, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return paramResult(s.rig.SetReadonly(sym, request.GetBool("locked", true)))
}

func (s *Server) saveSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.rig.SaveSnapshot(request.GetString("name", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(info)
}

func (s *Server) loadSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := s.rig.LoadSnapshot(request.GetString("filename", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Restored %d parameters.", n)), nil
}

func (s *Server) listSnapshots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	saves, err := s.rig.Snapshots()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(saves)
}

func (s *Server) renameSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := request.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	renamed, err := s.rig.RenameSnapshot(filename, request.GetString("name", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Renamed to %s.", renamed)), nil
}

func (s *Server) deleteSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := request.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.rig.DeleteSnapshot(filename); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %s.", filename)), nil
}
