//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/editor"
	"github.com/inamate/tokamak/internal/engine"
	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/render"
)

const pixelTolerance = 12

var (
	eng           *engine.Engine
	width, height = render.Width, render.Height
	dirty         = true
)

func main() {
	// The browser build has no records, runner or results; lock and run
	// stay on the server.
	eng = engine.New(design.NewStore(), engine.Config{})
	eng.OnChange(func() { dirty = true })

	tokamakEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	tokamakEngine.Set("setViewport", js.FuncOf(setViewport))
	tokamakEngine.Set("applyOperation", js.FuncOf(applyOperation))
	tokamakEngine.Set("validateCoils", js.FuncOf(validateCoils))
	tokamakEngine.Set("select", js.FuncOf(selectPoint))
	tokamakEngine.Set("selectAt", js.FuncOf(selectAt))
	tokamakEngine.Set("adjust", js.FuncOf(adjust))
	tokamakEngine.Set("commit", js.FuncOf(commit))
	tokamakEngine.Set("cancel", js.FuncOf(cancel))

	// --- Queries (frontend ← engine) ---
	tokamakEngine.Set("render", js.FuncOf(renderCommands))
	tokamakEngine.Set("needsRender", js.FuncOf(needsRender))
	tokamakEngine.Set("hitTest", js.FuncOf(hitTest))
	tokamakEngine.Set("getView", js.FuncOf(getView))
	tokamakEngine.Set("getScene", js.FuncOf(getScene))

	js.Global().Set("tokamakEngine", tokamakEngine)
	js.Global().Set("tokamakWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func result(v any, err error) interface{} {
	if err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	data, err := json.Marshal(v)
	if err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	return js.ValueOf(map[string]interface{}{"ok": true, "json": string(data)})
}

func missing(what string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": "missing " + what})
}

// --- Command Handlers ---

func setViewport(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("width and height")
	}
	if w, h := args[0].Int(), args[1].Int(); w > 0 && h > 0 {
		width, height = w, h
		dirty = true
	}
	return nil
}

func applyOperation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("operation JSON")
	}
	var op design.Operation
	if err := json.Unmarshal([]byte(args[0].String()), &op); err != nil {
		return result(nil, err)
	}
	version, err := eng.Apply(op)
	return result(map[string]int64{"version": version}, err)
}

func validateCoils(this js.Value, args []js.Value) interface{} {
	return result(eng.ValidateCoils())
}

func selectPoint(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("curve and point index")
	}
	return result(eng.SelectEvent(editor.SelectionEvent{CurveIndex: args[0].Int(), PointIndex: args[1].Int()}))
}

// selectAt opens a session on the point under a canvas pixel.
func selectAt(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("x and y")
	}
	s, err := eng.Scene()
	if err != nil {
		return result(nil, err)
	}
	view := s.View(width, height)
	r, z := view.Invert().TransformPoint(args[0].Float(), args[1].Float())
	return result(eng.SelectAt(geometry.Pt(r, z), pixelTolerance/view[0]))
}

func adjust(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("r and z")
	}
	p, err := eng.Adjust(geometry.Pt(args[0].Float(), args[1].Float()))
	if err == nil {
		dirty = true
	}
	return result(p, err)
}

func commit(this js.Value, args []js.Value) interface{} {
	return result(eng.Commit())
}

func cancel(this js.Value, args []js.Value) interface{} {
	s, err := eng.Cancel()
	if err == nil {
		dirty = true
	}
	return result(s, err)
}

// --- Query Handlers ---

func renderCommands(this js.Value, args []js.Value) interface{} {
	s, err := eng.Scene()
	if err != nil {
		return js.ValueOf("[]")
	}
	dirty = false
	out, _ := render.DrawCommandsToJSON(render.Compile(s, s.View(width, height)))
	return js.ValueOf(out)
}

func needsRender(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(dirty)
}

// hitTest returns the selection event under a canvas pixel, or "".
func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	s, err := eng.Scene()
	if err != nil {
		return js.ValueOf("")
	}
	ev, ok := s.HitTestPixel(s.View(width, height), args[0].Float(), args[1].Float(), pixelTolerance)
	if !ok {
		return js.ValueOf("")
	}
	data, _ := json.Marshal(ev)
	return js.ValueOf(string(data))
}

func getView(this js.Value, args []js.Value) interface{} {
	return result(eng.View())
}

func getScene(this js.Value, args []js.Value) interface{} {
	return result(eng.Scene())
}
