// Package main provides a pointer plugin.
// It moves the mouse and clicks via robotgo.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/go-vgo/robotgo"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Source string          `json:"source,omitempty"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// PointParams defines parameters for move and click actions.
type PointParams struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	MoveMs int `json:"move_ms,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "move", "click":
		p, err := parsePoint(req.Params)
		if err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
		moveTo(p)
		if req.Action == "click" {
			robotgo.Click("left", false)
		}
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	writeSuccessResponse()
}

// parsePoint decodes and validates the target position.
func parsePoint(params json.RawMessage) (PointParams, error) {
	var p PointParams
	if len(params) == 0 {
		return p, errors.New("params are required")
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return p, fmt.Errorf("failed to parse params: %w", err)
	}
	if p.X < 0 || p.Y < 0 {
		return p, fmt.Errorf("position (%d,%d) is off screen", p.X, p.Y)
	}
	if p.MoveMs < 0 {
		return p, fmt.Errorf("move_ms must not be negative")
	}
	return p, nil
}

// stepMs is the pause between pointer updates while gliding.
const stepMs = 10

// moveTo glides the pointer along an ease-out path taking MoveMs, or jumps
// when no travel time is given.
func moveTo(p PointParams) {
	if p.MoveMs <= 0 {
		robotgo.Move(p.X, p.Y)
		return
	}
	x, y := robotgo.Location()
	for _, pt := range glidePath(image.Pt(x, y), image.Pt(p.X, p.Y), p.MoveMs) {
		robotgo.Move(pt.X, pt.Y)
		robotgo.MilliSleep(stepMs)
	}
}

// glidePath returns one position per stepMs from just after from to exactly
// to, eased with easeOutQuad so the pointer decelerates into the target.
func glidePath(from, to image.Point, moveMs int) []image.Point {
	steps := max(moveMs/stepMs, 1)
	path := make([]image.Point, steps)
	dx, dy := float64(to.X-from.X), float64(to.Y-from.Y)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		e := t * (2 - t)
		path[i-1] = image.Point{
			X: from.X + int(dx*e+0.5*sign(dx)),
			Y: from.Y + int(dy*e+0.5*sign(dy)),
		}
	}
	return path
}

func sign(v float64) float64 {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: false,
		Error:   errMsg,
	})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: true,
	})
}
