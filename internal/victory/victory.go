// Package victory decides whether a captured recruit screen is worth keeping.
//
// A frame qualifies when enough cards show a full row of rarity stars and,
// when target characters are configured, one of them sits in such a card.
package victory

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/reroller/internal/grouping"
	"github.com/ayusman/reroller/internal/matcher"
	"github.com/ayusman/reroller/internal/templates"
)

// Calibrated defaults for a five-card summon screen.
const (
	DefaultMinFiveStarCards   = 3
	DefaultStarsPerCard       = 5
	DefaultColumnTolerance    = 150.0
	DefaultCharacterThreshold = 0.80
)

// Config holds the tunables of the evaluator.
type Config struct {
	// MinFiveStarCards is how many qualifying cards a frame needs.
	MinFiveStarCards int
	// StarsPerCard is the star count a group needs to qualify.
	StarsPerCard int
	// ClusterRadius is the star linking distance handed to the grouper.
	ClusterRadius float64
	// ColumnTolerance is the exclusive x distance between a target
	// character and a qualifying card column.
	ColumnTolerance float64
	// CharacterThreshold is the match threshold for target characters.
	// It is independent of the star threshold.
	CharacterThreshold float64
	// Logger receives the per-frame analysis and near-miss diagnostics.
	Logger zerolog.Logger
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		MinFiveStarCards:   DefaultMinFiveStarCards,
		StarsPerCard:       DefaultStarsPerCard,
		ClusterRadius:      grouping.DefaultRadius,
		ColumnTolerance:    DefaultColumnTolerance,
		CharacterThreshold: DefaultCharacterThreshold,
		Logger:             zerolog.Nop(),
	}
}

// Verdict is the outcome of evaluating one frame.
type Verdict struct {
	Success bool   `json:"success"`
	Almost  bool   `json:"almost"`
	Message string `json:"message"`
	// FiveStarCount is the number of qualifying cards found.
	FiveStarCount int `json:"five_star_count"`
	Required      int `json:"required"`
	// Columns are the mean x positions of qualifying cards.
	Columns []float64 `json:"columns"`
	// TargetName is the matched character when it sits in a qualifying card.
	TargetName string `json:"target_name,omitempty"`
}

// Evaluator turns star detections into verdicts.
type Evaluator struct {
	cfg     Config
	matcher matcher.Matcher
}

// NewEvaluator creates an Evaluator. m is used for target character lookups.
func NewEvaluator(cfg Config, m matcher.Matcher) *Evaluator {
	return &Evaluator{cfg: cfg, matcher: m}
}

// Evaluate builds the verdict for one frame. An empty targets set selects
// general mode, where only the qualifying card count matters.
func (e *Evaluator) Evaluate(frame gocv.Mat, stars matcher.Result, targets templates.Set) Verdict {
	columns := e.columns(stars.Points)

	v := Verdict{
		FiveStarCount: len(columns),
		Required:      e.cfg.MinFiveStarCards,
		Columns:       columns,
	}

	if len(columns) > 0 {
		e.cfg.Logger.Info().
			Int("cards", len(columns)).
			Str("columns", formatColumns(columns)).
			Msgf("Analysis: %d 5* cards detected", len(columns))
	}

	enough := v.FiveStarCount >= v.Required

	if len(targets) == 0 {
		if enough {
			v.Success = true
			v.Message = fmt.Sprintf("SUCCESS: %d 5* cards found.", v.FiveStarCount)
			return v
		}
		v.Message = searching(v)
		return v
	}

	if name, ok := e.targetInColumn(frame, targets, columns); ok {
		v.TargetName = name
		if enough {
			v.Success = true
			v.Message = fmt.Sprintf("SUCCESS: %s is 5* and there are %d in total.", name, v.FiveStarCount)
			return v
		}

		v.Almost = true
		e.cfg.Logger.Info().
			Str("target", name).
			Msgf("Almost: %s is 5*, but only %d/%d found.", name, v.FiveStarCount, v.Required)
	}

	v.Message = searching(v)
	return v
}

// columns returns the mean x of every star group that qualifies as a card,
// ordered by group label.
func (e *Evaluator) columns(points []image.Point) []float64 {
	groups := grouping.Group(points, e.cfg.ClusterRadius)

	var columns []float64
	for _, label := range groups.Labels() {
		pts := groups[label]
		if len(pts) < e.cfg.StarsPerCard {
			continue
		}
		sum := 0
		for _, p := range pts {
			sum += p.X
		}
		columns = append(columns, float64(sum)/float64(len(pts)))
	}
	return columns
}

// targetInColumn reports the matched character name when any of its
// detections is horizontally aligned with a qualifying column.
func (e *Evaluator) targetInColumn(frame gocv.Mat, targets templates.Set, columns []float64) (string, bool) {
	if len(columns) == 0 {
		return "", false
	}

	chars := e.matcher.Match(frame, targets, e.cfg.CharacterThreshold)
	for _, p := range chars.Points {
		for _, col := range columns {
			if math.Abs(float64(p.X)-col) < e.cfg.ColumnTolerance {
				return chars.Name, true
			}
		}
	}
	return "", false
}

// Evaluate runs a default-matcher evaluation with minFiveStar overriding the
// required card count and reports the verdict as a flag and message.
func Evaluate(frame gocv.Mat, stars matcher.Result, targets templates.Set, minFiveStar int) (bool, string) {
	cfg := DefaultConfig()
	cfg.MinFiveStarCards = minFiveStar
	v := NewEvaluator(cfg, matcher.NewScaledMatcher(matcher.DefaultOptions())).Evaluate(frame, stars, targets)
	return v.Success, v.Message
}

func searching(v Verdict) string {
	return fmt.Sprintf("Searching... (5* detected: %d/%d)", v.FiveStarCount, v.Required)
}

func formatColumns(columns []float64) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("Pos:%d", int(c))
	}
	return strings.Join(parts, ", ")
}
