package e2e

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/reroller/internal/app"
	"github.com/ayusman/reroller/internal/capture"
	"github.com/ayusman/reroller/internal/config"
	"github.com/ayusman/reroller/internal/server"
	"github.com/ayusman/reroller/internal/store"
	"github.com/ayusman/reroller/internal/testutil"
)

const (
	starSize    = 20
	starSpacing = 30
	heroSize    = 40
)

// writeScreenshot renders one card of five stars per x offset and saves it as PNG.
func writeScreenshot(t *testing.T, dir, name string, star gocv.Mat, cards ...int) string {
	t.Helper()

	frame := renderCards(star, cards...)
	defer frame.Close()

	path, err := testutil.WriteTemplate(dir, name, frame)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

// writeHeroScreenshot renders the cards plus hero with its top-left corner at heroAt.
func writeHeroScreenshot(t *testing.T, dir, name string, star, hero gocv.Mat, heroAt image.Point, cards ...int) string {
	t.Helper()

	frame := renderCards(star, cards...)
	defer frame.Close()
	testutil.Embed(&frame, hero, heroAt, image.Pt(heroSize, heroSize))

	path, err := testutil.WriteTemplate(dir, name, frame)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

// renderCards draws five stars per card. The qualifying column of a card at x
// is x+2*starSpacing. The caller must close the frame.
func renderCards(star gocv.Mat, cards ...int) gocv.Mat {
	frame := testutil.BlankFrame(860, 200)
	for _, x := range cards {
		for i := 0; i < 5; i++ {
			testutil.Embed(&frame, star, image.Pt(x+i*starSpacing, 80), image.Pt(starSize, starSize))
		}
	}
	return frame
}

// writeHero stores hero as the only target character under cfg.TargetDir.
func writeHero(t *testing.T, cfg *config.Config, hero gocv.Mat) {
	t.Helper()

	if err := os.MkdirAll(cfg.TargetDir, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := testutil.WriteTemplate(cfg.TargetDir, "hero", hero); err != nil {
		t.Fatal(err)
	}
}

func newSettings(t *testing.T, dir string, star gocv.Mat) *config.Config {
	t.Helper()

	if _, err := testutil.WriteTemplate(dir, "star_template", star); err != nil {
		t.Fatal(err)
	}
	button := testutil.StarTemplate(48)
	defer button.Close()
	if _, err := testutil.WriteTemplate(dir, "recruit_button", button); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.StarPattern = filepath.Join(dir, "star_template*.png")
	cfg.ButtonPattern = filepath.Join(dir, "recruit_button*.png")
	cfg.TargetDir = filepath.Join(dir, "targets")
	cfg.DebugDir = filepath.Join(dir, "debug")
	return cfg
}

func TestE2E_SingleFrameWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	star := testutil.StarTemplate(starSize)
	defer star.Close()

	cfg := newSettings(t, tmpDir, star)
	winning := writeScreenshot(t, tmpDir, "winning", star, 40, 340, 640)
	losing := writeScreenshot(t, tmpDir, "losing", star, 40, 340)

	s, err := store.New(filepath.Join(tmpDir, "history.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	application, err := app.New(app.Config{
		Settings:  cfg,
		Screen:    capture.NewFileScreen(winning),
		Store:     s,
		Snapshots: true,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer application.Close()

	hub := server.NewVerdictHub()
	application.OnVerdict(hub.Publish)

	ts := httptest.NewServer(server.New(server.Config{Store: s, Controller: application, Verdicts: hub}))
	defer ts.Close()
	client := ts.Client()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/verdicts", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	for deadline := time.Now().Add(2 * time.Second); hub.Clients() == 0; {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var ev app.Event
	t.Run("AnalyzeWinningFrame", func(t *testing.T) {
		ev, err = application.Analyze(context.Background())
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if !ev.Verdict.Success {
			t.Fatalf("verdict = %+v, want success", ev.Verdict)
		}
		if ev.Verdict.Message != "SUCCESS: 3 5* cards found." {
			t.Errorf("Message = %q", ev.Verdict.Message)
		}
		if len(ev.Verdict.Columns) != 3 {
			t.Errorf("Columns = %v, want 3", ev.Verdict.Columns)
		}
		if ev.Snapshot == "" {
			t.Error("expected a success snapshot")
		}
	})

	t.Run("VerdictPushed", func(t *testing.T) {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var pushed app.Event
		if err := conn.ReadJSON(&pushed); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if pushed.Attempt != 1 || pushed.Verdict.Message != ev.Verdict.Message {
			t.Errorf("pushed = %+v", pushed)
		}
	})

	t.Run("StatusReflectsAttempt", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatalf("GET /api/status error = %v", err)
		}
		defer resp.Body.Close()

		var status app.Status
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if status.Running || status.Attempts != 1 || status.Mode != store.ModeGeneral {
			t.Errorf("status = %+v", status)
		}
		if status.Last == nil || !status.Last.Verdict.Success {
			t.Errorf("last = %+v", status.Last)
		}
	})

	t.Run("AttemptRecorded", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/attempts")
		if err != nil {
			t.Fatalf("GET /api/attempts error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		var body struct {
			Attempts []store.Attempt `json:"attempts"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if len(body.Attempts) != 1 {
			t.Fatalf("expected 1 attempt, got %d", len(body.Attempts))
		}
		got := body.Attempts[0]
		if !got.Success || got.FiveStarCount != 3 || got.Required != 3 || got.Snapshot != ev.Snapshot {
			t.Errorf("attempt = %+v", got)
		}
	})

	t.Run("AnalyzeLosingFrame", func(t *testing.T) {
		loser, err := app.New(app.Config{
			Settings: cfg,
			Screen:   capture.NewFileScreen(losing),
			Store:    s,
		})
		if err != nil {
			t.Fatalf("app.New() error = %v", err)
		}
		defer loser.Close()

		ev, err := loser.Analyze(context.Background())
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if ev.Verdict.Success {
			t.Error("two cards should not satisfy the default minimum")
		}
		if ev.Verdict.Message != "Searching... (5* detected: 2/3)" {
			t.Errorf("Message = %q", ev.Verdict.Message)
		}

		sessions, err := s.Sessions().List()
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(sessions) != 2 {
			t.Errorf("expected 2 sessions, got %d", len(sessions))
		}
	})
}

func TestE2E_TargetMode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	star := testutil.StarTemplate(starSize)
	defer star.Close()
	hero := testutil.CharacterTemplate(heroSize)
	defer hero.Close()

	// cards at 40, 340 and 640 qualify at columns 100, 400 and 700
	tests := []struct {
		name        string
		cards       []int
		heroAt      image.Point
		min         int
		wantSuccess bool
		wantAlmost  bool
		wantTarget  string
		wantMessage string
	}{
		{
			name:        "in column with enough cards",
			cards:       []int{40, 340, 640},
			heroAt:      image.Pt(390, 130),
			min:         3,
			wantSuccess: true,
			wantTarget:  "hero",
			wantMessage: "SUCCESS: hero is 5* and there are 3 in total.",
		},
		{
			name:        "in column with too few cards",
			cards:       []int{40, 340},
			heroAt:      image.Pt(70, 130),
			min:         3,
			wantAlmost:  true,
			wantTarget:  "hero",
			wantMessage: "Searching... (5* detected: 2/3)",
		},
		{
			name:        "far from every column",
			cards:       []int{40, 340},
			heroAt:      image.Pt(720, 130),
			min:         2,
			wantMessage: "Searching... (5* detected: 2/2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := newSettings(t, dir, star)
			cfg.MinFiveStarCards = tt.min
			writeHero(t, cfg, hero)
			shot := writeHeroScreenshot(t, dir, "frame", star, hero, tt.heroAt, tt.cards...)

			application, err := app.New(app.Config{Settings: cfg, Screen: capture.NewFileScreen(shot)})
			if err != nil {
				t.Fatalf("app.New() error = %v", err)
			}
			defer application.Close()

			if application.Mode() != store.ModeTarget {
				t.Fatalf("Mode() = %q, want target", application.Mode())
			}

			ev, err := application.Analyze(context.Background())
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			v := ev.Verdict
			if len(v.Columns) != len(tt.cards) {
				t.Fatalf("Columns = %v, want %d", v.Columns, len(tt.cards))
			}
			if v.Success != tt.wantSuccess || v.Almost != tt.wantAlmost {
				t.Errorf("Success = %v Almost = %v, want %v %v", v.Success, v.Almost, tt.wantSuccess, tt.wantAlmost)
			}
			if v.TargetName != tt.wantTarget {
				t.Errorf("TargetName = %q, want %q", v.TargetName, tt.wantTarget)
			}
			if v.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", v.Message, tt.wantMessage)
			}
		})
	}
}
