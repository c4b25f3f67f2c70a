package main

import (
	"errors"
	"flag"
	"testing"
	"time"

	"github.com/ayusman/reroller/internal/config"
)

func TestParseFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	opts, err := parseFlags([]string{
		"-min_5_star_cards", "4",
		"-match_threshold", "0.85",
		"-roll_delay", "2.5",
		"-max_attempts", "50",
		"-frame", "shot.png",
		"-db", "",
		"-move_min", "300ms",
		"-move_max", "1s",
		"-tray",
	}, cfg)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}

	if cfg.MinFiveStarCards != 4 {
		t.Errorf("MinFiveStarCards = %d, want 4", cfg.MinFiveStarCards)
	}
	if cfg.MatchThreshold != 0.85 {
		t.Errorf("MatchThreshold = %v, want 0.85", cfg.MatchThreshold)
	}
	if cfg.RollDelay != 2500*time.Millisecond {
		t.Errorf("RollDelay = %v, want 2.5s", cfg.RollDelay)
	}
	if cfg.MaxAttempts != 50 {
		t.Errorf("MaxAttempts = %d, want 50", cfg.MaxAttempts)
	}
	if cfg.DBPath != "" {
		t.Errorf("DBPath = %q, want empty", cfg.DBPath)
	}
	if cfg.MoveMin != 300*time.Millisecond || cfg.MoveMax != time.Second {
		t.Errorf("move range = [%v, %v), want [300ms, 1s)", cfg.MoveMin, cfg.MoveMax)
	}
	if opts.frame != "shot.png" || !opts.tray {
		t.Errorf("opts = %+v", opts)
	}
}

func TestParseFlags_KeepsEnvDefaults(t *testing.T) {
	t.Setenv(config.EnvPrefix+"MIN_5_STAR_CARDS", "5")
	cfg := config.Load()

	if _, err := parseFlags(nil, cfg); err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if cfg.MinFiveStarCards != 5 {
		t.Errorf("MinFiveStarCards = %d, want env value 5", cfg.MinFiveStarCards)
	}

	if _, err := parseFlags([]string{"-min_5_star_cards", "2"}, cfg); err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if cfg.MinFiveStarCards != 2 {
		t.Errorf("MinFiveStarCards = %d, flag should override env", cfg.MinFiveStarCards)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "bad roll delay", args: []string{"-roll_delay", "soon"}},
		{name: "bad int", args: []string{"-min_5_star_cards", "three"}},
		{name: "unknown flag", args: []string{"-nope"}},
		{name: "positional", args: []string{"extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFlags(tt.args, config.DefaultConfig()); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := parseFlags([]string{"-h"}, config.DefaultConfig()); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("expected flag.ErrHelp, got %v", err)
	}
}

func TestStatusURL(t *testing.T) {
	tests := map[string]string{
		":8080":          "http://localhost:8080/api/status",
		"127.0.0.1:9000": "http://127.0.0.1:9000/api/status",
	}
	for addr, want := range tests {
		if got := statusURL(addr); got != want {
			t.Errorf("statusURL(%q) = %q, want %q", addr, got, want)
		}
	}
}
