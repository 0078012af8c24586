package main

import (
	"strings"
	"testing"
)

func TestLoadLogoAppliesSpanColors(t *testing.T) {
	doc := `<html><body><pre><span style="color: white">AB</span><span style="COLOR:#808080">CD</span>
plain line</pre></body></html>`

	lines, err := loadLogo(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("loadLogo: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("Got %d lines, want 2: %q", len(lines), lines)
	}

	if !strings.Contains(lines[0], "\033[97mAB") {
		t.Errorf("White span not colored: %q", lines[0])
	}
	if !strings.Contains(lines[0], "\033[90mCD") {
		t.Errorf("Grey span not colored: %q", lines[0])
	}
	if !strings.Contains(lines[1], "plain line") {
		t.Errorf("Plain text lost: %q", lines[1])
	}
}

func TestLoadLogoInheritsParentColor(t *testing.T) {
	doc := `<pre><span style="color:white">outer <b>inner</b></span></pre>`

	lines, err := loadLogo(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("loadLogo: %v", err)
	}

	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "\033[97minner") {
		t.Errorf("Nested text did not inherit color: %q", joined)
	}
}

func TestDisplayLinesSkipsLeadingArtifact(t *testing.T) {
	lines := []string{"", "ART LINE 1", "ART LINE 2"}
	got := displayLines(lines)
	if len(got) != 2 || got[0] != "ART LINE 1" {
		t.Errorf("displayLines = %q, want logo without leading artifact", got)
	}

	single := []string{"only"}
	if got := displayLines(single); len(got) != 1 || got[0] != "only" {
		t.Errorf("displayLines(single) = %q, want unchanged", got)
	}
}

func TestLoadLogoWithoutPreBlock(t *testing.T) {
	lines, err := loadLogo(strings.NewReader(`<html><body><div>no logo here</div></body></html>`))
	if err != nil {
		t.Fatalf("loadLogo: %v", err)
	}
	if !strings.Contains(strings.Join(lines, "\n"), "no logo here") {
		t.Errorf("Fallback body text lost: %q", lines)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Address != "localhost" {
		t.Errorf("Address = %q, want localhost", cfg.Address)
	}
	if cfg.Port != 41112 {
		t.Errorf("Port = %d, want 41112", cfg.Port)
	}
	if cfg.ClientID != "cardbridge" {
		t.Errorf("ClientID = %q, want cardbridge", cfg.ClientID)
	}
}
