package claims

import (
	"slices"
	"strings"
	"testing"
)

func TestPrompt(t *testing.T) {
	p := Prompt("Graphene conducts heat.", 3)
	if !strings.HasPrefix(p, "<start_of_turn>user\n") {
		t.Errorf("missing user turn: %q", p)
	}
	if !strings.HasSuffix(p, "<start_of_turn>model\n") {
		t.Errorf("missing model turn: %q", p)
	}
	if !strings.Contains(p, "list the 3 most important claims") {
		t.Errorf("claim count not rendered: %q", p)
	}
	if !strings.Contains(p, "\"Graphene conducts heat.\"\n") {
		t.Errorf("abstract not quoted: %q", p)
	}
}

func TestMessages(t *testing.T) {
	sys, user := Messages("Abstract body.", 2)
	if !strings.Contains(sys, "2 most important claims") {
		t.Errorf("system = %q", sys)
	}
	if !strings.Contains(user, "Abstract body.") {
		t.Errorf("user = %q", user)
	}
}

func TestParse(t *testing.T) {
	resp := "**Topic:** Graphene thermal transport\n" +
		"1. Graphene conducts heat better than copper.\n" +
		"2) Defects reduce thermal conductivity sharply.\n" +
		"short line\n" +
		"- Strain tunes phonon scattering in monolayers.<end_of_turn>"
	topic, claims := Parse(resp)
	if topic != "Graphene thermal transport" {
		t.Errorf("topic = %q", topic)
	}
	want := []string{
		"Graphene conducts heat better than copper.",
		"Defects reduce thermal conductivity sharply.",
		"Strain tunes phonon scattering in monolayers.",
	}
	if !slices.Equal(claims, want) {
		t.Errorf("claims = %q, want %q", claims, want)
	}
}

func TestParse_NoColonAndEmpty(t *testing.T) {
	topic, claims := Parse("Soil microbiomes")
	if topic != "Soil microbiomes" || len(claims) != 0 {
		t.Errorf("Parse() = %q, %q", topic, claims)
	}
	topic, claims = Parse("")
	if topic != "" || claims == nil || len(claims) != 0 {
		t.Errorf("Parse(\"\") = %q, %v", topic, claims)
	}
}
