// Package claims builds prompts that ask a chat model for the key claims of an abstract and
// parses the model's reply.
package claims

import (
	"fmt"
	"regexp"
	"strings"
)

// MinAbstractLen is the shortest abstract worth sending to the model.
const MinAbstractLen = 50

// minClaimLen drops reply lines too short to be a claim.
const minClaimLen = 16

var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// Prompt renders the Gemma chat-format request for a topic phrase and n claims.
func Prompt(abstract string, n int) string {
	var b strings.Builder
	b.WriteString("<start_of_turn>user\n")
	b.WriteString("First, create a very short topic phrase that best represents the article and its keywords.")
	fmt.Fprintf(&b, "Then, list the %d most important claims of the rewritten abstract. Each claim must be direct and to the point. \n", n)
	b.WriteString("\nList the topic and claims without any extra explanation or formatting.")
	b.WriteString("\n\nABSTRACT:\n")
	b.WriteString(`"` + abstract + "\"\n")
	b.WriteString("<end_of_turn>\n<start_of_turn>model\n")
	return b.String()
}

// Messages splits the same request into system and user parts for chat-completion APIs
// that apply their own template.
func Messages(abstract string, n int) (system, user string) {
	system = "First, create a very short topic phrase that best represents the article and its keywords. " +
		fmt.Sprintf("Then, list the %d most important claims of the abstract. Each claim must be direct and to the point. ", n) +
		"List the topic on the first line as \"Topic: <phrase>\", then one numbered claim per line, without any extra explanation or formatting."
	user = "ABSTRACT:\n\"" + abstract + "\""
	return system, user
}

// Parse extracts the topic from the first line ("...: topic") and claims from the rest.
// Lines of 16 characters or fewer are dropped and list markers are stripped.
func Parse(response string) (topic string, claims []string) {
	response = strings.NewReplacer("<end_of_turn>", "", "<eos>", "").Replace(response)
	lines := strings.Split(strings.TrimSpace(response), "\n")

	if first := lines[0]; first != "" {
		if _, after, ok := strings.Cut(first, ":"); ok {
			topic = cleanTopic(after)
		} else {
			topic = cleanTopic(first)
		}
	}

	claims = []string{}
	for _, line := range lines[1:] {
		if len(line) <= minClaimLen {
			continue
		}
		c := strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if c != "" {
			claims = append(claims, c)
		}
	}
	return topic, claims
}

func cleanTopic(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_\""))
}

// Result is the claims record for one abstract.
type Result struct {
	Abstract string   `json:"abstract"`
	Claims   []string `json:"claims"`
	Topic    string   `json:"topic,omitempty"`
}
