package cadence

import (
	"math/rand/v2"
	"strings"
)

// Picker is the random source used to choose between message templates.
// *rand.Rand satisfies it; tests pass a seeded or fixed source.
type Picker interface {
	IntN(n int) int
}

// Device-side templates, keyed by level. {title} is replaced.
var levelMessages = [...][]string{
	{"This week's pick: {title}"},
	{"How about \"{title}\" soon?", "\"{title}\" this weekend, maybe?"},
	{"\"{title}\" is still waiting (hint hint)", "Forgot about \"{title}\"? Hey?"},
	{"No going home until \"{title}\" is done!", "\"{title}\" yet? Yet? YET?!", "Hello?! \"{title}\"! Can you hear me?!"},
}

// Server-side nudge templates. One list for every level.
var nudgeMessages = []string{
	"Hey, did you forget \"{title}\"?",
	"Time for \"{title}\"?",
	"Today is the day for \"{title}\"",
	"Open wish: \"{title}\"",
}

// Messages returns the device templates for a level.
func Messages(level int) []string {
	return levelMessages[Normalize(level)]
}

// Message renders a random device template for level.
func Message(level int, title string, p Picker) string {
	return render(pick(Messages(level), p), title)
}

// NudgeMessage renders a random server nudge body.
func NudgeMessage(title string, p Picker) string {
	return render(pick(nudgeMessages, p), title)
}

// NudgeTemplates exposes the server templates (read-only copy).
func NudgeTemplates() []string {
	return append([]string(nil), nudgeMessages...)
}

func pick(templates []string, p Picker) string {
	if p == nil {
		return templates[rand.IntN(len(templates))]
	}
	return templates[p.IntN(len(templates))]
}

func render(template, title string) string {
	return strings.ReplaceAll(template, "{title}", title)
}
