package conversation

import (
	"strings"
)

type choice int

const (
	choiceNone choice = iota
	choiceYes
	choiceNo
	choiceEdit
	choiceCancel
	choiceContinue
	choiceRestart
	choiceMigrate
	choiceEmail
	choiceDashboard
)

var choiceWords = []struct {
	c     choice
	words []string
}{
	{choiceMigrate, []string{"migrate", "switch", "upgrade"}},
	{choiceRestart, []string{"restart", "start over", "start again", "from scratch"}},
	{choiceCancel, []string{"cancel", "abort", "discard", "stop", "never mind", "nevermind"}},
	{choiceEdit, []string{"edit", "change", "modify", "fix", "update", "correct something"}},
	{choiceContinue, []string{"continue", "resume", "carry on", "keep going", "pick up"}},
	{choiceEmail, []string{"email", "e-mail", "mail", "inbox"}},
	{choiceDashboard, []string{"dashboard", "portal", "web app", "online"}},
	{choiceYes, []string{"yes", "y", "yeah", "yep", "yup", "sure", "ok", "okay", "confirm", "confirmed", "correct", "looks good", "go ahead", "create", "create it", "do it", "right", "that's right"}},
	{choiceNo, []string{"no", "n", "nope", "not quite", "wrong", "incorrect"}},
}

// parseChoice recognizes a short command reply. It matches when the reply
// is a choice word or starts with one.
func parseChoice(text string) choice {
	t := normalizeReply(text)
	if t == "" {
		return choiceNone
	}
	for _, cw := range choiceWords {
		for _, w := range cw.words {
			if t == w || strings.HasPrefix(t, w+" ") {
				return cw.c
			}
		}
	}
	return choiceNone
}

// shortReply reports whether text is short enough to be a bare command.
func shortReply(text string) bool {
	return len(strings.Fields(text)) <= 4
}

func normalizeReply(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.Map(func(r rune) rune {
		switch r {
		case '!', '.', ',', '?', '"', '“', '”':
			return ' '
		}
		return r
	}, t)
	t = strings.Join(strings.Fields(t), " ")
	t = strings.TrimPrefix(t, "please ")
	return t
}
