package evaluator

import (
	"regexp"
	"strconv"
	"strings"
)

var scoreLineRegex = regexp.MustCompile(`(?i)SCORE:\s*(\d+)`)

// parseJudgeReply extracts the "SCORE: <0-100>" line the judgeSystemPrompt
// asks for, plus whatever text remains as feedback. A reply that does not
// follow the format scores zero with the raw text as feedback.
func parseJudgeReply(text string) (float64, string) {
	text = strings.TrimSpace(text)
	match := scoreLineRegex.FindStringSubmatch(text)
	if match == nil {
		return 0, text
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, text
	}
	feedback := strings.TrimSpace(scoreLineRegex.ReplaceAllString(text, ""))
	return float64(n), feedback
}
