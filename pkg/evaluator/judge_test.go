package evaluator

import "testing"

func TestParseJudgeReplyExtractsScoreAndFeedback(t *testing.T) {
	score, feedback := parseJudgeReply("SCORE: 85\nThe answer covers the key points but misses an edge case.")
	if score != 85 {
		t.Fatalf("score = %v, want 85", score)
	}
	if feedback != "The answer covers the key points but misses an edge case." {
		t.Fatalf("feedback = %q", feedback)
	}
}

func TestParseJudgeReplyIsCaseInsensitiveAndToleratesWhitespace(t *testing.T) {
	score, _ := parseJudgeReply("  score:   42  \nok")
	if score != 42 {
		t.Fatalf("score = %v, want 42", score)
	}
}

func TestParseJudgeReplyWithoutScoreLineScoresZero(t *testing.T) {
	score, feedback := parseJudgeReply("the model refused to answer")
	if score != 0 {
		t.Fatalf("score = %v, want 0", score)
	}
	if feedback != "the model refused to answer" {
		t.Fatalf("feedback = %q", feedback)
	}
}
