// Package judge parses the free-form line-structured response the
// judging LLM returns into a typed rubric and a winner classification.
// It is pure: no I/O, no calls to any LLM.
package judge

import (
	"strconv"
	"strings"

	"github.com/punkouter25/podebaterap/internal/domain"
)

// Verdict is the outcome of parsing one judge response.
type Verdict struct {
	Winner    string // pro name, con name, or one of the domain.Winner* sentinels
	Reasoning string
	Rubric    *domain.Rubric // nil unless all 8 scores parsed
}

type scoreKey string

const (
	keyRapper1Logic     scoreKey = "rapper1_logic"
	keyRapper2Logic     scoreKey = "rapper2_logic"
	keyRapper1Sentiment scoreKey = "rapper1_sentiment"
	keyRapper2Sentiment scoreKey = "rapper2_sentiment"
	keyRapper1Adherence scoreKey = "rapper1_adherence"
	keyRapper2Adherence scoreKey = "rapper2_adherence"
	keyRapper1Rebuttal  scoreKey = "rapper1_rebuttal"
	keyRapper2Rebuttal  scoreKey = "rapper2_rebuttal"
)

var allScoreKeys = []scoreKey{
	keyRapper1Logic, keyRapper2Logic,
	keyRapper1Sentiment, keyRapper2Sentiment,
	keyRapper1Adherence, keyRapper2Adherence,
	keyRapper1Rebuttal, keyRapper2Rebuttal,
}

// Parse splits raw on newlines, extracts "Key: Value" pairs
// case-insensitively, and classifies the winner. proName/conName are
// used only to label a real-persona winner in the returned Verdict.
func Parse(raw, proName, conName string) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = Verdict{Winner: domain.WinnerErrorParsing}
		}
	}()

	pairs := make(map[scoreKey]string)
	var reasoning string
	reasoningFound := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])

		if key == "reasoning" {
			reasoning = value
			reasoningFound = true
			continue
		}
		pairs[scoreKey(key)] = value
	}

	scores := make(map[scoreKey]int)
	allValid := true
	for _, k := range allScoreKeys {
		v, ok := pairs[k]
		if !ok {
			allValid = false
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			allValid = false
			continue
		}
		scores[k] = domain.Clamp(n)
	}

	if !reasoningFound {
		reasoning = ""
	}

	if !allValid {
		return Verdict{Winner: domain.WinnerStatsError, Reasoning: reasoning}
	}

	rubric := &domain.Rubric{
		Pro: domain.ScoreSet{
			Logic:     scores[keyRapper1Logic],
			Sentiment: scores[keyRapper1Sentiment],
			Adherence: scores[keyRapper1Adherence],
			Rebuttal:  scores[keyRapper1Rebuttal],
		},
		Con: domain.ScoreSet{
			Logic:     scores[keyRapper2Logic],
			Sentiment: scores[keyRapper2Sentiment],
			Adherence: scores[keyRapper2Adherence],
			Rebuttal:  scores[keyRapper2Rebuttal],
		},
		Reasoning: reasoning,
	}

	proTotal := rubric.Pro.Total()
	conTotal := rubric.Con.Total()

	var winner string
	switch {
	case proTotal > conTotal:
		winner = proName
	case conTotal > proTotal:
		winner = conName
	default:
		winner = domain.WinnerDraw
	}

	return Verdict{Winner: winner, Reasoning: reasoning, Rubric: rubric}
}

// FormatCanonical renders v back into the exact line template Parse
// expects, for the parse -> format -> parse round-trip property.
func FormatCanonical(v Verdict) string {
	if v.Rubric == nil {
		return "Reasoning: " + v.Reasoning
	}
	r := v.Rubric
	var b strings.Builder
	b.WriteString("Reasoning: " + v.Reasoning + "\n")
	b.WriteString("Rapper1_Logic: " + strconv.Itoa(r.Pro.Logic) + "\n")
	b.WriteString("Rapper2_Logic: " + strconv.Itoa(r.Con.Logic) + "\n")
	b.WriteString("Rapper1_Sentiment: " + strconv.Itoa(r.Pro.Sentiment) + "\n")
	b.WriteString("Rapper2_Sentiment: " + strconv.Itoa(r.Con.Sentiment) + "\n")
	b.WriteString("Rapper1_Adherence: " + strconv.Itoa(r.Pro.Adherence) + "\n")
	b.WriteString("Rapper2_Adherence: " + strconv.Itoa(r.Con.Adherence) + "\n")
	b.WriteString("Rapper1_Rebuttal: " + strconv.Itoa(r.Pro.Rebuttal) + "\n")
	b.WriteString("Rapper2_Rebuttal: " + strconv.Itoa(r.Con.Rebuttal))
	return b.String()
}
