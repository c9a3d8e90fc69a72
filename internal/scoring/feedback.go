package scoring

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/interviewer/internal/model"
)

func feedback(question, answer string, d model.Difficulty, score float64, accurate bool, relevance float64) string {
	var remarks []string
	switch {
	case score >= 90:
		remarks = append(remarks, "Excellent answer! You demonstrated deep understanding of the topic.")
	case score >= 80:
		remarks = append(remarks, "Great answer! You showed good knowledge with some areas for improvement.")
	case score >= 70:
		remarks = append(remarks, "Good answer! You covered the basics well but could provide more detail.")
	case score >= 60:
		remarks = append(remarks, "Fair answer. Consider providing more specific examples and technical details.")
	case score >= 40:
		remarks = append(remarks, "This answer needs significant improvement. Try to be more specific and provide concrete examples.")
	default:
		remarks = append(remarks, "This answer is incorrect or off-topic. Please review the question and provide a relevant response.")
	}

	remarks = append(remarks, fmt.Sprintf("Difficulty: %s.", strings.ToUpper(string(d))))

	switch n := utf8.RuneCountInString(answer); {
	case n < shortAnswer:
		remarks = append(remarks, "Your answer is too brief. Try to elaborate more on your points.")
	case n < briefAnswer:
		remarks = append(remarks, "Your answer is quite brief. Try to elaborate more on your points.")
	case n > longAnswer:
		remarks = append(remarks, "Good detail! You provided a comprehensive answer.")
	}

	if !accurate {
		remarks = append(remarks, "Your answer lacks technical accuracy. Please review the concepts and provide correct information.")
	}
	if relevance < offTopicRatio {
		remarks = append(remarks, "Your answer seems off-topic. Please focus on the specific question asked.")
	}

	return strings.Join(append(remarks, coaching(question, answer)...), " ")
}

// coaching returns topic hints for every topic the question touches.
func coaching(question, answer string) []string {
	lq := strings.ToLower(question)
	la := strings.ToLower(answer)
	var hints []string

	if strings.Contains(lq, "react") {
		if !strings.Contains(la, "component") {
			hints = append(hints, "Consider mentioning React components in your answer.")
		}
		if !strings.Contains(la, "jsx") {
			hints = append(hints, "Try to mention JSX as React's syntax extension.")
		}
	}
	if strings.Contains(lq, "node") {
		if !containsAny(la, "javascript", "server") {
			hints = append(hints, "Try to mention Node.js as a JavaScript runtime for server-side development.")
		}
		if !strings.Contains(la, "event loop") {
			hints = append(hints, "Consider explaining the event loop concept.")
		}
	}
	if containsAny(lq, "architecture", "microservice") && !containsAny(la, "scalable", "distributed") {
		hints = append(hints, "Consider mentioning scalability and distributed systems concepts.")
	}
	if containsAny(lq, "websocket", "real-time") && !containsAny(la, "real-time", "bidirectional") {
		hints = append(hints, "Try to mention real-time communication and bidirectional data flow.")
	}
	return hints
}

// Label buckets a score for display.
func Label(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Poor"
	}
}
