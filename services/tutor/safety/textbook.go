// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"fmt"
	"strings"
)

// advancedContentKeywords flag material above primary school level or
// otherwise unsuitable for upload. A document needs several hits before
// it is rejected; a single stray word is not enough.
var advancedContentKeywords = []string{
	"machine learning", "neural network", "deep learning", "artificial intelligence",
	"tensor", "regression", "classification", "clustering", "reinforcement learning",
	"phd", "thesis", "dissertation", "journal", "ieee", "acm", "arxiv",
	"tensorflow", "pytorch", "keras", "university", "semester",
	"engineering", "medical", "finance", "business administration", "law",
	"pornography", "sexual", "drug", "alcohol", "tobacco", "violence",
}

// subjectKeywords anchor each teachable subject; a textbook must score
// enough hits in its declared subject to be accepted.
var subjectKeywords = map[string][]string{
	"math": {
		"number", "addition", "subtraction", "multiplication", "division",
		"fraction", "decimal", "geometry", "angle", "measurement",
	},
	"science": {
		"plant", "animal", "energy", "force", "experiment", "body",
		"environment", "water", "air", "food chain",
	},
	"english": {
		"grammar", "noun", "verb", "adjective", "sentence", "story",
		"reading", "writing", "spelling", "paragraph",
	},
	"hindi": {
		"हिंदी", "व्याकरण", "कविता", "कहानी", "संज्ञा", "क्रिया", "शब्द",
	},
	"social": {
		"history", "geography", "map", "earth", "india", "river", "mountain",
	},
	"general": {},
}

const (
	// minTextbookChars rejects empty or scanned-image PDFs.
	minTextbookChars = 200
	// minSubjectMatches is the subject relevance threshold.
	minSubjectMatches = 5
	// maxAdvancedMatches is the advanced-content tolerance.
	maxAdvancedMatches = 2
)

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func countMatches(text string, keywords []string) int {
	total := 0
	for _, kw := range keywords {
		total += strings.Count(text, strings.ToLower(kw))
	}
	return total
}

func detectSubject(text string) string {
	best, bestScore := "general", 0
	for subject, keywords := range subjectKeywords {
		if score := countMatches(text, keywords); score > bestScore {
			best, bestScore = subject, score
		}
	}
	return best
}

// ValidateTextbook checks extracted textbook text before ingestion.
//
// # Description
//
// Rejects documents that are too short to be a readable textbook,
// documents that read like advanced academic material, and documents
// whose content does not match the declared subject. The returned
// message is student-facing and explains how to fix the upload.
//
// # Outputs
//   - bool: true when the document may be ingested.
//   - string: acceptance or rejection message.
func ValidateTextbook(extractedText, subject string, grade int) (bool, string) {
	if len(strings.TrimSpace(extractedText)) < minTextbookChars {
		return false, "PDF seems empty or scanned. Upload a readable textbook."
	}

	text := strings.ToLower(extractedText)

	if countMatches(text, advancedContentKeywords) > maxAdvancedMatches {
		return false, fmt.Sprintf(
			"This document looks like advanced academic material.\nPlease upload a Grade %d %s textbook.",
			grade, subject)
	}

	// Login accepts free-form subjects; one without an anchor list gets
	// only the generic screens above.
	subject = strings.ToLower(subject)
	if keywords := subjectKeywords[subject]; len(keywords) > 0 {
		if countMatches(text, keywords) < minSubjectMatches {
			detected := detectSubject(text)
			return false, fmt.Sprintf(
				"This doesn't look like a %s textbook.\nIt seems closer to %s.\nPlease upload the correct subject book.",
				capitalize(subject), capitalize(detected))
		}
	}

	return true, "Valid textbook."
}
