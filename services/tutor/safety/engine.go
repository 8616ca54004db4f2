// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package safety classifies student queries and generated answers
// against the embedded safety rules. The rules cover harmful topics,
// adult content, substances, prompt injection, and non-academic
// distractions, each with a child-appropriate redirect message.
package safety

import (
	"fmt"
	"strings"

	"github.com/vidyasetu/vidyasetu/services/tutor/safety/rules"
	"gopkg.in/yaml.v3"
)

// Engine is the entry point for safety checks. It holds the compiled
// rule set and is safe for concurrent use; all state is read-only
// after construction.
type Engine struct {
	Categories []Category
}

// NewEngine initializes an Engine from the rules embedded in the
// binary.
//
// It performs the following operations:
// 1. Unmarshals the embedded YAML data.
// 2. Compiles all regex patterns.
// 3. Sorts categories by priority.
//
// Returns an error if the embedded YAML is malformed or contains
// invalid regex.
func NewEngine() (*Engine, error) {
	var rulesFile SafetyRulesFile
	if err := yaml.Unmarshal(rules.SafetyRules, &rulesFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded rules file: %w", err)
	}

	if err := rulesFile.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a regex: %w", err)
	}

	rulesFile.SortByPriority()

	return &Engine{Categories: rulesFile.Categories}, nil
}

// Verdict is the outcome of a query-level safety check.
type Verdict struct {
	Blocked  bool
	Category string
	Redirect string
}

// CheckQuery classifies a student question.
//
// Categories are evaluated from highest to lowest priority and the
// first match wins, so a question that is both a jailbreak attempt and
// off-topic is reported as a jailbreak attempt.
func (e *Engine) CheckQuery(query string) Verdict {
	for _, category := range e.Categories {
		for _, re := range category.CompiledPatterns {
			if re.MatchString(query) {
				return Verdict{
					Blocked:  true,
					Category: category.Name,
					Redirect: category.Redirect,
				}
			}
		}
	}
	return Verdict{}
}

// VerifyAnswer reports whether generated answer text is free of rule
// matches. Off-topic patterns are skipped here; an answer mentioning a
// video platform is not a safety violation, only a question asking
// about one is a distraction.
func (e *Engine) VerifyAnswer(answer string) bool {
	for _, category := range e.Categories {
		if category.Name == "offtopic" {
			continue
		}
		for _, re := range category.CompiledPatterns {
			if re.MatchString(answer) {
				return false
			}
		}
	}
	return true
}

// ScanText performs a comprehensive audit of a string.
//
// It splits the content into lines and checks every line against every
// pattern, capturing line numbers and the text that triggered each
// match. Intended for the textbook ingestion path where detailed
// feedback is required.
func (e *Engine) ScanText(content string) []Finding {
	var findings []Finding
	lines := strings.Split(content, "\n")
	for lineNum, line := range lines {
		for _, category := range e.Categories {
			for _, pattern := range category.Patterns {
				match := pattern.compiledPattern.FindString(line)
				if match != "" {
					findings = append(findings, Finding{
						LineNumber:         lineNum + 1,
						MatchedContent:     strings.TrimSpace(match),
						CategoryName:       category.Name,
						PatternId:          pattern.Id,
						PatternDescription: pattern.Description,
						Confidence:         pattern.Confidence,
					})
				}
			}
		}
	}
	return findings
}
