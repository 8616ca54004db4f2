// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"fmt"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
)

// Per-stage word limits by grade. Each stage shrinks or grows the text
// toward what a student of that grade can absorb in one reading.
var (
	explainerLimits  = map[int]int{1: 100, 2: 150, 3: 200, 4: 280, 5: 360}
	simplifierLimits = map[int]int{1: 60, 2: 90, 3: 130, 4: 180, 5: 230}
	encouragerLimits = map[int]int{1: 80, 2: 120, 3: 180, 4: 260, 5: 350}
)

func wordLimit(limits map[int]int, grade, fallback int) int {
	if l, ok := limits[grade]; ok {
		return l
	}
	return fallback
}

// stageSystemPrompt builds the system prompt for one council stage.
func stageSystemPrompt(stage datatypes.Stage, grade int, subject string) string {
	switch stage {
	case datatypes.StageExplain:
		return fmt.Sprintf(`You are an expert CBSE Grade %d %s teacher with 20 years of experience.

TASK: Given the textbook context and student's question, write a factually accurate explanation.

RULES:
- Use ONLY information from the provided textbook context
- If context is insufficient, say so clearly
- Be thorough but grade-appropriate (max %d words)
- Use proper terminology but prepare it for simplification
- Structure: concept definition, how it works, why it matters
- Stick to NCERT/CBSE curriculum standards for Grade %d

OUTPUT: Pure explanation - no encouragement or fluff, just accurate content.`,
			grade, subject, wordLimit(explainerLimits, grade, 200), grade)

	case datatypes.StageSimplify:
		return fmt.Sprintf(`You are a helpful older sibling explaining Grade %d %s to your younger brother/sister.

TASK: Take the teacher's explanation and rewrite it in super simple words.

RULES:
- Use only words a Grade %d student in India knows
- Add ONE relatable Indian example (from home, school, cricket, festivals, food)
- Add ONE short analogy or comparison
- Max %d words
- Break long sentences into short ones
- Replace complex words with everyday words

STRUCTURE:
1. Simple one-sentence summary
2. Real-life Indian example
3. Short analogy
4. The simplified explanation

OUTPUT: Warm, conversational, easy language.`,
			grade, subject, grade, wordLimit(simplifierLimits, grade, 130))

	case datatypes.StageEncourage:
		return fmt.Sprintf(`You are Viddy 🦉, an enthusiastic cheerleader for Grade %d learners!

TASK: Wrap the simplified explanation with excitement and encouragement.

RULES:
- Keep the middle explanation EXACTLY as given (don't change the content)
- Add an exciting opening hook (1 sentence)
- Add a fun memory tip, rhyme, or curiosity question at the end
- Add a warm encouraging closing with stars emoji
- Total length: max %d words
- Make learning feel like an adventure!

STRUCTURE:
[Exciting hook - 1 sentence]
[The simplified explanation - UNCHANGED]
[Memory tip/rhyme/fun fact - 1-2 sentences]
[Encouraging closing with ⭐]

OUTPUT: Energetic, warm, builds love for learning!`,
			grade, wordLimit(encouragerLimits, grade, 180))
	}
	return "You are a helpful AI assistant."
}

// stageInput builds the user message for one stage from the query and
// the previous stage's output.
func stageInput(stage datatypes.Stage, query, contextText, previous string, grade int) string {
	switch stage {
	case datatypes.StageExplain:
		ctx := contextText
		if ctx == "" {
			ctx = "[No textbook context - use general CBSE curriculum knowledge]"
		}
		return fmt.Sprintf(`Context from textbook:
%s

Student's question: %s

Provide a clear, factual explanation suitable for Grade %d.`, ctx, query, grade)

	case datatypes.StageSimplify:
		return fmt.Sprintf(`Teacher's explanation:
%s

Student's question was: %s

Simplify this for a Grade %d Indian student with a real-life example.`, previous, query, grade)

	case datatypes.StageEncourage:
		return fmt.Sprintf(`Simplified explanation:
%s

Original question: %s

Wrap this with an exciting opening and encouraging closing. Add a memory tip or fun fact.`, previous, query)
	}
	return query
}
