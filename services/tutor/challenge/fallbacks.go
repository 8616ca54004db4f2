// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package challenge

import (
	"math/rand"
	"strings"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
)

// fallbackBank holds pre-baked challenges for when the LLM is slow,
// misbehaving, or unconfigured. Keys are lowercase subjects plus the
// "iq" and "eq" category pools.
var fallbackBank = map[string][]datatypes.Challenge{
	"math": {
		{
			Question:    "If Viddy has 12 apples and gives 4 to a friend, how many does he have left?",
			Options:     []string{"6", "8", "10", "12"},
			Correct:     "8",
			Explanation: "12 minus 4 is 8! Great subtracting!",
			Trait:       "math",
		},
		{
			Question:    "What is 5 groups of 3 stars?",
			Options:     []string{"8", "12", "15", "20"},
			Correct:     "15",
			Explanation: "5 x 3 = 15. You are reaching for the stars!",
			Trait:       "math",
		},
	},
	"science": {
		{
			Question:    "Which of these is a source of light?",
			Options:     []string{"The Moon", "The Sun", "A Mirror", "A Wall"},
			Correct:     "The Sun",
			Explanation: "The Sun is our biggest star and gives us light!",
			Trait:       "logical_reasoning",
		},
		{
			Question:    "What do plants need most to grow?",
			Options:     []string{"Chocolate", "Ice Cream", "Sunlight & Water", "Toys"},
			Correct:     "Sunlight & Water",
			Explanation: "Plants need sun and water to make their own food!",
			Trait:       "logical_reasoning",
		},
	},
	"english": {
		{
			Question:    "Which word is an action word (verb)?",
			Options:     []string{"Apple", "Quickly", "Run", "Blue"},
			Correct:     "Run",
			Explanation: "'Run' is something you do! That's a verb.",
			Trait:       "pattern_recognition",
		},
	},
	"iq": {
		{
			Question:    "Look at the pattern: 2, 4, 6, 8, ... What comes next?",
			Options:     []string{"9", "10", "11", "12"},
			Correct:     "10",
			Explanation: "We are counting by 2s! 8 + 2 = 10.",
			Trait:       "pattern_recognition",
		},
	},
	"eq": {
		{
			Question:    "Your friend looks sad because they lost their toy. What should you do?",
			Options:     []string{"Laugh at them", "Ignore them", "Ask if they want a hug", "Take their other toys"},
			Correct:     "Ask if they want a hug",
			Explanation: "Being kind to friends makes the world better!",
			Trait:       "empathy",
		},
	},
}

// fallbackChallenge picks a pre-baked challenge, preferring the subject
// pool and falling back to the category pool.
func fallbackChallenge(subject, category string) datatypes.Challenge {
	pool := fallbackBank[strings.ToLower(subject)]
	if len(pool) == 0 || rand.Float64() > 0.5 {
		if categoryPool := fallbackBank[strings.ToLower(category)]; len(categoryPool) > 0 {
			pool = categoryPool
		}
	}
	if len(pool) == 0 {
		pool = fallbackBank["iq"]
	}
	return pool[rand.Intn(len(pool))]
}
