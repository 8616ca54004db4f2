// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"
	"slices"
)

// ChallengeTraits is the closed set of trait tags a challenge may carry.
// The tag selects which profile accumulator a graded result feeds.
var ChallengeTraits = append(append([]string{}, IQTraits...), EQTraits...)

// Challenge is one quiz item produced by the challenge generator.
// Immutable once generated; consumed exactly once by the client's
// answer-submission flow and not persisted.
type Challenge struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     string   `json:"correct"`
	Explanation string   `json:"explanation"`
	Trait       string   `json:"trait"`
}

// Validate enforces the generator contract: options non-empty and
// de-duplicated, correct answer present among them, trait from the
// closed set.
func (c *Challenge) Validate() error {
	if c.Question == "" {
		return fmt.Errorf("challenge has empty question")
	}
	if len(c.Options) == 0 {
		return fmt.Errorf("challenge has no options")
	}
	seen := make(map[string]struct{}, len(c.Options))
	for _, opt := range c.Options {
		if opt == "" {
			return fmt.Errorf("challenge has an empty option")
		}
		if _, dup := seen[opt]; dup {
			return fmt.Errorf("challenge has duplicate option %q", opt)
		}
		seen[opt] = struct{}{}
	}
	if _, ok := seen[c.Correct]; !ok {
		return fmt.Errorf("correct answer %q not among options", c.Correct)
	}
	if !slices.Contains(ChallengeTraits, c.Trait) {
		return fmt.Errorf("unknown trait tag %q", c.Trait)
	}
	return nil
}
