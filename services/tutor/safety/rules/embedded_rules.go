// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package rules bakes the safety rule definitions into the compiled binary
via the Go embed package. The rules travel with the executable and are
immutable at runtime; changing them requires a recompile.
*/
package rules

import (
	_ "embed"
)

// SafetyRules holds the raw byte content of the 'safety_rules.yaml' file.
//
// Populated at compile time by the embed directive. Pass these bytes
// directly to yaml.Unmarshal.
//
//go:embed safety_rules.yaml
var SafetyRules []byte
