// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scheduler

// overrides lists, per new source, the recorded sources it may override
// inside the cooldown window. Automatic triggers never override anything and
// nothing overrides a manual request.
var overrides = map[Source]map[Source]bool{
	SourceManual: {
		SourceAuto:     true,
		SourceURLParam: true,
		SourceBehavior: true,
	},
	SourceURLParam: {
		SourceAuto:     true,
		SourceBehavior: true,
	},
	SourceBehavior: {
		SourceAuto: true,
	},
}

// CanOverride reports whether a request from newSource may proceed although
// the survey was recently presented (or is queued) from existing.
// SourceUnknown ranks like SourceAuto on both sides.
func CanOverride(newSource, existing Source) bool {
	if existing == SourceUnknown {
		existing = SourceAuto
	}
	return overrides[newSource][existing]
}
