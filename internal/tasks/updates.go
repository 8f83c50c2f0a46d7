package tasks

import (
	"fmt"

	"github.com/desertthunder/radiosync/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase         // Operation phase
	Source  models.Source // Source being processed
	Step    int           // Current step number within phase
	Total   int           // Total steps in this phase
	Message string        // Human-readable message for display
	Data    any           // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	Extracting Phase = iota
	Resolving
	Diffing
	Appending
	Done
)

func (p Phase) String() string {
	switch p {
	case Extracting:
		return "extracting"
	case Resolving:
		return "resolving"
	case Diffing:
		return "diffing"
	case Appending:
		return "appending"
	case Done:
		return "done"
	default:
		return ""
	}
}

func extractingUpdate(source models.Source) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Extracting,
		Source:  source,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching %s...", source.URL),
	}
}

func resolvingUpdate(source models.Source, step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolving,
		Source:  source,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, name),
	}
}

func diffingUpdate(source models.Source, resolved int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Diffing,
		Source:  source,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Comparing %d tracks with playlist %s...", resolved, source.PlaylistID),
	}
}

func appendingUpdate(source models.Source, uris []string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Appending,
		Source:  source,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Adding %d tracks to playlist %s...", len(uris), source.PlaylistID),
		Data:    uris,
	}
}

func doneUpdate(result *SourceResult) ProgressUpdate {
	message := fmt.Sprintf("✓ %s: %d added", result.Source.URL, len(result.Appended))
	switch {
	case result.Err != nil:
		message = fmt.Sprintf("✗ %s: %v", result.Source.URL, result.Err)
	case result.DryRun:
		message = fmt.Sprintf("✓ %s: %d pending (dry run)", result.Source.URL, len(result.Pending))
	}

	return ProgressUpdate{
		Phase:   Done,
		Source:  result.Source,
		Step:    1,
		Total:   1,
		Message: message,
		Data:    result,
	}
}
