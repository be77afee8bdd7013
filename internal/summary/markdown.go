// Package summary renders the immutable end-of-meeting record to Markdown
// and handles its export paths (clipboard, file, Drive).
package summary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sjawhar/coachwire/internal/protocol"
)

// RenderMarkdown produces the heading-structured Markdown form of a
// SummaryRecord: overview stats, topics list, action-items table,
// participation line, and the coaching breakdown list.
func RenderMarkdown(rec protocol.SummaryRecord) string {
	var b strings.Builder

	b.WriteString("# Meeting Summary\n\n")

	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "- Planned duration: %s\n", minutes(rec.DurationPlannedMinutes))
	fmt.Fprintf(&b, "- Actual duration: %s\n", minutes(rec.DurationActualMinutes))
	if rec.OnTime {
		b.WriteString("- Finished on time\n")
	} else {
		over := rec.DurationActualMinutes - rec.DurationPlannedMinutes
		fmt.Fprintf(&b, "- Ran overtime by %s\n", minutes(over))
	}
	b.WriteString("\n")

	b.WriteString("## Topics\n\n")
	if len(rec.Topics) == 0 {
		b.WriteString("_No topics tracked._\n")
	} else {
		for _, topic := range rec.Topics {
			fmt.Fprintf(&b, "- %s (%s)\n", topic.Topic, minutes(topic.DurationMinutes))
		}
	}
	b.WriteString("\n")

	b.WriteString("## Action Items\n\n")
	if len(rec.ActionItems) == 0 {
		b.WriteString("_No action items captured._\n")
	} else {
		b.WriteString("| Assignee | Description | Deadline |\n")
		b.WriteString("| --- | --- | --- |\n")
		for _, item := range rec.ActionItems {
			deadline := item.Deadline
			if deadline == "" {
				deadline = "unspecified"
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n",
				cell(item.Assignee), cell(item.Description), cell(deadline))
		}
	}
	b.WriteString("\n")

	b.WriteString("## Participation\n\n")
	p := rec.Participation
	fmt.Fprintf(&b, "You spoke %d of %d turns (%.1f%%).\n\n",
		p.UserTurns, p.TotalSpeakerTurns, p.UserParticipationPct)

	b.WriteString("## Coaching\n\n")
	fmt.Fprintf(&b, "%d nudges total.\n", rec.CoachingStats.TotalNudges)
	if len(rec.CoachingStats.Breakdown) > 0 {
		b.WriteString("\n")
		kinds := make([]string, 0, len(rec.CoachingStats.Breakdown))
		for kind := range rec.CoachingStats.Breakdown {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(&b, "- %s: %d\n", kind, rec.CoachingStats.Breakdown[kind])
		}
	}

	return b.String()
}

func minutes(m float64) string {
	if m == float64(int(m)) {
		return fmt.Sprintf("%d min", int(m))
	}
	return fmt.Sprintf("%.1f min", m)
}

// cell strips pipe characters so free-form agent text cannot break the
// action-items table.
func cell(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "|", "/"))
}
