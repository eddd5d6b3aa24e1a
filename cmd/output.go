package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"trainlog/internal/analysis"
)

var (
	hardColor   = color.New(color.FgRed, color.Bold)
	steadyColor = color.New(color.FgYellow)
	easyColor   = color.New(color.FgGreen)
	mutedColor  = color.New(color.FgHiBlack)
)

// runTypeLabel renders a stored run type for people
func runTypeLabel(runType string) string {
	if runType == "" {
		return "-"
	}
	return strings.ReplaceAll(runType, "_", " ")
}

// coloredRunType colors a run type by effort
func coloredRunType(runType string) string {
	label := runTypeLabel(runType)
	switch analysis.RunType(runType) {
	case analysis.RunTypeRace, analysis.RunTypeIntervals, analysis.RunTypeThreshold:
		return hardColor.Sprint(label)
	case analysis.RunTypeTempo, analysis.RunTypeFartlek, analysis.RunTypeProgression:
		return steadyColor.Sprint(label)
	case analysis.RunTypeEasy, analysis.RunTypeRecovery, analysis.RunTypeLongRun:
		return easyColor.Sprint(label)
	default:
		return mutedColor.Sprint(label)
	}
}

// sortedRunTypes orders run types by count, then name
func sortedRunTypes(byType map[analysis.RunType]int) []analysis.RunType {
	types := make([]analysis.RunType, 0, len(byType))
	for rt := range byType {
		types = append(types, rt)
	}
	sort.Slice(types, func(i, j int) bool {
		if byType[types[i]] != byType[types[j]] {
			return byType[types[i]] > byType[types[j]]
		}
		return types[i] < types[j]
	})
	return types
}

// formatDistance renders meters as kilometers
func formatDistance(meters float64) string {
	return fmt.Sprintf("%.2f km", meters/1000)
}

// formatPace renders seconds per km, "-" when unknown
func formatPace(secondsPerKm float64) string {
	if secondsPerKm <= 0 {
		return "-"
	}
	return analysis.FormatPace(secondsPerKm) + "/km"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// writeTable renders rows under headers with right-aligned cells
func writeTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
