// Package ui holds the text primitives used to lay out terminal reports.
package ui

import (
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Tree hierarchy symbols using box drawing characters
const (
	TreeBranch   = "├── "
	TreeContinue = "│   "
	TreeIndent   = "    "
)

// StepPrefix returns the prefix of a step line nested level steps deep below
// its test. Level 1 is a direct child of the test.
func StepPrefix(level int) string {
	if level <= 0 {
		return ""
	}
	return strings.Repeat(TreeContinue, level-1) + TreeBranch
}

// StepIndent returns the indentation of text that belongs to a step at level,
// such as its output or error.
func StepIndent(level int) string {
	if level <= 0 {
		return ""
	}
	return strings.Repeat(TreeContinue, level-1) + TreeIndent
}

// Box draws lines inside a single-column box titled title. The box is as
// wide as its longest line.
func Box(title string, lines []string) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, WidthMin: utf8.RuneCountInString(title)}})
	if len(lines) == 0 {
		t.AppendRow(table.Row{title})
		return t.Render() + "\n"
	}
	t.SetTitle(title)
	for _, line := range lines {
		t.AppendRow(table.Row{line})
	}
	return t.Render() + "\n"
}
