package node

import (
	"fmt"
	"strings"
	"unicode/utf8"

	wfmodel "match-intel-api/internal/workflow/model"
)

func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// BuildNotesBlock 将笔记格式化为编号列表，超出 maxRunes 总量后截断
func BuildNotesBlock(notes []wfmodel.NoteLine, maxRunesPerNote, maxRunes int) string {
	if len(notes) == 0 {
		return "(no notes)"
	}
	var b strings.Builder
	used := 0
	for i, n := range notes {
		text := strings.Join(strings.Fields(n.Text), " ")
		if text == "" {
			continue
		}
		text = TruncateByRunes(text, maxRunesPerNote)
		line := fmt.Sprintf("%d. %s", i+1, text)
		if n.SegmentID != "" {
			line = fmt.Sprintf("%d. (segment %s) %s", i+1, n.SegmentID, text)
		}
		size := utf8.RuneCountInString(line)
		if maxRunes > 0 && used+size > maxRunes {
			break
		}
		used += size
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// BuildSectionList 段落名称列表
func BuildSectionList(sections []string) string {
	if len(sections) == 0 {
		return "-"
	}
	return "- " + strings.Join(sections, "\n- ")
}
