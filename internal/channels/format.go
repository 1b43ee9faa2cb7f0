package channels

import "strings"

// FlattenTables rewrites markdown tables as "*header*: value" lines.
// Telegram renders neither pipes nor table alignment, so tables arrive
// as unreadable walls of | characters without this.
func FlattenTables(text string) string {
	lines := strings.Split(text, "\n")
	var out []string

	for i := 0; i < len(lines); i++ {
		if !isTableRow(lines[i]) {
			out = append(out, lines[i])
			continue
		}

		// Collect the whole table block.
		start := i
		for i < len(lines) && isTableRow(lines[i]) {
			i++
		}
		block := lines[start:i]
		i--

		flat := flattenTable(block)
		if flat == nil {
			out = append(out, block...)
			continue
		}
		out = append(out, flat...)
	}
	return strings.Join(out, "\n")
}

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "|") && strings.Count(trimmed, "|") >= 2
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			return false
		}
		for _, ch := range c {
			if ch != '-' && ch != ':' {
				return false
			}
		}
	}
	return true
}

func splitRow(line string) []string {
	trimmed := strings.Trim(strings.TrimSpace(line), "|")
	cells := strings.Split(trimmed, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

// flattenTable turns a table block into per-row "*header*: value"
// lines. Returns nil when the block is not a well-formed table.
func flattenTable(block []string) []string {
	if len(block) < 2 {
		return nil
	}
	headers := splitRow(block[0])
	if !isSeparatorRow(splitRow(block[1])) {
		return nil
	}

	var out []string
	for _, line := range block[2:] {
		cells := splitRow(line)
		var parts []string
		for j, cell := range cells {
			if j >= len(headers) || cell == "" {
				continue
			}
			parts = append(parts, "*"+headers[j]+"*: "+cell)
		}
		if len(parts) > 0 {
			out = append(out, strings.Join(parts, "\n"))
			out = append(out, "")
		}
	}
	if len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}
