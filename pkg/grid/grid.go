// Package grid lays text out on a fixed character grid.
package grid

// GetGridCoords converts a linear cell index into column and row.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Wrap hard-wraps every line to at most cols runes. Empty lines are kept.
func Wrap(lines []string, cols int) []string {
	if cols <= 0 {
		return lines
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		r := []rune(line)
		if len(r) == 0 {
			out = append(out, "")
			continue
		}
		for i := 0; i < len(r); i += cols {
			end := min(i+cols, len(r))
			out = append(out, string(r[i:end]))
		}
	}
	return out
}

// Tail returns the last rows lines.
func Tail(lines []string, rows int) []string {
	if rows <= 0 {
		return nil
	}
	if len(lines) <= rows {
		return lines
	}
	return lines[len(lines)-rows:]
}
