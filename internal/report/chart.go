package report

import (
	"math"
	"strings"

	"spxbacktest/internal/strategy"
)

// Chart glyphs.
const (
	closeGlyph = '*'
	smaGlyph   = '.'
	bothGlyph  = '#'
)

// Chart draws the close and SMA of series as a text line chart of width
// columns by height rows, oldest on the left. Each column shows the mean of
// the days that fall into it; undefined SMA values are skipped. It returns ""
// when there is nothing to draw.
func Chart(series []strategy.SeriesPoint, width, height int) string {
	if len(series) == 0 || width < 1 || height < 2 {
		return ""
	}
	width = min(width, len(series))

	closes := make([]float64, width)
	smas := make([]float64, width)
	lo, hi := math.Inf(1), math.Inf(-1)
	for col := 0; col < width; col++ {
		from, to := col*len(series)/width, (col+1)*len(series)/width
		var cSum, sSum float64
		var sN int
		for _, p := range series[from:to] {
			cSum += p.Close
			if p.SMA.Valid {
				sSum += p.SMA.Value
				sN++
			}
		}
		closes[col] = cSum / float64(to-from)
		lo, hi = math.Min(lo, closes[col]), math.Max(hi, closes[col])
		smas[col] = math.NaN()
		if sN > 0 {
			smas[col] = sSum / float64(sN)
			lo, hi = math.Min(lo, smas[col]), math.Max(hi, smas[col])
		}
	}

	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", width))
	}
	row := func(v float64) int {
		if hi == lo {
			return height / 2
		}
		return int(math.Round((hi - v) / (hi - lo) * float64(height-1)))
	}
	for col := 0; col < width; col++ {
		if !math.IsNaN(smas[col]) {
			grid[row(smas[col])][col] = smaGlyph
		}
		r := row(closes[col])
		if grid[r][col] == smaGlyph {
			grid[r][col] = bothGlyph
		} else {
			grid[r][col] = closeGlyph
		}
	}

	hiLabel, loLabel := FormatCurrency(hi), FormatCurrency(lo)
	pad := max(len(hiLabel), len(loLabel))

	var b strings.Builder
	for r, line := range grid {
		label := ""
		switch r {
		case 0:
			label = hiLabel
		case height - 1:
			label = loLabel
		}
		b.WriteString(strings.Repeat(" ", pad-len(label)))
		b.WriteString(label)
		b.WriteString(" |")
		b.WriteString(strings.TrimRight(string(line), " "))
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(" +")
	b.WriteString(strings.Repeat("-", width))
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", pad+2))
	first, last := series[0].Date.Format("2006-01-02"), series[len(series)-1].Date.Format("2006-01-02")
	b.WriteString(first)
	if gap := width - len(first) - len(last); gap > 0 {
		b.WriteString(strings.Repeat(" ", gap))
		b.WriteString(last)
	}
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", pad+2))
	b.WriteString("* close  . SMA  # both")
	b.WriteByte('\n')
	return b.String()
}
