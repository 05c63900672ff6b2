package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/lineage-data/motility.report/internal/lineage"
)

// RoseFileSuffix names the per-location trajectory plot.
const RoseFileSuffix = "-trajectories.png"

// WriteRosePlot draws every subtrack's spot path translated to a common
// origin, colored by generation, on square centered axes. Single-spot
// subtracks have no path and are skipped.
func WriteRosePlot(folder, base string, results []*lineage.TrackResult) (string, error) {
	path := filepath.Join(folder, base+RoseFileSuffix)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return path, fmt.Errorf("create output folder: %w", err)
	}

	p := plot.New()
	p.Title.Text = "Subtrack Trajectories " + base
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	maxGeneration := 0
	for _, res := range results {
		for _, sub := range res.Tree.Subtracks {
			if sub.Generation > maxGeneration {
				maxGeneration = sub.Generation
			}
		}
	}
	colors := generationColors(maxGeneration + 1)

	maxAbs := 0.0
	legend := make(map[int]*plotter.Line)
	for _, res := range results {
		for _, sub := range res.Tree.Subtracks {
			if len(sub.Spots) < 2 {
				continue
			}
			origin := sub.Spots[0]
			pts := make(plotter.XYs, len(sub.Spots))
			for i, s := range sub.Spots {
				x := s.X - origin.X
				y := s.Y - origin.Y
				pts[i] = plotter.XY{X: x, Y: y}
				if math.Abs(x) > maxAbs {
					maxAbs = math.Abs(x)
				}
				if math.Abs(y) > maxAbs {
					maxAbs = math.Abs(y)
				}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return path, fmt.Errorf("subtrack %s: %w", sub.ID(), err)
			}
			line.Color = colors[sub.Generation]
			line.Width = vg.Points(1)
			p.Add(line)
			legend[sub.Generation] = line
		}
	}

	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}
	p.X.Min, p.X.Max = -pad, pad
	p.Y.Min, p.Y.Max = -pad, pad

	generations := make([]int, 0, len(legend))
	for g := range legend {
		generations = append(generations, g)
	}
	sort.Ints(generations)
	for _, g := range generations {
		p.Legend.Add(fmt.Sprintf("generation %d", g), legend[g])
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return path, fmt.Errorf("save trajectory plot: %w", err)
	}
	return path, nil
}

// generationColors builds a palette of distinct colors, one per generation.
func generationColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB in the 0-255 range.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
