package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/lineage-data/motility.report/internal/lineage"
)

// ChartsFileSuffix names the per-location HTML chart page.
const ChartsFileSuffix = "-motility_report.html"

// WriteMotilityCharts renders the per-location chart page: a scatter of
// confinement ratio against mean speed with one series per generation, and a
// bar chart of subtrack counts per generation. Subtracks with an undefined
// metric are left out of the scatter but still counted in the bars.
func WriteMotilityCharts(folder, base string, results []*lineage.TrackResult) (string, error) {
	path := filepath.Join(folder, base+ChartsFileSuffix)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return path, fmt.Errorf("create output folder: %w", err)
	}

	byGeneration := make(map[int][]opts.ScatterData)
	counts := make(map[int]int)
	for _, res := range results {
		for _, st := range res.Stats {
			counts[st.Generation]++
			if math.IsNaN(st.SpeedMean) || math.IsNaN(st.ConfinementRatio) {
				continue
			}
			byGeneration[st.Generation] = append(byGeneration[st.Generation],
				opts.ScatterData{Value: []interface{}{st.SpeedMean, st.ConfinementRatio, st.SubtrackID}})
		}
	}

	generations := make([]int, 0, len(counts))
	for g := range counts {
		generations = append(generations, g)
	}
	sort.Ints(generations)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Motility Report " + base, Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Confinement vs Mean Speed", Subtitle: base}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Mean speed", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Confinement ratio", NameLocation: "middle", NameGap: 30, Min: 0, Max: 1}),
	)
	for _, g := range generations {
		pts := byGeneration[g]
		if len(pts) == 0 {
			continue
		}
		scatter.AddSeries(fmt.Sprintf("generation %d", g), pts,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}

	x := make([]string, 0, len(generations))
	y := make([]opts.BarData, 0, len(generations))
	for _, g := range generations {
		x = append(x, fmt.Sprintf("gen %d", g))
		y = append(y, opts.BarData{Value: counts[g]})
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Subtracks per Generation", Subtitle: base}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("subtracks", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(scatter, bar)

	f, err := os.Create(path)
	if err != nil {
		return path, fmt.Errorf("create %s: %w", path, err)
	}
	if err := page.Render(f); err != nil {
		f.Close()
		return path, fmt.Errorf("render chart page: %w", err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
