package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/traffic-control/internal/httputil"
	"github.com/banshee-data/traffic-control/internal/traffic"
)

// handleOccupancyChart renders a heatmap (HTML) of occupied slots per cell.
func (s *Server) handleOccupancyChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	capacity, width, height := s.ctrl.Dimensions()
	g := s.ctrl.Grid()

	xs := make([]string, width)
	for x := range xs {
		xs[x] = strconv.Itoa(x)
	}
	ys := make([]string, height)
	for y := range ys {
		ys[y] = strconv.Itoa(y)
	}

	data := make([]opts.HeatMapData, 0, width*height)
	for x := range g {
		for y := range g[x] {
			n := 0
			for _, id := range g[x][y] {
				if id != traffic.EmptySlot {
					n++
				}
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{x, y, n}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Traffic Area Occupancy", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Occupancy", Subtitle: fmt.Sprintf("%dx%d cells, capacity %d, %d occupied", width, height, capacity, g.Occupied())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xs, Name: "x", SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys, Name: "y", SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(capacity),
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	hm.AddSeries("occupied", data)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
