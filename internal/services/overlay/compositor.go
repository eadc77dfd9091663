package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"gocv.io/x/gocv"

	"github.com/rockets-cn/allsky/internal/astro"
	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/services/weather"
	"github.com/rockets-cn/allsky/internal/station"
)

// RenderContext carries everything stamped onto a raw frame. Optional fields
// (weather, heading, stars, sun times) degrade their layer to a placeholder
// when absent; they never fail the render.
type RenderContext struct {
	Station    station.Station
	CapturedAt time.Time
	Phase      astro.TwilightPhase
	Exposure   float64
	Sunrise    time.Time // zero when the sun never rises on this date
	Sunset     time.Time
	Weather    weather.Data // nil = provider unavailable
	Heading    *float64     // mount heading in degrees, nil = unknown
	Stars      []astro.StarLabel
}

// Compositor stamps the informational layers onto captured frames in a fixed
// back-to-front order: compass ring, station/time info panel, weather panel,
// logo, star labels. Deterministic given identical inputs.
type Compositor struct {
	logger  *logger.Logger
	logo    gocv.Mat
	hasLogo bool
}

// NewCompositor loads the optional logo. A missing or unreadable logo only
// degrades that layer.
func NewCompositor(logoPath string, log *logger.Logger) *Compositor {
	c := &Compositor{logger: log}
	if logoPath == "" {
		return c
	}
	logo := gocv.IMRead(logoPath, gocv.IMReadColor)
	if logo.Empty() {
		log.Warning("🖼 Logo %s could not be read, logo layer disabled", logoPath)
		return c
	}
	c.logo = logo
	c.hasLogo = true
	return c
}

// Close releases the logo Mat.
func (c *Compositor) Close() {
	if c.hasLogo {
		c.logo.Close()
		c.hasLogo = false
	}
}

type layerFunc struct {
	name string
	draw func(*gocv.Mat, RenderContext) error
}

// Render stamps all layers onto frame in place. A failure in one layer is
// logged and skipped; the base frame with the remaining layers always
// survives.
func (c *Compositor) Render(frame *gocv.Mat, rc RenderContext) {
	for _, layer := range []layerFunc{
		{"compass", c.drawCompass},
		{"info", c.drawInfoPanel},
		{"weather", c.drawWeatherPanel},
		{"logo", c.drawLogo},
		{"stars", c.drawStarLabels},
	} {
		if err := layer.draw(frame, rc); err != nil {
			c.logger.Warning("⚠️  Overlay layer %s degraded: %v", layer.name, err)
		}
	}
}

// drawCompass renders the ring, cardinal letters and north arrow in the top
// left corner. An unknown heading falls back to north-up.
func (c *Compositor) drawCompass(frame *gocv.Mat, rc RenderContext) error {
	const radius = 68
	center := image.Pt(90, 90)
	if frame.Cols() < 200 || frame.Rows() < 200 {
		return fmt.Errorf("frame %dx%d too small for compass", frame.Cols(), frame.Rows())
	}

	heading := 0.0
	if rc.Heading != nil {
		heading = *rc.Heading
	}

	work := frame.Clone()
	defer work.Close()

	white := color.RGBA{255, 255, 255, 0}
	gocv.Circle(&work, center, radius, white, 2)

	labels := []string{"N", "E", "S", "W"}
	angles := []float64{0, 90, 180, 270}
	for i, label := range labels {
		angle := rad(angles[i] - heading)
		x := center.X + int((radius+20)*math.Sin(angle)) - 13
		y := center.Y - int((radius+20)*math.Cos(angle)) + 13
		col := white
		if label == "N" {
			col = color.RGBA{255, 140, 0, 0}
		}
		gocv.PutText(&work, label, image.Pt(x, y), gocv.FontHersheySimplex, 0.8, col, 2)
	}

	arrowAngle := rad(0 - heading)
	tip := image.Pt(
		center.X+int((radius-12)*math.Sin(arrowAngle)),
		center.Y-int((radius-12)*math.Cos(arrowAngle)),
	)
	gocv.ArrowedLine(&work, center, tip, color.RGBA{255, 0, 0, 0}, 4)

	gocv.AddWeighted(work, 0.6, *frame, 0.4, 0, frame)
	return nil
}

// drawInfoPanel renders the station/time/sun/exposure text block in the top
// right corner over a translucent background.
func (c *Compositor) drawInfoPanel(frame *gocv.Mat, rc RenderContext) error {
	sunrise, sunset := "N/A", "N/A"
	if !rc.Sunrise.IsZero() {
		sunrise = rc.Sunrise.UTC().Format("2006-01-02 15:04:05")
	}
	if !rc.Sunset.IsZero() {
		sunset = rc.Sunset.UTC().Format("2006-01-02 15:04:05")
	}

	orange := color.RGBA{255, 140, 0, 0}
	yellow := color.RGBA{255, 255, 0, 0}
	cyan := color.RGBA{255, 255, 100, 0}
	white := color.RGBA{255, 255, 255, 0}

	lines := []panelLine{
		{rc.Station.Name, orange, 1.1},
		{"Sunrise: " + sunrise, yellow, 0.7},
		{"Sunset : " + sunset, yellow, 0.7},
		{"Time   : " + rc.CapturedAt.Format("2006-01-02 15:04:05"), white, 0.7},
		{fmt.Sprintf("Lat: %.4f", rc.Station.Latitude), cyan, 0.7},
		{fmt.Sprintf("Long: %.4f", rc.Station.Longitude), cyan, 0.7},
		{fmt.Sprintf("Exp: %.0f [s]  Phase: %s", rc.Exposure, rc.Phase), cyan, 0.7},
	}

	const dy = 34
	w := frame.Cols()
	x0, y0 := w-370, 38
	bgW, bgH := 360, len(lines)*dy+18
	return c.drawTextPanel(frame, lines, image.Rect(x0-18, y0-30, x0-18+bgW, y0-30+bgH), x0, y0, dy, 0.7)
}

// drawWeatherPanel renders current conditions in the bottom left corner.
// With no provider data every item shows "N/A" rather than disappearing.
func (c *Compositor) drawWeatherPanel(frame *gocv.Mat, rc RenderContext) error {
	const dy = 26
	h := frame.Rows()
	x0, y0 := 28, h-260
	bgW, bgH := 260, len(weather.PanelItems)*dy+18

	var lines []panelLine
	for _, item := range weather.PanelItems {
		value := "N/A"
		if rc.Weather != nil {
			if v, ok := rc.Weather[item]; ok {
				value = v
			}
		}
		lines = append(lines, panelLine{
			text:  item + ": " + value,
			col:   color.RGBA{200, 255, 255, 0},
			scale: 0.62,
		})
	}
	return c.drawTextPanel(frame, lines, image.Rect(x0-12, y0-22, x0-12+bgW, y0-22+bgH), x0, y0, dy, 0.7)
}

type panelLine struct {
	text  string
	col   color.RGBA
	scale float64
}

// drawTextPanel blends a black background rectangle and the given text lines
// at the configured alpha. Panels that do not fit the frame degrade.
func (c *Compositor) drawTextPanel(frame *gocv.Mat, lines []panelLine, bg image.Rectangle, x0, y0, dy int, alpha float64) error {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	if !bg.In(bounds) {
		return fmt.Errorf("panel %v does not fit frame %v", bg, bounds)
	}

	work := frame.Clone()
	defer work.Close()

	gocv.Rectangle(&work, bg, color.RGBA{0, 0, 0, 0}, -1)
	for i, l := range lines {
		gocv.PutText(&work, l.text, image.Pt(x0, y0+i*dy), gocv.FontHersheySimplex, l.scale, l.col, 2)
	}

	gocv.AddWeighted(work, alpha, *frame, 1-alpha, 0, frame)
	return nil
}

// drawLogo blends the logo into the bottom right corner, scaled to a seventh
// of the frame width.
func (c *Compositor) drawLogo(frame *gocv.Mat, _ RenderContext) error {
	if !c.hasLogo {
		return nil
	}

	w, h := frame.Cols(), frame.Rows()
	logoW := w / 7
	if logoW < 1 {
		return fmt.Errorf("frame width %d too small for logo", w)
	}
	scale := float64(logoW) / float64(c.logo.Cols())
	logoH := int(float64(c.logo.Rows()) * scale)

	x1 := w - logoW - 20
	y1 := h - logoH - 20
	if x1 < 0 || y1 < 0 {
		return fmt.Errorf("frame %dx%d too small for logo", w, h)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(c.logo, &resized, image.Pt(logoW, logoH), 0, 0, gocv.InterpolationArea)

	region := frame.Region(image.Rect(x1, y1, x1+logoW, y1+logoH))
	defer region.Close()
	gocv.AddWeighted(resized, 0.85, region, 0.15, 0, &region)
	return nil
}

// drawStarLabels annotates visible bright stars. No labels is a valid state
// (daylight, or catalog provider absent).
func (c *Compositor) drawStarLabels(frame *gocv.Mat, rc RenderContext) error {
	for _, s := range rc.Stars {
		gocv.PutText(frame, s.Name, image.Pt(s.X, s.Y), gocv.FontHersheySimplex, 0.52, color.RGBA{255, 255, 0, 0}, 1)
	}
	return nil
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }
