package scheduler

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/rockets-cn/allsky/internal/astro"
	"github.com/rockets-cn/allsky/internal/config"
	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/models"
	"github.com/rockets-cn/allsky/internal/services/camera"
	"github.com/rockets-cn/allsky/internal/services/compass"
	"github.com/rockets-cn/allsky/internal/services/history"
	"github.com/rockets-cn/allsky/internal/services/overlay"
	"github.com/rockets-cn/allsky/internal/services/weather"
)

// Pipeline is the production Runner: camera acquisition, overlay rendering,
// JPEG encoding and history storage, in that order. Provider failures only
// degrade the overlay; they never fail the capture.
type Pipeline struct {
	arbiter     *camera.Arbiter
	compositor  *overlay.Compositor
	store       *history.Store
	weather     weather.Provider
	compass     compass.Provider
	catalog     *astro.Catalog
	jpegQuality int
	maxStars    int
	logger      *logger.Logger
}

func NewPipeline(arbiter *camera.Arbiter, compositor *overlay.Compositor, store *history.Store, wp weather.Provider, cp compass.Provider, catalog *astro.Catalog, cfg *config.Config, log *logger.Logger) *Pipeline {
	return &Pipeline{
		arbiter:     arbiter,
		compositor:  compositor,
		store:       store,
		weather:     wp,
		compass:     cp,
		catalog:     catalog,
		jpegQuality: cfg.JPEGQuality,
		maxStars:    cfg.MaxStarLabels,
		logger:      log,
	}
}

func (p *Pipeline) Run(ctx context.Context, snap *Snapshot, phase astro.TwilightPhase, settings config.PhaseSettings, requestedAt time.Time) (*models.ImageMetadata, []byte, error) {
	frame, err := p.arbiter.Capture(ctx, settings)
	if err != nil {
		return nil, nil, err
	}
	defer frame.Close()

	rc := p.renderContext(snap, phase, settings, requestedAt, frame.Cols(), frame.Rows())
	p.compositor.Render(&frame, rc)

	jpeg, err := p.encode(frame)
	if err != nil {
		return nil, nil, err
	}

	meta, err := p.store.Record(jpeg, requestedAt, phase)
	if err != nil {
		return nil, nil, err
	}
	return meta, jpeg, nil
}

// renderContext collects everything the overlay layers need. All provider
// lookups are best-effort.
func (p *Pipeline) renderContext(snap *Snapshot, phase astro.TwilightPhase, settings config.PhaseSettings, requestedAt time.Time, width, height int) overlay.RenderContext {
	rc := overlay.RenderContext{
		Station:    snap.Station,
		CapturedAt: requestedAt,
		Phase:      phase,
		Exposure:   settings.Exposure,
	}

	if sunrise, sunset, ok := astro.SunTimes(requestedAt, snap.Station.Latitude, snap.Station.Longitude); ok {
		rc.Sunrise = sunrise
		rc.Sunset = sunset
	}

	if p.weather != nil {
		data, err := p.weather.FetchCurrent()
		if err != nil {
			p.logger.Warning("Weather unavailable: %v", err)
		} else {
			rc.Weather = data
		}
	}

	if p.compass != nil {
		heading, err := p.compass.FetchCurrent()
		if err == nil {
			rc.Heading = &heading
		}
	}

	// Star labels only make sense once the sky is dark enough to see them.
	if p.catalog != nil && phase != astro.Day && phase != astro.CivilTwilight {
		rc.Stars = p.catalog.Labels(requestedAt, snap.Station, width, height, p.maxStars)
	}

	return rc
}

func (p *Pipeline) encode(frame gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{gocv.IMWriteJpegQuality, p.jpegQuality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	jpeg := make([]byte, len(buf.GetBytes()))
	copy(jpeg, buf.GetBytes())
	return jpeg, nil
}
