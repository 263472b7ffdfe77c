package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pdo/internal/acquire"
	"pdo/internal/analytics"
	"pdo/internal/dashboard"
	"pdo/internal/export"
	"pdo/internal/model"
	"pdo/internal/pipeline"
	"pdo/internal/risk"
	"pdo/internal/routeplan"
)

func (s *Server) load(ctx context.Context) dashboard.Raw {
	ds, err := acquire.Load(ctx, s.source, s.log)
	if err != nil {
		s.metrics.Fallback()
	}
	return dashboard.FromLoad(ds, err)
}

// listParam accepts both repeated and comma-separated values.
func listParam(c *gin.Context, name string) []string {
	var out []string
	for _, v := range c.QueryArray(name) {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func dateParam(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", model.ErrInvalidValue, name, v)
	}
	return &t, nil
}

// requestFrom reads from, to, priority, warehouse and limit.
func (s *Server) requestFrom(c *gin.Context) (dashboard.Request, error) {
	req := dashboard.Request{Weights: s.weights, Limit: s.limit}
	var err error
	if req.Filter.From, err = dateParam(c, "from"); err != nil {
		return req, err
	}
	if req.Filter.To, err = dateParam(c, "to"); err != nil {
		return req, err
	}
	for _, p := range listParam(c, "priority") {
		req.Filter.Priorities = append(req.Filter.Priorities, model.Priority(p))
	}
	for _, w := range listParam(c, "warehouse") {
		req.Filter.Warehouses = append(req.Filter.Warehouses, model.City(w))
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("%w: limit %q", model.ErrInvalidValue, v)
		}
		req.Limit = n
	}
	return req, req.Validate()
}

func (s *Server) getDashboard(c *gin.Context) {
	req, err := s.requestFrom(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	start := time.Now()
	vm, err := dashboard.Compute(s.load(c.Request.Context()), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	scored := 0
	for _, r := range vm.Records {
		if r.Scored() {
			scored++
		}
	}
	s.metrics.ObservePipeline(time.Since(start), scored, len(vm.Records)-scored)
	ok(c, vm)
}

func (s *Server) scored(c *gin.Context) ([]risk.ScoredRecord, bool) {
	req, err := s.requestFrom(c)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	recs, err := dashboard.Score(s.load(c.Request.Context()).Dataset, req)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return recs, true
}

func (s *Server) listOrders(c *gin.Context) {
	recs, good := s.scored(c)
	if !good {
		return
	}
	ok(c, gin.H{"count": len(recs), "records": recs})
}

// getAnalytics serves one breakdown. scope=all reads the long-lived master
// store instead of the filtered request.
func (s *Server) getAnalytics(c *gin.Context) {
	dim, err := analytics.ParseDimension(c.Param("dimension"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if c.Query("scope") == "all" {
		if s.master == nil {
			s.fail(c, fmt.Errorf("%w: no master analytics store configured", model.ErrInvalidValue))
			return
		}
		rows, err := analytics.Breakdown(s.master, dim)
		if err != nil {
			s.fail(c, err)
			return
		}
		ok(c, gin.H{"kpis": analytics.Summarize(s.master), "rows": rows})
		return
	}

	req, err := s.requestFrom(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	vm, err := dashboard.Compute(s.load(c.Request.Context()), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"kpis": vm.KPIs, "rows": vm.Breakdowns[dim]})
}

type predictRequest struct {
	Priority          model.Priority `json:"priority"`
	Origin            model.City     `json:"originWarehouse"`
	Destination       model.City     `json:"destinationCity"`
	Category          model.Category `json:"productCategory"`
	DistanceKM        *float64       `json:"distanceKm"`
	TrafficDelayHours *float64       `json:"trafficDelayHours"`
	Weather           string         `json:"weather"`
	Carrier           model.Carrier  `json:"carrier"`
	HourOfDay         *int           `json:"hourOfDay"`
}

// input validates the form and fills traffic and weather from the live feed
// when the caller leaves them out.
func (s *Server) input(ctx context.Context, pr predictRequest) (risk.Input, error) {
	var in risk.Input
	var err error
	if in.Priority, err = model.ParsePriority(string(pr.Priority)); err != nil {
		return in, err
	}
	if in.Category, err = model.ParseCategory(string(pr.Category)); err != nil {
		return in, err
	}
	if pr.Origin != "" {
		if _, err := model.ParseWarehouse(string(pr.Origin)); err != nil {
			return in, err
		}
	}
	if pr.Destination != "" {
		if _, err := model.ParseCity(string(pr.Destination)); err != nil {
			return in, err
		}
	}
	if pr.DistanceKM == nil || *pr.DistanceKM <= 0 {
		return in, fmt.Errorf("%w: distanceKm must be positive", model.ErrInvalidValue)
	}
	in.DistanceKM = pr.DistanceKM
	if pr.HourOfDay != nil && (*pr.HourOfDay < 0 || *pr.HourOfDay > 23) {
		return in, fmt.Errorf("%w: hourOfDay %d", model.ErrInvalidValue, *pr.HourOfDay)
	}
	in.HourOfDay = pr.HourOfDay

	switch {
	case pr.TrafficDelayHours == nil:
		h, err := s.feed.Traffic(ctx, pr.Origin, pr.Destination)
		if err != nil {
			return in, fmt.Errorf("traffic feed: %w", err)
		}
		in.TrafficDelayHours = &h
	case *pr.TrafficDelayHours < 0:
		return in, fmt.Errorf("%w: trafficDelayHours must not be negative", model.ErrInvalidValue)
	default:
		in.TrafficDelayHours = pr.TrafficDelayHours
	}

	if pr.Weather == "" {
		if in.Weather, err = s.feed.Forecast(ctx, pr.Destination); err != nil {
			return in, fmt.Errorf("weather feed: %w", err)
		}
	} else if in.Weather, err = model.ParseForecastWeather(pr.Weather); err != nil {
		return in, err
	}
	return in, nil
}

func (s *Server) predict(c *gin.Context) {
	var pr predictRequest
	if err := c.ShouldBindJSON(&pr); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", model.ErrInvalidValue, err))
		return
	}
	ctx := c.Request.Context()
	in, err := s.input(ctx, pr)
	if err != nil {
		s.fail(c, err)
		return
	}
	if pr.Carrier != "" {
		hist := risk.CarrierHistoryFrom(pipeline.Join(s.load(ctx).Dataset))
		if avg, found := hist[pr.Carrier]; found {
			in.CarrierAvgDelay = &avg
		}
	}
	scorer := risk.NewScorer(risk.DefaultWeights())
	if s.weights != nil {
		scorer = risk.NewScorer(s.weights)
	}
	ok(c, gin.H{"input": in, "prediction": risk.Predict(scorer, in)})
}

func (s *Server) planRoute(c *gin.Context) {
	var req routeplan.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", model.ErrInvalidValue, err))
		return
	}
	plan, err := s.planner.Plan(req)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, plan)
}

func (s *Server) exportData(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		s.fail(c, err)
		return
	}
	recs, good := s.scored(c)
	if !good {
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+format.FileName()+`"`)
	c.Header("Content-Type", format.ContentType())
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, format, risk.Table(recs)); err != nil {
		s.log.Error("export write failed", zap.Error(err))
	}
}

func (s *Server) sample(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="`+export.SampleFileName+`"`)
	c.Header("Content-Type", export.FormatCSV.ContentType())
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, export.Sample()); err != nil {
		s.log.Error("sample write failed", zap.Error(err))
	}
}
