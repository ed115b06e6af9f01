package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dirigovotes/dirigo/internal/model"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// analyticsWindow is the half-open interval [from, to) covered by a filter.
type analyticsWindow struct {
	from, to time.Time
	layout   string
}

// ParseAnalyticsFilter builds a filter from query values. start and end are
// dates (YYYY-MM-DD) and only used by the custom range.
func ParseAnalyticsFilter(rangeName, start, end string) (model.AnalyticsFilter, error) {
	if rangeName == "" {
		rangeName = model.AnalyticsWeek
	}
	filter := model.AnalyticsFilter{Range: rangeName}

	switch rangeName {
	case model.AnalyticsToday, model.AnalyticsWeek, model.AnalyticsMonth, model.AnalyticsYear:
		return filter, nil
	case model.AnalyticsCustom:
	default:
		return filter, ErrInvalidRange
	}

	from, err := time.Parse(dayLayout, start)
	if err != nil {
		return filter, ErrInvalidRange
	}
	to, err := time.Parse(dayLayout, end)
	if err != nil || to.Before(from) {
		return filter, ErrInvalidRange
	}
	filter.Start, filter.End = &from, &to
	return filter, nil
}

func window(filter model.AnalyticsFilter, now time.Time) (analyticsWindow, error) {
	now = now.UTC()
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	w := analyticsWindow{to: tomorrow, layout: dayLayout}
	switch filter.Range {
	case model.AnalyticsToday:
		w.from = tomorrow.AddDate(0, 0, -1)
	case model.AnalyticsWeek:
		w.from = tomorrow.AddDate(0, 0, -7)
	case model.AnalyticsMonth:
		w.from = tomorrow.AddDate(0, 0, -30)
	case model.AnalyticsYear:
		w.from = tomorrow.AddDate(-1, 0, 0)
		w.layout = monthLayout
	case model.AnalyticsCustom:
		if filter.Start == nil || filter.End == nil || filter.End.Before(*filter.Start) {
			return w, ErrInvalidRange
		}
		w.from = filter.Start.UTC()
		w.to = filter.End.UTC().AddDate(0, 0, 1)
		if w.to.Sub(w.from) > 92*24*time.Hour {
			w.layout = monthLayout
		}
	default:
		return w, ErrInvalidRange
	}
	return w, nil
}

// buckets lists every bucket label in the window, oldest first.
func (w analyticsWindow) buckets() []string {
	var labels []string
	step := func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	cursor := w.from
	if w.layout == monthLayout {
		step = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
		cursor = time.Date(cursor.Year(), cursor.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	for ; cursor.Before(w.to); cursor = step(cursor) {
		labels = append(labels, cursor.Format(w.layout))
	}
	return labels
}

func (w analyticsWindow) key(rangeName string) string {
	return fmt.Sprintf("analytics:%s:%s:%s", rangeName, w.from.Format(dayLayout), w.to.Format(dayLayout))
}

// Analytics returns the dashboard for filter. Aggregation and cache failures
// are logged and degrade to the zeroed payload; only authorization fails.
func (s *AdminService) Analytics(ctx context.Context, actorID string, filter model.AnalyticsFilter) (*model.Analytics, error) {
	_, err := s.Authorize(ctx, actorID)
	if err != nil {
		return nil, err
	}

	w, err := window(filter, s.now())
	if err != nil {
		slog.Warn("invalid analytics filter", "range", filter.Range)
		return model.EmptyAnalytics(filter.Range), nil
	}

	key := w.key(filter.Range)
	cached := &model.Analytics{}
	found, err := s.cache.GetJSON(ctx, key, cached)
	if err != nil {
		slog.Warn("analytics cache read failed", "error", err)
	}
	if found {
		return cached, nil
	}

	result, err := s.aggregate(ctx, filter.Range, w)
	if err != nil {
		slog.Error("analytics aggregation failed", "error", err, "range", filter.Range)
		return model.EmptyAnalytics(filter.Range), nil
	}

	err = s.cache.SetJSON(ctx, key, result, s.cacheTTL)
	if err != nil {
		slog.Warn("analytics cache write failed", "error", err)
	}

	return result, nil
}

func (s *AdminService) aggregate(ctx context.Context, rangeName string, w analyticsWindow) (*model.Analytics, error) {
	overview, err := s.analyticsRepository.Overview(ctx, w.from, w.to)
	if err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}

	signups, err := s.analyticsRepository.SignupTimes(ctx, w.from, w.to)
	if err != nil {
		return nil, fmt.Errorf("signups: %w", err)
	}

	votes, err := s.analyticsRepository.VoteTimes(ctx, w.from, w.to)
	if err != nil {
		return nil, fmt.Errorf("votes: %w", err)
	}

	topIssues, err := s.analyticsRepository.TopIssues(ctx, topIssueLimit)
	if err != nil {
		return nil, fmt.Errorf("top issues: %w", err)
	}

	roles, err := s.analyticsRepository.RoleDistribution(ctx)
	if err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}

	labels := w.buckets()
	index := make(map[string]int, len(labels))
	series := make([]model.AnalyticsPoint, len(labels))
	for i, label := range labels {
		index[label] = i
		series[i].Date = label
	}
	for _, t := range signups {
		if i, ok := index[t.UTC().Format(w.layout)]; ok {
			series[i].Signups++
		}
	}
	for _, t := range votes {
		if i, ok := index[t.UTC().Format(w.layout)]; ok {
			series[i].Votes++
		}
	}

	return &model.Analytics{
		Filter:           rangeName,
		Overview:         *overview,
		TimeSeries:       series,
		TopIssues:        topIssues,
		RoleDistribution: roles,
	}, nil
}
