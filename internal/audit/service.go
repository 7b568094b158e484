package audit

import (
	"context"
	"errors"
)

// TimelineRepository is the query surface the timeline service needs.
type TimelineRepository interface {
	TimelineWindow(ctx context.Context, f Filters, offset, limit int) ([]Event, error)
}

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Service serves paged audit timeline queries for the management UI.
type Service struct {
	repo TimelineRepository
}

// NewService builds the timeline service.
func NewService(repo TimelineRepository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of events matching the filters.
func (s *Service) Timeline(ctx context.Context, filters Filters) (Page, error) {
	if s.repo == nil {
		return Page{}, errors.New("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	events, err := s.repo.TimelineWindow(ctx, filters, offset, pageSize+1)
	if err != nil {
		return Page{}, err
	}
	hasNext := len(events) > pageSize
	if hasNext {
		events = events[:pageSize]
	}
	return Page{
		Events: events,
		Paging: Paging{Page: page, PageSize: pageSize, HasNext: hasNext},
	}, nil
}
