package service

import (
    "context"
    "strings"
    "time"

    "github.com/iliyamo/carpool-reservation/internal/model"
    "github.com/iliyamo/carpool-reservation/internal/repository"
)

// MaxPageSize bounds SearchQuery.PageSize.
const MaxPageSize = 100

// SearchQuery filters active rides.  Origin and Destination are
// case-insensitive substrings; Date matches departures on that UTC day.
type SearchQuery struct {
    Origin      string
    Destination string
    Date        *time.Time
    Page        int
    PageSize    int
}

// SearchResult is one page of matching rides.
type SearchResult struct {
    Rides    []model.Ride `json:"rides"`
    Total    int64        `json:"total"`
    Page     int          `json:"page"`
    PageSize int          `json:"page_size"`
}

// Search is read-only and takes no locks.
func (s *Rides) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
    if q.Page == 0 {
        q.Page = 1
    }
    if q.PageSize == 0 {
        q.PageSize = 20
    }
    if q.Page < 1 {
        return nil, Validation("page must be 1 or more")
    }
    if q.PageSize < 1 || q.PageSize > MaxPageSize {
        return nil, Validation("page_size must be between 1 and 100")
    }
    rides, total, err := s.store.Rides().Search(ctx, repository.RideSearchQuery{
        Origin:      strings.TrimSpace(q.Origin),
        Destination: strings.TrimSpace(q.Destination),
        Date:        q.Date,
        Page:        q.Page,
        PageSize:    q.PageSize,
    })
    if err != nil {
        return nil, storeError(err)
    }
    return &SearchResult{Rides: rides, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}
