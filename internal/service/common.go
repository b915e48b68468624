package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

const (
	defaultPerPage = 15
	maxPerPage     = 100
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page     int `json:"current_page"`
	PerPage  int `json:"per_page"`
	Total    int `json:"total"`
	LastPage int `json:"last_page"`
}

// PageRequest is the caller-facing page selector.
type PageRequest struct {
	Page    int
	PerPage int
}

func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}

func (p PageRequest) offset() int {
	return (p.Page - 1) * p.PerPage
}

func newPagination(p PageRequest, total int) Pagination {
	last := int(math.Ceil(float64(total) / float64(p.PerPage)))
	if last < 1 {
		last = 1
	}
	return Pagination{Page: p.Page, PerPage: p.PerPage, Total: total, LastPage: last}
}

// notFoundOr turns a missing row into a NOT_FOUND for resource and maps anything else.
func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return apperrors.MapError(err)
}

func actorOf(user *domain.User) events.Actor {
	if user == nil {
		return events.Actor{}
	}
	return events.Actor{UserID: user.ID, Role: user.Role}
}

// publisher stamps and dispatches events; dispatch failures never fail the caller.
type publisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func (p publisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil && p.logger != nil {
		p.logger.Warn("event dispatch failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
