// Package rsvp はイベント参加表明（RSVP）のトグル操作を提供する。
package rsvp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/eventboard/internal/metrics"
	"github.com/hitoshi/eventboard/internal/model"
	"github.com/hitoshi/eventboard/internal/repository"
)

// Result はトグル操作後のRSVP状態。
type Result struct {
	Attending bool
	RSVPCount int
}

// Service はRSVPトグルのサービス層。
type Service struct {
	eventRepo repository.EventRepository
	rsvpRepo  repository.RSVPRepository
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	eventRepo repository.EventRepository,
	rsvpRepo repository.RSVPRepository,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		eventRepo: eventRepo,
		rsvpRepo:  rsvpRepo,
		metrics:   collector,
	}
}

// Toggle はユーザーのRSVPを反転する。未参加なら参加登録、参加済みなら取り消し。
// 同時に同じトグルが走った場合、INSERTの一意制約違反を取り消しとして扱うことで
// 二重登録を防ぐ（結果はどちらか一方の状態に収束する）。
func (s *Service) Toggle(ctx context.Context, userID, eventID string) (*Result, error) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	if event == nil {
		return nil, model.NewEventNotFoundError(eventID)
	}

	existing, err := s.rsvpRepo.FindByUserAndEvent(ctx, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("RSVPの取得に失敗しました: %w", err)
	}

	var attending bool
	if existing == nil {
		attending, err = s.attend(ctx, userID, eventID)
	} else {
		attending, err = s.unattend(ctx, userID, eventID)
	}
	if err != nil {
		return nil, err
	}

	count, err := s.rsvpRepo.CountByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("RSVP件数の取得に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordRSVPToggle(attending)
	}
	slog.Info("rsvp toggled",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
		slog.Bool("attending", attending),
	)

	return &Result{Attending: attending, RSVPCount: count}, nil
}

// attend は参加登録を行う。チェックとINSERTの間に別リクエストが
// 登録を済ませていた場合（一意制約違反）、トグルの意味論に従い取り消しに倒す。
func (s *Service) attend(ctx context.Context, userID, eventID string) (bool, error) {
	rsvp := &model.RSVP{
		ID:        uuid.New().String(),
		UserID:    userID,
		EventID:   eventID,
		CreatedAt: time.Now(),
	}

	err := s.rsvpRepo.Create(ctx, rsvp)
	if errors.Is(err, model.ErrRSVPExists) {
		return s.unattend(ctx, userID, eventID)
	}
	if err != nil {
		return false, fmt.Errorf("RSVPの登録に失敗しました: %w", err)
	}
	return true, nil
}

func (s *Service) unattend(ctx context.Context, userID, eventID string) (bool, error) {
	if err := s.rsvpRepo.DeleteByUserAndEvent(ctx, userID, eventID); err != nil {
		return false, fmt.Errorf("RSVPの取り消しに失敗しました: %w", err)
	}
	return false, nil
}
