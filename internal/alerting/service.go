// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/metrics"
	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/store"
)

// Room and message names shared with websocket subscribers.
const (
	RoomAdminAlerts    = "admin-alerts"
	RoomResultsUpdates = "results-updates"

	EventNewAlert          = "new-alert"
	EventAlertStatusUpdate = "alert-status-update"
	EventNewAction         = "new-action"
)

// CameraRoom is the room for events concerning one camera.
func CameraRoom(cameraID string) string {
	return "camera-" + cameraID
}

var (
	ErrCameraNotFound    = errors.New("camera not found")
	ErrAlertNotFound     = errors.New("alert not found")
	ErrActionNotFound    = errors.New("action not found")
	ErrSampleNotFound    = errors.New("crowd sample not found")
	ErrForbidden         = errors.New("not allowed to modify this record")
	ErrInvalidTransition = errors.New("invalid alert status transition")
	ErrDuplicateCamera   = errors.New("camera id already registered")
	ErrInvalidInput      = errors.New("invalid input")
)

// Publisher fans events out to connected clients.
type Publisher interface {
	BroadcastToRoom(room, messageType string, data interface{})
}

// Store is the persistence the service needs.
type Store interface {
	CreateAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListAlerts(ctx context.Context, f store.AlertFilter) ([]models.Alert, int, error)
	UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus, by string) (*models.Alert, error)
	AlertStats(ctx context.Context) (*store.AlertStats, error)

	CreateCamera(ctx context.Context, c *models.Camera) error
	GetCamera(ctx context.Context, id string) (*models.Camera, error)
	GetCameraByCameraID(ctx context.Context, cameraID string) (*models.Camera, error)
	ListCameras(ctx context.Context) ([]models.Camera, error)
	UpdateCamera(ctx context.Context, c *models.Camera) error
	DeleteCamera(ctx context.Context, id string) error
	TouchCamera(ctx context.Context, cameraID string, at time.Time) error

	CreateAction(ctx context.Context, a *models.Action) error
	GetAction(ctx context.Context, id string) (*models.Action, error)
	ListActions(ctx context.Context, f store.ActionFilter) ([]models.Action, int, error)
	UpdateAction(ctx context.Context, id string, mutate func(*models.Action) error) (*models.Action, error)
	DeleteAction(ctx context.Context, id string) error
	ActionStats(ctx context.Context) (*store.ActionStats, error)

	AddCrowdSample(ctx context.Context, s *models.CrowdSample) error
	ListCrowdSamples(ctx context.Context, q store.CrowdQuery) ([]models.CrowdSample, error)
	LatestCrowdPerCamera(ctx context.Context) ([]models.CrowdSample, error)
	DeleteCrowdSample(ctx context.Context, id string) error
	CrowdStats(ctx context.Context, cameraID string, since time.Time) (*store.CrowdStats, error)
}

// Config tunes alerting.
type Config struct {
	// ActivityThreshold is how recently a camera must have reported to
	// count as active.
	ActivityThreshold time.Duration

	// DefaultThreshold applies to samples from unregistered cameras.
	DefaultThreshold int
}

// Service implements alert, camera, action and crowd sample operations and
// notifies subscribers of changes.
type Service struct {
	store Store
	pub   Publisher
	cfg   Config
	now   func() time.Time
}

// NewService creates the alerting service. A nil publisher discards events.
func NewService(st Store, pub Publisher, cfg Config) *Service {
	if cfg.ActivityThreshold <= 0 {
		cfg.ActivityThreshold = 5 * time.Minute
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 100
	}
	if pub == nil {
		pub = discard{}
	}
	return &Service{store: st, pub: pub, cfg: cfg, now: time.Now}
}

type discard struct{}

func (discard) BroadcastToRoom(string, string, interface{}) {}

// mapNotFound turns store.ErrNotFound into the domain error target.
func mapNotFound(err, target error) error {
	if errors.Is(err, store.ErrNotFound) {
		return target
	}
	return err
}

func (s *Service) requireCamera(ctx context.Context, cameraID string) (*models.Camera, error) {
	cam, err := s.store.GetCameraByCameraID(ctx, cameraID)
	if err != nil {
		return nil, mapNotFound(err, ErrCameraNotFound)
	}
	return cam, nil
}

// NewAlert is the input to CreateAlert.
type NewAlert struct {
	CameraID    string
	Type        models.AlertType
	Message     string
	TriggeredBy models.TriggerSource
	CrowdCount  *int
	Threshold   *int
}

// CreateAlert persists an alert for a registered camera and announces it.
func (s *Service) CreateAlert(ctx context.Context, in NewAlert) (*models.Alert, error) {
	if _, err := s.requireCamera(ctx, in.CameraID); err != nil {
		return nil, err
	}
	a := &models.Alert{
		CameraID:    in.CameraID,
		Type:        in.Type,
		Message:     in.Message,
		TriggeredBy: in.TriggeredBy,
		CrowdCount:  in.CrowdCount,
		Threshold:   in.Threshold,
	}
	if err := s.store.CreateAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	metrics.RecordAlertCreated(string(a.Type), string(a.TriggeredBy))
	logging.Ctx(ctx).Info().
		Str("alert_id", a.ID).
		Str("camera_id", a.CameraID).
		Str("type", string(a.Type)).
		Msg("Alert created")

	s.pub.BroadcastToRoom(RoomAdminAlerts, EventNewAlert, a)
	s.pub.BroadcastToRoom(RoomResultsUpdates, EventNewAlert, a)
	return a, nil
}

// UpdateStatus moves an alert forward and announces the change.
func (s *Service) UpdateStatus(ctx context.Context, id string, status models.AlertStatus, by string) (*models.Alert, error) {
	a, err := s.store.UpdateAlertStatus(ctx, id, status, by)
	switch {
	case errors.Is(err, store.ErrInvalidTransition):
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	case err != nil:
		return nil, mapNotFound(err, ErrAlertNotFound)
	}
	logging.Ctx(ctx).Info().
		Str("alert_id", a.ID).
		Str("status", string(a.Status)).
		Str("by", by).
		Msg("Alert status updated")

	s.pub.BroadcastToRoom(CameraRoom(a.CameraID), EventAlertStatusUpdate, a)
	s.pub.BroadcastToRoom(RoomAdminAlerts, EventAlertStatusUpdate, a)
	return a, nil
}

// GetAlert returns one alert.
func (s *Service) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	a, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrAlertNotFound)
	}
	return a, nil
}

// ListAlerts returns a filtered page of alerts and the match count.
func (s *Service) ListAlerts(ctx context.Context, f store.AlertFilter) ([]models.Alert, int, error) {
	return s.store.ListAlerts(ctx, f)
}

// AlertStats aggregates alerts.
func (s *Service) AlertStats(ctx context.Context) (*store.AlertStats, error) {
	return s.store.AlertStats(ctx)
}

// RegisterCamera adds a camera. The alert threshold may not exceed capacity.
func (s *Service) RegisterCamera(ctx context.Context, c *models.Camera) error {
	if err := checkCapacity(c); err != nil {
		return err
	}
	if err := s.store.CreateCamera(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ErrDuplicateCamera
		}
		return err
	}
	logging.Ctx(ctx).Info().Str("camera_id", c.CameraID).Msg("Camera registered")
	return nil
}

func checkCapacity(c *models.Camera) error {
	if c.MaxCapacity > 0 && c.AlertThreshold > c.MaxCapacity {
		return fmt.Errorf("%w: alertThreshold %d exceeds maxCapacity %d", ErrInvalidInput, c.AlertThreshold, c.MaxCapacity)
	}
	return nil
}

// CameraView is a camera with its derived activity flag.
type CameraView struct {
	models.Camera
	Active bool `json:"isActive"`
}

func (s *Service) view(c models.Camera) CameraView {
	return CameraView{Camera: c, Active: c.IsActive(s.now(), s.cfg.ActivityThreshold)}
}

// ListCameras returns every camera, optionally only the status given.
func (s *Service) ListCameras(ctx context.Context, status models.CameraStatus) ([]CameraView, error) {
	cams, err := s.store.ListCameras(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CameraView, 0, len(cams))
	for _, c := range cams {
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, s.view(c))
	}
	return out, nil
}

// GetCamera returns a camera by record id.
func (s *Service) GetCamera(ctx context.Context, id string) (*CameraView, error) {
	c, err := s.store.GetCamera(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrCameraNotFound)
	}
	v := s.view(*c)
	return &v, nil
}

// GetCameraByCameraID returns a camera by its external camera id.
func (s *Service) GetCameraByCameraID(ctx context.Context, cameraID string) (*CameraView, error) {
	c, err := s.requireCamera(ctx, cameraID)
	if err != nil {
		return nil, err
	}
	v := s.view(*c)
	return &v, nil
}

// CameraUpdate carries the mutable camera fields. Nil leaves a field as is.
type CameraUpdate struct {
	CameraID       *string
	Location       *string
	Status         *models.CameraStatus
	Description    *string
	IPAddress      *string
	MaxCapacity    *int
	AlertThreshold *int
	Coordinates    *models.Coordinates
}

// UpdateCamera applies u to the camera with record id.
func (s *Service) UpdateCamera(ctx context.Context, id string, u CameraUpdate) (*CameraView, error) {
	c, err := s.store.GetCamera(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrCameraNotFound)
	}
	if u.CameraID != nil {
		c.CameraID = *u.CameraID
	}
	if u.Location != nil {
		c.Location = *u.Location
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.IPAddress != nil {
		c.IPAddress = *u.IPAddress
	}
	if u.MaxCapacity != nil {
		c.MaxCapacity = *u.MaxCapacity
	}
	if u.AlertThreshold != nil {
		c.AlertThreshold = *u.AlertThreshold
	}
	if u.Coordinates != nil {
		c.Coordinates = u.Coordinates
	}
	if err := checkCapacity(c); err != nil {
		return nil, err
	}
	if err := s.store.UpdateCamera(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateCamera
		}
		return nil, mapNotFound(err, ErrCameraNotFound)
	}
	v := s.view(*c)
	return &v, nil
}

// DeleteCamera removes a camera.
func (s *Service) DeleteCamera(ctx context.Context, id string) error {
	if err := s.store.DeleteCamera(ctx, id); err != nil {
		return mapNotFound(err, ErrCameraNotFound)
	}
	logging.Ctx(ctx).Info().Str("id", id).Msg("Camera deleted")
	return nil
}

// Actor identifies the user performing an operation.
type Actor struct {
	UserID   string
	Username string
	Role     models.Role
}

// NewAction is the input to RecordAction.
type NewAction struct {
	Action           string
	CameraID         string
	Details          string
	Status           models.ActionStatus
	RelatedAlertID   string
	CrowdCountBefore *int
}

// RecordAction logs an operator intervention and announces it.
func (s *Service) RecordAction(ctx context.Context, actor Actor, in NewAction) (*models.Action, error) {
	if _, err := s.requireCamera(ctx, in.CameraID); err != nil {
		return nil, err
	}
	if in.RelatedAlertID != "" {
		if _, err := s.GetAlert(ctx, in.RelatedAlertID); err != nil {
			return nil, err
		}
	}
	a := &models.Action{
		Action:              in.Action,
		CameraID:            in.CameraID,
		Details:             in.Details,
		Status:              in.Status,
		RelatedAlertID:      in.RelatedAlertID,
		CrowdCountBefore:    in.CrowdCountBefore,
		PerformedBy:         actor.UserID,
		PerformedByUsername: actor.Username,
	}
	if err := s.store.CreateAction(ctx, a); err != nil {
		return nil, fmt.Errorf("create action: %w", err)
	}
	logging.Ctx(ctx).Info().
		Str("action_id", a.ID).
		Str("camera_id", a.CameraID).
		Str("action", a.Action).
		Msg("Action recorded")

	s.pub.BroadcastToRoom(CameraRoom(a.CameraID), EventNewAction, a)
	s.pub.BroadcastToRoom(RoomAdminAlerts, EventNewAction, a)
	return a, nil
}

// ActionUpdate carries the mutable action fields.
type ActionUpdate struct {
	Status              *models.ActionStatus
	Details             *string
	EffectivenessRating *int
	CrowdCountAfter     *int
}

// UpdateAction applies u to an action owned by actor, or any action for
// an admin.
func (s *Service) UpdateAction(ctx context.Context, actor Actor, id string, u ActionUpdate) (*models.Action, error) {
	a, err := s.store.UpdateAction(ctx, id, func(a *models.Action) error {
		if !canModify(actor, a) {
			return ErrForbidden
		}
		if u.Status != nil {
			a.Status = *u.Status
		}
		if u.Details != nil {
			a.Details = *u.Details
		}
		if u.EffectivenessRating != nil {
			a.EffectivenessRating = u.EffectivenessRating
		}
		if u.CrowdCountAfter != nil {
			a.CrowdCountAfter = u.CrowdCountAfter
		}
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err, ErrActionNotFound)
	}
	return a, nil
}

// DeleteAction removes an action owned by actor, or any action for an admin.
func (s *Service) DeleteAction(ctx context.Context, actor Actor, id string) error {
	a, err := s.GetAction(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(actor, a) {
		return ErrForbidden
	}
	if err := s.store.DeleteAction(ctx, id); err != nil {
		return mapNotFound(err, ErrActionNotFound)
	}
	return nil
}

func canModify(actor Actor, a *models.Action) bool {
	return actor.Role == models.RoleAdmin || (actor.UserID != "" && actor.UserID == a.PerformedBy)
}

// GetAction returns one action.
func (s *Service) GetAction(ctx context.Context, id string) (*models.Action, error) {
	a, err := s.store.GetAction(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrActionNotFound)
	}
	return a, nil
}

// ListActions returns a filtered page of actions and the match count.
func (s *Service) ListActions(ctx context.Context, f store.ActionFilter) ([]models.Action, int, error) {
	return s.store.ListActions(ctx, f)
}

// ActionStats aggregates actions.
func (s *Service) ActionStats(ctx context.Context) (*store.ActionStats, error) {
	return s.store.ActionStats(ctx)
}

// SampleResult is the outcome of SubmitCrowdSample.
type SampleResult struct {
	Sample  *models.CrowdSample `json:"sample"`
	Alert   *models.Alert       `json:"alert,omitempty"`
	Outlook *Outlook            `json:"outlook,omitempty"`
}

// Outlook summarizes the counts a sample predicts.
type Outlook struct {
	Average float64      `json:"average"`
	Trend   models.Trend `json:"trend"`
}

func validateSample(sample *models.CrowdSample) error {
	switch {
	case sample.CameraID == "":
		return fmt.Errorf("%w: cameraId is required", ErrInvalidInput)
	case sample.Count < 0:
		return fmt.Errorf("%w: count must be non-negative", ErrInvalidInput)
	case len(sample.Prediction) != models.PredictionLength:
		return fmt.Errorf("%w: prediction must have %d values", ErrInvalidInput, models.PredictionLength)
	}
	switch sample.Density {
	case "", models.DensityLow, models.DensityMedium, models.DensityHigh, models.DensityCritical:
	default:
		return fmt.Errorf("%w: unknown density %q", ErrInvalidInput, sample.Density)
	}
	return nil
}

// SubmitCrowdSample stores a sample, refreshes its camera's lastUpdate and
// raises a HighCrowd alert when the sample is flagged and meets the
// camera's threshold.
func (s *Service) SubmitCrowdSample(ctx context.Context, sample *models.CrowdSample) (*SampleResult, error) {
	if err := validateSample(sample); err != nil {
		return nil, err
	}
	if sample.Density == "" {
		sample.Density = models.DensityLow
	}
	if err := s.store.AddCrowdSample(ctx, sample); err != nil {
		return nil, fmt.Errorf("add crowd sample: %w", err)
	}
	metrics.CrowdSamplesReceived.Inc()
	if err := s.store.TouchCamera(ctx, sample.CameraID, sample.Timestamp); err != nil && !errors.Is(err, store.ErrNotFound) {
		logging.Ctx(ctx).Warn().Err(err).Str("camera_id", sample.CameraID).Msg("Failed to update camera lastUpdate")
	}

	res := &SampleResult{Sample: sample}
	if len(sample.Prediction) > 0 {
		res.Outlook = &Outlook{Average: sample.AveragePrediction(), Trend: sample.PredictionTrend()}
	}
	if !sample.AlertTriggered {
		return res, nil
	}

	threshold := s.cfg.DefaultThreshold
	cam, err := s.store.GetCameraByCameraID(ctx, sample.CameraID)
	switch {
	case err == nil:
		threshold = cam.AlertThreshold
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	if !sample.ExceedsThreshold(threshold) {
		return res, nil
	}
	if cam == nil {
		// Alerts need a registered camera.
		logging.Ctx(ctx).Warn().
			Str("camera_id", sample.CameraID).
			Int("count", sample.Count).
			Msg("Crowd threshold exceeded for unregistered camera")
		return res, nil
	}

	count := sample.Count
	alert, err := s.CreateAlert(ctx, NewAlert{
		CameraID:    sample.CameraID,
		Type:        models.AlertHighCrowd,
		Message:     fmt.Sprintf("Crowd count %d exceeds threshold %d at %s", count, threshold, cam.Location),
		TriggeredBy: models.TriggeredBySystem,
		CrowdCount:  &count,
		Threshold:   &threshold,
	})
	if err != nil {
		return nil, err
	}
	res.Alert = alert
	return res, nil
}

// CrowdHistory returns up to limit samples for a camera, newest first.
func (s *Service) CrowdHistory(ctx context.Context, cameraID string, limit int) ([]models.CrowdSample, error) {
	return s.store.ListCrowdSamples(ctx, store.CrowdQuery{CameraID: cameraID, Limit: limit})
}

// LatestCrowd returns the newest sample of every camera.
func (s *Service) LatestCrowd(ctx context.Context) ([]models.CrowdSample, error) {
	return s.store.LatestCrowdPerCamera(ctx)
}

// CrowdStats aggregates one camera's samples since the given time.
func (s *Service) CrowdStats(ctx context.Context, cameraID string, since time.Time) (*store.CrowdStats, error) {
	return s.store.CrowdStats(ctx, cameraID, since)
}

// DeleteCrowdSample removes a sample.
func (s *Service) DeleteCrowdSample(ctx context.Context, id string) error {
	if err := s.store.DeleteCrowdSample(ctx, id); err != nil {
		return mapNotFound(err, ErrSampleNotFound)
	}
	return nil
}
