// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package models

import "time"

// AlertType categorizes an alert.
type AlertType string

const (
	AlertHighCrowd      AlertType = "HighCrowd"
	AlertRapidIncrease  AlertType = "RapidIncrease"
	AlertSecurityBreach AlertType = "SecurityBreach"
	AlertSystemFailure  AlertType = "SystemFailure"
	AlertOther          AlertType = "Other"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// statusRank orders statuses; transitions may only move to a higher rank.
var statusRank = map[AlertStatus]int{
	AlertActive:       0,
	AlertAcknowledged: 1,
	AlertResolved:     2,
}

// CanTransition reports whether an alert may move from one status to
// another. Only forward moves are allowed.
func CanTransition(from, to AlertStatus) bool {
	f, ok1 := statusRank[from]
	t, ok2 := statusRank[to]
	return ok1 && ok2 && t > f
}

// TriggerSource records who raised an alert.
type TriggerSource string

const (
	TriggeredBySystem TriggerSource = "system"
	TriggeredByAdmin  TriggerSource = "admin"
)

// Alert is a threshold breach or operator-raised incident.
type Alert struct {
	ID             string        `json:"id"`
	CameraID       string        `json:"cameraId"`
	Timestamp      time.Time     `json:"timestamp"`
	Type           AlertType     `json:"type"`
	Message        string        `json:"message"`
	TriggeredBy    TriggerSource `json:"triggeredBy"`
	CrowdCount     *int          `json:"crowdCount,omitempty"`
	Threshold      *int          `json:"threshold,omitempty"`
	Status         AlertStatus   `json:"status"`
	AcknowledgedBy string        `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time    `json:"acknowledgedAt,omitempty"`
	ResolvedBy     string        `json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time    `json:"resolvedAt,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// CameraStatus is the operator-facing camera state.
type CameraStatus string

const (
	CameraActive      CameraStatus = "active"
	CameraInactive    CameraStatus = "inactive"
	CameraMaintenance CameraStatus = "maintenance"
	CameraOffline     CameraStatus = "offline"
)

// Camera defaults.
const (
	DefaultMaxCapacity    = 1000
	DefaultAlertThreshold = 800
)

// Coordinates locate a camera.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Camera is a monitored location.
type Camera struct {
	ID             string       `json:"id"`
	CameraID       string       `json:"cameraId"`
	Location       string       `json:"location"`
	Status         CameraStatus `json:"status"`
	LastUpdate     *time.Time   `json:"lastUpdate,omitempty"`
	Description    string       `json:"description,omitempty"`
	IPAddress      string       `json:"ipAddress,omitempty"`
	MaxCapacity    int          `json:"maxCapacity"`
	AlertThreshold int          `json:"alertThreshold"`
	Coordinates    *Coordinates `json:"coordinates,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// IsActive reports whether the camera reported within threshold of now.
func (c *Camera) IsActive(now time.Time, threshold time.Duration) bool {
	if c.LastUpdate == nil {
		return false
	}
	return !c.LastUpdate.Before(now.Add(-threshold))
}

// ActionStatus is the progress of an operator action.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in-progress"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
)

// Action is an operator intervention at a camera.
type Action struct {
	ID                  string       `json:"id"`
	Action              string       `json:"action"`
	CameraID            string       `json:"cameraId"`
	Timestamp           time.Time    `json:"timestamp"`
	PerformedBy         string       `json:"performedBy"`
	PerformedByUsername string       `json:"performedByUsername"`
	Details             string       `json:"details,omitempty"`
	Status              ActionStatus `json:"status"`
	EffectivenessRating *int         `json:"effectivenessRating,omitempty"`
	RelatedAlertID      string       `json:"relatedAlertId,omitempty"`
	CrowdCountBefore    *int         `json:"crowdCountBefore,omitempty"`
	CrowdCountAfter     *int         `json:"crowdCountAfter,omitempty"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// Density is the coarse crowd level reported with a sample.
type Density string

const (
	DensityLow      Density = "low"
	DensityMedium   Density = "medium"
	DensityHigh     Density = "high"
	DensityCritical Density = "critical"
)

// PredictionLength is the number of 5-minute predictions carried by a
// crowd sample (the next 30 minutes).
const PredictionLength = 6

// CrowdSample is one crowd count reported for a camera.
type CrowdSample struct {
	ID             string          `json:"id"`
	CameraID       string          `json:"cameraId"`
	Timestamp      time.Time       `json:"timestamp"`
	Count          int             `json:"count"`
	Prediction     []float64       `json:"prediction"`
	AlertTriggered bool            `json:"alertTriggered"`
	Density        Density         `json:"density"`
	Metadata       *SampleMetadata `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// SampleMetadata describes how a sample was produced.
type SampleMetadata struct {
	ProcessingTime float64 `json:"processingTime,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	ModelVersion   string  `json:"modelVersion,omitempty"`
}

// AveragePrediction is the mean of the predicted counts.
func (s *CrowdSample) AveragePrediction() float64 {
	if len(s.Prediction) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.Prediction {
		sum += v
	}
	return sum / float64(len(s.Prediction))
}

// PredictionTrend classifies the predicted counts.
func (s *CrowdSample) PredictionTrend() Trend {
	return ClassifyTrend(s.Prediction)
}

// ExceedsThreshold reports whether the count meets or exceeds threshold.
func (s *CrowdSample) ExceedsThreshold(threshold int) bool {
	return s.Count >= threshold
}

// Role is a user's authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleOperator || r == RoleViewer
}

// User is a dashboard account.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"passwordHash,omitempty"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Public returns a copy without the password hash.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}
