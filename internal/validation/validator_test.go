// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil || v1 != v2 {
		t.Error("GetValidator() should return the same non-nil instance")
	}
}

type sampleRequest struct {
	CameraID  string `json:"cameraId" validate:"required_without=Location"`
	Location  string `json:"locationId"`
	Count     int    `json:"count" validate:"gte=0"`
	Timestamp string `json:"timestamp" validate:"omitempty,rfc3339"`
}

type accountRequest struct {
	Username string `json:"username" validate:"username"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=admin operator viewer"`
}

type fileRequest struct {
	Filename string `json:"filename" validate:"resultfile"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     interface{}
		wantField string
		wantMsg   string
	}{
		{name: "valid sample", input: &sampleRequest{CameraID: "cam-1", Count: 4}},
		{name: "location only", input: &sampleRequest{Location: "gate-a", Count: 0, Timestamp: "2026-03-01T10:00:00Z"}},
		{
			name:      "missing camera and location",
			input:     &sampleRequest{Count: 1},
			wantField: "cameraId",
			wantMsg:   "cameraId is required when Location is missing",
		},
		{
			name:      "negative count",
			input:     &sampleRequest{CameraID: "cam-1", Count: -1},
			wantField: "count",
			wantMsg:   "count must be greater than or equal to 0",
		},
		{
			name:      "bad timestamp",
			input:     &sampleRequest{CameraID: "cam-1", Timestamp: "yesterday"},
			wantField: "timestamp",
			wantMsg:   "timestamp must be a valid ISO 8601 date",
		},
		{name: "valid account", input: &accountRequest{Username: "ops.lead", Password: "secret1", Role: "operator"}},
		{
			name:      "short username",
			input:     &accountRequest{Username: "ab", Password: "secret1"},
			wantField: "username",
		},
		{
			name:      "short password",
			input:     &accountRequest{Username: "alice", Password: "123"},
			wantField: "password",
			wantMsg:   "password must be at least 6 characters",
		},
		{
			name:      "unknown role",
			input:     &accountRequest{Username: "alice", Password: "secret1", Role: "root"},
			wantField: "role",
			wantMsg:   "role must be one of: admin operator viewer",
		},
		{name: "valid filename", input: &fileRequest{Filename: "forecast_12.json"}},
		{
			name:      "traversal filename",
			input:     &fileRequest{Filename: "../detections_1.json"},
			wantField: "filename",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() expected error, got nil")
			}
			got := err.Errors()[0]
			if got.Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", got.Field(), tt.wantField)
			}
			if tt.wantMsg != "" && got.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", got.Error(), tt.wantMsg)
			}
		})
	}
}

func TestRequestValidationError_Details(t *testing.T) {
	err := ValidateStruct(&accountRequest{Username: "x", Password: ""})
	if err == nil {
		t.Fatal("expected error")
	}
	details := err.Details()
	if len(details) != 2 {
		t.Fatalf("Details() len = %d, want 2", len(details))
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("Error() = %q, want joined messages", err.Error())
	}
}

func TestNew(t *testing.T) {
	err := New("alertThreshold", "alertThreshold cannot exceed maxCapacity")
	if err.Errors()[0].Field() != "alertThreshold" || err.Error() != "alertThreshold cannot exceed maxCapacity" {
		t.Errorf("New() = %+v", err.Errors())
	}
}
