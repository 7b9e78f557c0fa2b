package service

import (
	"testing"

	"pdf-tools-bot/internal/domain"
	apperrors "pdf-tools-bot/pkg/errors"
)

func TestParseQuality(t *testing.T) {
	tests := []struct {
		arg  string
		want domain.Quality
	}{
		{"", domain.QualityDefault},
		{"default", domain.QualityDefault},
		{"LOW", domain.QualityLow},
		{" high ", domain.QualityHigh},
	}
	for _, tt := range tests {
		got, err := ParseQuality(tt.arg)
		if err != nil || got != tt.want {
			t.Fatalf("ParseQuality(%q) = (%q, %v), want %q", tt.arg, got, err, tt.want)
		}
	}

	if _, err := ParseQuality("medium"); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Fatalf("expected validation error for unknown level, got %v", err)
	}
}

func TestParseImageFormat(t *testing.T) {
	tests := []struct {
		arg  string
		want domain.ImageFormat
	}{
		{"", domain.FormatPNG},
		{"png", domain.FormatPNG},
		{"JPG", domain.FormatJPEG},
		{"jpeg", domain.FormatJPEG},
	}
	for _, tt := range tests {
		got, err := ParseImageFormat(tt.arg)
		if err != nil || got != tt.want {
			t.Fatalf("ParseImageFormat(%q) = (%q, %v), want %q", tt.arg, got, err, tt.want)
		}
	}

	if _, err := ParseImageFormat("gif"); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Fatalf("expected validation error for gif, got %v", err)
	}
}
