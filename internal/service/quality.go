package service

import (
	"strings"

	"pdf-tools-bot/internal/domain"
	apperrors "pdf-tools-bot/pkg/errors"
)

// ParseQuality maps the compress argument to a preset. No argument means
// the default preset.
func ParseQuality(arg string) (domain.Quality, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "", string(domain.QualityDefault):
		return domain.QualityDefault, nil
	case string(domain.QualityLow):
		return domain.QualityLow, nil
	case string(domain.QualityHigh):
		return domain.QualityHigh, nil
	}
	return "", apperrors.NewValidationError(
		"Unknown compression level "+strings.TrimSpace(arg),
		"Use /compress low, /compress default or /compress high.",
	)
}

// ParseImageFormat maps the toimage argument to an output format. No argument
// means PNG.
func ParseImageFormat(arg string) (domain.ImageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "", "png":
		return domain.FormatPNG, nil
	case "jpg", "jpeg":
		return domain.FormatJPEG, nil
	}
	return "", apperrors.NewValidationError(
		"Unknown image format "+strings.TrimSpace(arg),
		"Use /toimage png or /toimage jpg.",
	)
}
