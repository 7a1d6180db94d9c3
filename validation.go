package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Input validation errors
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInputTooLong  = errors.New("input too long")
	ErrInvalidFormat = errors.New("invalid format")
	ErrInvalidRange  = errors.New("value out of range")
)

// Validation constraints
const (
	MaxFileSize    = 10 * 1024 * 1024 // 10MB
	MaxTemperature = 2.0
)

// ValidateMessage validates a chat message
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	}

	return nil
}

// ValidateTemperature validates temperature input
func ValidateTemperature(tempStr string) (float64, error) {
	if tempStr == "" {
		return 0, fmt.Errorf("%w: temperature cannot be empty", ErrInvalidInput)
	}

	temp, err := strconv.ParseFloat(tempStr, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: temperature must be a number", ErrInvalidFormat)
	}

	if temp < 0.0 || temp > MaxTemperature {
		return 0, fmt.Errorf("%w: temperature must be between 0.0 and %.1f", ErrInvalidRange, MaxTemperature)
	}

	return temp, nil
}

// ValidateFileSize validates uploaded file size against limit. Empty files pass.
func ValidateFileSize(size, limit int64) error {
	if size < 0 {
		return fmt.Errorf("%w: file size cannot be negative", ErrInvalidInput)
	}

	if size > limit {
		return fmt.Errorf("%w: file size must be less than %d bytes", ErrInputTooLong, limit)
	}

	return nil
}
