// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package validation

import (
	"errors"
	"strings"
	"testing"
)

type sampleRequest struct {
	Name  string `validate:"required"`
	Level string `validate:"oneof=debug info warn error"`
	Limit int    `validate:"min=1,max=500"`
}

func TestValidateStructPasses(t *testing.T) {
	req := sampleRequest{Name: "pack", Level: "info", Limit: 50}
	if err := ValidateStruct(req); err != nil {
		t.Fatalf("ValidateStruct() = %v, want nil", err)
	}
}

func TestValidateStructCollectsAllViolations(t *testing.T) {
	req := sampleRequest{Level: "loud", Limit: 0}
	err := ValidateStruct(req)
	if err == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}

	var rve *RequestValidationError
	if !errors.As(err, &rve) {
		t.Fatalf("error type = %T, want *RequestValidationError", err)
	}
	if got := len(rve.Errors()); got != 3 {
		t.Fatalf("len(Errors()) = %d, want 3: %v", got, rve.Errors())
	}
}

func TestTranslatedMessages(t *testing.T) {
	req := sampleRequest{Name: "pack", Level: "loud", Limit: 900}
	err := ValidateStruct(req)
	if err == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}

	msg := err.Error()
	if !strings.Contains(msg, "Level must be one of: debug info warn error") {
		t.Errorf("message %q missing oneof translation", msg)
	}
	if !strings.Contains(msg, "Limit must be at most 500") {
		t.Errorf("message %q missing numeric max translation", msg)
	}
}

func TestValidatorIsSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Fatal("GetValidator() returned different instances")
	}
}
