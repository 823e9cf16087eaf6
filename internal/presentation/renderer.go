// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package presentation

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ManuGH/presentd/internal/log"
)

// Renderer is the rendering layer that actually shows a survey. Each call is
// one step of an attempt and may be retried.
type Renderer interface {
	PrepareBackground(ctx context.Context, surveyID string) error
	InitPlayer(ctx context.Context, surveyID string) error
	BootTag(ctx context.Context, surveyID string) error
	Show(ctx context.Context, surveyID string) error
}

// LogRenderer only logs the steps. It is the renderer when no render host is configured.
type LogRenderer struct {
	Logger zerolog.Logger
}

// NewLogRenderer returns a LogRenderer using the component logger.
func NewLogRenderer() *LogRenderer {
	return &LogRenderer{Logger: log.WithComponent("renderer")}
}

func (r *LogRenderer) step(ctx context.Context, step, surveyID string) error {
	l := log.WithContext(ctx, r.Logger)
	l.Debug().Str(log.FieldSurveyID, surveyID).Str("step", step).Msg("render step")
	return nil
}

func (r *LogRenderer) PrepareBackground(ctx context.Context, surveyID string) error {
	return r.step(ctx, stepBackground, surveyID)
}

func (r *LogRenderer) InitPlayer(ctx context.Context, surveyID string) error {
	return r.step(ctx, stepPlayer, surveyID)
}

func (r *LogRenderer) BootTag(ctx context.Context, surveyID string) error {
	return r.step(ctx, stepTag, surveyID)
}

func (r *LogRenderer) Show(ctx context.Context, surveyID string) error {
	return r.step(ctx, stepShow, surveyID)
}

var _ Renderer = (*LogRenderer)(nil)
