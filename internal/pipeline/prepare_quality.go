// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/teleclaude/teleclaude/internal/model"
)

// prepareQualityEventPrefix marks envelopes this domain cartridge reacts
// to (§4.5's canonical example): planning-artifact events.
const prepareQualityEventPrefix = "domain.prepare_quality."

// PrepareArtifact is the structured planning document the runner scores.
// Sections are free-form; the rubric only requires a non-empty title and
// body of reasonable length.
type PrepareArtifact struct {
	Sections []PrepareSection `json:"sections"`
}

// PrepareSection is one heading/body pair within a PrepareArtifact.
type PrepareSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type prepareQualityRequest struct {
	ProjectPath  string `json:"project_path"`
	ArtifactPath string `json:"artifact_path"`
}

// RubricCheck is one scored dimension of a PrepareSection.
type RubricCheck struct {
	Name  string
	Check func(PrepareSection) bool
}

const minSectionBodyLength = 40

// DefaultRubric is the fixed rubric §4.5 requires domain cartridges to
// score structured artifacts against.
func DefaultRubric() []RubricCheck {
	return []RubricCheck{
		{Name: "has_title", Check: func(s PrepareSection) bool { return strings.TrimSpace(s.Title) != "" }},
		{Name: "body_not_empty", Check: func(s PrepareSection) bool { return strings.TrimSpace(s.Body) != "" }},
		{Name: "body_substantive", Check: func(s PrepareSection) bool { return len(strings.TrimSpace(s.Body)) >= minSectionBodyLength }},
	}
}

// PrepareScore is the result of scoring one artifact.
type PrepareScore struct {
	SectionCount int
	Passed       int
	Failed       []string // "section title: check name"
}

// Ratio is the fraction of (section, check) pairs that passed.
func (s PrepareScore) Ratio() float64 {
	total := s.SectionCount * len(DefaultRubric())
	if total == 0 {
		return 0
	}
	return float64(s.Passed) / float64(total)
}

// passThreshold is the minimum pass ratio to auto-resolve the notification
// rather than leave it claimed for a human or agent follow-up.
const passThreshold = 0.8

// PrepareQualityRunner is the canonical domain cartridge named in §4.5: it
// scores planning artifacts, performs bounded structural fixes, writes a
// report, and resolves or leaves open the projected notification.
type PrepareQualityRunner struct {
	rubric []RubricCheck
}

// NewPrepareQualityRunner builds a runner using the fixed default rubric.
func NewPrepareQualityRunner() *PrepareQualityRunner {
	return &PrepareQualityRunner{rubric: DefaultRubric()}
}

// Name implements Cartridge.
func (r *PrepareQualityRunner) Name() string { return "prepare_quality_runner" }

// Process implements Cartridge. Envelopes outside this cartridge's type
// prefix pass through untouched.
func (r *PrepareQualityRunner) Process(ctx context.Context, pctx Context, env model.EventEnvelope) (*model.EventEnvelope, error) {
	if !strings.HasPrefix(env.Type, prepareQualityEventPrefix) {
		return &env, nil
	}

	var req prepareQualityRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		pctx.Logger.Warn("prepare quality runner: malformed payload", zap.String("envelope_id", env.EnvelopeID), zap.Error(err))
		return &env, nil
	}
	if req.ArtifactPath == "" {
		return &env, nil
	}

	artifactPath := filepath.Join(pctx.Workspace, req.ArtifactPath)
	artifact, err := r.loadArtifact(artifactPath)
	if err != nil {
		pctx.Logger.Warn("prepare quality runner: artifact unreadable", zap.String("path", artifactPath), zap.Error(err))
		return &env, nil
	}

	score := r.score(artifact)
	fixed := r.applyBoundedFixes(artifact)
	if fixed {
		if err := r.writeArtifact(artifactPath, artifact); err != nil {
			pctx.Logger.Warn("prepare quality runner: failed to write structural fixes", zap.Error(err))
		}
	}

	if err := r.writeReport(artifactPath, score); err != nil {
		pctx.Logger.Warn("prepare quality runner: failed to write report", zap.Error(err))
	}
	if err := r.writeState(artifactPath, score); err != nil {
		pctx.Logger.Warn("prepare quality runner: failed to write state", zap.Error(err))
	}

	r.updateNotification(ctx, pctx, env, score)

	return &env, nil
}

func (r *PrepareQualityRunner) loadArtifact(path string) (*PrepareArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact PrepareArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

func (r *PrepareQualityRunner) writeArtifact(path string, artifact *PrepareArtifact) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (r *PrepareQualityRunner) score(artifact *PrepareArtifact) PrepareScore {
	score := PrepareScore{SectionCount: len(artifact.Sections)}
	for _, section := range artifact.Sections {
		for _, check := range r.rubric {
			if check.Check(section) {
				score.Passed++
			} else {
				score.Failed = append(score.Failed, fmt.Sprintf("%s: %s", sectionLabel(section), check.Name))
			}
		}
	}
	return score
}

func sectionLabel(s PrepareSection) string {
	if s.Title != "" {
		return s.Title
	}
	return "(untitled section)"
}

// applyBoundedFixes performs only the structural improvements the rubric
// can apply mechanically — filling a missing title, never rewriting body
// content. Returns whether anything changed.
func (r *PrepareQualityRunner) applyBoundedFixes(artifact *PrepareArtifact) bool {
	changed := false
	for i := range artifact.Sections {
		if strings.TrimSpace(artifact.Sections[i].Title) == "" {
			artifact.Sections[i].Title = fmt.Sprintf("Section %d", i+1)
			changed = true
		}
	}
	return changed
}

func (r *PrepareQualityRunner) writeReport(artifactPath string, score PrepareScore) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Prepare Quality Report\n\n")
	fmt.Fprintf(&b, "Sections: %d\nPass ratio: %.2f\n\n", score.SectionCount, score.Ratio())
	if len(score.Failed) == 0 {
		b.WriteString("All rubric checks passed.\n")
	} else {
		b.WriteString("Failed checks:\n")
		for _, f := range score.Failed {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return os.WriteFile(artifactPath+".report.md", []byte(b.String()), 0o644)
}

type prepareQualityState struct {
	PassRatio float64 `json:"pass_ratio"`
	Passed    bool    `json:"passed"`
}

func (r *PrepareQualityRunner) writeState(artifactPath string, score PrepareScore) error {
	state := prepareQualityState{PassRatio: score.Ratio(), Passed: score.Ratio() >= passThreshold}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	statePath := filepath.Join(filepath.Dir(artifactPath), ".prepare-quality-state.json")
	return os.WriteFile(statePath, data, 0o644)
}

// updateNotification resolves the projected notification when the artifact
// clears the pass threshold, or claims it on the runner's own behalf
// otherwise so a human follow-up is visibly pending rather than silent.
func (r *PrepareQualityRunner) updateNotification(ctx context.Context, pctx Context, env model.EventEnvelope, score PrepareScore) {
	if env.IdempotencyKey == "" {
		return
	}
	notification, err := pctx.Store.GetNotificationByKey(ctx, env.IdempotencyKey)
	if err != nil || notification == nil {
		return
	}

	if score.Ratio() >= passThreshold {
		if err := pctx.Store.ResolveNotification(ctx, notification.ID, "prepare-quality-runner", pctx.Clock()); err != nil {
			pctx.Logger.Warn("prepare quality runner: resolve failed", zap.Error(err))
		}
		return
	}
	if _, err := pctx.Store.ClaimNotification(ctx, notification.ID, "prepare-quality-runner"); err != nil {
		pctx.Logger.Warn("prepare quality runner: claim failed", zap.Error(err))
	}
}
