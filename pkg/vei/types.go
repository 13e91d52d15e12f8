// Package vei is the stable embedding facade for the enterprise simulator:
// the surface an external harness imports instead of reaching into
// internal/*, modeled on the pkg/models (public wire types) + pkg/pluginsdk
// (public extension-registration surface) split.
package vei

import (
	"github.com/haasonsaas/vei/internal/corpus"
	"github.com/haasonsaas/vei/internal/quality"
	"github.com/haasonsaas/vei/internal/scoring"
	"github.com/haasonsaas/vei/internal/workflow"
)

// Spec is a declarative workflow scenario (spec.md §4.5).
type Spec = workflow.Spec

// StepSpec is one declared step within a Spec.
type StepSpec = workflow.StepSpec

// AssertionSpec is one post-step or success-level check.
type AssertionSpec = workflow.AssertionSpec

// World is the resolved scenario seed data every twin is constructed from.
type World = workflow.World

// RunResult is the outcome of running a compiled workflow to completion.
type RunResult = workflow.RunResult

// ValidationReport aggregates static/dynamic validation issues.
type ValidationReport = workflow.ValidationReport

// ScoreResult is the subgoal/policy/success verdict computed from a trace.
type ScoreResult = scoring.Result

// ScoreMode selects which subgoal(s) a ScoreResult's top-level Success is
// based on: ModeEmail or ModeFull.
type ScoreMode = scoring.Mode

const (
	ModeEmail = scoring.ModeEmail
	ModeFull  = scoring.ModeFull
)

// CorpusBundle is a generated batch of environments and workflow scenarios.
type CorpusBundle = corpus.Bundle

// QualityReport partitions a CorpusBundle into accepted/rejected scenarios.
type QualityReport = quality.Report

// CompiledWorkflow is a Spec with its world block resolved and step order
// fixed, ready to run.
type CompiledWorkflow = workflow.CompiledWorkflow
