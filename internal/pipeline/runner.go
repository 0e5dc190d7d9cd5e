// Package pipeline runs one migration: parse the analysis records, resolve
// types, classify every table, convert the ETL mappings and write the
// generated project tree.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danielzillmann-hue/transformation-agent/internal/artifact"
	"github.com/danielzillmann-hue/transformation-agent/internal/classification"
	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/config"
	"github.com/danielzillmann-hue/transformation-agent/internal/llm"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/danielzillmann-hue/transformation-agent/internal/service"
	"github.com/danielzillmann-hue/transformation-agent/internal/typemap"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Output layout below the run directory.
const (
	ProjectDir      = "dataform"
	DefinitionsDir  = "definitions"
	IncludesDir     = "includes"
	HelperModule    = "type_mappings.js"
	SummaryFileName = "classification_summary.json"
	// ValidationFileName lists the generated assertions.
	ValidationFileName = "validation_tests.json"
	// SharedObjectsFileName documents ETL exports that were not converted.
	SharedObjectsFileName = "shared_etl_objects.md"
)

// Progress is notified once per finished table.
type Progress interface {
	Add(n int) error
}

// MappingWriter turns an ETL mapping into a SELECT statement.
type MappingWriter interface {
	WriteMapping(ctx context.Context, req model.MappingRequest) (string, error)
}

// Options configures a Runner.
type Options struct {
	// Classifier enables model-based classification when non-nil.
	Classifier classification.SemanticClassifier
	// MappingWriter lets a model write mapping SQL. Without one, or when it
	// fails, the mapping is rendered as a scaffold over its sources.
	MappingWriter MappingWriter
	// Recorder stores run history when non-nil.
	Recorder service.RunRecorder
	Progress Progress
	Logger   *slog.Logger
	// Overrides take precedence over the profile's type table.
	Overrides map[string]string
	// RunID is generated when empty.
	RunID string
}

// SkippedRecord is an analysis record that produced no table.
type SkippedRecord struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

// FailedTable is a table that was classified but could not be rendered.
type FailedTable struct {
	TableName string `json:"table_name"`
	Error     string `json:"error"`
}

// Result describes a finished run.
type Result struct {
	StartedAt  time.Time
	FinishedAt time.Time
	RunID      string
	// OutputDir is the run directory; ProjectPath the generated tree inside it.
	OutputDir   string
	ProjectPath string
	Artifacts   []model.Artifact
	Decisions   []model.ClassificationDecision
	Fallbacks   []model.FallbackType
	Skipped     []SkippedRecord
	Failed      []FailedTable
	Stats       map[model.DecisionSource]int
	Rules       []string
	Assertions  []model.Assertion
	Mappings    []model.MappingArtifact
	// SharedObjects are ETL exports documented instead of converted.
	SharedObjects []model.SharedObject
	// NonTable counts procedure records, which produce no artifact.
	NonTable int
}

// Runner executes generation runs for one source profile.
type Runner struct {
	cfg     config.Config
	profile *config.Profile
	opts    Options
	logger  *slog.Logger
}

// NewRunner validates the configuration and the classification rules.
func NewRunner(cfg config.Config, profile *config.Profile, opts Options) (*Runner, error) {
	if profile == nil {
		return nil, &common.ConfigError{Err: common.ErrMissingConfig, Field: "profile"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:     cfg,
		profile: profile,
		opts:    opts,
		logger:  common.LoggerOrDefault(opts.Logger),
	}
	if _, err := r.newEngine(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) newEngine() (*classification.Engine, error) {
	engineOpts := classification.OptionsFromProfile(r.profile, r.cfg.Classification)
	engineOpts.Classifier = r.opts.Classifier
	engineOpts.Logger = r.logger
	return classification.NewEngine(engineOpts)
}

type tableJob struct {
	schema model.TableSchema
	file   string
}

type mappingJob struct {
	mapping model.MappingAnalysis
	file    string
}

// Run generates the project for records. Per-table problems are logged and
// reported in the Result; failing to create or write the output tree is
// returned as an error.
func (r *Runner) Run(ctx context.Context, records []model.AnalysisRecord, cat model.Categorization) (*Result, error) {
	runID := r.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	outDir := filepath.Join(r.cfg.OutputRoot, runID)
	projectPath := filepath.Join(outDir, ProjectDir)

	result := &Result{
		StartedAt:   time.Now(),
		RunID:       runID,
		OutputDir:   outDir,
		ProjectPath: projectPath,
	}
	logger := r.logger.With("run_id", runID)

	for _, dir := range []string{DefinitionsDir, IncludesDir} {
		if err := os.MkdirAll(filepath.Join(projectPath, dir), 0750); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", common.ErrOutputNotWritable, projectPath, err)
		}
	}

	// A run-scoped engine and resolver keep the decision cache and the
	// fallback ledger per run.
	engine, err := r.newEngine()
	if err != nil {
		return nil, err
	}
	resolver := typemap.NewResolver(r.profile.BuiltinTypes(), r.opts.Overrides, logger)
	generator := artifact.NewGenerator(artifact.Options{
		Datasets:        r.profile,
		Logger:          logger,
		SourceSystem:    r.profile.Name,
		StagingPrefix:   r.cfg.Warehouse.StagingPrefix,
		MetadataColumns: r.profile.Type2Indicators(),
		CompareColumns:  r.cfg.History.CompareColumns,
	})

	recorder := r.startRecording(ctx, logger, result)

	jobs, mappings := r.collect(ctx, logger, records, result)
	logger.Info("starting generation",
		"tables", len(jobs),
		"mappings", len(mappings),
		"shared_objects", len(result.SharedObjects),
		"skipped", len(result.Skipped),
		"non_table", result.NonTable,
		"type_overrides", resolver.OverrideCount(),
		"workers", r.cfg.Workers)

	artifacts, err := r.generate(ctx, logger, jobs, cat, engine, resolver, generator, result)
	if err == nil {
		err = r.convertMappings(ctx, logger, mappings, cat, generator, result)
	}
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("generation aborted: %w", ctx.Err())
	}
	if err == nil {
		err = r.writeSupportFiles(projectPath, outDir, resolver)
	}
	if err == nil {
		err = writeRunDocuments(outDir, result)
	}

	result.Artifacts = artifacts
	result.Decisions = engine.Decisions()
	result.Fallbacks = resolver.Ledger().Entries()
	result.Stats = engine.Stats()
	result.Rules = engine.Rules()
	result.FinishedAt = time.Now()

	if err == nil {
		err = writeSummary(filepath.Join(outDir, SummaryFileName), result, r.profile.Name)
	}

	r.finishRecording(ctx, logger, recorder, result, err)

	if err != nil {
		return result, err
	}

	logger.Info("generation complete",
		"artifacts", len(result.Artifacts),
		"assertions", len(result.Assertions),
		"mappings", len(result.Mappings),
		"failed", len(result.Failed),
		"fallback_types", len(result.Fallbacks),
		"duration", result.FinishedAt.Sub(result.StartedAt))
	return result, nil
}

// collect turns records into table schemas and ETL mappings. Later records
// for the same table or mapping replace earlier ones.
func (r *Runner) collect(ctx context.Context, logger *slog.Logger, records []model.AnalysisRecord, result *Result) ([]tableJob, []mappingJob) {
	byName := make(map[string]int)
	var jobs []tableJob
	mappingsByName := make(map[string]int)
	var mappings []mappingJob

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}

		switch rec.FileKind {
		case model.FileKindProcedure:
			result.NonTable++
			continue
		case model.FileKindETLMapping:
			var m model.MappingAnalysis
			if err := llm.ParseInto(rec.AnalysisText, &m); err != nil {
				logger.Warn("skipping unparsable mapping analysis", "file", rec.FileName, "error", err)
				result.Skipped = append(result.Skipped, SkippedRecord{FileName: rec.FileName, Reason: common.ErrMalformedAnalysis.Error()})
				continue
			}
			if artifact.IsSharedObject(m) {
				logger.Debug("documenting shared ETL object", "file", rec.FileName, "name", m.MappingName)
				result.SharedObjects = append(result.SharedObjects, model.SharedObject{
					FileName:     rec.FileName,
					Name:         m.NameOr(rec.FileName),
					LogicSummary: m.LogicSummary,
				})
				continue
			}

			key := artifact.TableSlug(m.NameOr(rec.FileName))
			if idx, dup := mappingsByName[key]; dup {
				logger.Warn("mapping analyzed more than once, keeping the later record",
					"mapping", m.NameOr(rec.FileName),
					"file", rec.FileName,
					"previous", mappings[idx].file)
				mappings[idx] = mappingJob{mapping: m, file: rec.FileName}
				continue
			}
			mappingsByName[key] = len(mappings)
			mappings = append(mappings, mappingJob{mapping: m, file: rec.FileName})
			continue
		}

		var analysis model.TableAnalysis
		if err := llm.ParseInto(rec.AnalysisText, &analysis); err != nil {
			logger.Warn("skipping unparsable analysis", "file", rec.FileName, "error", err)
			result.Skipped = append(result.Skipped, SkippedRecord{FileName: rec.FileName, Reason: common.ErrMalformedAnalysis.Error()})
			continue
		}

		schema := analysis.Schema()
		if schema.Name == "" {
			logger.Debug("skipping analysis without table name", "file", rec.FileName)
			result.Skipped = append(result.Skipped, SkippedRecord{FileName: rec.FileName, Reason: common.ErrMissingTableName.Error()})
			continue
		}

		key := strings.ToLower(schema.Name)
		if idx, dup := byName[key]; dup {
			logger.Warn("table analyzed more than once, keeping the later record",
				"table", schema.Name,
				"file", rec.FileName,
				"previous", jobs[idx].file)
			jobs[idx] = tableJob{schema: schema, file: rec.FileName}
			continue
		}
		byName[key] = len(jobs)
		jobs = append(jobs, tableJob{schema: schema, file: rec.FileName})
	}
	return jobs, mappings
}

func (r *Runner) generate(
	ctx context.Context,
	logger *slog.Logger,
	jobs []tableJob,
	cat model.Categorization,
	engine *classification.Engine,
	resolver *typemap.Resolver,
	generator *artifact.Generator,
	result *Result,
) ([]model.Artifact, error) {
	var (
		mu         sync.Mutex
		artifacts  = make(map[string]model.Artifact, len(jobs))
		assertions = make(map[string][]model.Assertion, len(jobs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			table := job.schema
			domain := cat.DomainFor(table.Name, r.profile.Domain())
			decision := engine.Classify(gctx, table, domain)

			in := artifact.NewInput(resolver, table, decision, domain)
			art, err := generator.Generate(in)
			if err != nil {
				logger.Warn("failed to render table", "table", table.Name, "file", job.file, "error", err)
				mu.Lock()
				result.Failed = append(result.Failed, FailedTable{TableName: table.Name, Error: err.Error()})
				mu.Unlock()
				r.tick()
				return nil
			}

			if err := writeInTree(result.ProjectPath, art.Path, []byte(art.Content)); err != nil {
				return err
			}

			var checks []model.Assertion
			if r.cfg.Validation.Assertions {
				checks = generator.Assertions(in, art)
				for _, a := range checks {
					if err := writeInTree(result.ProjectPath, a.Path, []byte(a.Content)); err != nil {
						return err
					}
				}
			}

			logger.Debug("generated table",
				"table", table.Name,
				"kind", decision.Kind,
				"source", decision.Source,
				"path", art.Path,
				"assertions", len(checks))

			mu.Lock()
			artifacts[strings.ToLower(table.Name)] = art
			assertions[strings.ToLower(table.Name)] = checks
			mu.Unlock()
			r.tick()
			return nil
		})
	}

	err := g.Wait()

	out := make([]model.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	for _, checks := range assertions {
		result.Assertions = append(result.Assertions, checks...)
	}
	sort.Slice(result.Assertions, func(i, j int) bool { return result.Assertions[i].Path < result.Assertions[j].Path })
	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].TableName < result.Failed[j].TableName })

	if err != nil {
		return out, fmt.Errorf("generation aborted: %w", err)
	}
	return out, nil
}

// convertMappings renders one view per ETL mapping. A failed model call falls
// back to the scaffold; a mapping that cannot be rendered at all is skipped.
func (r *Runner) convertMappings(
	ctx context.Context,
	logger *slog.Logger,
	jobs []mappingJob,
	cat model.Categorization,
	generator *artifact.Generator,
	result *Result,
) error {
	var (
		mu       sync.Mutex
		mappings = make([]model.MappingArtifact, 0, len(jobs))
		skipped  []SkippedRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			m := job.mapping
			domain := r.profile.Domain()
			if len(m.Targets) > 0 {
				domain = cat.DomainFor(m.Targets[0], domain)
			}

			in := artifact.MappingInput{Mapping: m, FileName: job.file, Domain: domain}
			if r.opts.MappingWriter != nil {
				req := model.MappingRequest{MappingAnalysis: m, SourceRefs: generator.SourceRefs(m)}
				req.MappingName = m.NameOr(job.file)
				sql, err := r.opts.MappingWriter.WriteMapping(gctx, req)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					logger.Warn("model could not write mapping, rendering scaffold", "mapping", req.MappingName, "error", err)
				}
				in.SQL = sql
			}

			art, err := generator.GenerateMapping(in)
			if err != nil {
				logger.Warn("failed to render mapping", "file", job.file, "error", err)
				mu.Lock()
				skipped = append(skipped, SkippedRecord{FileName: job.file, Reason: err.Error()})
				mu.Unlock()
				return nil
			}

			if err := writeInTree(result.ProjectPath, art.Path, []byte(art.Content)); err != nil {
				return err
			}

			logger.Debug("converted mapping",
				"mapping", art.MappingName,
				"path", art.Path,
				"model_written", art.ModelWritten)

			mu.Lock()
			mappings = append(mappings, art)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()

	sort.Slice(mappings, func(i, j int) bool { return mappings[i].Path < mappings[j].Path })
	result.Mappings = mappings
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].FileName < skipped[j].FileName })
	result.Skipped = append(result.Skipped, skipped...)

	if err != nil {
		return fmt.Errorf("mapping conversion aborted: %w", err)
	}
	return nil
}

func (r *Runner) tick() {
	if r.opts.Progress == nil {
		return
	}
	if err := r.opts.Progress.Add(1); err != nil {
		r.logger.Debug("progress update failed", "error", err)
	}
}

func (r *Runner) writeSupportFiles(projectPath, outDir string, resolver *typemap.Resolver) error {
	settings, err := artifact.ProjectSettings(r.cfg.Warehouse, r.profile.DatasetFor("default"))
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(projectPath, artifact.ProjectFileName), settings); err != nil {
		return err
	}

	helper := typemap.RenderHelperModule(r.profile.Name, resolver.Table())
	if err := writeFile(filepath.Join(projectPath, IncludesDir, HelperModule), []byte(helper)); err != nil {
		return err
	}

	entries := resolver.Ledger().Entries()
	if len(entries) == 0 {
		return nil
	}
	var report strings.Builder
	if err := typemap.WriteReport(&report, r.profile.Name, entries); err != nil {
		return fmt.Errorf("failed to render type report: %w", err)
	}
	return writeFile(filepath.Join(outDir, typemap.ReportFileName), []byte(report.String()))
}

// writeRunDocuments writes the assertion index and the shared-object notes
// next to the project. Either is omitted when there is nothing to list.
func writeRunDocuments(outDir string, result *Result) error {
	if len(result.Assertions) > 0 {
		data, err := json.MarshalIndent(result.Assertions, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal assertions: %w", err)
		}
		if err := writeFile(filepath.Join(outDir, ValidationFileName), append(data, '\n')); err != nil {
			return err
		}
	}
	if len(result.SharedObjects) > 0 {
		doc := artifact.RenderSharedObjects(result.SharedObjects)
		if err := writeFile(filepath.Join(outDir, SharedObjectsFileName), []byte(doc)); err != nil {
			return err
		}
	}
	return nil
}

// writeInTree writes data to rel below root and refuses any rel that would
// land outside root.
func writeInTree(root, rel string, data []byte) error {
	target := filepath.Join(root, filepath.FromSlash(rel))
	inside, err := filepath.Rel(root, target)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s", common.ErrPathOutsideOutput, rel)
	}
	return writeFile(target, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrOutputNotWritable, filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (r *Runner) startRecording(ctx context.Context, logger *slog.Logger, result *Result) service.RunRecorder {
	if r.opts.Recorder == nil {
		return nil
	}
	run := &model.Run{
		ID:           result.RunID,
		SourceSystem: r.profile.Name,
		OutputDir:    result.OutputDir,
		Status:       model.RunStatusRunning,
		StartedAt:    result.StartedAt,
	}
	if err := r.opts.Recorder.SaveRun(ctx, run); err != nil {
		logger.Warn("run history disabled for this run", "error", err)
		return nil
	}
	return r.opts.Recorder
}

func (r *Runner) finishRecording(ctx context.Context, logger *slog.Logger, recorder service.RunRecorder, result *Result, runErr error) {
	if recorder == nil {
		return
	}
	// History is written even when the run context was canceled.
	ctx = context.WithoutCancel(ctx)

	finished := result.FinishedAt
	run := &model.Run{
		ID:              result.RunID,
		SourceSystem:    r.profile.Name,
		OutputDir:       result.OutputDir,
		Status:          model.RunStatusCompleted,
		StartedAt:       result.StartedAt,
		FinishedAt:      &finished,
		TablesGenerated: len(result.Artifacts),
		TablesSkipped:   len(result.Skipped) + len(result.Failed),
	}
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = runErr.Error()
	}

	errs := []error{
		recorder.SaveDecisions(ctx, result.RunID, result.Decisions),
		recorder.SaveFallbackTypes(ctx, result.RunID, result.Fallbacks),
		recorder.SaveArtifacts(ctx, result.RunID, result.Artifacts),
		recorder.FinishRun(ctx, run),
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("failed to record run history", "error", err)
	}
}
