// Package jobs defines the built-in maintenance tasks. Each task wraps one
// collaborator call in the scheduler's result contract.
package jobs

import (
	"context"
	"fmt"
	"time"

	"zenithmaint/internal/domain"
	"zenithmaint/internal/perf"
	"zenithmaint/internal/store"
	"zenithmaint/internal/validation"
)

const (
	MetricsRetentionHours = 24
	ArchiveAge            = 90 * 24 * time.Hour
)

// Task ids.
const (
	CleanupOldMetrics       = "cleanup-old-metrics"
	ValidateDataConsistency = "validate-data-consistency"
	CleanupOrphanedRecords  = "cleanup-orphaned-records"
	OptimizeIndexes         = "optimize-indexes"
	VerifyBackups           = "verify-backups"
	CleanupSessions         = "cleanup-sessions"
	RefreshStatistics       = "refresh-statistics"
	CompressOldData         = "compress-old-data"
)

const noDatabase = "database connection not configured"

// Validator is the consistency checker used by the validation task.
type Validator interface {
	ValidateAll(ctx context.Context) (validation.Report, error)
	FixAll(ctx context.Context) (validation.FixReport, error)
}

// Deps are the collaborators of the built-in tasks. Repo and Validator may
// be nil when no database is configured.
type Deps struct {
	Repo      store.Repository
	Validator Validator
	Perf      *perf.Monitor
	Now       func() time.Time
}

type builtins struct{ Deps }

// Builtins returns the fixed registry of maintenance tasks.
func Builtins(deps Deps) []domain.TaskDefinition {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	b := builtins{deps}
	return []domain.TaskDefinition{
		{
			ID:                CleanupOldMetrics,
			Name:              "Cleanup old metrics",
			Description:       "Drops performance measurements older than the retention horizon.",
			Frequency:         domain.FrequencyDaily,
			Priority:          domain.PriorityLow,
			Enabled:           true,
			EstimatedDuration: time.Minute,
			Run:               b.cleanupOldMetrics,
		},
		{
			ID:                ValidateDataConsistency,
			Name:              "Validate data consistency",
			Description:       "Detects consistency issues and applies automatic fixes.",
			Frequency:         domain.FrequencyDaily,
			Priority:          domain.PriorityHigh,
			Enabled:           true,
			EstimatedDuration: 5 * time.Minute,
			Run:               b.validateDataConsistency,
		},
		{
			ID:                CleanupOrphanedRecords,
			Name:              "Cleanup orphaned records",
			Description:       "Deletes subtasks whose parent item no longer exists.",
			Frequency:         domain.FrequencyWeekly,
			Priority:          domain.PriorityMedium,
			Enabled:           true,
			EstimatedDuration: 3 * time.Minute,
			Run:               b.cleanupOrphanedRecords,
		},
		{
			ID:                OptimizeIndexes,
			Name:              "Optimize indexes",
			Description:       "Reports index opportunities without changing the schema.",
			Frequency:         domain.FrequencyWeekly,
			Priority:          domain.PriorityLow,
			Enabled:           true,
			EstimatedDuration: 2 * time.Minute,
			Run:               b.optimizeIndexes,
		},
		{
			ID:                VerifyBackups,
			Name:              "Verify backups",
			Description:       "Runs a lightweight count query as a connectivity and backup health check.",
			Frequency:         domain.FrequencyDaily,
			Priority:          domain.PriorityCritical,
			Enabled:           true,
			EstimatedDuration: time.Minute,
			Run:               b.verifyBackups,
		},
		{
			ID:                CleanupSessions,
			Name:              "Cleanup sessions",
			Description:       "Session expiry is owned by the authentication provider.",
			Frequency:         domain.FrequencyDaily,
			Priority:          domain.PriorityMedium,
			Enabled:           true,
			EstimatedDuration: time.Minute,
			Run:               b.cleanupSessions,
		},
		{
			ID:                RefreshStatistics,
			Name:              "Refresh statistics",
			Description:       "Aggregates item counts by category.",
			Frequency:         domain.FrequencyHourly,
			Priority:          domain.PriorityLow,
			Enabled:           true,
			EstimatedDuration: time.Minute,
			Run:               b.refreshStatistics,
		},
		{
			ID:                CompressOldData,
			Name:              "Compress old data",
			Description:       "Counts completed items old enough to archive (dry run).",
			Frequency:         domain.FrequencyMonthly,
			Priority:          domain.PriorityLow,
			Enabled:           true,
			EstimatedDuration: 10 * time.Minute,
			Run:               b.compressOldData,
		},
	}
}

func unavailable() domain.Result {
	return domain.Result{Success: false, Message: noDatabase, Errors: []string{noDatabase}}
}

func (b builtins) cleanupOldMetrics(ctx context.Context) (domain.Result, error) {
	if b.Perf == nil {
		return domain.Result{Success: true, Message: "No performance monitor configured"}, nil
	}
	removed := b.Perf.ClearOlderThan(MetricsRetentionHours)
	return domain.Result{
		Success: true,
		Message: fmt.Sprintf("Removed %d metrics older than %d hours", removed, MetricsRetentionHours),
		Details: map[string]any{"removed": removed, "remaining": b.Perf.Len()},
	}, nil
}

func (b builtins) validateDataConsistency(ctx context.Context) (domain.Result, error) {
	if b.Validator == nil {
		return unavailable(), nil
	}
	report, err := b.Validator.ValidateAll(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("validate: %w", err)
	}
	fixes, err := b.Validator.FixAll(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("fix: %w", err)
	}

	res := domain.Result{
		Success: len(fixes.Failed) == 0,
		Message: fmt.Sprintf("Found %d errors and %d warnings, fixed %d records",
			len(report.Errors), len(report.Warnings), fixes.Total()),
		Details: map[string]any{
			"errors":   len(report.Errors),
			"warnings": len(report.Warnings),
			"fixed":    fixes.Total(),
			"fixes":    fixes.Fixed,
		},
		Errors: fixes.Failed,
	}
	return res, nil
}

func (b builtins) cleanupOrphanedRecords(ctx context.Context) (domain.Result, error) {
	if b.Repo == nil {
		return unavailable(), nil
	}
	n, err := b.Repo.DeleteOrphanedSubtasks(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("delete orphaned subtasks: %w", err)
	}
	return domain.Result{
		Success: true,
		Message: fmt.Sprintf("Deleted %d orphaned subtasks", n),
		Details: map[string]any{"deleted": n},
	}, nil
}

var indexAdvice = []string{
	"items(item_type) supports category statistics",
	"items(is_completed, created_at) supports archival scans",
	"subtasks(parent_item_id) supports orphan detection and child lookups",
}

func (b builtins) optimizeIndexes(ctx context.Context) (domain.Result, error) {
	return domain.Result{
		Success: true,
		Message: "Index review complete, no changes applied",
		Details: map[string]any{"recommendations": indexAdvice},
	}, nil
}

func (b builtins) verifyBackups(ctx context.Context) (domain.Result, error) {
	if b.Repo == nil {
		return unavailable(), nil
	}
	n, err := b.Repo.CountItems(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("count items: %w", err)
	}
	return domain.Result{
		Success: true,
		Message: "Database reachable",
		Details: map[string]any{"items": n},
	}, nil
}

func (b builtins) cleanupSessions(ctx context.Context) (domain.Result, error) {
	return domain.Result{Success: true, Message: "Sessions are managed by the authentication provider"}, nil
}

func (b builtins) refreshStatistics(ctx context.Context) (domain.Result, error) {
	if b.Repo == nil {
		return unavailable(), nil
	}
	counts, err := b.Repo.CountItemsByType(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("count items by type: %w", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return domain.Result{
		Success: true,
		Message: fmt.Sprintf("Refreshed statistics for %d items", total),
		Details: map[string]any{"total": total, "by_type": counts},
	}, nil
}

func (b builtins) compressOldData(ctx context.Context) (domain.Result, error) {
	if b.Repo == nil {
		return unavailable(), nil
	}
	cutoff := b.Now().Add(-ArchiveAge)
	n, err := b.Repo.CountItemsOlderThan(ctx, cutoff, true)
	if err != nil {
		return domain.Result{}, fmt.Errorf("count archivable items: %w", err)
	}
	return domain.Result{
		Success: true,
		Message: fmt.Sprintf("%d completed items are eligible for archival", n),
		Details: map[string]any{"eligible": n, "cutoff": cutoff, "dry_run": true},
	}, nil
}
