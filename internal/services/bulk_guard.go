package services

import (
	"context"
	"fmt"
	"time"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxAffected      = 1000
	DefaultPreviewThreshold = 100
	DefaultRemoveBatchSize  = 1000

	cleanupTimeout = 30 * time.Second
)

// ObjectRemover deletes a tenant's stored objects from one bucket
type ObjectRemover interface {
	Remove(ctx context.Context, tenantID, bucket string, paths []string) error
}

// BulkLimits bounds guarded bulk operations
type BulkLimits struct {
	MaxAffected      int
	PreviewThreshold int
	RemoveBatchSize  int
}

func DefaultBulkLimits() BulkLimits {
	return BulkLimits{
		MaxAffected:      DefaultMaxAffected,
		PreviewThreshold: DefaultPreviewThreshold,
		RemoveBatchSize:  DefaultRemoveBatchSize,
	}
}

// BulkOutcome is a guarded operation's result plus the ids it touched
type BulkOutcome struct {
	models.BulkResult
	ProductIDs []uuid.UUID
}

// BulkGuard runs bulk updates and deletes behind a hard cap and a preview/acknowledge gate
type BulkGuard struct {
	repo     repository.CatalogRepositoryInterface
	resolver *SelectionResolver
	remover  ObjectRemover
	limits   BulkLimits
	logger   *logrus.Entry
}

func NewBulkGuard(repo repository.CatalogRepositoryInterface, resolver *SelectionResolver, remover ObjectRemover, limits BulkLimits, logger *logrus.Logger) *BulkGuard {
	defaults := DefaultBulkLimits()
	if limits.MaxAffected <= 0 {
		limits.MaxAffected = defaults.MaxAffected
	}
	if limits.PreviewThreshold < 0 {
		limits.PreviewThreshold = defaults.PreviewThreshold
	}
	if limits.RemoveBatchSize <= 0 {
		limits.RemoveBatchSize = defaults.RemoveBatchSize
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BulkGuard{
		repo:     repo,
		resolver: resolver,
		remover:  remover,
		limits:   limits,
		logger:   logger.WithField("component", "bulk-guard"),
	}
}

// Limits returns the effective limits
func (g *BulkGuard) Limits() BulkLimits {
	return g.limits
}

// Execute resolves sel once inside a single transaction, applies the gates and then op.
// Storage cleanup for deletes happens after commit and never fails the operation.
func (g *BulkGuard) Execute(ctx context.Context, tenantID string, sel models.Selection, op models.BulkOperation, opts models.BulkOptions, actor string) (*BulkOutcome, error) {
	if err := validateBulkOperation(op); err != nil {
		return nil, err
	}

	outcome := &BulkOutcome{}
	var artifacts []models.StoredArtifact

	err := g.repo.WithTransaction(ctx, func(tx repository.CatalogRepositoryInterface) error {
		resolved, err := g.resolver.Resolve(ctx, tx, tenantID, sel)
		if err != nil {
			return err
		}
		count := resolved.Count

		if count > g.limits.MaxAffected {
			return &SelectionTooLargeError{Count: count, Max: g.limits.MaxAffected}
		}
		if _, explicit := sel.(models.ExplicitSelection); explicit && count == 0 {
			return fmt.Errorf("%w: none of the selected products exist", ErrNotFound)
		}
		if count > g.limits.PreviewThreshold && !opts.Preview && opts.AcknowledgedCount != count {
			return &PreviewRequiredError{Affected: count}
		}
		if opts.Preview {
			outcome.Affected = count
			outcome.Preview = true
			return nil
		}
		if count == 0 {
			return nil
		}

		var affected int64
		switch o := op.(type) {
		case models.BulkUpdate:
			affected, err = tx.UpdateProducts(ctx, tenantID, resolved.IDs, o.Patch.Columns(actor))
			if err != nil {
				return fmt.Errorf("failed to update products: %w", err)
			}
		case models.BulkDelete:
			artifacts, err = tx.ListProductArtifacts(ctx, tenantID, resolved.IDs)
			if err != nil {
				return fmt.Errorf("failed to collect stored artifacts: %w", err)
			}
			affected, err = tx.DeleteProducts(ctx, tenantID, resolved.IDs)
			if err != nil {
				return fmt.Errorf("failed to delete products: %w", err)
			}
		}

		outcome.Affected = int(affected)
		outcome.ProductIDs = resolved.IDs
		return nil
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	if outcome.Preview {
		return outcome, nil
	}

	g.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"operation": models.OperationKind(op),
		"affected":  outcome.Affected,
		"artifacts": len(artifacts),
	}).Info("Bulk operation committed")

	if len(artifacts) > 0 {
		outcome.CleanupFailures = g.cleanup(ctx, tenantID, artifacts)
	}
	return outcome, nil
}

func validateBulkOperation(op models.BulkOperation) error {
	switch o := op.(type) {
	case models.BulkUpdate:
		if o.Patch.IsEmpty() {
			return validationError("bulk update must set at least one field")
		}
		if o.Patch.Status != nil && !o.Patch.Status.IsValid() {
			return validationError("unknown status %q", *o.Patch.Status)
		}
	case models.BulkDelete:
	case nil:
		return validationError("bulk operation is required")
	default:
		return validationError("unsupported bulk operation %T", op)
	}
	return nil
}

// RemoveArtifacts removes stored objects left behind by a committed write and returns how
// many paths could not be removed
func (g *BulkGuard) RemoveArtifacts(ctx context.Context, tenantID string, artifacts []models.StoredArtifact) int {
	if len(artifacts) == 0 {
		return 0
	}
	return g.cleanup(ctx, tenantID, artifacts)
}

// cleanup removes captured artifacts bucket by bucket in bounded batches and returns
// how many paths could not be removed
func (g *BulkGuard) cleanup(ctx context.Context, tenantID string, artifacts []models.StoredArtifact) int {
	if g.remover == nil {
		g.logger.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"artifacts": len(artifacts),
		}).Warn("No object remover configured, stored artifacts left in place")
		return 0
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	failures := 0
	for _, group := range groupArtifactsByBucket(artifacts) {
		for _, batch := range chunkPaths(group.paths, g.limits.RemoveBatchSize) {
			if err := g.remover.Remove(ctx, tenantID, group.bucket, batch); err != nil {
				failures += len(batch)
				g.logger.WithError(err).WithFields(logrus.Fields{
					"tenant_id": tenantID,
					"bucket":    group.bucket,
					"paths":     len(batch),
				}).Warn("Failed to remove stored artifacts")
			}
		}
	}
	return failures
}

type bucketPaths struct {
	bucket string
	paths  []string
}

// groupArtifactsByBucket keeps first-seen bucket order and drops repeated paths
func groupArtifactsByBucket(artifacts []models.StoredArtifact) []bucketPaths {
	index := make(map[string]int)
	seen := make(map[models.StoredArtifact]struct{}, len(artifacts))
	groups := make([]bucketPaths, 0)
	for _, a := range artifacts {
		if a.Path == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		i, ok := index[a.Bucket]
		if !ok {
			i = len(groups)
			index[a.Bucket] = i
			groups = append(groups, bucketPaths{bucket: a.Bucket})
		}
		groups[i].paths = append(groups[i].paths, a.Path)
	}
	return groups
}

func chunkPaths(paths []string, size int) [][]string {
	chunks := make([][]string, 0, (len(paths)+size-1)/size)
	for start := 0; start < len(paths); start += size {
		end := start + size
		if end > len(paths) {
			end = len(paths)
		}
		chunks = append(chunks, paths[start:end])
	}
	return chunks
}
