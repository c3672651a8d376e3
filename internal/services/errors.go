package services

import (
	"errors"
	"fmt"

	"catalog-service/internal/repository"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrValidation            = errors.New("validation failed")
	ErrSelectionTooLarge     = errors.New("selection exceeds the maximum number of affected products")
	ErrPreviewRequired       = errors.New("preview and acknowledgement required")
	ErrIdentifierExhaustion  = errors.New("could not generate enough unused identifiers")
	ErrTransactionConflict   = errors.New("transaction conflict, retry the operation")
	ErrInvalidDimensionValue = errors.New("invalid variant dimension value")
	ErrDuplicateSKU          = errors.New("sku already exists")
	ErrDuplicateSlug         = errors.New("slug already exists")
	ErrInvalidImportFile     = errors.New("invalid import file")
)

// SelectionTooLargeError carries the resolved count that exceeded the cap
type SelectionTooLargeError struct {
	Count int
	Max   int
}

func (e *SelectionTooLargeError) Error() string {
	return fmt.Sprintf("%s: %d products selected, maximum is %d", ErrSelectionTooLarge.Error(), e.Count, e.Max)
}

func (e *SelectionTooLargeError) Unwrap() error { return ErrSelectionTooLarge }

// PreviewRequiredError carries the count the caller must acknowledge
type PreviewRequiredError struct {
	Affected int
}

func (e *PreviewRequiredError) Error() string {
	return fmt.Sprintf("%s: operation affects %d products", ErrPreviewRequired.Error(), e.Affected)
}

func (e *PreviewRequiredError) Unwrap() error { return ErrPreviewRequired }

// mapRepositoryError converts repository sentinels into service errors
func mapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", ErrTransactionConflict, err)
	}
	return err
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
