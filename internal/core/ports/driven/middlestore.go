package driven

import (
	"context"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// ItemFunc receives the raw content of one object loaded from the middle store.
type ItemFunc func(ctx context.Context, locator string, content []byte) error

// MiddleStore is the shared remote storage both sides exchange batches through.
type MiddleStore interface {
	// WaitAction checks whether a complete export is available.
	// It reports ready together with the locators of the export's objects.
	// params may override the prefix with domain.ParamFolder.
	WaitAction(ctx context.Context, params domain.Params) (locators []string, ready bool, err error)

	// LoadFoundData downloads each locator in order and passes its content to fn.
	LoadFoundData(ctx context.Context, locators []string, fn ItemFunc, params domain.Params) error

	// UploadString stores content at destinationPath.
	UploadString(ctx context.Context, content, destinationPath, model string, params domain.Params) (*domain.MiddleFile, error)

	// Cleanup removes consumed objects after a pull, or runs post-push housekeeping.
	Cleanup(ctx context.Context, phase domain.CleanupPhase, params domain.Params) error
}
