package attachment

import (
	"context"
	"log/slog"

	"github.com/ondrasimku/media-pipeline/internal/domain"
	"github.com/ondrasimku/media-pipeline/internal/metrics"
	"github.com/ondrasimku/media-pipeline/internal/repository"
)

// Attacher persists resolved selections against an owner. Concurrent
// attachments of the same media to different owners are last-writer-wins.
type Attacher struct {
	resolver *Resolver
	owners   *OwnerRegistry
	tx       *repository.TxRunner
	logger   *slog.Logger
}

func NewAttacher(resolver *Resolver, owners *OwnerRegistry, tx *repository.TxRunner, logger *slog.Logger) *Attacher {
	return &Attacher{
		resolver: resolver,
		owners:   owners,
		tx:       tx,
		logger:   logger.With("component", "attacher"),
	}
}

func (a *Attacher) Attach(ctx context.Context, owner domain.Owner, selections []domain.Selection) (err error) {
	defer func() {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusFailed
		}
		metrics.AttachmentsTotal.WithLabelValues(status).Inc()
	}()

	if err := owner.Validate(); err != nil {
		return err
	}
	if err := a.owners.Verify(ctx, owner); err != nil {
		return err
	}

	records, err := a.resolver.Resolve(ctx, owner, selections)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.logger.Info("Nothing to attach", "owner", owner.String())
		return nil
	}

	err = a.tx.RunInTx(ctx, func(repo *repository.MediaRepository) error {
		for i := range records {
			if err := repo.UpdateAttachment(ctx, records[i].ID, owner, records[i].IsMain); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		a.logger.Error("Attach failed", "owner", owner.String(), "error", err)
		return err
	}

	a.logger.Info("Media attached", "owner", owner.String(), "count", len(records))
	return nil
}
