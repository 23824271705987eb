package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

const dailyUsageColumns = `id, user_id, date, background_removal_count, image_upscaling_count,
	text_watermark_count, crop_resize_count, created_at, updated_at`

func scanDailyUsage(row interface{ Scan(...interface{}) error }) (domain.DailyUsage, error) {
	var u domain.DailyUsage
	err := row.Scan(
		&u.ID,
		&u.UserID,
		&u.Date,
		&u.BackgroundRemovalCount,
		&u.ImageUpscalingCount,
		&u.TextWatermarkCount,
		&u.CropResizeCount,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// GetOrCreateDailyUsage returns the usage row for (user, date), inserting a
// zeroed row if none exists yet. The upsert makes concurrent first-touch
// requests converge on a single row instead of racing on a separate
// select-then-insert.
func (q *Queries) GetOrCreateDailyUsage(ctx context.Context, userID uuid.UUID, date time.Time) (domain.DailyUsage, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO daily_usage (user_id, date)
		VALUES ($1, $2)
		ON CONFLICT (user_id, date) DO UPDATE SET user_id = excluded.user_id
		RETURNING `+dailyUsageColumns,
		userID, date,
	)
	return scanDailyUsage(row)
}

// IncrementDailyUsage bumps the counter column for the given operation on
// the (user, date) row and returns the updated row. Only the four known
// operation strings map to a counter; anything else touches updated_at and
// leaves every counter unchanged.
//
// The increment runs as a single UPDATE, so concurrent recordings never
// lose counts. Callers must ensure the row exists (GetOrCreateDailyUsage)
// before incrementing.
func (q *Queries) IncrementDailyUsage(ctx context.Context, userID uuid.UUID, date time.Time, op domain.OperationType) (domain.DailyUsage, error) {
	var column string
	switch op {
	case domain.OpBackgroundRemoval:
		column = "background_removal_count"
	case domain.OpImageUpscaling:
		column = "image_upscaling_count"
	case domain.OpTextWatermark:
		column = "text_watermark_count"
	case domain.OpCropResize:
		column = "crop_resize_count"
	}

	if column == "" {
		row := q.db.QueryRowContext(ctx, `
			UPDATE daily_usage
			SET updated_at = now()
			WHERE user_id = $1 AND date = $2
			RETURNING `+dailyUsageColumns,
			userID, date,
		)
		return scanDailyUsage(row)
	}

	row := q.db.QueryRowContext(ctx, `
		UPDATE daily_usage
		SET `+column+` = `+column+` + 1, updated_at = now()
		WHERE user_id = $1 AND date = $2
		RETURNING `+dailyUsageColumns,
		userID, date,
	)
	return scanDailyUsage(row)
}

// ListDailyUsageSince returns a user's usage rows from the given date
// onwards, oldest first. Days without activity have no row.
func (q *Queries) ListDailyUsageSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.DailyUsage, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+dailyUsageColumns+`
		FROM daily_usage
		WHERE user_id = $1 AND date >= $2
		ORDER BY date`,
		userID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usages []domain.DailyUsage
	for rows.Next() {
		u, err := scanDailyUsage(rows)
		if err != nil {
			return nil, err
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}
