package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Avishek-7/URL-Shortening-service/model"
	"github.com/Avishek-7/URL-Shortening-service/shared/db"
)

// ClickDelta is one pending-click entry claimed from the accumulator.
type ClickDelta struct {
	ShortCode string
	Delta     int64
}

type ShortLinkRepo struct {
	ConnectionString string
	DB               *db.PostgresDB
}

func NewShortLinkRepo(connectionString string) (*ShortLinkRepo, error) {
	pg := db.NewPostgresDB(connectionString)
	if err := pg.Init(); err != nil {
		return nil, err
	}
	return &ShortLinkRepo{
		ConnectionString: connectionString,
		DB:               pg,
	}, nil
}

func (repo *ShortLinkRepo) Migrate() error {
	return repo.DB.Migrate(&model.ShortLink{})
}

func (repo *ShortLinkRepo) Close() error {
	return repo.DB.Close()
}

func (repo *ShortLinkRepo) Insert(ctx context.Context, link *model.ShortLink) error {
	return repo.DB.Create(ctx, link)
}

// InsertWithGeneratedCode stores a link whose code derives from the row id.
// Insert and code assignment happen in one transaction: no committed row is
// ever visible without a code, and overlapping creates cannot collide on the
// short_code unique index through a half-assigned row.
func (repo *ShortLinkRepo) InsertWithGeneratedCode(ctx context.Context, link *model.ShortLink, codeFor func(id int64) string) error {
	return repo.DB.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(link).Error; err != nil {
			return err
		}
		code := codeFor(link.ID)
		result := tx.Model(&model.ShortLink{}).
			Where("id = ?", link.ID).
			Update("short_code", code)
		if result.Error != nil {
			return result.Error
		}
		link.ShortCode = code
		return nil
	})
}

// FindByCode returns the record for code, or nil when no such code exists.
func (repo *ShortLinkRepo) FindByCode(ctx context.Context, code string) (*model.ShortLink, error) {
	var link model.ShortLink
	found, err := repo.DB.First(ctx, &link, "short_code = ?", code)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &link, nil
}

// FindByLongUrl returns an existing record for the destination, or nil.
func (repo *ShortLinkRepo) FindByLongUrl(ctx context.Context, longUrl string) (*model.ShortLink, error) {
	var link model.ShortLink
	found, err := repo.DB.First(ctx, &link, "long_url = ?", longUrl)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &link, nil
}

// ApplyClickDeltas applies clicks = clicks + delta for every entry inside a
// single transaction. Entries whose code no longer matches a row are
// reported back as failed; a transaction error fails the whole batch.
func (repo *ShortLinkRepo) ApplyClickDeltas(ctx context.Context, deltas []ClickDelta) ([]ClickDelta, error) {
	var failed []ClickDelta

	err := repo.DB.Transaction(ctx, func(tx *gorm.DB) error {
		for _, d := range deltas {
			result := tx.Model(&model.ShortLink{}).
				Where("short_code = ?", d.ShortCode).
				Update("clicks", gorm.Expr("clicks + ?", d.Delta))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				failed = append(failed, d)
			}
		}
		return nil
	})
	if err != nil {
		return deltas, err
	}
	return failed, nil
}
