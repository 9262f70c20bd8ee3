package feeddb

import (
	"context"

	"github.com/gowvp/argus/internal/core/feed"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ feed.Storer = DB{}

type DB struct {
	db *gorm.DB
}

func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// AutoMigrate 按需自动迁移表结构
func (d DB) AutoMigrate(ok bool) DB {
	if ok {
		if err := d.db.AutoMigrate(&feed.Feed{}); err != nil {
			panic(err)
		}
	}
	return d
}

func (d DB) Feed() feed.FeedStorer {
	return Feed{db: d.db}
}

var _ feed.FeedStorer = Feed{}

type Feed struct {
	db *gorm.DB
}

func (f Feed) apply(ctx context.Context, opts ...orm.QueryOption) *gorm.DB {
	db := f.db.WithContext(ctx).Model(&feed.Feed{})
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}

// Find implements feed.FeedStorer.
func (f Feed) Find(ctx context.Context, items *[]*feed.Feed, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	db := f.apply(ctx, opts...)
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return 0, err
	}
	if err := db.Offset(pager.Offset()).Limit(pager.Limit()).Find(items).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Get implements feed.FeedStorer.
func (f Feed) Get(ctx context.Context, out *feed.Feed, opts ...orm.QueryOption) error {
	return f.apply(ctx, opts...).First(out).Error
}

// Add implements feed.FeedStorer.
func (f Feed) Add(ctx context.Context, in *feed.Feed) error {
	return f.db.WithContext(ctx).Create(in).Error
}

// Edit implements feed.FeedStorer.
func (f Feed) Edit(ctx context.Context, out *feed.Feed, changeFn func(*feed.Feed), opts ...orm.QueryOption) error {
	return f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		db := tx.Model(&feed.Feed{})
		for _, opt := range opts {
			db = opt(db)
		}
		if err := db.First(out).Error; err != nil {
			return err
		}
		changeFn(out)
		return tx.Save(out).Error
	})
}

// Del implements feed.FeedStorer.
func (f Feed) Del(ctx context.Context, out *feed.Feed, opts ...orm.QueryOption) error {
	db := f.apply(ctx, opts...)
	if err := db.First(out).Error; err != nil {
		return err
	}
	return f.db.WithContext(ctx).Delete(out).Error
}

// Count implements feed.FeedStorer.
func (f Feed) Count(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	var total int64
	err := f.apply(ctx, opts...).Count(&total).Error
	return total, err
}

// Session implements feed.FeedStorer.
func (f Feed) Session(ctx context.Context, changeFns ...func(*gorm.DB) error) error {
	return f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fn := range changeFns {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
}
