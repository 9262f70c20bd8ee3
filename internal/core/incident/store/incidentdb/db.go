package incidentdb

import (
	"context"

	"github.com/gowvp/argus/internal/core/incident"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ incident.Storer = DB{}

type DB struct {
	db *gorm.DB
}

func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// AutoMigrate 按需自动迁移表结构
func (d DB) AutoMigrate(ok bool) DB {
	if ok {
		if err := d.db.AutoMigrate(&incident.Incident{}, &incident.NotificationLog{}); err != nil {
			panic(err)
		}
	}
	return d
}

func (d DB) Incident() incident.IncidentStorer {
	return Incident{db: d.db}
}

func (d DB) NotificationLog() incident.NotificationLogStorer {
	return NotificationLog{db: d.db}
}

var _ incident.IncidentStorer = Incident{}

type Incident struct {
	db *gorm.DB
}

func (i Incident) apply(ctx context.Context, opts ...orm.QueryOption) *gorm.DB {
	db := i.db.WithContext(ctx).Model(&incident.Incident{})
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}

// Find implements incident.IncidentStorer.
func (i Incident) Find(ctx context.Context, items *[]*incident.Incident, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	db := i.apply(ctx, opts...)
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return 0, err
	}
	if err := db.Offset(pager.Offset()).Limit(pager.Limit()).Find(items).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Get implements incident.IncidentStorer.
func (i Incident) Get(ctx context.Context, out *incident.Incident, opts ...orm.QueryOption) error {
	return i.apply(ctx, opts...).First(out).Error
}

// Add implements incident.IncidentStorer.
func (i Incident) Add(ctx context.Context, in *incident.Incident) error {
	return i.db.WithContext(ctx).Create(in).Error
}

// Edit implements incident.IncidentStorer.
func (i Incident) Edit(ctx context.Context, out *incident.Incident, changeFn func(*incident.Incident), opts ...orm.QueryOption) error {
	return i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		db := tx.Model(&incident.Incident{})
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

// Del implements incident.IncidentStorer.
func (i Incident) Del(ctx context.Context, out *incident.Incident, opts ...orm.QueryOption) error {
	db := i.apply(ctx, opts...)
	if err := db.First(out).Error; err != nil {
		return err
	}
	return i.db.WithContext(ctx).Delete(out).Error
}

// Count implements incident.IncidentStorer.
func (i Incident) Count(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	var total int64
	err := i.apply(ctx, opts...).Count(&total).Error
	return total, err
}

// Session implements incident.IncidentStorer.
func (i Incident) Session(ctx context.Context, changeFns ...func(*gorm.DB) error) error {
	return i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fn := range changeFns {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ incident.NotificationLogStorer = NotificationLog{}

type NotificationLog struct {
	db *gorm.DB
}

// Find implements incident.NotificationLogStorer.
func (n NotificationLog) Find(ctx context.Context, items *[]*incident.NotificationLog, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	db := n.db.WithContext(ctx).Model(&incident.NotificationLog{})
	for _, opt := range opts {
		db = opt(db)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return 0, err
	}
	if err := db.Offset(pager.Offset()).Limit(pager.Limit()).Find(items).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Add implements incident.NotificationLogStorer.
func (n NotificationLog) Add(ctx context.Context, in *incident.NotificationLog) error {
	return n.db.WithContext(ctx).Create(in).Error
}
