package incident

import (
	"context"

	"github.com/gowvp/argus/internal/core/notify"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

// Storer data persistence
type Storer interface {
	Incident() IncidentStorer
	NotificationLog() NotificationLogStorer
}

// IncidentStorer Instantiation interface
type IncidentStorer interface {
	Find(context.Context, *[]*Incident, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *Incident, ...orm.QueryOption) error
	Add(context.Context, *Incident) error
	Edit(context.Context, *Incident, func(*Incident), ...orm.QueryOption) error
	Del(context.Context, *Incident, ...orm.QueryOption) error
	Count(context.Context, ...orm.QueryOption) (int64, error)

	Session(context.Context, ...func(*gorm.DB) error) error
}

// NotificationLogStorer 通知投递记录
type NotificationLogStorer interface {
	Find(context.Context, *[]*NotificationLog, orm.Pager, ...orm.QueryOption) (int64, error)
	Add(context.Context, *NotificationLog) error
}

// Notifier 通知分发接口，解耦事件领域与 notify 领域
type Notifier interface {
	Dispatch(ctx context.Context, msg *notify.Message) []notify.Attempt
}

// Core business domain
type Core struct {
	store       Storer
	notifier    Notifier
	snapshotDir string
	retainDays  int
}

type Option func(*Core)

// WithNotifier 注入通知分发器
func WithNotifier(n Notifier) Option {
	return func(c *Core) {
		c.notifier = n
	}
}

// WithSnapshotDir 注入快照存储目录
func WithSnapshotDir(dir string) Option {
	return func(c *Core) {
		c.snapshotDir = dir
	}
}

// WithRetainDays 注入保留天数，超期事件会被清理协程删除
func WithRetainDays(days int) Option {
	return func(c *Core) {
		c.retainDays = days
	}
}

// NewCore create business domain
func NewCore(store Storer, opts ...Option) Core {
	c := Core{store: store}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
