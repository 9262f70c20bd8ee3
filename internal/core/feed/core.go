package feed

import (
	"context"

	"github.com/ixugo/goddd/domain/uniqueid"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

// Storer data persistence
type Storer interface {
	Feed() FeedStorer
}

// FeedStorer Instantiation interface
type FeedStorer interface {
	Find(context.Context, *[]*Feed, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *Feed, ...orm.QueryOption) error
	Add(context.Context, *Feed) error
	Edit(context.Context, *Feed, func(*Feed), ...orm.QueryOption) error
	Del(context.Context, *Feed, ...orm.QueryOption) error
	Count(context.Context, ...orm.QueryOption) (int64, error)

	Session(context.Context, ...func(*gorm.DB) error) error
}

// Core business domain
type Core struct {
	store Storer
	uni   uniqueid.Core
}

// NewCore create business domain
func NewCore(store Storer, uni uniqueid.Core) Core {
	return Core{store: store, uni: uni}
}
