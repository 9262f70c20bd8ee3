package feed

import (
	"context"
	"log/slog"

	"github.com/gowvp/argus/internal/core/bz"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/jinzhu/copier"
)

// FindFeeds 分页查询视频源列表，支持名称与位置模糊筛选
func (c Core) FindFeeds(ctx context.Context, in *FindFeedInput) ([]*Feed, int64, error) {
	query := orm.NewQuery(3).OrderBy("created_at DESC")

	if in.Name != "" {
		query.Where("name LIKE ?", "%"+in.Name+"%")
	}
	if in.Location != "" {
		query.Where("location LIKE ?", "%"+in.Location+"%")
	}
	if in.IsActive != nil {
		query.Where("is_active = ?", *in.IsActive)
	}

	items := make([]*Feed, 0, in.Limit())
	total, err := c.store.Feed().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// GetFeed Query a single object
func (c Core) GetFeed(ctx context.Context, id string) (*Feed, error) {
	var out Feed
	if err := c.store.Feed().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// AddFeed Insert into database
func (c Core) AddFeed(ctx context.Context, in *AddFeedInput) (*Feed, error) {
	var out Feed
	if err := copier.Copy(&out, in); err != nil {
		slog.ErrorContext(ctx, "Copy", "err", err)
	}
	out.ID = c.uni.UniqueID(bz.IDPrefixFeed)
	out.IsActive = true

	if err := c.store.Feed().Add(ctx, &out); err != nil {
		return nil, reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	return &out, nil
}

// EditFeed Update object information
func (c Core) EditFeed(ctx context.Context, in *EditFeedInput, id string) (*Feed, error) {
	var out Feed
	if err := c.store.Feed().Edit(ctx, &out, func(b *Feed) {
		if err := copier.Copy(b, in); err != nil {
			slog.ErrorContext(ctx, "Copy", "err", err)
		}
		if in.IsActive != nil {
			b.IsActive = *in.IsActive
		}
		b.UpdatedAt = orm.Now()
	}, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Edit id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Edit id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// DelFeed Delete object
func (c Core) DelFeed(ctx context.Context, id string) (*Feed, error) {
	var out Feed
	if err := c.store.Feed().Del(ctx, &out, orm.Where("id=?", id)); err != nil {
		return nil, reason.ErrDB.Withf(`Del id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}
