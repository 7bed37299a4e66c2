package database

import (
	"context"
	"database/sql"
	"fmt"

	"illust-packer/internal/metadata"
)

// Count returns the number of metadata rows.
func (d *DB) Count(ctx context.Context) (int64, error) {
	var n int64
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM illusts").Scan(&n)
	return n, err
}

// HasFilename reports whether a row exists for the given filename.
func (d *DB) HasFilename(ctx context.Context, filename string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM illusts WHERE filename = ?", filename).Scan(&n)
	return n > 0, err
}

// HasID reports whether a row exists for the given identifier.
func (d *DB) HasID(ctx context.Context, id int64) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM illusts WHERE id = ?", id).Scan(&n)
	return n > 0, err
}

const selectSQL = `SELECT
	filename, id, title, type, restrict, user_name, user_account, tags,
	create_date, page_count, width, height, sanity_level, x_restrict,
	total_view, total_bookmarks, is_bookmarked, visible, is_muted,
	illust_ai_type, illust_book_style, num, date, rating, suffix,
	category, subcategory, url, date_url, extension
FROM illusts WHERE filename = ?`

// GetByFilename loads one metadata row back into a Record. Returns
// sql.ErrNoRows when absent.
func (d *DB) GetByFilename(ctx context.Context, filename string) (*metadata.Record, error) {
	row := d.db.QueryRowContext(ctx, selectSQL, filename)

	var (
		rec      metadata.Record
		fname    sql.NullString
		id, restrict, pageCount, width, height, sanity,
		xRestrict, totalView, totalBookmarks, aiType,
		bookStyle, num sql.NullInt64
		title, typ, userName, userAccount, tags, createDate,
		date, rating, suffix, category, subcategory, url,
		dateURL, extension sql.NullString
		isBookmarked, visible, isMuted sql.NullBool
	)

	err := row.Scan(
		&fname, &id, &title, &typ, &restrict, &userName, &userAccount,
		&tags, &createDate, &pageCount, &width, &height, &sanity,
		&xRestrict, &totalView, &totalBookmarks, &isBookmarked,
		&visible, &isMuted, &aiType, &bookStyle, &num, &date, &rating,
		&suffix, &category, &subcategory, &url, &dateURL, &extension,
	)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}

	rec.Filename = fname.String
	rec.ID = nullInt(id)
	rec.Title = nullStr(title)
	rec.Type = nullStr(typ)
	rec.Restrict = nullInt(restrict)
	rec.UserName = nullStr(userName)
	rec.UserAccount = nullStr(userAccount)
	rec.Tags = tags.String
	rec.CreateDate = nullStr(createDate)
	rec.PageCount = nullInt(pageCount)
	rec.Width = nullInt(width)
	rec.Height = nullInt(height)
	rec.SanityLevel = nullInt(sanity)
	rec.XRestrict = nullInt(xRestrict)
	rec.TotalView = nullInt(totalView)
	rec.TotalBookmarks = nullInt(totalBookmarks)
	rec.IsBookmarked = nullBool(isBookmarked)
	rec.Visible = nullBool(visible)
	rec.IsMuted = nullBool(isMuted)
	rec.IllustAIType = nullInt(aiType)
	rec.IllustBookStyle = nullInt(bookStyle)
	rec.Num = nullInt(num)
	rec.Date = nullStr(date)
	rec.Rating = nullStr(rating)
	rec.Suffix = nullStr(suffix)
	rec.Category = nullStr(category)
	rec.Subcategory = nullStr(subcategory)
	rec.URL = nullStr(url)
	rec.DateURL = nullStr(dateURL)
	rec.Extension = nullStr(extension)

	return &rec, nil
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullBool(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	return &v.Bool
}
