// Package pagination implements opaque cursor paging. Snowflake IDs
// are time-ordered, so the cursor carries only the last ID of the
// previous page.
package pagination

import (
	"encoding/base64"
	"encoding/json"
)

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=25" validate:"gte=1,lte=250"`
}

type Cursor struct {
	ID string `json:"id,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// BuildPageInfo trims an over-fetched page (limit+1 rows) down to
// limit and reports whether more rows follow. Returns the trimmed
// page alongside the page info.
func BuildPageInfo[T any](rows []T, limit int, lastID func(T) string) ([]T, PageInfo, error) {
	if len(rows) <= limit {
		return rows, PageInfo{HasMore: false}, nil
	}

	rows = rows[:limit]
	token, err := EncodeCursor(Cursor{ID: lastID(rows[len(rows)-1])})
	if err != nil {
		return rows, PageInfo{}, err
	}
	return rows, PageInfo{HasMore: true, NextPageToken: token}, nil
}
