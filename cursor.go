package main

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
)

var (
	errInvalidLimit  = errors.New("invalid limit")
	errInvalidCursor = errors.New("invalid cursor")
)

// cursors are tiny JSON documents; anything longer was not minted by us
const maxCursorLen = 256

type PageParams struct {
	Limit  int
	Cursor string // opaque to clients
}

type PageInfo struct {
	Limit      int    `json:"limit"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

type PageResponse[T any] struct {
	Data []T      `json:"data"`
	Page PageInfo `json:"page"`
}

// ParsePageParams reads ?limit and ?cursor. Limits above maxLimit are
// clamped rather than rejected.
func ParsePageParams(r *http.Request, defaultLimit, maxLimit int) (PageParams, error) {
	q := r.URL.Query()
	p := PageParams{Limit: defaultLimit, Cursor: q.Get("cursor")}
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return PageParams{}, errInvalidLimit
		}
		p.Limit = min(v, maxLimit)
	}
	if len(p.Cursor) > maxCursorLen {
		return PageParams{}, errInvalidCursor
	}
	return p, nil
}

// CursorCodec turns a cursor value into URL-safe base64 JSON and back.
type CursorCodec[T any] struct {
	// Validate, when set, rejects decoded cursors that are well formed but
	// meaningless.
	Validate func(T) error
}

func (c CursorCodec[T]) Encode(v T) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Decode reports ok=false with a nil error for an empty cursor, meaning
// "start from the first page".
func (c CursorCodec[T]) Decode(s string) (v T, ok bool, err error) {
	if s == "" {
		return v, false, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return v, false, errInvalidCursor
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, false, errInvalidCursor
	}
	if c.Validate != nil && c.Validate(v) != nil {
		return v, false, errInvalidCursor
	}
	return v, true, nil
}

// postCursor points just past the last post of a page. Post ids are
// Snowflake ids, so ordering by id is ordering by creation time.
type postCursor struct {
	Before string `json:"before"`
}

func (c postCursor) id() (uint64, error) {
	v, err := strconv.ParseUint(c.Before, 10, 64)
	if err != nil || v == 0 {
		return 0, errors.New("invalid before id")
	}
	return v, nil
}

var postCursorCodec = CursorCodec[postCursor]{
	Validate: func(c postCursor) error {
		_, err := c.id()
		return err
	},
}
