// Package catalog reads tour and session pricing from the content service.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
	"tourledger/src/types"

	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
)

type Session struct {
	ID      string    `json:"id"`
	TourID  string    `json:"tour_id"`
	Price   float64   `json:"price"`
	Deposit float64   `json:"deposit"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

type Tour struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Destination string `json:"destination"`
	Slug        string `json:"slug"`
}

// Cents converts a major-unit catalog price to minor units.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type Client struct {
	baseURL string
	http    *http.Client
	rdb     *redis.Client
	ttl     time.Duration
}

// New returns a catalog client. A nil rdb disables caching.
func New(baseURL string, rdb *redis.Client, ttl time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (c *Client) Session(ctx context.Context, id string) (*Session, error) {
	raw, err := c.fetch(ctx, "sessions", id)
	if err != nil {
		return nil, err
	}
	doc := unwrap(gjson.ParseBytes(raw))
	session := &Session{
		ID:      firstString(doc, "id", "documentId"),
		TourID:  firstString(doc, "tour_id", "tour.id", "tour.data.id"),
		Price:   doc.Get("price").Float(),
		Deposit: doc.Get("deposit").Float(),
		Start:   parseTime(firstString(doc, "start", "start_date", "startDate")),
		End:     parseTime(firstString(doc, "end", "end_date", "endDate")),
	}
	if session.ID == "" {
		session.ID = id
	}
	return session, nil
}

func (c *Client) Tour(ctx context.Context, id string) (*Tour, error) {
	raw, err := c.fetch(ctx, "tours", id)
	if err != nil {
		return nil, err
	}
	doc := unwrap(gjson.ParseBytes(raw))
	tour := &Tour{
		ID:          firstString(doc, "id", "documentId"),
		Title:       doc.Get("title").String(),
		Destination: firstString(doc, "destination", "destination.name", "location"),
		Slug:        doc.Get("slug").String(),
	}
	if tour.ID == "" {
		tour.ID = id
	}
	if tour.Slug == "" {
		tour.Slug = slug.Make(tour.Title)
	}
	return tour, nil
}

func cacheKey(kind, id string) string {
	return fmt.Sprintf("catalog:%s:%s", kind, id)
}

func (c *Client) fetch(ctx context.Context, kind, id string) ([]byte, error) {
	key := cacheKey(kind, id)
	if c.rdb != nil {
		val, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			return []byte(val), nil
		}
		if !errors.Is(err, redis.Nil) {
			log.Printf("[Catalog] cache read failed for %s: %s\n", key, err.Error())
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s", c.baseURL, kind, url.PathEscape(id)), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog %s %s: %w", kind, id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", strings.TrimSuffix(kind, "s"), id, types.ErrNotFound)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog %s %s: unexpected status %d", kind, id, res.StatusCode)
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("catalog %s %s: invalid json", kind, id)
	}

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, string(raw), c.ttl).Err(); err != nil {
			log.Printf("[Catalog] cache write failed for %s: %s\n", key, err.Error())
		}
	}
	return raw, nil
}

// unwrap strips the {"data": {"attributes": ...}} envelope the CMS may add.
func unwrap(doc gjson.Result) gjson.Result {
	if attrs := doc.Get("data.attributes"); attrs.IsObject() {
		return attrs
	}
	if data := doc.Get("data"); data.IsObject() {
		return data
	}
	return doc
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
