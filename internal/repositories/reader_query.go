package repositories

import (
	"fmt"
	"strings"

	"lumen-backend/internal/models"
)

// cheapestRate is the lowest offered per-minute rate; LEAST skips NULLs so
// rates of zero (not offered) are ignored.
const cheapestRate = `LEAST(NULLIF(r.chat_rate_cents, 0), NULLIF(r.voice_rate_cents, 0), NULLIF(r.video_rate_cents, 0))`

var rateColumns = map[models.SessionType]string{
	models.SessionChat:  "r.chat_rate_cents",
	models.SessionVoice: "r.voice_rate_cents",
	models.SessionVideo: "r.video_rate_cents",
}

// readerQuery collects WHERE conditions and numbered placeholders for the
// reader listing. Every filter adds one condition; conditions are joined by
// AND so results must satisfy all of them.
type readerQuery struct {
	conds []string
	args  []any
}

func (q *readerQuery) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *readerQuery) where(cond string) {
	q.conds = append(q.conds, cond)
}

func (q *readerQuery) clause() string {
	return " WHERE " + strings.Join(q.conds, " AND ")
}

func priceExpr(t models.SessionType) string {
	if col, ok := rateColumns[t]; ok {
		return col
	}
	return cheapestRate
}

func buildReaderQuery(f models.ReaderFilter) *readerQuery {
	q := &readerQuery{}
	q.where("u.deleted_at IS NULL")
	q.where("u.status = 'active'")

	if f.Status != "" {
		q.where("r.status::text = " + q.arg(string(f.Status)))
	}
	if f.MinRating != nil {
		q.where("r.rating_avg >= " + q.arg(*f.MinRating))
	}
	if f.SessionType != "" {
		q.where(priceExpr(f.SessionType) + " > 0")
	}
	if f.MaxPrice != nil {
		q.where(priceExpr(f.SessionType) + " <= " + q.arg(*f.MaxPrice))
	}
	if f.Specialty != "" {
		q.where(q.arg(strings.ToLower(strings.TrimSpace(f.Specialty))) + " = ANY(r.specialties)")
	}
	if f.Online != nil {
		q.where("r.online = " + q.arg(*f.Online))
	}
	if f.Query != "" {
		q.where("r.display_name ILIKE " + q.arg(likePattern(f.Query)))
	}
	return q
}

func readerOrderBy(f models.ReaderFilter) string {
	switch f.Sort {
	case models.SortPrice:
		return priceExpr(f.SessionType) + " ASC NULLS LAST, r.user_id"
	case models.SortReviews:
		return "r.review_count DESC, r.rating_avg DESC, r.user_id"
	case models.SortNewest:
		return "r.created_at DESC, r.user_id"
	default:
		return "r.rating_avg DESC, r.review_count DESC, r.user_id"
	}
}
