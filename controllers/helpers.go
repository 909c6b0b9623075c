package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go-marketplace/apperr"
	"go-marketplace/middleware"
	"go-marketplace/models"
	"go-marketplace/views"
)

// requestTimeout bounds every storage call made on behalf of a request.
const requestTimeout = 5 * time.Second

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("", "Invalid request body")
	}
	return nil
}

func currentActor(r *http.Request) (models.Actor, error) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		return models.Actor{}, apperr.Unauthorized("Unauthorized")
	}
	return actor, nil
}

// filterFromQuery reads ?status=&from=&to=&q=. Dates are YYYY-MM-DD or
// RFC 3339; a bare "to" date includes the whole day.
func filterFromQuery(r *http.Request) (views.Filter, error) {
	q := r.URL.Query()
	var f views.Filter
	if s := q.Get("status"); s != "" {
		status, err := models.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = status
	}
	var err error
	if f.From, err = parseDate(q.Get("from"), false); err != nil {
		return f, apperr.Validation("from", "from must be a date")
	}
	if f.To, err = parseDate(q.Get("to"), true); err != nil {
		return f, apperr.Validation("to", "to must be a date")
	}
	f.Query = strings.TrimSpace(q.Get("q"))
	return f, nil
}

func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}
