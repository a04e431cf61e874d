package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"rt-keeper/internal/domain"
	"rt-keeper/internal/infra/metrics"
	"rt-keeper/internal/usecase/importer"
	"rt-keeper/internal/usecase/search"
	"rt-keeper/internal/usecase/store"
	"rt-keeper/internal/usecase/tags"
)

const statsCacheKey = "stats"

// Handler отдаёт операции ядра по HTTP в едином конверте
// {"success":true,"data":…} / {"success":false,"error":…}.
type Handler struct {
	store         *store.Service
	importer      *importer.Service
	cache         domain.Cache
	statsTTL      time.Duration
	importMaxBody int64
	log           zerolog.Logger
}

// NewHandler создаёт обработчик API.
func NewHandler(st *store.Service, imp *importer.Service, cache domain.Cache, statsTTL time.Duration, importMaxBody int64, logger zerolog.Logger) *Handler {
	if importMaxBody <= 0 {
		importMaxBody = 32 << 20
	}
	return &Handler{store: st, importer: imp, cache: cache, statsTTL: statsTTL, importMaxBody: importMaxBody, log: logger}
}

// Register вешает маршруты операций на роутер.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tweets", h.createTweet)
		r.Post("/tweets/bulk", h.createTweets)
		r.Get("/tweets", h.listTweets)
		r.Post("/tweets/delete", h.deleteTweets)
		r.Post("/tweets/tags", h.bulkAdjustTags)
		r.Get("/tweets/{id}", h.getTweet)
		r.Patch("/tweets/{id}", h.updateTweet)
		r.Put("/tweets/{id}/tags", h.setTags)
		r.Delete("/tweets/{id}", h.deleteTweet)

		r.Get("/search", h.search)
		r.Get("/search/suggestions", h.suggestions)
		r.Post("/tags/confidence", h.tagConfidence)

		r.Post("/import/{kind}", h.importData)
		r.Get("/export", h.exportAll)
		r.Get("/export/csv", h.exportCSV)
		r.Get("/stats", h.stats)

		r.Get("/categories", h.listCategories)
		r.Put("/categories", h.upsertCategory)
		r.Delete("/categories/{name}", h.deleteCategory)

		r.Get("/searches", h.listSavedSearches)
		r.Post("/searches", h.createSavedSearch)
		r.Delete("/searches/{id}", h.deleteSavedSearch)

		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.putSettings)
	})
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

// writeFailure отображает ошибки ядра на HTTP-статусы.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("api: внутренняя ошибка")
		writeError(w, http.StatusInternalServerError, "внутренняя ошибка хранилища")
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

type createTweetResponse struct {
	Record    *domain.Tweet `json:"record,omitempty"`
	Duplicate bool          `json:"duplicate"`
}

func (h *Handler) createTweet(w http.ResponseWriter, r *http.Request) {
	var candidate domain.Tweet
	if err := decodeBody(r, &candidate); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	res, err := h.store.Create(r.Context(), candidate)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if res.Duplicate {
		writeData(w, createTweetResponse{Duplicate: true})
		return
	}
	writeData(w, createTweetResponse{Record: &res.Tweet})
}

func (h *Handler) createTweets(w http.ResponseWriter, r *http.Request) {
	var candidates []domain.Tweet
	if err := decodeBody(r, &candidates); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	res, err := h.store.CreateMany(r.Context(), candidates)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, res)
}

func (h *Handler) getTweet(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, t)
}

func (h *Handler) listTweets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := domain.PageRequest{
		SortField:     q.Get("sortField"),
		SortDirection: q.Get("sortDirection"),
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PageSize, _ = strconv.Atoi(q.Get("pageSize"))
	page, err := h.store.ListPage(r.Context(), req)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, page)
}

func (h *Handler) updateTweet(w http.ResponseWriter, r *http.Request) {
	var patch domain.TweetPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	t, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, t)
}

func (h *Handler) setTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	t, err := h.store.SetTags(r.Context(), chi.URLParam(r, "id"), req.Tags)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, t)
}

func (h *Handler) bulkAdjustTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs    []string `json:"ids"`
		Add    []string `json:"add"`
		Remove []string `json:"remove"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	updated, err := h.store.BulkAdjustTags(r.Context(), req.IDs, req.Add, req.Remove)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, map[string]int{"updatedCount": updated})
}

func (h *Handler) deleteTweet(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, domain.ErrNotFound.Error())
		return
	}
	writeData(w, map[string]bool{"deleted": true})
}

func (h *Handler) deleteTweets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	deleted, err := h.store.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, map[string]int{"deletedCount": deleted})
}

// parseFilter собирает предикат из query-параметров.
func parseFilter(r *http.Request) domain.TweetFilter {
	q := r.URL.Query()
	var f domain.TweetFilter
	if tagsParam := strings.TrimSpace(q.Get("tags")); tagsParam != "" {
		for _, tag := range strings.Split(tagsParam, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}
	if ts := parseTimeParam(q.Get("dateFrom")); ts != nil {
		f.DateFrom = ts
	}
	if ts := parseTimeParam(q.Get("dateTo")); ts != nil {
		f.DateTo = ts
	}
	f.Source = domain.Source(q.Get("source"))
	if hasMedia := q.Get("hasMedia"); hasMedia != "" {
		v := hasMedia == "true" || hasMedia == "1"
		f.HasMedia = &v
	}
	f.Author = q.Get("author")
	return f
}

func parseTimeParam(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	tweets, err := h.store.GetAll(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	start := time.Now()
	results := search.Search(tweets, r.URL.Query().Get("q"), parseFilter(r))
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	writeData(w, results)
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	tweets, err := h.store.GetAll(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, search.SuggestionIndex(tweets))
}

func (h *Handler) tagConfidence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, tags.Confidence(req.Text, categories))
}

func (h *Handler) importData(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "импорт не настроен")
		return
	}
	defer r.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(r.Body, h.importMaxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "не удалось прочитать тело запроса")
		return
	}
	kind := domain.ImportFormat(chi.URLParam(r, "kind"))
	report, err := h.importer.Import(r.Context(), kind, payload)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, report)
}

func (h *Handler) exportAll(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.store.ExportAll(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, bundle)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	tweets, err := h.store.GetAll(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="retweets.csv"`)
	_, _ = w.Write([]byte(importer.EncodeCSV(tweets)))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if cached, err := h.cache.Get(statsCacheKey); err == nil && len(cached) > 0 {
			writeData(w, json.RawMessage(cached))
			return
		}
	}
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if h.cache != nil {
		if data, err := json.Marshal(stats); err == nil {
			_ = h.cache.Set(statsCacheKey, data, h.statsTTL)
		}
	}
	writeData(w, stats)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, categories)
}

func (h *Handler) upsertCategory(w http.ResponseWriter, r *http.Request) {
	var category domain.Category
	if err := decodeBody(r, &category); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	saved, err := h.store.UpsertCategory(r.Context(), category)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, saved)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.DeleteCategory(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, domain.ErrNotFound.Error())
		return
	}
	writeData(w, map[string]bool{"deleted": true})
}

func (h *Handler) listSavedSearches(w http.ResponseWriter, r *http.Request) {
	searches, err := h.store.ListSavedSearches(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if searches == nil {
		searches = []domain.SavedSearch{}
	}
	writeData(w, searches)
}

func (h *Handler) createSavedSearch(w http.ResponseWriter, r *http.Request) {
	var req domain.SavedSearch
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	saved, err := h.store.CreateSavedSearch(r.Context(), req)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, saved)
}

func (h *Handler) deleteSavedSearch(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.DeleteSavedSearch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, domain.ErrNotFound.Error())
		return
	}
	writeData(w, map[string]bool{"deleted": true})
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, json.RawMessage(settings))
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, h.importMaxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "не удалось прочитать тело запроса")
		return
	}
	if !json.Valid(raw) {
		writeError(w, http.StatusBadRequest, "настройки должны быть JSON")
		return
	}
	if err := h.store.PutSettings(r.Context(), raw); err != nil {
		h.writeFailure(w, err)
		return
	}
	writeData(w, map[string]bool{"saved": true})
}
