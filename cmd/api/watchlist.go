package main

import (
	"errors"
	"net/http"

	"github.com/liliang-cn/moviematic/internal/data"
	"github.com/liliang-cn/moviematic/internal/validator"
)

func (app *application) addToWatchlistHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		MovieID int64  `json:"movie_id"`
		Status  string `json:"status"`
		Rating  *int   `json:"rating"`
		Notes   string `json:"notes"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := app.contextGetUser(r)

	entry := &data.WatchlistEntry{
		UserID:  user.ID,
		MovieID: input.MovieID,
		Status:  input.Status,
		Rating:  input.Rating,
		Notes:   input.Notes,
	}
	if entry.Status == "" {
		entry.Status = data.StatusWantToWatch
	}

	v := validator.New()
	if data.ValidateWatchlistEntry(v, entry); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Watchlist.Insert(r.Context(), entry)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"watchlist_item": entry}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listWatchlistHandler 可按 status 过滤，按加入时间倒序分页
func (app *application) listWatchlistHandler(w http.ResponseWriter, r *http.Request) {
	v := validator.New()
	qs := r.URL.Query()

	status := app.readString(qs, "status", "")

	filters := data.Filters{
		Page:         app.readInt(qs, "page", 1, v),
		PageSize:     app.readInt(qs, "page_size", 20, v),
		Sort:         "-added_at",
		SortSafelist: []string{"-added_at"},
	}

	v.Check(status == "" || validator.In(status, data.WatchlistStatuses...), "status", "must be one of want_to_watch, watching, watched")
	if data.ValidateFilters(v, filters); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	user := app.contextGetUser(r)

	entries, metadata, err := app.models.Watchlist.GetAll(r.Context(), user.ID, status, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"watchlist": entries, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// checkWatchlistHandler 返回电影是否在当前用户的片单中
func (app *application) checkWatchlistHandler(w http.ResponseWriter, r *http.Request) {
	movieID, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	user := app.contextGetUser(r)

	entry, err := app.models.Watchlist.Get(r.Context(), user.ID, movieID)
	if err != nil && !errors.Is(err, data.ErrRecordNotFound) {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"in_watchlist": entry != nil, "watchlist_item": entry}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) updateWatchlistHandler(w http.ResponseWriter, r *http.Request) {
	movieID, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	user := app.contextGetUser(r)

	entry, err := app.models.Watchlist.Get(r.Context(), user.ID, movieID)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	var input struct {
		Status *string       `json:"status"`
		Rating optional[int] `json:"rating"`
		Notes  *string       `json:"notes"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.Status != nil {
		entry.Status = *input.Status
	}
	// rating 为 null 时清除评分
	if input.Rating.Set {
		entry.Rating = input.Rating.Value
	}
	if input.Notes != nil {
		entry.Notes = *input.Notes
	}

	v := validator.New()
	if data.ValidateWatchlistEntry(v, entry); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Watchlist.Update(r.Context(), entry)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"watchlist_item": entry}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) removeFromWatchlistHandler(w http.ResponseWriter, r *http.Request) {
	movieID, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	user := app.contextGetUser(r)

	err = app.models.Watchlist.Delete(r.Context(), user.ID, movieID)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "movie removed from watchlist"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) watchlistStatsHandler(w http.ResponseWriter, r *http.Request) {
	user := app.contextGetUser(r)

	stats, err := app.models.Watchlist.Stats(r.Context(), user.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"stats": stats}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
