package main

import (
	"errors"
	"net/http"

	"github.com/liliang-cn/moviematic/internal/data"
	"github.com/liliang-cn/moviematic/internal/validator"
)

func (app *application) createReviewHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		MovieID    int64  `json:"movie_id"`
		Rating     int    `json:"rating"`
		ReviewText string `json:"review_text"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := app.contextGetUser(r)

	review := &data.Review{
		UserID:     user.ID,
		MovieID:    input.MovieID,
		Rating:     input.Rating,
		ReviewText: input.ReviewText,
	}

	v := validator.New()
	if data.ValidateReview(v, review); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Reviews.Insert(r.Context(), review)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	review.User = &data.ReviewAuthor{ID: user.ID, FirstName: user.FirstName, LastName: user.LastName, Email: user.Email}

	err = app.writeJSON(w, http.StatusCreated, envelope{"review": review}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listMovieReviewsHandler 只返回有效评论
func (app *application) listMovieReviewsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	reviews, err := app.models.Reviews.GetAllForMovie(r.Context(), id)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"reviews": reviews}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) movieReviewStatsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	stats, err := app.models.Reviews.Stats(r.Context(), id)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"stats": stats}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showMyReviewHandler 当前用户对某部电影的评论，没有时 review 为 null
func (app *application) showMyReviewHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	user := app.contextGetUser(r)

	review, err := app.models.Reviews.GetForUserAndMovie(r.Context(), user.ID, id)
	if err != nil && !errors.Is(err, data.ErrRecordNotFound) {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"review": review, "has_reviewed": review != nil}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listMyReviewsHandler(w http.ResponseWriter, r *http.Request) {
	user := app.contextGetUser(r)

	reviews, err := app.models.Reviews.GetAllForUser(r.Context(), user.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"reviews": reviews}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateReviewHandler 只有作者本人可以修改
func (app *application) updateReviewHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	user := app.contextGetUser(r)

	review, err := app.models.Reviews.GetActiveForOwner(r.Context(), id, user.ID)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	var input struct {
		Rating     *int    `json:"rating"`
		ReviewText *string `json:"review_text"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.Rating != nil {
		review.Rating = *input.Rating
	}
	if input.ReviewText != nil {
		review.ReviewText = *input.ReviewText
	}

	v := validator.New()
	if data.ValidateReview(v, review); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Reviews.Update(r.Context(), review)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"review": review}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteReviewHandler 软删除
func (app *application) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	user := app.contextGetUser(r)

	err = app.models.Reviews.SoftDelete(r.Context(), id, user.ID)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "review successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
