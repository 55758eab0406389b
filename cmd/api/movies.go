package main

import (
	"fmt"
	"net/http"

	"github.com/liliang-cn/moviematic/internal/data"
	"github.com/liliang-cn/moviematic/internal/storage"
	"github.com/liliang-cn/moviematic/internal/validator"
)

var (
	portraitField  = uploadField{name: "portrait_image", maxBytes: storage.MaxMovieImageBytes}
	landscapeField = uploadField{name: "landscape_image", maxBytes: storage.MaxMovieImageBytes}
)

type platformInput struct {
	ServiceID int64  `json:"service_id"`
	URL       string `json:"url"`
}

// movieInput 创建和修改共用，nil 字段保持原值
type movieInput struct {
	Title              *string         `json:"title"`
	Director           *string         `json:"director"`
	ReleaseYear        *int32          `json:"release_year"`
	Genres             []string        `json:"genres"`
	Rating             *float64        `json:"rating"`
	Runtime            *data.Runtime   `json:"runtime"`
	Description        *string         `json:"description"`
	Cast               []string        `json:"cast"`
	Language           *string         `json:"language"`
	Country            *string         `json:"country"`
	Budget             *int64          `json:"budget"`
	BoxOffice          *int64          `json:"box_office"`
	Awards             []string        `json:"awards"`
	IsReleased         *bool           `json:"is_released"`
	MovieOfTheWeek     *bool           `json:"movie_of_the_week"`
	TrailerURL         *string         `json:"trailer_url"`
	StreamingPlatforms []platformInput `json:"streaming_platforms"`
}

func (in movieInput) apply(movie *data.Movie) {
	if in.Title != nil {
		movie.Title = *in.Title
	}
	if in.Director != nil {
		movie.Director = *in.Director
	}
	if in.ReleaseYear != nil {
		movie.ReleaseYear = *in.ReleaseYear
	}
	if in.Genres != nil {
		movie.Genres = in.Genres
	}
	if in.Rating != nil {
		movie.Rating = *in.Rating
	}
	if in.Runtime != nil {
		movie.Runtime = *in.Runtime
	}
	if in.Description != nil {
		movie.Description = *in.Description
	}
	if in.Cast != nil {
		movie.Cast = in.Cast
	}
	if in.Language != nil {
		movie.Language = *in.Language
	}
	if in.Country != nil {
		movie.Country = *in.Country
	}
	if in.Budget != nil {
		movie.Budget = in.Budget
	}
	if in.BoxOffice != nil {
		movie.BoxOffice = in.BoxOffice
	}
	if in.Awards != nil {
		movie.Awards = in.Awards
	}
	if in.IsReleased != nil {
		movie.IsReleased = *in.IsReleased
	}
	if in.MovieOfTheWeek != nil {
		movie.MovieOfTheWeek = *in.MovieOfTheWeek
	}
	if in.TrailerURL != nil {
		movie.TrailerURL = *in.TrailerURL
	}
	if in.StreamingPlatforms != nil {
		movie.StreamingPlatforms = make([]data.StreamingPlatform, len(in.StreamingPlatforms))
		for i, p := range in.StreamingPlatforms {
			movie.StreamingPlatforms[i] = data.StreamingPlatform{ServiceID: p.ServiceID, URL: p.URL}
		}
	}
}

func (app *application) createMovieHandler(w http.ResponseWriter, r *http.Request) {
	var input movieInput

	files, err := app.readInput(w, r, &input, portraitField, landscapeField)
	if err != nil {
		if isUploadError(err) {
			app.uploadErrorResponse(w, r, "body", err)
			return
		}
		app.badRequestResponse(w, r, err)
		return
	}

	movie := &data.Movie{IsReleased: true}
	input.apply(movie)

	v := validator.New()
	if data.ValidateMovie(v, movie); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	uploads := &pendingUploads{store: app.storage}
	for _, f := range []uploadField{portraitField, landscapeField} {
		fh, ok := files[f.name]
		if !ok {
			continue
		}
		ref, err := uploads.save(r.Context(), "movies", f, fh)
		if err != nil {
			uploads.discard(r.Context())
			app.uploadErrorResponse(w, r, f.name, err)
			return
		}
		if f.name == portraitField.name {
			movie.PortraitImage = ref
		} else {
			movie.LandscapeImage = ref
		}
	}

	err = app.models.Movies.Insert(r.Context(), movie)
	if err != nil {
		uploads.discard(r.Context())
		app.dataErrorResponse(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/movies/%d", movie.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"movie": movie}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) showMovieHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	movie, err := app.models.Movies.Get(r.Context(), id)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"movie": movie}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateMovieHandler 部分更新，上传的新图片替换旧图片
func (app *application) updateMovieHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	movie, err := app.models.Movies.Get(r.Context(), id)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	var input movieInput

	files, err := app.readInput(w, r, &input, portraitField, landscapeField)
	if err != nil {
		if isUploadError(err) {
			app.uploadErrorResponse(w, r, "body", err)
			return
		}
		app.badRequestResponse(w, r, err)
		return
	}

	input.apply(movie)

	v := validator.New()
	if data.ValidateMovie(v, movie); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	var replaced []string
	uploads := &pendingUploads{store: app.storage}
	for _, f := range []uploadField{portraitField, landscapeField} {
		fh, ok := files[f.name]
		if !ok {
			continue
		}
		ref, err := uploads.save(r.Context(), "movies", f, fh)
		if err != nil {
			uploads.discard(r.Context())
			app.uploadErrorResponse(w, r, f.name, err)
			return
		}
		if f.name == portraitField.name {
			replaced = append(replaced, movie.PortraitImage)
			movie.PortraitImage = ref
		} else {
			replaced = append(replaced, movie.LandscapeImage)
			movie.LandscapeImage = ref
		}
	}

	err = app.models.Movies.Update(r.Context(), movie)
	if err != nil {
		uploads.discard(r.Context())
		app.dataErrorResponse(w, r, err)
		return
	}

	app.removeReplaced(r.Context(), replaced...)

	err = app.writeJSON(w, http.StatusOK, envelope{"movie": movie}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deleteMovieHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	movie, err := app.models.Movies.Get(r.Context(), id)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.models.Movies.Delete(r.Context(), id)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	app.removeReplaced(r.Context(), movie.PortraitImage, movie.LandscapeImage)

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "movie successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listMoviesHandler 支持 q、genre、year、min_rating、sort、page 和 page_size
func (app *application) listMoviesHandler(w http.ResponseWriter, r *http.Request) {
	var q data.MovieQuery

	v := validator.New()
	qs := r.URL.Query()

	q.Text = app.readString(qs, "q", "")
	q.Genre = app.readString(qs, "genre", "")
	q.Year = app.readInt(qs, "year", 0, v)
	q.MinRating = app.readFloat(qs, "min_rating", v)

	q.Filters.Page = app.readInt(qs, "page", 1, v)
	q.Filters.PageSize = app.readInt(qs, "page_size", 50, v)
	q.Filters.Sort = app.readString(qs, "sort", "-created_at")
	q.Filters.SortSafelist = data.MovieSortSafelist

	if data.ValidateMovieQuery(v, q); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	movies, metadata, err := app.models.Movies.GetAll(r.Context(), q)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"movies": movies, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) featuredMovieHandler(w http.ResponseWriter, r *http.Request) {
	movie, err := app.models.Movies.GetFeatured(r.Context())
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"movie": movie}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// movieOptionsHandler 首页栏目编辑器的电影下拉列表
func (app *application) movieOptionsHandler(w http.ResponseWriter, r *http.Request) {
	options, err := app.models.Movies.Options(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"movies": options}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listGenresHandler(w http.ResponseWriter, r *http.Request) {
	genres, err := app.models.Movies.GenresInUse(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"genres": genres, "known_genres": data.Genres}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
