package main

import (
	"fmt"
	"net/http"

	"github.com/liliang-cn/moviematic/internal/data"
	"github.com/liliang-cn/moviematic/internal/validator"
)

type sectionInput struct {
	Title    string  `json:"title"`
	MovieIDs []int64 `json:"movie_ids"`
	Order    int     `json:"order"`
	IsActive *bool   `json:"is_active"`
}

func (in sectionInput) section() *data.HomepageSection {
	s := &data.HomepageSection{
		Title:    in.Title,
		MovieIDs: in.MovieIDs,
		Order:    in.Order,
		IsActive: true,
	}
	if in.IsActive != nil {
		s.IsActive = *in.IsActive
	}
	return s
}

func (app *application) createSectionHandler(w http.ResponseWriter, r *http.Request) {
	var input sectionInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	section := input.section()

	v := validator.New()
	if data.ValidateSection(v, section); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Sections.Insert(r.Context(), section)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/homepage-sections/%d", section.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"section": section}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateSectionHandler 整体替换
func (app *application) updateSectionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	var input sectionInput

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	section := input.section()
	section.ID = id

	v := validator.New()
	if data.ValidateSection(v, section); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Sections.Update(r.Context(), section)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"section": section}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deleteSectionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	err = app.models.Sections.Delete(r.Context(), id)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "section successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listSectionsHandler 首页使用，只返回启用的栏目并按顺序填充电影
func (app *application) listSectionsHandler(w http.ResponseWriter, r *http.Request) {
	app.writeSections(w, r, true)
}

func (app *application) listAllSectionsHandler(w http.ResponseWriter, r *http.Request) {
	app.writeSections(w, r, false)
}

func (app *application) writeSections(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	sections, err := app.models.Sections.GetAll(r.Context(), activeOnly)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.models.Sections.Populate(r.Context(), app.models.Movies, sections)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"sections": sections}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
