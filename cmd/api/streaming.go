package main

import (
	"fmt"
	"net/http"

	"github.com/liliang-cn/moviematic/internal/data"
	"github.com/liliang-cn/moviematic/internal/storage"
	"github.com/liliang-cn/moviematic/internal/validator"
)

var iconField = uploadField{name: "icon", maxBytes: storage.MaxServiceIconBytes}

type serviceInput struct {
	Name     *string `json:"name"`
	BaseURL  *string `json:"base_url"`
	IsActive *bool   `json:"is_active"`
}

func (in serviceInput) apply(s *data.StreamingService) {
	if in.Name != nil {
		s.Name = *in.Name
	}
	if in.BaseURL != nil {
		s.BaseURL = *in.BaseURL
	}
	if in.IsActive != nil {
		s.IsActive = *in.IsActive
	}
}

func (app *application) createServiceHandler(w http.ResponseWriter, r *http.Request) {
	var input serviceInput

	files, err := app.readInput(w, r, &input, iconField)
	if err != nil {
		if isUploadError(err) {
			app.uploadErrorResponse(w, r, "body", err)
			return
		}
		app.badRequestResponse(w, r, err)
		return
	}

	service := &data.StreamingService{IsActive: true}
	input.apply(service)

	v := validator.New()
	if data.ValidateService(v, service); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	uploads := &pendingUploads{store: app.storage}
	if fh, ok := files[iconField.name]; ok {
		service.Icon, err = uploads.save(r.Context(), "services", iconField, fh)
		if err != nil {
			app.uploadErrorResponse(w, r, iconField.name, err)
			return
		}
	}

	err = app.models.Services.Insert(r.Context(), service)
	if err != nil {
		uploads.discard(r.Context())
		app.dataErrorResponse(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/streaming-services/%d", service.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"streaming_service": service}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) showServiceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	service, err := app.models.Services.Get(r.Context(), id)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"streaming_service": service}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listServicesHandler 公开接口只返回启用的服务
func (app *application) listServicesHandler(w http.ResponseWriter, r *http.Request) {
	app.writeServices(w, r, true)
}

func (app *application) listAllServicesHandler(w http.ResponseWriter, r *http.Request) {
	app.writeServices(w, r, false)
}

func (app *application) writeServices(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	services, err := app.models.Services.GetAll(r.Context(), activeOnly)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"streaming_services": services}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) updateServiceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	service, err := app.models.Services.Get(r.Context(), id)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	var input serviceInput

	files, err := app.readInput(w, r, &input, iconField)
	if err != nil {
		if isUploadError(err) {
			app.uploadErrorResponse(w, r, "body", err)
			return
		}
		app.badRequestResponse(w, r, err)
		return
	}

	input.apply(service)

	v := validator.New()
	if data.ValidateService(v, service); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	var replaced string
	uploads := &pendingUploads{store: app.storage}
	if fh, ok := files[iconField.name]; ok {
		ref, err := uploads.save(r.Context(), "services", iconField, fh)
		if err != nil {
			app.uploadErrorResponse(w, r, iconField.name, err)
			return
		}
		replaced, service.Icon = service.Icon, ref
	}

	err = app.models.Services.Update(r.Context(), service)
	if err != nil {
		uploads.discard(r.Context())
		app.dataErrorResponse(w, r, err)
		return
	}

	app.removeReplaced(r.Context(), replaced)

	err = app.writeJSON(w, http.StatusOK, envelope{"streaming_service": service}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deleteServiceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	service, err := app.models.Services.Get(r.Context(), id)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.models.Services.Delete(r.Context(), id)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	app.removeReplaced(r.Context(), service.Icon)

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "streaming service successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
