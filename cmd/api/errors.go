package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/liliang-cn/moviematic/internal/data"
	"github.com/liliang-cn/moviematic/internal/storage"
)

// 返回给客户端的稳定错误码
const (
	codeValidationFailed       = "VALIDATION_FAILED"
	codeBadRequest             = "BAD_REQUEST"
	codeDuplicateReview        = "DUPLICATE_REVIEW"
	codeAlreadyInWatchlist     = "ALREADY_IN_WATCHLIST"
	codeDuplicateServiceName   = "DUPLICATE_SERVICE_NAME"
	codeDuplicateEmail         = "DUPLICATE_EMAIL"
	codeEditConflict           = "EDIT_CONFLICT"
	codeNotFound               = "NOT_FOUND"
	codeMethodNotAllowed       = "METHOD_NOT_ALLOWED"
	codeNoToken                = "NO_TOKEN"
	codeInvalidToken           = "INVALID_TOKEN"
	codeTokenExpired           = "TOKEN_EXPIRED"
	codeAccountDeactivated     = "ACCOUNT_DEACTIVATED"
	codeInsufficientPrivileges = "INSUFFICIENT_PRIVILEGES"
	codeInvalidCredentials     = "INVALID_CREDENTIALS"
	codeInvalidReference       = "INVALID_REFERENCE"
	codeFileTooLarge           = "FILE_TOO_LARGE"
	codeUnsupportedMediaType   = "UNSUPPORTED_MEDIA_TYPE"
	codeRateLimited            = "RATE_LIMITED"
	codeServerError            = "SERVER_ERROR"
)

func (app *application) logError(r *http.Request, err error) {
	app.logger.PrintError(err, map[string]string{
		"request_method": r.Method,
		"request_url":    r.URL.String(),
		"request_id":     app.contextGetRequestID(r),
	})
}

// errorResponse 所有错误响应都是 {"error": ..., "code": ...}
func (app *application) errorResponse(w http.ResponseWriter, r *http.Request, status int, code string, message any) {
	env := envelope{"error": message, "code": code}

	err := app.writeJSON(w, status, env, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (app *application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)

	message := "the server encountered a problem and could not process your request"
	app.errorResponse(w, r, http.StatusInternalServerError, codeServerError, message)
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "the requested resource could not be found"
	app.errorResponse(w, r, http.StatusNotFound, codeNotFound, message)
}

func (app *application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("the %s method is not supported for this resource", r.Method)
	app.errorResponse(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, message)
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
}

func (app *application) failedValidationResponse(w http.ResponseWriter, r *http.Request, errors map[string]string) {
	app.errorResponse(w, r, http.StatusUnprocessableEntity, codeValidationFailed, errors)
}

func (app *application) editConflictResponse(w http.ResponseWriter, r *http.Request) {
	message := "unable to update the record due to an edit conflict, please try again"
	app.errorResponse(w, r, http.StatusConflict, codeEditConflict, message)
}

func (app *application) conflictResponse(w http.ResponseWriter, r *http.Request, code string, err error) {
	app.errorResponse(w, r, http.StatusConflict, code, err.Error())
}

func (app *application) invalidReferenceResponse(w http.ResponseWriter, r *http.Request, refErr *data.InvalidReferenceError) {
	env := envelope{
		"error": refErr.Error(),
		"code":  codeInvalidReference,
		"details": map[string]any{
			"kind":      refErr.Kind,
			"missing":   refErr.Missing,
			"requested": refErr.Requested,
			"resolved":  refErr.Resolved,
		},
	}

	if err := app.writeJSON(w, http.StatusUnprocessableEntity, env, nil); err != nil {
		app.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request) {
	message := "rate limit exceeded"
	app.errorResponse(w, r, http.StatusTooManyRequests, codeRateLimited, message)
}

func (app *application) invalidCredentialsResponse(w http.ResponseWriter, r *http.Request) {
	message := "invalid authentication credentials"
	app.errorResponse(w, r, http.StatusUnauthorized, codeInvalidCredentials, message)
}

// invalidAuthenticationTokenResponse 401 时附带 WWW-Authenticate 头
func (app *application) invalidAuthenticationTokenResponse(w http.ResponseWriter, r *http.Request, code, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	app.errorResponse(w, r, http.StatusUnauthorized, code, message)
}

func (app *application) authenticationRequiredResponse(w http.ResponseWriter, r *http.Request) {
	message := "you must be authenticated to access this resource"
	app.invalidAuthenticationTokenResponse(w, r, codeNoToken, message)
}

func (app *application) inactiveAccountResponse(w http.ResponseWriter, r *http.Request) {
	message := "your user account has been deactivated"
	app.errorResponse(w, r, http.StatusForbidden, codeAccountDeactivated, message)
}

func (app *application) notPermittedResponse(w http.ResponseWriter, r *http.Request) {
	message := "your user account doesn't have the necessary permissions to access this resource"
	app.errorResponse(w, r, http.StatusForbidden, codeInsufficientPrivileges, message)
}

// dataErrorResponse 把 data 层的错误映射为对应的响应，其余错误按 500 处理
func (app *application) dataErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var refErr *data.InvalidReferenceError

	switch {
	case errors.Is(err, data.ErrRecordNotFound):
		app.notFoundResponse(w, r)
	case errors.Is(err, data.ErrEditConflict):
		app.editConflictResponse(w, r)
	case errors.Is(err, data.ErrDuplicateReview):
		app.conflictResponse(w, r, codeDuplicateReview, err)
	case errors.Is(err, data.ErrAlreadyInWatchlist):
		app.conflictResponse(w, r, codeAlreadyInWatchlist, err)
	case errors.Is(err, data.ErrDuplicateServiceName):
		app.conflictResponse(w, r, codeDuplicateServiceName, err)
	case errors.Is(err, data.ErrDuplicateEmail):
		app.errorResponse(w, r, http.StatusConflict, codeDuplicateEmail, "a user with this email address already exists")
	case errors.As(err, &refErr):
		app.invalidReferenceResponse(w, r, refErr)
	default:
		app.serverErrorResponse(w, r, err)
	}
}

// uploadErrorResponse 上传文件校验失败返回 413 或 415
func (app *application) uploadErrorResponse(w http.ResponseWriter, r *http.Request, field string, err error) {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		app.errorResponse(w, r, http.StatusRequestEntityTooLarge, codeFileTooLarge, map[string]string{field: err.Error()})
	case errors.Is(err, storage.ErrUnsupportedType):
		app.errorResponse(w, r, http.StatusUnsupportedMediaType, codeUnsupportedMediaType, map[string]string{field: err.Error()})
	default:
		app.serverErrorResponse(w, r, err)
	}
}
