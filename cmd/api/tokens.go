package main

import (
	"errors"
	"net/http"

	"github.com/liliang-cn/moviematic/internal/auth"
	"github.com/liliang-cn/moviematic/internal/data"
	"github.com/liliang-cn/moviematic/internal/validator"
)

// createAuthenticationTokenHandler 邮箱密码登录，返回访问令牌和刷新令牌
func (app *application) createAuthenticationTokenHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	data.ValidateEmail(v, input.Email)
	data.ValidatePasswordPlaintext(v, input.Password)
	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	user, err := app.models.Users.GetByEmail(r.Context(), input.Email)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.invalidCredentialsResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	match, err := user.Password.Matches(input.Password)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if !match {
		app.invalidCredentialsResponse(w, r)
		return
	}

	// 密码正确但账号已被停用
	if !user.IsActive {
		app.inactiveAccountResponse(w, r)
		return
	}

	tokens, err := app.tokens.Issue(user.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"user": user, "tokens": tokens}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) refreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	userID, err := app.tokens.VerifyRefresh(input.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingToken):
			app.authenticationRequiredResponse(w, r)
		case errors.Is(err, auth.ErrExpiredToken):
			app.invalidAuthenticationTokenResponse(w, r, codeTokenExpired, "refresh token has expired")
		default:
			app.invalidAuthenticationTokenResponse(w, r, codeInvalidToken, "invalid refresh token")
		}
		return
	}

	user, err := app.models.Users.Get(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.invalidAuthenticationTokenResponse(w, r, codeInvalidToken, "invalid refresh token")
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	if !user.IsActive {
		app.inactiveAccountResponse(w, r)
		return
	}

	tokens, err := app.tokens.Issue(user.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"tokens": tokens}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
