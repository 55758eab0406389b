package main

import (
	"expvar"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liliang-cn/moviematic/internal/data"
	"github.com/liliang-cn/moviematic/internal/storage"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	admin := func(next http.HandlerFunc) http.HandlerFunc {
		return app.requirePermission(data.PermissionCatalogWrite, next)
	}

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)

	// 用户与令牌
	router.HandlerFunc(http.MethodPost, "/v1/users", app.registerUserHandler)
	router.HandlerFunc(http.MethodPost, "/v1/tokens/authentication", app.createAuthenticationTokenHandler)
	router.HandlerFunc(http.MethodPost, "/v1/tokens/refresh", app.refreshTokenHandler)
	router.HandlerFunc(http.MethodGet, "/v1/users/me", app.requireAuthenticatedUser(app.showCurrentUserHandler))
	router.HandlerFunc(http.MethodPatch, "/v1/users/me", app.requireAuthenticatedUser(app.updateCurrentUserHandler))
	router.HandlerFunc(http.MethodPut, "/v1/users/me/password", app.requireAuthenticatedUser(app.changePasswordHandler))
	router.HandlerFunc(http.MethodGet, "/v1/users/me/reviews", app.requireAuthenticatedUser(app.listMyReviewsHandler))
	router.HandlerFunc(http.MethodPatch, "/v1/admin/users/:id", app.requirePermission(data.PermissionUsersWrite, app.adminUpdateUserHandler))

	// 电影
	router.HandlerFunc(http.MethodGet, "/v1/movies", app.listMoviesHandler)
	router.HandlerFunc(http.MethodPost, "/v1/movies", admin(app.createMovieHandler))
	router.HandlerFunc(http.MethodGet, "/v1/movies/:id", app.showMovieHandler)
	router.HandlerFunc(http.MethodPatch, "/v1/movies/:id", admin(app.updateMovieHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/movies/:id", admin(app.deleteMovieHandler))
	router.HandlerFunc(http.MethodGet, "/v1/featured-movie", app.featuredMovieHandler)
	router.HandlerFunc(http.MethodGet, "/v1/movie-options", admin(app.movieOptionsHandler))
	router.HandlerFunc(http.MethodGet, "/v1/genres", app.listGenresHandler)

	// 评论
	router.HandlerFunc(http.MethodGet, "/v1/movies/:id/reviews", app.listMovieReviewsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/movies/:id/reviews/stats", app.movieReviewStatsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/movies/:id/my-review", app.requireAuthenticatedUser(app.showMyReviewHandler))
	router.HandlerFunc(http.MethodPost, "/v1/reviews", app.requireAuthenticatedUser(app.createReviewHandler))
	router.HandlerFunc(http.MethodPatch, "/v1/reviews/:id", app.requireAuthenticatedUser(app.updateReviewHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/reviews/:id", app.requireAuthenticatedUser(app.deleteReviewHandler))

	// 片单
	router.HandlerFunc(http.MethodGet, "/v1/watchlist", app.requireAuthenticatedUser(app.listWatchlistHandler))
	router.HandlerFunc(http.MethodPost, "/v1/watchlist", app.requireAuthenticatedUser(app.addToWatchlistHandler))
	router.HandlerFunc(http.MethodGet, "/v1/watchlist/stats", app.requireAuthenticatedUser(app.watchlistStatsHandler))
	router.HandlerFunc(http.MethodGet, "/v1/watchlist/movies/:id", app.requireAuthenticatedUser(app.checkWatchlistHandler))
	router.HandlerFunc(http.MethodPatch, "/v1/watchlist/movies/:id", app.requireAuthenticatedUser(app.updateWatchlistHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/watchlist/movies/:id", app.requireAuthenticatedUser(app.removeFromWatchlistHandler))

	// 流媒体服务
	router.HandlerFunc(http.MethodGet, "/v1/streaming-services", app.listServicesHandler)
	router.HandlerFunc(http.MethodPost, "/v1/streaming-services", admin(app.createServiceHandler))
	router.HandlerFunc(http.MethodGet, "/v1/streaming-services/:id", app.showServiceHandler)
	router.HandlerFunc(http.MethodPatch, "/v1/streaming-services/:id", admin(app.updateServiceHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/streaming-services/:id", admin(app.deleteServiceHandler))
	router.HandlerFunc(http.MethodGet, "/v1/admin/streaming-services", admin(app.listAllServicesHandler))

	// 首页栏目
	router.HandlerFunc(http.MethodGet, "/v1/homepage-sections", app.listSectionsHandler)
	router.HandlerFunc(http.MethodPost, "/v1/homepage-sections", admin(app.createSectionHandler))
	router.HandlerFunc(http.MethodPut, "/v1/homepage-sections/:id", admin(app.updateSectionHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/homepage-sections/:id", admin(app.deleteSectionHandler))
	router.HandlerFunc(http.MethodGet, "/v1/admin/homepage-sections", admin(app.listAllSectionsHandler))

	// 本地磁盘存储时由 API 直接提供上传的文件
	if disk, ok := app.storage.(*storage.Disk); ok {
		router.ServeFiles(disk.URLPrefix+"/*filepath", http.Dir(disk.Root))
	}

	router.Handler(http.MethodGet, "/debug/vars", expvar.Handler())
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	return app.metrics(app.recoverPanic(app.requestID(app.enableCORS(app.rateLimiter(app.authenticate(router))))))
}
