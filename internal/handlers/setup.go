package handlers

import (
	"editorchat-backend/internal/attachments"
	"editorchat-backend/internal/commands"
	"editorchat-backend/internal/identity"
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/poll"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var sugar *zap.SugaredLogger
var processor *commands.Processor
var reader *poll.Service
var users *identity.Provider
var files *attachments.Store
var validate = validator.New(validator.WithRequiredStructEnabled())

type Dependencies struct {
	Sugar       *zap.SugaredLogger
	Processor   *commands.Processor
	Reader      *poll.Service
	Users       *identity.Provider
	Attachments *attachments.Store
}

func Setup(deps Dependencies) {
	sugar = deps.Sugar
	processor = deps.Processor
	reader = deps.Reader
	users = deps.Users
	files = deps.Attachments
}

func Router(cfg *models.ConfigFile) http.Handler {
	r := chi.NewRouter()
	if cfg.Cors {
		r.Use(AllowCors)
	}
	if cfg.PrintHttpRequests {
		r.Use(middleware.Logger)
	}

	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(r chi.Router) {
			r.Post("/login", Login)
			r.Post("/logout", Logout)
			r.With(UserVerifier).Get("/isLoggedIn", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		})

		api.Route("/user", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Get("/fetch", GetUserInfo)
		})

		api.Route("/members", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Get("/fetch", GetMemberList)
			r.Get("/complete", CompleteMention)
		})

		api.Route("/channel", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Get("/fetch", GetChannelList)
			r.Post("/create", CreateChannel)
			r.Post("/update", UpdateChannel)
		})

		api.Route("/conversation", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Get("/fetch", GetConversationList)
			r.Post("/open", OpenDirect)
			r.Post("/read", MarkRead)
		})

		api.Route("/message", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Post("/poll", PollMessages)
			r.Get("/history", GetHistory)
			r.Get("/thread", GetThread)
			r.Get("/pinned", GetPinned)
			r.Get("/bookmarks", GetBookmarks)
			r.Post("/create", CreateMessage)
			r.Post("/edit", EditMessage)
			r.Post("/delete", DeleteMessage)
			r.Post("/react", ToggleReaction)
			r.Post("/pin", TogglePin)
			r.Post("/bookmark", ToggleBookmark)
		})

		api.Route("/attachment", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Post("/upload", UploadAttachment)
		})
	})

	if !cfg.BehindNginx {
		r.Handle(attachments.URLPrefix+"*", http.StripPrefix(attachments.URLPrefix, http.FileServer(http.Dir(files.Dir()))))
		r.Handle("/*", http.FileServer(http.Dir("./public/static")))
	}

	return r
}

func Listen(isHttps bool, cfg *models.ConfigFile, handler http.Handler) error {
	address := fmt.Sprintf("%s:%s", cfg.Address, cfg.Port)

	if isHttps {
		return http.ListenAndServeTLS(address, cfg.TlsCert, cfg.TlsKey, handler)
	}
	return http.ListenAndServe(address, handler)
}
