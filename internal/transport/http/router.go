package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"loomgraph/internal/handler"
	"loomgraph/internal/httputil"
	authmw "loomgraph/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	FollowHandler       *handler.FollowHandler
	PostHandler         *handler.PostHandler
	CommentHandler      *handler.CommentHandler
	GroupHandler        *handler.GroupHandler
	FeedHandler         *handler.FeedHandler
	MediaHandler        *handler.MediaHandler
	NotificationHandler *handler.NotificationHandler
	HashtagHandler      *handler.HashtagHandler
	JWTSecret           string
}

// NewRouter creates and configures a new Chi router with all route groups.
// Anonymous reads carry the optional auth middleware so a logged-in viewer
// still gets is_following / is_liked enrichment on public pages.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	optional := authmw.OptionalAuthMiddleware(cfg.JWTSecret)
	protected := authmw.AuthMiddleware(cfg.JWTSecret)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check endpoint (useful for deployment/monitoring)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", cfg.AuthHandler.Register)
			r.Post("/login", cfg.AuthHandler.Login)
			r.Post("/refresh", cfg.AuthHandler.Refresh)
			// Takes credentials in the body: a deactivated account has no live session.
			r.Post("/me/activate", cfg.AuthHandler.Activate)

			r.With(optional).Get("/search", cfg.UserHandler.Search)
			r.With(optional).Get("/username/{username}", cfg.UserHandler.GetByUsername)
			r.With(optional).Get("/{uid}", cfg.UserHandler.GetProfile)
			r.With(optional).Get("/{uid}/followers", cfg.FollowHandler.Followers)
			r.With(optional).Get("/{uid}/following", cfg.FollowHandler.Following)

			r.Group(func(r chi.Router) {
				r.Use(protected)
				r.Post("/logout", cfg.AuthHandler.Logout)
				r.Get("/me", cfg.UserHandler.Me)
				r.Put("/me", cfg.UserHandler.UpdateMe)
				r.Post("/me/password", cfg.AuthHandler.ChangePassword)
				r.Post("/me/deactivate", cfg.AuthHandler.Deactivate)
				r.Post("/me/avatar", cfg.UserHandler.UploadAvatar)
				r.Get("/me/suggestions", cfg.UserHandler.Suggestions)
				r.Post("/{uid}/follow", cfg.FollowHandler.Follow)
				r.Delete("/{uid}/follow", cfg.FollowHandler.Unfollow)
			})
		})

		r.Route("/posts", func(r chi.Router) {
			r.With(optional).Get("/", cfg.PostHandler.Explore)
			r.With(optional).Get("/trending", cfg.PostHandler.Trending)
			r.With(optional).Get("/search", cfg.PostHandler.Search)
			r.With(optional).Get("/hashtag/{tag}", cfg.PostHandler.ByHashtag)
			r.With(optional).Get("/user/{uid}", cfg.PostHandler.ByUser)
			r.With(optional).Get("/{uid}", cfg.PostHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(protected)
				r.Post("/", cfg.PostHandler.Create)
				r.Get("/feed", cfg.FeedHandler.GetFeed)
				r.Post("/feed/refresh", cfg.FeedHandler.Refresh)
				r.Get("/liked", cfg.PostHandler.Liked)
				r.Put("/{uid}", cfg.PostHandler.Update)
				r.Delete("/{uid}", cfg.PostHandler.Delete)
				r.Post("/{uid}/like", cfg.PostHandler.Like)
				r.Delete("/{uid}/like", cfg.PostHandler.Unlike)
				r.Post("/{uid}/share", cfg.PostHandler.Share)
				r.Post("/{uid}/pin", cfg.PostHandler.Pin)
				r.Delete("/{uid}/pin", cfg.PostHandler.Unpin)
				r.Post("/{uid}/archive", cfg.PostHandler.Archive)
				r.Delete("/{uid}/archive", cfg.PostHandler.Unarchive)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.With(optional).Get("/post/{uid}", cfg.CommentHandler.ByPost)
			r.With(optional).Get("/user/{uid}", cfg.CommentHandler.ByUser)
			r.With(optional).Get("/{uid}", cfg.CommentHandler.Get)
			r.With(optional).Get("/{uid}/replies", cfg.CommentHandler.Replies)
			r.With(optional).Get("/{uid}/thread", cfg.CommentHandler.Thread)

			r.Group(func(r chi.Router) {
				r.Use(protected)
				r.Post("/", cfg.CommentHandler.Create)
				r.Put("/{uid}", cfg.CommentHandler.Update)
				r.Delete("/{uid}", cfg.CommentHandler.Delete)
				r.Post("/{uid}/like", cfg.CommentHandler.Like)
				r.Delete("/{uid}/like", cfg.CommentHandler.Unlike)
				r.Post("/{uid}/pin", cfg.CommentHandler.Pin)
				r.Delete("/{uid}/pin", cfg.CommentHandler.Unpin)
			})
		})

		r.Route("/groups", func(r chi.Router) {
			r.With(optional).Get("/", cfg.GroupHandler.Public)
			r.With(optional).Get("/search", cfg.GroupHandler.Search)
			r.With(optional).Get("/user/{uid}", cfg.GroupHandler.ByMember)
			r.With(optional).Get("/owned/{uid}", cfg.GroupHandler.OwnedBy)
			r.With(optional).Get("/{uid}", cfg.GroupHandler.Get)
			r.With(optional).Get("/{uid}/members", cfg.GroupHandler.Members)
			r.With(optional).Get("/{uid}/posts", cfg.GroupHandler.Posts)

			r.Group(func(r chi.Router) {
				r.Use(protected)
				r.Post("/", cfg.GroupHandler.Create)
				r.Put("/{uid}", cfg.GroupHandler.Update)
				r.Delete("/{uid}", cfg.GroupHandler.Delete)
				r.Post("/{uid}/join", cfg.GroupHandler.Join)
				r.Delete("/{uid}/join", cfg.GroupHandler.Leave)
				r.Post("/{uid}/approve/{userUID}", cfg.GroupHandler.Approve)
				r.Delete("/{uid}/approve/{userUID}", cfg.GroupHandler.Reject)
				r.Post("/{uid}/promote", cfg.GroupHandler.Promote)
				r.Delete("/{uid}/promote/{userUID}", cfg.GroupHandler.Demote)
				r.Delete("/{uid}/members/{userUID}", cfg.GroupHandler.RemoveMember)
				r.Post("/{uid}/ban/{userUID}", cfg.GroupHandler.Ban)
				r.Delete("/{uid}/ban/{userUID}", cfg.GroupHandler.Unban)
				r.Post("/{uid}/transfer", cfg.GroupHandler.Transfer)
				r.Get("/{uid}/pending", cfg.GroupHandler.Pending)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(protected)
			r.Get("/", cfg.NotificationHandler.List)
			r.Get("/unread-count", cfg.NotificationHandler.UnreadCount)
			r.Post("/read", cfg.NotificationHandler.MarkRead)
			r.Post("/read-all", cfg.NotificationHandler.MarkAllRead)
			r.Post("/seen", cfg.NotificationHandler.MarkAllSeen)
		})

		// Direct-to-R2 uploads
		r.Route("/media", func(r chi.Router) {
			r.Use(protected)
			r.Post("/posts/presign", cfg.MediaHandler.PresignPostUpload)
			r.Post("/posts/presign-batch", cfg.MediaHandler.PresignPostUploadBatch)
		})

		r.Route("/hashtags", func(r chi.Router) {
			r.Get("/trending", cfg.HashtagHandler.Trending)
			r.Get("/{name}", cfg.HashtagHandler.Get)
		})
	})

	return r
}
