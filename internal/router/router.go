package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"procurement/internal/controller"
)

func NewRouter(c *controller.Controller, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", c.Ping)

		r.Route("/tenders", func(r chi.Router) {
			r.Get("/", c.GetTenders)
			r.Post("/new", c.NewTender)
			r.Get("/my", c.MyTenders)
			r.Get("/{tenderId}/status", c.TenderStatus)
			r.Put("/{tenderId}/status", c.SetTenderStatus)
			r.Patch("/{tenderId}/edit", c.EditTender)
			r.Put("/{tenderId}/rollback/{version}", c.RollbackTender)
		})

		r.Route("/bids", func(r chi.Router) {
			r.Post("/new", c.NewBid)
			r.Get("/my", c.MyBids)
			r.Get("/{tenderId}/list", c.TenderBids)
			r.Get("/{bidId}/status", c.BidStatus)
			r.Put("/{bidId}/status", c.SetBidStatus)
			r.Patch("/{bidId}/edit", c.EditBid)
			r.Put("/{bidId}/submit_decision", c.SubmitDecision)
			r.Put("/{bidId}/feedback", c.BidFeedback)
			r.Put("/{bidId}/rollback/{version}", c.RollbackBid)
			r.Get("/{tenderId}/reviews", c.BidReviews)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("page not found"))
	})

	return r
}

func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
