package web

import (
	"context"
	"net/http"
	"time"

	"github.com/Joseda-hg/todoserver/internal/auth"
	"github.com/Joseda-hg/todoserver/internal/db"
	"github.com/Joseda-hg/todoserver/internal/notify"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

const defaultStoreTimeout = 5 * time.Second

type Options struct {
	MailFrom     notify.Address
	AuthRequired bool
	CORSOrigins  []string
	StoreTimeout time.Duration
}

// Server binds the store, token signer and mailer to the REST routes.
type Server struct {
	store  db.Store
	tokens *auth.Signer
	mailer notify.Mailer
	logger *log.Logger
	opts   Options
	router *gin.Engine
}

func NewServer(store db.Store, tokens *auth.Signer, mailer notify.Mailer, logger *log.Logger, opts Options) *Server {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		store:  store,
		tokens: tokens,
		mailer: mailer,
		logger: logger,
		opts:   opts,
		router: gin.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	r.POST("/register", s.register)
	r.POST("/login", s.login)
	r.POST("/forgot-password", s.forgotPassword)

	owned := r.Group("")
	byTask := r.Group("")
	if s.opts.AuthRequired {
		owned.Use(s.requireToken())
		byTask.Use(s.requireToken(), s.requireTaskOwner())
	}
	owned.POST("/todos/:userId", s.createTask)
	owned.DELETE("/todos/delete-all/:userId", s.deleteAllTasks)
	owned.GET("/users/:userId/todos", s.listTasks)
	owned.GET("/users/:userId/todos/completed/:date", s.completedTasks)
	owned.GET("/users/:userId/todos/count", s.countTasks)

	byTask.GET("/todos/:todoId", s.getTask)
	byTask.PATCH("/todos/:todoId/complete", s.completeTask)
	byTask.DELETE("/todos/:todoId", s.deleteTask)
}

// Handler returns the router wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(s.router)
}

func (s *Server) storeContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.opts.StoreTimeout)
}

// internalError logs err with the failing operation and answers 500 with a
// generic body.
func (s *Server) internalError(c *gin.Context, op string, err error, body gin.H) {
	s.logger.Error(op, "err", err, "method", c.Request.Method, "path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, body)
}
