package web

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Joseda-hg/todoserver/internal/db"
	"github.com/gin-gonic/gin"
)

const userIDKey = "userId"

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// requireToken checks the bearer token and, on routes scoped to a user,
// that the token belongs to that user.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token requerido."})
			return
		}

		userID, err := s.tokens.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token no válido."})
			return
		}

		if owner := c.Param("userId"); owner != "" && owner != userID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Acceso denegado."})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// requireTaskOwner runs after requireToken on routes addressed by :todoId and
// only lets the request through when the task is on the caller's list.
func (s *Server) requireTaskOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(userIDKey)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token requerido."})
			return
		}

		ctx, cancel := s.storeContext(c)
		defer cancel()

		user, err := s.store.GetUser(ctx, userID)
		if errors.Is(err, db.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Acceso denegado."})
			return
		}
		if err != nil {
			s.internalError(c, "check task owner", err, gin.H{"message": msgSomethingBad})
			c.Abort()
			return
		}

		if !slices.Contains(user.Todos, c.Param("todoId")) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Acceso denegado."})
			return
		}
		c.Next()
	}
}
