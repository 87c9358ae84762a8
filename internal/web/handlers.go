package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/Joseda-hg/todoserver/internal/auth"
	"github.com/Joseda-hg/todoserver/internal/db"
	"github.com/Joseda-hg/todoserver/internal/model"
	"github.com/Joseda-hg/todoserver/internal/notify"
	"github.com/gin-gonic/gin"
)

const (
	msgUserNotFound = "El usuario no se ha encontrado."
	msgSomethingBad = "Algo ha ido mal"
	msgBadRequest   = "Solicitud no válida."
)

type registerRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type createTaskRequest struct {
	Title    string `json:"title" form:"title"`
	Category string `json:"category" form:"category"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" form:"email"`
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.storeContext(c)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("store ping failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgBadRequest})
		return
	}

	ctx, cancel := s.storeContext(c)
	defer cancel()

	_, err := s.store.FindUserByEmail(ctx, req.Email)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"message": "Este email ya existe"})
		return
	}
	if !errors.Is(err, db.ErrNotFound) {
		s.internalError(c, "lookup user", err, gin.H{"message": "Registro fallido"})
		return
	}

	// An empty password is left empty so the store rejects it as missing.
	var hash string
	if req.Password != "" {
		if hash, err = auth.HashPassword(req.Password); err != nil {
			s.internalError(c, "hash password", err, gin.H{"message": "Registro fallido"})
			return
		}
	}

	_, err = s.store.CreateUser(ctx, db.UserInput{Name: req.Name, Email: req.Email, PasswordHash: hash})
	if errors.Is(err, db.ErrDuplicateEmail) {
		c.JSON(http.StatusConflict, gin.H{"message": "Este email ya existe"})
		return
	}
	if err != nil {
		s.internalError(c, "register user", err, gin.H{"message": "Registro fallido"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Usuario registrado"})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgBadRequest})
		return
	}

	ctx, cancel := s.storeContext(c)
	defer cancel()

	user, err := s.store.FindUserByEmail(ctx, req.Email)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "El correo es incorrecto."})
		return
	}
	if err != nil {
		s.internalError(c, "login lookup", err, gin.H{"message": "Inicio de sesión fallido."})
		return
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "La contraseña es incorrecta."})
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.internalError(c, "issue token", err, gin.H{"message": "Inicio de sesión fallido."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgBadRequest})
		return
	}

	ctx, cancel := s.storeContext(c)
	defer cancel()

	task, err := s.store.CreateTask(ctx, c.Param("userId"), db.TaskInput{Title: req.Title, Category: req.Category})
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgUserNotFound})
		return
	}
	if err != nil {
		s.internalError(c, "create task", err, gin.H{"message": "No se ha añadido una tarea."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "La tarea se ha añadido.", "todo": task})
}

func (s *Server) getTask(c *gin.Context) {
	ctx, cancel := s.storeContext(c)
	defer cancel()

	task, err := s.store.GetTask(ctx, c.Param("todoId"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No se ha encontrado la tarea"})
		return
	}
	if err != nil {
		s.internalError(c, "get task", err, gin.H{"message": msgSomethingBad})
		return
	}

	c.JSON(http.StatusOK, gin.H{"todo": task})
}

func (s *Server) listTasks(c *gin.Context) {
	ctx, cancel := s.storeContext(c)
	defer cancel()

	tasks, err := s.store.ListUserTasks(ctx, c.Param("userId"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgUserNotFound})
		return
	}
	if err != nil {
		s.internalError(c, "list tasks", err, gin.H{"message": msgSomethingBad})
		return
	}

	c.JSON(http.StatusOK, gin.H{"todos": tasks})
}

func (s *Server) completeTask(c *gin.Context) {
	ctx, cancel := s.storeContext(c)
	defer cancel()

	task, err := s.store.CompleteTask(ctx, c.Param("todoId"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No se ha encontrado la tarea"})
		return
	}
	if err != nil {
		s.internalError(c, "complete task", err, gin.H{"message": msgSomethingBad})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tarea marcada como completada", "todo": task})
}

// completedTasks matches on creation day, not on the day the task was
// completed.
func (s *Server) completedTasks(c *gin.Context) {
	day, err := time.Parse(model.DateLayout, c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fecha no válida"})
		return
	}

	ctx, cancel := s.storeContext(c)
	defer cancel()

	tasks, err := s.store.ListCompletedTasks(ctx, c.Param("userId"), day)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgUserNotFound})
		return
	}
	if err != nil {
		s.internalError(c, "list completed tasks", err, gin.H{"error": msgSomethingBad})
		return
	}

	c.JSON(http.StatusOK, gin.H{"completedTodos": tasks})
}

func (s *Server) countTasks(c *gin.Context) {
	ctx, cancel := s.storeContext(c)
	defer cancel()

	counts, err := s.store.CountTasks(ctx, c.Param("userId"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgUserNotFound})
		return
	}
	if err != nil {
		s.internalError(c, "count tasks", err, gin.H{"error": "Error en la conexión."})
		return
	}

	c.JSON(http.StatusOK, counts)
}

func (s *Server) deleteTask(c *gin.Context) {
	ctx, cancel := s.storeContext(c)
	defer cancel()

	err := s.store.DeleteTask(ctx, c.Param("todoId"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "La tarea no se ha encontrado."})
		return
	}
	if err != nil {
		s.internalError(c, "delete task", err, gin.H{"error": "Error al eliminar la tarea."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tarea eliminada correctamente."})
}

func (s *Server) deleteAllTasks(c *gin.Context) {
	ctx, cancel := s.storeContext(c)
	defer cancel()

	deleted, err := s.store.DeleteAllTasks(ctx, c.Param("userId"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgUserNotFound})
		return
	}
	if err != nil {
		s.internalError(c, "delete all tasks", err, gin.H{"title": "Error al borrar", "message": "Error al eliminar todas las tareas."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Todas las tareas han sido eliminadas.", "deletedCount": deleted})
}

func (s *Server) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgBadRequest})
		return
	}

	ctx, cancel := s.storeContext(c)
	defer cancel()

	user, err := s.store.FindUserByEmail(ctx, req.Email)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"title": "Error de datos", "message": "El correo electrónico no está registrado."})
		return
	}
	if err != nil {
		s.internalError(c, "forgot password lookup", err, gin.H{"title": "Error de envío", "message": "Hubo un error al enviar el correo electrónico de recuperación de contraseña."})
		return
	}

	if err := s.mailer.Send(ctx, notify.PasswordRecovery(s.opts.MailFrom, user.Email)); err != nil {
		s.internalError(c, "send recovery mail", err, gin.H{"title": "Error de envío", "message": "Hubo un error al enviar el correo electrónico de recuperación de contraseña."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"title": "Recuperación de contraseña", "message": "Se ha enviado un correo electrónico de recuperación de contraseña."})
}
