package server

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/growcoach/coachd/internal/coach"
	"github.com/growcoach/coachd/internal/httputil"
	"github.com/growcoach/coachd/internal/logging"
	"github.com/growcoach/coachd/internal/middleware"
	"github.com/growcoach/coachd/internal/store"
)

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *store.User `json:"user"`
}

// handleLogin authenticates by email and password, creating the account on
// first login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.Parse(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		hash, herr := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if herr != nil {
			httputil.InternalError(w, "")
			return
		}
		user, err = s.store.CreateUser(r.Context(), req.Email, string(hash), req.FirstName, req.LastName)
		if err != nil {
			logging.Errorf("[Server] Failed to create user: %v", err)
			httputil.InternalError(w, "")
			return
		}
		logging.Infof("[Server] Created user %s", user.Email)
	case err != nil:
		httputil.InternalError(w, "")
		return
	default:
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			httputil.Unauthorized(w, "invalid credentials")
			return
		}
	}

	token, err := middleware.CreateToken(user.ID, user.Email, s.cfg.JWTSecret, time.Duration(s.cfg.TokenTTL)*time.Second)
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	httputil.OkJSON(w, loginResponse{Token: token, User: user})
}

type chatRequest struct {
	ChatID  string `json:"chat_id,omitempty"`
	Message string `json:"message"`
}

// handleChat runs one coaching turn. The reply is returned as soon as the
// model answers; persistence happens in the background.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := httputil.Parse(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	userID := middleware.GetUserID(r.Context())

	result, err := s.coach.ProcessTurn(r.Context(), req.ChatID, userID, req.Message)
	switch {
	case errors.Is(err, coach.ErrUserNotFound):
		httputil.NotFound(w, "user not found")
	case errors.Is(err, coach.ErrNoTemplate), errors.Is(err, coach.ErrMissingVariable):
		logging.Errorf("[Server] Chat misconfigured: %v", err)
		httputil.InternalError(w, "coaching prompts are not configured")
	case err != nil:
		// Nothing was recorded; the client can resend the same message.
		logging.Errorf("[Server] Chat turn failed: %v", err)
		httputil.ErrorWithCode(w, http.StatusBadGateway, "model call failed, please retry")
	default:
		httputil.OkJSON(w, result)
	}
}

type listChatsRequest struct {
	All bool `form:"all"`
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	var req listChatsRequest
	if err := httputil.Parse(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	chats, err := s.store.ListConversations(r.Context(), middleware.GetUserID(r.Context()), !req.All)
	if err != nil {
		logging.Errorf("[Server] Failed to list chats: %v", err)
		httputil.InternalError(w, "")
		return
	}
	if chats == nil {
		chats = []store.Conversation{}
	}
	httputil.OkJSON(w, map[string]any{"chats": chats})
}

type chatIDRequest struct {
	ChatID string `path:"chat_id"`
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	var req chatIDRequest
	if err := httputil.Parse(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	conv, err := s.store.GetConversation(r.Context(), req.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, "chat not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	if conv.UserID != middleware.GetUserID(r.Context()) {
		httputil.NotFound(w, "chat not found")
		return
	}
	httputil.OkJSON(w, conv)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	var req chatIDRequest
	if err := httputil.Parse(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	conv, err := s.store.GetConversation(r.Context(), req.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, "chat not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	if conv.UserID != middleware.GetUserID(r.Context()) {
		httputil.NotFound(w, "chat not found")
		return
	}
	err = s.store.DeactivateConversation(r.Context(), req.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, "chat not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	httputil.OkJSON(w, map[string]string{"status": "deactivated"})
}
