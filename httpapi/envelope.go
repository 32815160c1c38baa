package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrEthical07/authstate/session"
)

// Response is the envelope every API endpoint answers with. Code mirrors the
// HTTP status.
type Response[T any] struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	Data      Data[T]   `json:"data"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Data carries the payload and its pagination.
type Data[T any] struct {
	List       T          `json:"list"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the list in Data. Single-object answers report one
// page holding one item; failures report zero items.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// LoginRequest is the login body. ExpiresIn accepts seconds, day counts
// ("7d") or Go durations.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	ExpiresIn  string `json:"expiresIn,omitempty"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// LoginView is the login answer: the public profile plus the token.
type LoginView struct {
	session.User
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

// UserView is the validate and profile answer.
type UserView struct {
	session.User
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

var (
	onePage   = Pagination{Page: 1, PageSize: 1, Total: 1, TotalPages: 1}
	emptyPage = Pagination{Page: 1}
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write; the client may be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeOK[T any](w http.ResponseWriter, message string, list T, page Pagination) {
	writeJSON(w, http.StatusOK, Response[T]{
		Code:      http.StatusOK,
		Message:   message,
		Data:      Data[T]{List: list, Pagination: page},
		Success:   true,
		Timestamp: time.Now().UTC(),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response[any]{
		Code:      status,
		Message:   message,
		Data:      Data[any]{Pagination: emptyPage},
		Timestamp: time.Now().UTC(),
	})
}
