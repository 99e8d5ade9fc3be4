package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/broly1009a/studymate-sub002/assistant"
)

const maxChatMessageRunes = 2000

// chatReplier is the part of the assistant the HTTP layer depends on.
type chatReplier interface {
	Reply(ctx context.Context, req assistant.Request) (*assistant.Reply, error)
}

type chatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId" validate:"omitempty,max=100"`
}

// chatRequestError checks a chat message before it reaches the assistant.
func chatRequestError(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return "message is required"
	}
	if len([]rune(message)) > maxChatMessageRunes {
		return "message is too long"
	}
	return ""
}

// replyStatus maps assistant errors to an HTTP status and a client-safe message.
func replyStatus(err error) (int, string) {
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		return http.StatusBadRequest, "message is required"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "AI assistant is temporarily unavailable, please try again later"
	}
}

func aiChatHandler(ai chatReplier, logger *zap.Logger) http.HandlerFunc {
	return optionalAuth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req chatRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if msg := chatRequestError(req.Message); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeFieldErrors(w, validationErrors(err))
			return
		}

		// The token wins over a client-supplied id.
		if id, ok := userIDFromContext(r.Context()); ok {
			req.UserID = strconv.Itoa(id)
		}

		reply, err := ai.Reply(r.Context(), assistant.Request{
			Message:   req.Message,
			UserID:    req.UserID,
			SessionID: req.SessionID,
		})
		if err != nil {
			status, msg := replyStatus(err)
			if status >= http.StatusInternalServerError {
				logger.Error("assistant reply failed", zap.String("user_id", req.UserID), zap.Error(err))
			}
			writeError(w, status, msg)
			return
		}
		writeData(w, http.StatusOK, reply)
	})
}
