package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sealedvoice/client-go/internal/api"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, api.Response{Status: api.StatusError, Message: message})
}

// bindJSON decodes and validates the request body, writing the error
// response itself when it fails.
func (s *Server) bindJSON(c *gin.Context, dst interface{ Validate() error }) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if isBodyTooLarge(err) {
			respondError(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", s.cfg.MaxPacketBytes))
			return false
		}
		s.logger.Debug("bad request", slog.Any("error", err))
		respondError(c, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	if err := dst.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) registerHandler(c *gin.Context) {
	var req registerRequest
	if !s.bindJSON(c, &req) {
		return
	}

	s.store.Register(req.Username, api.UserKeys{
		RSAPublicKey:  req.RSAPublicKey,
		SignPublicKey: req.SignPublicKey,
	})
	s.metrics.registered()
	s.logger.Info("user registered", slog.String("username", req.Username))

	c.JSON(http.StatusOK, api.Response{
		Status:  api.StatusSuccess,
		Message: fmt.Sprintf("User %s registered", req.Username),
	})
}

func (s *Server) sendHandler(c *gin.Context) {
	var req sendRequest
	if !s.bindJSON(c, &req) {
		return
	}

	msg, err := s.store.Send(req.Recipient, req.Sender, req.Packet)
	if errors.Is(err, ErrUserNotFound) {
		respondError(c, http.StatusNotFound, "Recipient or sender does not exist")
		return
	}
	if err != nil {
		s.logger.Error("failed to store message", slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Internal error")
		return
	}

	s.metrics.stored(len(req.Packet.Cipher))
	s.logger.Info("message stored",
		slog.String("message_id", msg.ID),
		slog.String("sender", req.Sender),
		slog.String("recipient", req.Recipient),
	)
	s.hub.Publish(api.PushEvent{
		Event:     api.EventNewMessage,
		Recipient: req.Recipient,
		Message:   msg,
	})

	c.JSON(http.StatusOK, api.SendResponse{
		Response: api.Response{Status: api.StatusSuccess, Message: "Message sent"},
		ID:       msg.ID,
	})
}

func (s *Server) receiveHandler(c *gin.Context) {
	messages, err := s.store.Receive(c.Param("username"))
	if err != nil {
		respondError(c, http.StatusNotFound, "User does not exist")
		return
	}
	c.JSON(http.StatusOK, api.ReceiveResponse{
		Response: api.Response{Status: api.StatusSuccess},
		Messages: messages,
	})
}

func (s *Server) listUsersHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.UsersResponse{
		Response: api.Response{Status: api.StatusSuccess},
		Users:    s.store.Users(),
	})
}

func (s *Server) getUserHandler(c *gin.Context) {
	username := c.Param("username")
	keys, err := s.store.User(username)
	if err != nil {
		respondError(c, http.StatusNotFound, "User does not exist")
		return
	}
	c.JSON(http.StatusOK, api.UserResponse{
		Response: api.Response{Status: api.StatusSuccess},
		Username: username,
		Keys:     keys,
	})
}

func (s *Server) webSocketHandler(c *gin.Context) {
	usernames := c.QueryArray("username")
	if len(usernames) == 0 {
		respondError(c, http.StatusBadRequest, "At least one username is required")
		return
	}
	s.hub.Serve(c.Writer, c.Request, usernames)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.Response{Status: api.StatusSuccess, Message: "healthy"})
}
