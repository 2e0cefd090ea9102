package messagebox

import (
	"encoding/hex"
	"net/http"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// IdentityHeader carries the hex compressed public key of the caller.
const IdentityHeader = "X-Identity-Key"

const maxBodySize = 10 << 20

type SendMessageRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Box       string `json:"box" binding:"required"`
	Body      []byte `json:"body"`
}

type SendMessageResponse struct {
	Id string `json:"id"`
}

type Message struct {
	Id        string `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Box       string `json:"box"`
	Body      []byte `json:"body"`
	CreatedAt int64  `json:"createdAt"`
}

type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
}

type AcknowledgeRequest struct {
	Ids []string `json:"ids" binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	store ports.MessageStore
}

func NewRouter(store ports.MessageStore) *gin.Engine {
	h := &handler{store}

	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1", identity)
	v1.POST("/messages", h.sendMessage)
	v1.GET("/messages", h.listMessages)
	v1.POST("/messages/ack", h.acknowledgeMessages)

	return router
}

// identity rejects requests without a valid identity key header.
func identity(c *gin.Context) {
	key := c.GetHeader(IdentityHeader)
	if err := validateIdentityKey(key); err != nil {
		c.AbortWithStatusJSON(
			http.StatusUnauthorized, errorResponse{"invalid identity key"},
		)
		return
	}
	c.Set(IdentityHeader, key)
	c.Next()
}

func (h *handler) sendMessage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{err.Error()})
		return
	}
	if err := validateIdentityKey(req.Recipient); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{"invalid recipient"})
		return
	}

	msg := ports.Message{
		Id:        uuid.New().String(),
		Sender:    c.GetString(IdentityHeader),
		Recipient: req.Recipient,
		Box:       req.Box,
		Body:      req.Body,
		CreatedAt: time.Now(),
	}
	if err := h.store.Add(c.Request.Context(), msg); err != nil {
		log.WithError(err).Warn("failed to store message")
		c.JSON(http.StatusInternalServerError, errorResponse{"failed to store message"})
		return
	}

	log.Debugf("stored message %s for %s in box %s", msg.Id, msg.Recipient, msg.Box)
	c.JSON(http.StatusOK, SendMessageResponse{msg.Id})
}

func (h *handler) listMessages(c *gin.Context) {
	box := c.Query("box")
	if len(box) <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{"missing box"})
		return
	}

	messages, err := h.store.List(
		c.Request.Context(), c.GetString(IdentityHeader), box,
	)
	if err != nil {
		log.WithError(err).Warn("failed to list messages")
		c.JSON(http.StatusInternalServerError, errorResponse{"failed to list messages"})
		return
	}

	resp := ListMessagesResponse{make([]Message, 0, len(messages))}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, Message{
			Id:        msg.Id,
			Sender:    msg.Sender,
			Recipient: msg.Recipient,
			Box:       msg.Box,
			Body:      msg.Body,
			CreatedAt: msg.CreatedAt.UnixMilli(),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) acknowledgeMessages(c *gin.Context) {
	var req AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{err.Error()})
		return
	}

	if err := h.store.Delete(
		c.Request.Context(), c.GetString(IdentityHeader), req.Ids,
	); err != nil {
		log.WithError(err).Warn("failed to acknowledge messages")
		c.JSON(http.StatusInternalServerError, errorResponse{"failed to acknowledge messages"})
		return
	}
	c.Status(http.StatusNoContent)
}

func validateIdentityKey(key string) error {
	buf, err := hex.DecodeString(key)
	if err != nil {
		return err
	}
	_, err = btcec.ParsePubKey(buf)
	return err
}
