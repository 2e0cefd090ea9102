package messagebox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	interfaces "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/interface"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type service struct {
	config Config
	store  ports.MessageStore
	server *http.Server
}

func NewService(
	config Config, store ports.MessageStore,
) (interfaces.Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}
	if store == nil {
		return nil, fmt.Errorf("missing message store")
	}
	return &service{config: config, store: store}, nil
}

func (s *service) Start() error {
	s.server = &http.Server{
		Addr:              s.config.address(),
		Handler:           NewRouter(s.store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("message box server stopped")
		}
	}()
	log.Infof("started listening at %s", s.config.address())

	return nil
}

func (s *service) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint:all
		s.server.Shutdown(ctx)
		log.Info("stopped message box server")
	}
	s.store.Close()
	log.Info("closed message store")
}
