// Package service coordinates the chat message pipeline and session lifecycle.
package service

import (
	"github.com/cloudbridge/chatcore/internal/config"
	"github.com/cloudbridge/chatcore/internal/policy"
	"github.com/cloudbridge/chatcore/internal/responder"
	"github.com/cloudbridge/chatcore/internal/store"
)

// Service is the server-side chat orchestrator.
type Service struct {
	sessions  store.SessionStore
	messages  store.MessageStore
	responder responder.Responder
	policy    *policy.Engine
	config    *config.Config
}

// New creates a new service.
func New(sessions store.SessionStore, messages store.MessageStore, resp responder.Responder, policyEngine *policy.Engine, cfg *config.Config) *Service {
	return &Service{
		sessions:  sessions,
		messages:  messages,
		responder: resp,
		policy:    policyEngine,
		config:    cfg,
	}
}
