package main

import (
	"net/http"

	"go.uber.org/zap"
)

type routerDeps struct {
	store          Store
	ai             chatReplier
	partners       PartnersConfig
	allowedOrigins []string
	logger         *zap.Logger
}

func newRouter(d routerDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandler)

	// Auth & profile
	mux.Handle("/auth/register", registerHandler(d.store, d.logger))
	mux.Handle("/auth/login", loginHandler(d.store, d.logger))
	mux.Handle("/me/profile", meProfileHandler(d.store, d.logger))

	// Partner cards; owner summaries are batched per request
	withLoaders := DataLoaderMiddleware(d.store)
	mux.Handle("/partners", withLoaders(partnersHandler(d.store, d.partners, d.logger)))
	mux.Handle("/partners/{id}", withLoaders(partnerHandler(d.store, d.logger)))

	// Assistant
	mux.Handle("/ai/chat", aiChatHandler(d.ai, d.logger))
	mux.Handle("/ws/ai", wsAIHandler(d.ai, d.allowedOrigins, d.logger))

	return withCORS(d.allowedOrigins, mux)
}
