// Package handler exposes the small operations API: health, aggregate
// counters and the live monitor feed. It never exposes Telegram ids; every
// surface works with local display numbers only.
package handler

import "helpline/backend/internal/storage"

// Handler holds the storage service the endpoints read from.
type Handler struct {
	Storage *storage.Service
}

func NewHandler(s *storage.Service) *Handler {
	return &Handler{Storage: s}
}
