package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes вешает API мониторинга под /api/v1 с Bearer-авторизацией.
func RegisterRoutes(r *mux.Router, h *Handler, sharedSecret string) {
	sub := r.PathPrefix("/api/v1").Subrouter()
	sub.Use(SharedSecretAuth(sharedSecret))

	sub.HandleFunc("/devices", h.CreateDevice).Methods(http.MethodPost)
	sub.HandleFunc("/devices", h.ListDevices).Methods(http.MethodGet)
	sub.HandleFunc("/devices/{uuid:[a-fA-F0-9\\-]{36}}", h.GetDevice).Methods(http.MethodGet)
	sub.HandleFunc("/devices/{uuid:[a-fA-F0-9\\-]{36}}", h.UpdateDevice).Methods(http.MethodPut)
	sub.HandleFunc("/devices/{uuid:[a-fA-F0-9\\-]{36}}", h.DeleteDevice).Methods(http.MethodDelete)
	sub.HandleFunc("/devices/{uuid:[a-fA-F0-9\\-]{36}}/probe", h.ProbeDevice).Methods(http.MethodPost)
}
