package handlers

import (
	"net/http"

	"github.com/inmanturbo/freestack/internal/httpapi"
)

// Health reports service liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	httpapi.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
