package handler

import (
	"net/http"
)

func (h *Handler) GetAllCleaners(w http.ResponseWriter, r *http.Request) {
	cleaners, err := h.repository.GetAllCleaners()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取保洁员花名册成功", cleaners)
}
