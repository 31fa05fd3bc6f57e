package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/schedule"
)

func (h *Handler) GetCurrentSnapshot(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)

	current, err := h.repository.GetCurrent(workDate)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.successResponse(w, r, "该工作日还没有任何快照", nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取当前快照成功", struct {
		Current  *domain.CurrentSnapshot `json:"current"`
		Warnings []schedule.Warning      `json:"warnings"`
	}{
		Current:  current,
		Warnings: schedule.Annotate(current.Snapshot),
	})
}

func (h *Handler) GetRevisionHistory(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)

	revisions, err := h.repository.GetAllRevisions(workDate)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取修订历史成功", revisions)
}

func (h *Handler) GetRevisionByNumber(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)

	numberParam := chi.URLParam(r, "number")
	number, err := strconv.ParseInt(numberParam, 10, 64)
	if err != nil {
		h.errorResponse(w, r, "修订号无效")
		return
	}

	revision, err := h.repository.GetRevisionByNumber(workDate, number)
	if err != nil {
		h.operationError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取修订成功", revision)
}

func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		RevisionNumber int64 `json:"revisionNumber" validate:"required,min=1"`
		BaseRevision   int64 `json:"baseRevision"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.planner.Rollback(r.Context(), workDate, myInfo.Username, req.BaseRevision, req.RevisionNumber)
	if err != nil {
		h.operationError(w, r, err)
		return
	}

	h.successResponse(w, r, "回滚成功", result)
}

func (h *Handler) PruneRevisions(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)

	keepLastParam := r.URL.Query().Get("keepLast")
	keepLast, err := strconv.Atoi(keepLastParam)
	if err != nil || keepLast < 1 {
		h.errorResponse(w, r, "keepLast 必须是正整数")
		return
	}

	if err := h.repository.DeleteOldRevisions(workDate, keepLast); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "清理历史修订成功", nil)
}

func (h *Handler) PurgeWorkDate(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)

	if err := h.repository.DeleteAllForDate(workDate); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "清除工作日数据成功", nil)
}

func (h *Handler) GetConfirmedExport(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)

	export, err := h.repository.GetConfirmedExport(workDate)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.successResponse(w, r, "该工作日还没有确认导出", nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取确认导出成功", export)
}
