package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
)

func (h *Handler) AssignTask(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		TaskID       string `json:"taskID" validate:"required"`
		CleanerID    int64  `json:"cleanerID" validate:"required"`
		AtIndex      *int   `json:"atIndex" validate:"required,min=0"`
		BaseRevision int64  `json:"baseRevision"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.planner.AssignTask(r.Context(), workDate, myInfo.Username, req.BaseRevision, req.TaskID, req.CleanerID, *req.AtIndex)
	if err != nil {
		h.operationError(w, r, err)
		return
	}

	h.successResponse(w, r, "分配任务成功", result)
}

func (h *Handler) ReorderTask(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		CleanerID    int64  `json:"cleanerID" validate:"required"`
		TaskID       string `json:"taskID" validate:"required"`
		FromIndex    *int   `json:"fromIndex" validate:"required,min=0"`
		ToIndex      *int   `json:"toIndex" validate:"required,min=0"`
		BaseRevision int64  `json:"baseRevision"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.planner.ReorderTask(r.Context(), workDate, myInfo.Username, req.BaseRevision, req.CleanerID, req.TaskID, *req.FromIndex, *req.ToIndex)
	if err != nil {
		h.operationError(w, r, err)
		return
	}

	h.successResponse(w, r, "调整任务顺序成功", result)
}

func (h *Handler) MoveTask(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		TaskID       string `json:"taskID" validate:"required"`
		SrcCleanerID int64  `json:"srcCleanerID" validate:"required"`
		DstCleanerID int64  `json:"dstCleanerID" validate:"required"`
		AtIndex      *int   `json:"atIndex" validate:"required,min=0"`
		BaseRevision int64  `json:"baseRevision"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.planner.MoveTaskBetweenCleaners(r.Context(), workDate, myInfo.Username, req.BaseRevision, req.TaskID, req.SrcCleanerID, req.DstCleanerID, *req.AtIndex)
	if err != nil {
		h.operationError(w, r, err)
		return
	}

	h.successResponse(w, r, "移动任务成功", result)
}

func (h *Handler) SwapCleanerTasks(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		CleanerAID   int64 `json:"cleanerAID" validate:"required"`
		CleanerBID   int64 `json:"cleanerBID" validate:"required"`
		BaseRevision int64 `json:"baseRevision"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.planner.SwapCleanerTasks(r.Context(), workDate, myInfo.Username, req.BaseRevision, req.CleanerAID, req.CleanerBID)
	if err != nil {
		h.operationError(w, r, err)
		return
	}

	h.successResponse(w, r, "交换任务列表成功", result)
}

func (h *Handler) RemoveTaskFromTimeline(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		TaskID       string `json:"taskID" validate:"required"`
		BaseRevision int64  `json:"baseRevision"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.planner.RemoveTaskFromTimeline(r.Context(), workDate, myInfo.Username, req.BaseRevision, req.TaskID)
	if err != nil {
		h.operationError(w, r, err)
		return
	}

	h.successResponse(w, r, "撤回任务成功", result)
}

func (h *Handler) AddCleaner(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		CleanerID    int64  `json:"cleanerID" validate:"required"`
		StartTime    string `json:"startTime"`
		BaseRevision int64  `json:"baseRevision"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.planner.AddCleaner(r.Context(), workDate, myInfo.Username, req.BaseRevision, req.CleanerID, req.StartTime)
	if err != nil {
		h.operationError(w, r, err)
		return
	}

	h.successResponse(w, r, "添加保洁员成功", result)
}

func (h *Handler) RemoveCleanerFromSelection(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	cleanerIDParam := chi.URLParam(r, "id")
	cleanerID, err := strconv.ParseInt(cleanerIDParam, 10, 64)
	if err != nil {
		h.errorResponse(w, r, "保洁员ID无效")
		return
	}

	// DELETE 请求没有请求体，基准修订通过查询参数传
	var baseRevision int64
	if param := r.URL.Query().Get("baseRevision"); param != "" {
		baseRevision, err = strconv.ParseInt(param, 10, 64)
		if err != nil {
			h.errorResponse(w, r, "baseRevision 无效")
			return
		}
	}

	result, err := h.planner.RemoveCleanerFromSelection(r.Context(), workDate, myInfo.Username, baseRevision, cleanerID)
	if err != nil {
		h.operationError(w, r, err)
		return
	}

	h.successResponse(w, r, "移出保洁员成功", result)
}

func (h *Handler) ConfirmAssignments(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		BaseRevision int64 `json:"baseRevision"`
	}

	// confirm 可以不带请求体
	_ = h.readJSON(r, &req)

	result, export, err := h.planner.ConfirmAssignments(r.Context(), workDate, myInfo.Username, req.BaseRevision)
	if err != nil {
		h.operationError(w, r, err)
		return
	}

	// 给运营发确认通知。导出已经落盘，发送失败只记日志不影响本次操作
	if err := h.publishConfirmNotification(export); err != nil {
		slog.Error("无法发送确认通知邮件", "workDate", workDate, "error", err)
	}

	h.successResponse(w, r, "确认排班成功", result)
}

func (h *Handler) ResetAssignments(w http.ResponseWriter, r *http.Request) {
	workDate := r.Context().Value(WorkDateCtxKey).(string)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		BaseRevision int64 `json:"baseRevision"`
	}

	// reset 可以不带请求体
	_ = h.readJSON(r, &req)

	result, err := h.planner.ResetAssignments(r.Context(), workDate, myInfo.Username, req.BaseRevision)
	if err != nil {
		h.operationError(w, r, err)
		return
	}

	h.successResponse(w, r, "重置排班成功", result)
}

func (h *Handler) publishConfirmNotification(export *domain.ConfirmedExport) error {
	taskCount := 0
	for _, entry := range export.Snapshot.Timeline {
		taskCount += len(entry.Tasks)
	}

	mailData, err := json.Marshal(domain.MailMessage{
		Type: domain.MailTypeAssignmentsConfirmed,
		To:   h.config.Email.NotifyTo,
		Data: domain.AssignmentsConfirmedMailData{
			WorkDate:     export.WorkDate,
			Revision:     export.Revision,
			Author:       export.Author,
			TaskCount:    taskCount,
			CleanerCount: len(export.Snapshot.SelectedCleaners),
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	return h.mailChannel.PublishWithContext(
		ctx,
		"",
		"email_queue",
		true,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        mailData,
		},
	)
}
