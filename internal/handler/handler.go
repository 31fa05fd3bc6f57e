package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/config"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/planner"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/repository"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	planner     *planner.Planner
	translator  ut.Translator
	mailChannel *amqp.Channel

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, pln *planner.Planner, mailCh *amqp.Channel) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		planner:     pln,
		translator:  trans,
		mailChannel: mailCh,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Use(h.myInfo)

		r.Get("/my-info", h.GetMyInfo)

		// 保洁员花名册，分配操作的候选列表
		r.Get("/cleaners", h.GetAllCleaners)

		r.Route("/work-dates/{date}", func(r chi.Router) {
			r.Use(h.workDate)

			r.Get("/snapshot", h.GetCurrentSnapshot)
			r.Get("/confirmed", h.GetConfirmedExport)

			r.Route("/revisions", func(r chi.Router) {
				r.Get("/", h.GetRevisionHistory)
				r.Delete("/", h.PruneRevisions)
				r.Get("/{number}", h.GetRevisionByNumber)
			})
			r.Post("/rollback", h.Rollback)

			// 整个工作日的彻底清除只有管理员可以做
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Delete("/", h.PurgeWorkDate)

			r.Route("/operations", func(r chi.Router) {
				r.Post("/assign", h.AssignTask)
				r.Post("/reorder", h.ReorderTask)
				r.Post("/move", h.MoveTask)
				r.Post("/swap", h.SwapCleanerTasks)
				r.Post("/remove-task", h.RemoveTaskFromTimeline)
				r.Post("/confirm", h.ConfirmAssignments)
				r.Post("/reset", h.ResetAssignments)
			})

			r.Post("/cleaners", h.AddCleaner)
			r.Delete("/cleaners/{id}", h.RemoveCleanerFromSelection)
		})
	})
}
