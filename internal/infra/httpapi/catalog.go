package httpapi

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *server) registerIntervals(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-intervals",
		Method:      http.MethodGet,
		Path:        "/reminder-intervals",
		Summary:     "List interval rules",
	}, func(ctx context.Context, in *struct {
		IncludeDeleted bool `query:"include_deleted"`
	}) (*response[[]RuleResponse], error) {
		rules, err := s.svc.Catalog.List(ctx, in.IncludeDeleted)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		out := make([]RuleResponse, 0, len(rules))
		for _, r := range rules {
			out = append(out, ruleResponse(r))
		}
		return respond(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-interval",
		Method:        http.MethodPost,
		Path:          "/reminder-intervals",
		Summary:       "Create interval rule",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *struct {
		Body RuleRequest
	}) (*response[RuleResponse], error) {
		r, err := s.svc.Catalog.Create(ctx, in.Body.input())
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(ruleResponse(r)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-interval",
		Method:      http.MethodGet,
		Path:        "/reminder-intervals/{id}",
		Summary:     "Get interval rule",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *idPath) (*response[RuleResponse], error) {
		r, err := s.svc.Catalog.Get(ctx, in.ID)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(ruleResponse(r)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-interval",
		Method:      http.MethodPut,
		Path:        "/reminder-intervals/{id}",
		Summary:     "Update interval rule",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *struct {
		ID   int64 `path:"id"`
		Body RuleRequest
	}) (*response[RuleResponse], error) {
		r, err := s.svc.Catalog.Update(ctx, in.ID, in.Body.input())
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(ruleResponse(r)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-interval",
		Method:        http.MethodDelete,
		Path:          "/reminder-intervals/{id}",
		Summary:       "Delete interval rule",
		Description:   "Default rules cannot be deleted, only deactivated.",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, in *idPath) (*struct{}, error) {
		if err := s.svc.Catalog.Delete(ctx, in.ID); err != nil {
			return nil, s.fail(ctx, err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-interval",
		Method:      http.MethodPost,
		Path:        "/reminder-intervals/{id}/toggle",
		Summary:     "Toggle interval rule active flag",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *idPath) (*response[RuleResponse], error) {
		r, err := s.svc.Catalog.ToggleActive(ctx, in.ID)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(ruleResponse(r)), nil
	})
}

func (s *server) registerTemplates(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/email-templates",
		Summary:     "List email templates",
	}, func(ctx context.Context, _ *struct{}) (*response[[]TemplateResponse], error) {
		tpls, err := s.svc.Templates.List(ctx)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		out := make([]TemplateResponse, 0, len(tpls))
		for _, t := range tpls {
			out = append(out, templateResponse(t))
		}
		return respond(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-template",
		Method:        http.MethodPost,
		Path:          "/email-templates",
		Summary:       "Create email template",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *struct {
		Body TemplateRequest
	}) (*response[TemplateResponse], error) {
		t, err := s.svc.Templates.Create(ctx, in.Body.input())
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(templateResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/email-templates/{id}",
		Summary:     "Get email template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *idPath) (*response[TemplateResponse], error) {
		t, err := s.svc.Templates.Get(ctx, in.ID)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(templateResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-template",
		Method:      http.MethodPut,
		Path:        "/email-templates/{id}",
		Summary:     "Update email template",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *struct {
		ID   int64 `path:"id"`
		Body TemplateRequest
	}) (*response[TemplateResponse], error) {
		t, err := s.svc.Templates.Update(ctx, in.ID, in.Body.input())
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(templateResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-template",
		Method:        http.MethodDelete,
		Path:          "/email-templates/{id}",
		Summary:       "Delete email template",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, in *idPath) (*struct{}, error) {
		if err := s.svc.Templates.Delete(ctx, in.ID); err != nil {
			return nil, s.fail(ctx, err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "preview-template",
		Method:      http.MethodGet,
		Path:        "/email-templates/{id}/preview",
		Summary:     "Preview a template with sample data",
		Description: "The language comes from ?lang or the Accept-Language header.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *struct {
		ID             int64  `path:"id"`
		Lang           string `query:"lang"`
		AcceptLanguage string `header:"Accept-Language"`
	}) (*response[PreviewResponse], error) {
		lang := in.Lang
		if lang == "" {
			lang = s.svc.Languages.FromAcceptLanguage(in.AcceptLanguage)
		}
		p, err := s.svc.Templates.Preview(ctx, in.ID, lang)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(PreviewResponse{
			TemplateID:   p.TemplateID,
			LanguageCode: p.LanguageCode,
			Subject:      p.Subject,
			Body:         p.Body,
		}), nil
	})
}
