package gorouter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-incubator-dashboard/components/dashboard"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/commands"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/httpapi"
)

// UserResolver converts a router.Context into the current dashboard user.
type UserResolver func(router.Context) (*dashboard.User, error)

// Config wires go-router with the dashboard controller, APIs, and hooks.
type Config[T any] struct {
	Router       router.Router[T]
	Controller   *dashboard.Controller
	API          httpapi.Executor
	Broadcast    *dashboard.BroadcastHook
	UserResolver UserResolver
	// StreamFilter narrows the WebSocket stream per connection. Nil streams
	// every snapshot.
	StreamFilter func(router.WebSocketContext) dashboard.SnapshotFilter
	BasePath     string
	Routes       RouteConfig
}

// RouteConfig customizes the relative paths used for dashboard endpoints.
type RouteConfig struct {
	HTML        string
	Page        string
	Plan        string
	Snapshot    string
	Refresh     string
	Retry       string
	Preferences string
	Session     string
	WebSocket   string
}

// Register mounts dashboard routes (HTML, JSON, REST, WebSocket) on a go-router router.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("gorouter: router is required")
	}
	if cfg.Controller == nil {
		return errors.New("gorouter: controller is required")
	}
	routes := defaultRouteConfig(cfg.Routes)
	base := cfg.BasePath
	if base == "" {
		base = "/incubator"
	}
	resolveUser := cfg.UserResolver
	if resolveUser == nil {
		resolveUser = defaultUserResolver
	}
	controller := cfg.Controller

	group := cfg.Router.Group(base)

	group.Get(routes.HTML, router.WrapHandler(func(ctx router.Context) error {
		user, req, err := requestInputs(ctx, resolveUser)
		if err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		var buf bytes.Buffer
		if err := controller.RenderHTML(ctx.Context(), user, req, &buf); err != nil {
			return respondError(ctx, statusFor(err), err)
		}
		ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
		return ctx.Send(buf.Bytes())
	}))

	group.Get(routes.Page, router.WrapHandler(func(ctx router.Context) error {
		user, req, err := requestInputs(ctx, resolveUser)
		if err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		page, err := controller.Page(ctx.Context(), user, req)
		if err != nil {
			return respondError(ctx, statusFor(err), err)
		}
		return ctx.JSON(http.StatusOK, page)
	}))

	group.Get(routes.Plan, router.WrapHandler(func(ctx router.Context) error {
		user, req, err := requestInputs(ctx, resolveUser)
		if err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		payload, err := controller.Plan(ctx.Context(), user, req)
		if err != nil {
			return respondError(ctx, statusFor(err), err)
		}
		return ctx.JSON(http.StatusOK, payload)
	}))

	group.Get(routes.Snapshot, router.WrapHandler(func(ctx router.Context) error {
		user, err := resolveUser(ctx)
		if err != nil {
			return respondError(ctx, http.StatusUnauthorized, err)
		}
		state, err := controller.Snapshot(ctx.Context(), user)
		if err != nil {
			return respondError(ctx, statusFor(err), err)
		}
		return ctx.JSON(http.StatusOK, state)
	}))

	if cfg.API != nil {
		registerAPI(group, cfg.API, resolveUser, routes)
	}

	if cfg.Broadcast != nil {
		registerWebSocket(group, cfg.Broadcast, cfg.StreamFilter, routes.WebSocket)
	}

	return nil
}

func registerAPI[T any](r router.Router[T], api httpapi.Executor, resolver UserResolver, routes RouteConfig) {
	r.Post(routes.Refresh, router.WrapHandler(func(ctx router.Context) error {
		user, err := resolver(ctx)
		if err != nil {
			return respondError(ctx, http.StatusUnauthorized, err)
		}
		if err := api.Refresh(ctx.Context(), commands.RefreshDashboardInput{User: *user}); err != nil {
			return respondError(ctx, statusFor(err), err)
		}
		return ctx.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
	}))

	r.Post(routes.Retry, router.WrapHandler(func(ctx router.Context) error {
		user, req, err := requestInputs(ctx, resolver)
		if err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		section := ctx.Param("section")
		if section == "" {
			return respondError(ctx, http.StatusBadRequest, errors.New("section id is required"))
		}
		input := commands.RetrySectionInput{User: *user, SectionID: section, Breakpoint: req.Breakpoint}
		if err := api.Retry(ctx.Context(), input); err != nil {
			return respondError(ctx, statusFor(err), err)
		}
		return ctx.JSON(http.StatusAccepted, map[string]string{"status": "retried"})
	}))

	r.Post(routes.Preferences, router.WrapHandler(func(ctx router.Context) error {
		user, err := resolver(ctx)
		if err != nil {
			return respondError(ctx, http.StatusUnauthorized, err)
		}
		var payload commands.SavePreferencesInput
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		payload.User = *user
		if err := api.Preferences(ctx.Context(), payload); err != nil {
			return respondError(ctx, http.StatusInternalServerError, err)
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "saved"})
	}))

	r.Delete(routes.Session, router.WrapHandler(func(ctx router.Context) error {
		user, err := resolver(ctx)
		if err != nil {
			return respondError(ctx, http.StatusUnauthorized, err)
		}
		if err := api.Release(ctx.Context(), commands.ReleaseSessionInput{UserID: user.ID}); err != nil {
			return respondError(ctx, http.StatusInternalServerError, err)
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "released"})
	}))
}

func registerWebSocket[T any](r router.Router[T], hook *dashboard.BroadcastHook, filter func(router.WebSocketContext) dashboard.SnapshotFilter, path string) {
	cfg := router.DefaultWebSocketConfig()
	r.WebSocket(path, cfg, func(ws router.WebSocketContext) error {
		var accept dashboard.SnapshotFilter
		if filter != nil {
			accept = filter(ws)
		}
		events, cancel := hook.SubscribeFiltered(accept)
		defer cancel()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := ws.WriteJSON(event); err != nil {
					return err
				}
			case <-ws.Context().Done():
				return ws.Close()
			}
		}
	})
}

func requestInputs(ctx router.Context, resolve UserResolver) (*dashboard.User, dashboard.PageRequest, error) {
	var req dashboard.PageRequest
	user, err := resolve(ctx)
	if err != nil {
		return nil, req, err
	}
	if raw := strings.TrimSpace(ctx.Query("breakpoint")); raw != "" {
		bp, err := dashboard.ParseBreakpoint(raw)
		if err != nil {
			return nil, req, err
		}
		req.Breakpoint = &bp
	}
	if raw := strings.TrimSpace(ctx.Query("min_priority")); raw != "" {
		p, err := dashboard.ParsePriority(raw)
		if err != nil {
			return nil, req, err
		}
		req.MinPriority = p
	}
	return user, req, nil
}

func defaultUserResolver(ctx router.Context) (*dashboard.User, error) {
	id, _ := ctx.Locals("user_id").(string)
	if id == "" {
		return nil, httpapi.ErrNoUser
	}
	user := &dashboard.User{ID: id, Locale: inferLocale(ctx)}
	if role, ok := ctx.Locals("role").(string); ok {
		user.Role = dashboard.ParseRole(role)
	}
	if name, ok := ctx.Locals("user_name").(string); ok {
		user.Name = name
	}
	return user, nil
}

func inferLocale(ctx router.Context) string {
	if locale, ok := ctx.Locals("locale").(string); ok && locale != "" {
		return locale
	}
	if locale := strings.TrimSpace(ctx.Query("locale")); locale != "" {
		return strings.ToLower(locale)
	}
	if header := ctx.Header("Accept-Language"); header != "" {
		if lang := parseAcceptLanguage(header); lang != "" {
			return lang
		}
	}
	return ""
}

func parseAcceptLanguage(header string) string {
	for _, token := range strings.Split(header, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if idx := strings.Index(token, ";"); idx >= 0 {
			token = token[:idx]
		}
		if token != "" {
			return strings.ToLower(token)
		}
	}
	return ""
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrUnknownVariant):
		return http.StatusNotFound
	case errors.Is(err, httpapi.ErrNoUser):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func respondError(ctx router.Context, status int, err error) error {
	if errors.Is(err, httpapi.ErrNoUser) {
		status = http.StatusUnauthorized
	}
	return ctx.JSON(status, map[string]string{"error": err.Error()})
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	if routes.HTML == "" {
		routes.HTML = "/dashboard"
	}
	if routes.Page == "" {
		routes.Page = "/dashboard/_page"
	}
	if routes.Plan == "" {
		routes.Plan = "/dashboard/_plan"
	}
	if routes.Snapshot == "" {
		routes.Snapshot = "/dashboard/_snapshot"
	}
	if routes.Refresh == "" {
		routes.Refresh = "/dashboard/refresh"
	}
	if routes.Retry == "" {
		routes.Retry = "/dashboard/sections/:section/retry"
	}
	if routes.Preferences == "" {
		routes.Preferences = "/dashboard/preferences"
	}
	if routes.Session == "" {
		routes.Session = "/dashboard/session"
	}
	if routes.WebSocket == "" {
		routes.WebSocket = "/dashboard/ws"
	}
	return routes
}
