// Package gateway serves the read-only HTTP API and the websocket change
// feed next to the gRPC endpoint.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/logging"
	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/dmitrijs2005/mindnote/internal/server/auth"
	"github.com/dmitrijs2005/mindnote/internal/server/notify"
	"github.com/dmitrijs2005/mindnote/internal/server/services"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

type workspaceReader interface {
	List(ctx context.Context, userID string) ([]models.Workspace, error)
	Get(ctx context.Context, userID, id string) (models.Workspace, error)
	FullStructure(ctx context.Context, userID, id string) (*services.Node, error)
}

type changeFeed interface {
	Subscribe(userID string) (<-chan notify.Event, func())
}

type ctxKey string

const userIDKey ctxKey = "userID"

type Gateway struct {
	address    string
	workspaces workspaceReader
	feed       changeFeed
	jwtSecret  []byte
	logger     logging.Logger
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
}

func New(address string, l logging.Logger, ws workspaceReader, feed changeFeed, secretKey string) *Gateway {
	if l == nil {
		l = logging.Nop{}
	}
	return &Gateway{
		address:    address,
		workspaces: ws,
		feed:       feed,
		jwtSecret:  []byte(secretKey),
		logger:     l.With("module", "http_gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingPeriod: 30 * time.Second,
	}
}

// Router wires every route of the gateway.
func (g *Gateway) Router() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", g.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(g.authMiddleware)
	api.HandleFunc("/workspaces", g.handleListWorkspaces).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{id}", g.handleGetWorkspace).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{id}/full_structure", g.handleFullStructure).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{id}/export", g.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/changes/ws", g.handleChanges).Methods(http.MethodGet)

	return router
}

// Run serves on the configured address until ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", g.address)
	if err != nil {
		return err
	}
	return g.Serve(ctx, lis)
}

// Serve accepts connections on lis until ctx is done, then shuts down
// gracefully.
func (g *Gateway) Serve(ctx context.Context, lis net.Listener) error {
	server := &http.Server{
		Handler:           g.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	g.logger.Info(ctx, "Starting HTTP gateway", "address", lis.Addr().String())

	select {
	case <-ctx.Done():
		g.logger.Info(ctx, "Stopping HTTP gateway...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get(common.AuthorizationHeaderName); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}
	}
	// Browsers cannot set headers on websocket upgrades.
	return r.URL.Query().Get(common.AccessTokenHeaderName)
}

func (g *Gateway) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing token")
			return
		}
		userID, err := auth.GetUserIDFromToken(token, g.jwtSecret)
		if err != nil {
			msg := common.ErrInvalidToken.Error()
			if errors.Is(err, common.ErrTokenExpired) {
				msg = common.ErrTokenExpired.Error()
			}
			respondError(w, http.StatusUnauthorized, msg)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors to HTTP statuses.
func (g *Gateway) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrorValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		g.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
