package gateway

import (
	"bytes"
	"net/http"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/codec"
	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/dmitrijs2005/mindnote/internal/server/services"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// structureNode is the JSON form of services.Node.
type structureNode struct {
	models.Workspace
	Children []*structureNode `json:"children"`
}

func toStructure(n *services.Node) *structureNode {
	out := &structureNode{Workspace: n.Workspace, Children: []*structureNode{}}
	for _, c := range n.Children {
		out.Children = append(out.Children, toStructure(c))
	}
	return out
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *Gateway) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	list, err := g.workspaces.List(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		g.respondServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Workspace{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (g *Gateway) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := g.workspaces.Get(r.Context(), userIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		g.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ws)
}

func (g *Gateway) handleFullStructure(w http.ResponseWriter, r *http.Request) {
	node, err := g.workspaces.FullStructure(r.Context(), userIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		g.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toStructure(node))
}

// handleExport renders a workspace and its nested workspaces in the
// requested format (json, yaml or md).
func (g *Gateway) handleExport(w http.ResponseWriter, r *http.Request) {
	exp, err := codec.ExporterFor(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := mux.Vars(r)["id"]
	node, err := g.workspaces.FullStructure(r.Context(), userIDFromContext(r.Context()), id)
	if err != nil {
		g.respondServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := exp.Export(&buf, node.Flatten()); err != nil {
		g.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", exp.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+exp.Extension()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleChanges upgrades to a websocket and pushes {"version":N} for every
// committed change of the caller's data until either side disconnects.
func (g *Gateway) handleChanges(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := g.feed.Subscribe(userID)
	defer cancel()

	// The read loop only notices the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(g.pingPeriod)
	defer ticker.Stop()

	g.logger.Debug(r.Context(), "change feed connected", "user", userID)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			g.logger.Debug(r.Context(), "change feed disconnected", "user", userID)
			return
		case <-r.Context().Done():
			return
		}
	}
}
