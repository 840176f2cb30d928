package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/adaptmesh/quadforest/pkg/forest"
	"github.com/adaptmesh/quadforest/pkg/mesh"
	"github.com/adaptmesh/quadforest/pkg/observability"
	"github.com/adaptmesh/quadforest/pkg/virtual"
)

// State is the immutable snapshot the inspection API serves: one rank's
// forest with its ghost layer, neighbor mesh, augmentation and mirror
// assignment.
type State struct {
	Forest    *forest.Forest
	Ghost     *mesh.Ghost
	Mesh      *mesh.Mesh
	Aug       *virtual.Augmentation
	Mirrors   *virtual.VirtualGhost
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	StartTime time.Time
}

// Handler provides the HTTP handlers over one State
type Handler struct {
	state *State
}

// NewHandler creates a new inspection API handler
func NewHandler(state *State) *Handler {
	return &Handler{state: state}
}

// HealthCheck handles GET /v1/health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(h.state.StartTime).String(),
		"dimension": int(h.state.Forest.Dim),
		"rank":      h.state.Forest.Rank,
		"ranks":     h.state.Forest.NumRanks,
	}, http.StatusOK)
}

// statsResponse is the payload of GET /v1/stats
type statsResponse struct {
	Connectivity      string `json:"connectivity"`
	LocalQuadrants    int32  `json:"local_quadrants"`
	GhostQuadrants    int32  `json:"ghost_quadrants"`
	LocalVirtualHosts int    `json:"local_virtual_hosts"`
	GhostVirtualHosts int    `json:"ghost_virtual_hosts"`
	MemoryBytes       int    `json:"memory_bytes"`
	MirrorSlots       int    `json:"mirror_slots"`
	MirrorFlagged     int    `json:"mirror_slots_flagged"`
	LevelLists        bool   `json:"level_lists"`
}

// GetStats handles GET /v1/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	aug := h.state.Aug
	resp := statsResponse{
		Connectivity:   aug.Btype.String(),
		LocalQuadrants: aug.LocalCount,
		GhostQuadrants: aug.GhostCount,
		MemoryBytes:    aug.MemoryUsed(),
		LevelLists:     aug.HasLevelLists(),
	}
	for qid := int32(0); qid < aug.LocalCount; qid++ {
		if aug.HasVirtuals(qid) {
			resp.LocalVirtualHosts++
		}
	}
	for gid := int32(0); gid < aug.GhostCount; gid++ {
		if _, ok := aug.GhostVirtualIndex(gid); ok {
			resp.GhostVirtualHosts++
		}
	}
	if h.state.Mirrors != nil {
		resp.MirrorSlots = len(h.state.Mirrors.MirrorProcVirtuals)
		for _, flagged := range h.state.Mirrors.MirrorProcVirtuals {
			if flagged {
				resp.MirrorFlagged++
			}
		}
	}

	writeJSON(w, resp, http.StatusOK)
}

// levelEntry describes one level of the dense layout
type levelEntry struct {
	Level      int     `json:"level"`
	LocalHosts []int32 `json:"local_hosts"`
	GhostHosts []int32 `json:"ghost_hosts"`
}

// GetLevels handles GET /v1/levels
func (h *Handler) GetLevels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	aug := h.state.Aug
	if !aug.HasLevelLists() {
		writeError(w, "Augmentation was built without level lists", http.StatusNotFound)
		return
	}

	entries := make([]levelEntry, 0)
	for l := range aug.QLevels {
		if len(aug.QLevels[l]) == 0 && len(aug.GLevels[l]) == 0 {
			continue
		}
		entries = append(entries, levelEntry{
			Level:      l,
			LocalHosts: aug.QLevels[l],
			GhostHosts: aug.GLevels[l],
		})
	}

	writeJSON(w, map[string]interface{}{"levels": entries}, http.StatusOK)
}

// mirrorEntry describes the mirror slots sent to one destination rank
type mirrorEntry struct {
	Rank    int     `json:"rank"`
	Slots   []int32 `json:"mirror_qids"`
	Flagged []bool  `json:"virtual_payload"`
}

// GetMirrors handles GET /v1/mirrors
func (h *Handler) GetMirrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.state.Mirrors == nil {
		writeError(w, "No mirror assignment built", http.StatusNotFound)
		return
	}

	offsets := h.state.Ghost.MirrorProcOffsets
	entries := make([]mirrorEntry, 0)
	for p := 0; p+1 < len(offsets); p++ {
		if offsets[p] == offsets[p+1] {
			continue
		}
		entries = append(entries, mirrorEntry{
			Rank:    p,
			Slots:   h.state.Mesh.MirrorQID[offsets[p]:offsets[p+1]],
			Flagged: h.state.Mirrors.MirrorProcVirtuals[offsets[p]:offsets[p+1]],
		})
	}

	writeJSON(w, map[string]interface{}{"mirrors": entries}, http.StatusOK)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response as JSON
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, map[string]string{"error": message}, status)
}
