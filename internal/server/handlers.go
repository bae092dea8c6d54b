package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/signalboard/signalboard/internal/logging"
	"github.com/signalboard/signalboard/internal/seed"
	"github.com/signalboard/signalboard/internal/types"
)

// IngestRequest is the body of POST /api/ingest.
type IngestRequest struct {
	Source string `json:"source"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	author := req.Author
	if author == "" {
		author = "anon"
	}

	item := &types.FeedbackItem{
		ID:        uuid.NewString(),
		Source:    types.NormalizeSource(req.Source),
		Author:    author,
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertFeedback(item); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store feedback: "+err.Error())
		return
	}
	s.pool.Enqueue(item.ID)
	writeJSON(w, http.StatusOK, map[string]string{"id": item.ID})
}

// OverviewResponse is the body of GET /api/dashboard/overview.
type OverviewResponse struct {
	TopClusters        []*types.Cluster        `json:"top_clusters"`
	UrgentHighValue    []*types.FeedbackItem   `json:"urgent_high_value"`
	SentimentBreakdown map[types.Sentiment]int `json:"sentiment_breakdown"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	top, err := s.store.TopClusters(10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	urgent, err := s.store.UrgentHighValue(20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sentiment, err := s.store.SentimentBreakdown("")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if top == nil {
		top = []*types.Cluster{}
	}
	if urgent == nil {
		urgent = []*types.FeedbackItem{}
	}
	writeJSON(w, http.StatusOK, OverviewResponse{
		TopClusters:        top,
		UrgentHighValue:    urgent,
		SentimentBreakdown: sentiment,
	})
}

// ClusterDetailResponse is the body of GET /api/dashboard/cluster/{id}.
type ClusterDetailResponse struct {
	Cluster               *types.Cluster          `json:"cluster"`
	Feedback              []*types.FeedbackItem   `json:"feedback"`
	SentimentDistribution map[types.Sentiment]int `json:"sentiment_distribution"`
	SourceBreakdown       map[string]int          `json:"source_breakdown"`
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	clusterID := r.PathValue("id")

	cluster, err := s.store.GetCluster(clusterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	feedback, err := s.store.ClusterFeedback(clusterID, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sentiment, err := s.store.SentimentBreakdown(clusterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sources, err := s.store.SourceBreakdown(clusterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if feedback == nil {
		feedback = []*types.FeedbackItem{}
	}
	writeJSON(w, http.StatusOK, ClusterDetailResponse{
		Cluster:               cluster,
		Feedback:              feedback,
		SentimentDistribution: sentiment,
		SourceBreakdown:       sources,
	})
}

func (s *Server) handleDigests(w http.ResponseWriter, r *http.Request) {
	digests, err := s.store.ListDigests(30)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if digests == nil {
		digests = []types.Digest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"digests": digests})
}

func (s *Server) handleDigestRun(w http.ResponseWriter, r *http.Request) {
	d, err := s.synth.Run(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": d.ID, "date": d.Date})
}

func (s *Server) handleDigestMock(w http.ResponseWriter, r *http.Request) {
	d, err := s.synth.RunMock(time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inserted": 1, "date": d.Date})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	updated, err := s.jobs.Refresh()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	merged, err := s.jobs.Merge()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"merged": merged})
}

func (s *Server) handleRecount(w http.ResponseWriter, r *http.Request) {
	removed, err := s.jobs.Recount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	ids, err := seed.Insert(s.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.pool.EnqueueAll(ids)
	logging.Info("server", "seeded %d fixtures", len(ids))
	writeJSON(w, http.StatusOK, map[string]int{"inserted": len(ids), "enqueued": len(ids)})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ids, err := seed.Generate(s.store, s.freePlan)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.pool.EnqueueAll(ids)
	logging.Info("server", "generated %d mock items", len(ids))
	writeJSON(w, http.StatusOK, map[string]int{"inserted": len(ids), "enqueued": len(ids)})
}
