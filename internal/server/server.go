package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"solguardian/internal/analyzer"
	"solguardian/internal/audit"
	apperrors "solguardian/internal/errors"
	"solguardian/internal/knowledge"
	"solguardian/internal/metrics"
	"solguardian/types"
)

// Server exposes the analysis pipeline over a JSON HTTP API.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	analyzer   *analyzer.Analyzer
	store      knowledge.Store
	auditStore *audit.Store
	collector  *metrics.Collector
}

// New creates a server bound to the given port.
func New(port int, a *analyzer.Analyzer, store knowledge.Store, auditStore *audit.Store, collector *metrics.Collector) *Server {
	router := mux.NewRouter()
	s := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      10 * time.Minute, // analyses can run external tools
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		},
		analyzer:   a,
		store:      store,
		auditStore: auditStore,
		collector:  collector,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/knowledge/stats", s.handleKnowledgeStats).Methods(http.MethodGet)
	api.HandleFunc("/analyses/recent", s.handleRecentAnalyses).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.collector != nil {
		s.router.Handle("/metrics", s.collector.Handler()).Methods(http.MethodGet)
	}
}

// Start runs the server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()
	log.Printf("🌐 SolGuardian API listening on http://localhost%s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// analyzeRequest is the POST /api/v1/analyze body. Option fields are
// pointers so absent fields keep their documented defaults.
type analyzeRequest struct {
	Path                   string `json:"path"`
	IncludeKnowledgeBase   *bool  `json:"include_knowledge_base,omitempty"`
	KnowledgeLimit         *int   `json:"knowledge_limit,omitempty"`
	IncludeSimilarExploits *bool  `json:"include_similar_exploits,omitempty"`
	UseExternalTools       *bool  `json:"use_external_tools,omitempty"`
	ComprehensiveMode      *bool  `json:"comprehensive_mode,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.SendError(w, apperrors.NewAnalysisFailed("invalid request body", err))
		return
	}
	if req.Path == "" {
		apperrors.SendError(w, apperrors.NewAnalysisFailed("path is required", nil))
		return
	}

	opts := analyzer.DefaultOptions()
	if req.IncludeKnowledgeBase != nil {
		opts.IncludeKnowledgeBase = *req.IncludeKnowledgeBase
	}
	if req.KnowledgeLimit != nil {
		opts.KnowledgeLimit = *req.KnowledgeLimit
	}
	if req.IncludeSimilarExploits != nil {
		opts.IncludeSimilarExploits = *req.IncludeSimilarExploits
	}
	if req.UseExternalTools != nil {
		opts.UseExternalTools = *req.UseExternalTools
	}
	if req.ComprehensiveMode != nil {
		opts.ComprehensiveMode = *req.ComprehensiveMode
	}

	report, err := s.analyzer.Analyze(r.Context(), req.Path, opts)
	if err != nil {
		apperrors.SendError(w, err)
		return
	}
	apperrors.SendSuccess(w, report)
}

func (s *Server) handleKnowledgeStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]int{}
	if s.store != nil {
		for _, coll := range []types.Collection{types.CollectionSWC, types.CollectionExploits, types.CollectionAuditFindings} {
			stats[string(coll)] = s.store.Count(coll)
		}
	}
	apperrors.SendSuccess(w, stats)
}

func (s *Server) handleRecentAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.auditStore == nil {
		apperrors.SendSuccess(w, []interface{}{})
		return
	}
	recent, err := s.auditStore.RecentAnalyses(20)
	if err != nil {
		apperrors.SendError(w, apperrors.NewAnalysisFailed("failed to read audit trail", err))
		return
	}
	apperrors.SendSuccess(w, recent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		health["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		health["mem_used_percent"] = vm.UsedPercent
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
