package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/monitoring"
	"github.com/draftiq/scoutsync/internal/quality"
	"github.com/draftiq/scoutsync/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the query and trigger server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Background alert checks.
		checker := monitoring.NewChecker(monitoring.NewCollector(env.Store), env.Alerter, cfg.Monitoring)
		go checker.Run(ctx)

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				TriggeredBy string `json:"triggered_by"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if req.TriggeredBy == "" {
				req.TriggeredBy = "api"
			}

			// Run asynchronously; the execution ledger holds the outcome.
			go func() {
				exec, err := env.Orch.Execute(ctx, req.TriggeredBy, nil)
				if exec != nil {
					if saveErr := env.Store.SaveExecution(ctx, exec); saveErr != nil {
						zap.L().Error("save execution", zap.Error(saveErr))
					}
				}
				if err != nil {
					zap.L().Error("triggered run failed",
						zap.String("triggered_by", req.TriggeredBy),
						zap.Error(err),
					)
				}
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		})

		mux.HandleFunc("GET /executions", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, env.Orch.Ledger().LastN(20))
		})

		mux.HandleFunc("GET /stages/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, env.Orch.Ledger().Health())
		})

		mux.HandleFunc("GET /quality/summary", func(w http.ResponseWriter, r *http.Request) {
			summary, err := qualitySummary(r.Context(), env.Store)
			if err != nil {
				zap.L().Error("quality summary", zap.Error(err))
				http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, summary)
		})

		mux.HandleFunc("GET /coverage", func(w http.ResponseWriter, r *http.Request) {
			report, err := coverageFromStore(r.Context(), env.Store)
			if err != nil {
				zap.L().Error("coverage report", zap.Error(err))
				http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, report)
		})

		mux.HandleFunc("GET /entities/quarantined", func(w http.ResponseWriter, r *http.Request) {
			ents, err := env.Store.ListEntitiesByStatus(r.Context(), model.EntityStatusQuarantined)
			if err != nil {
				zap.L().Error("list quarantined", zap.Error(err))
				http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, ents)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// scopeSummary is one scope's quality report.
type scopeSummary struct {
	quality.ScopeStats
	CoveragePct   float64 `json:"coverage_pct"`
	ValidationPct float64 `json:"validation_pct"`
	OutlierPct    float64 `json:"outlier_pct"`
	Score         float64 `json:"score"`
}

// qualitySummary computes per-position quality scores from the current
// canonical state.
func qualitySummary(ctx context.Context, st store.Store) ([]scopeSummary, error) {
	ents, err := st.ListEntities(ctx)
	if err != nil {
		return nil, err
	}

	rules, err := st.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	outlierRules := make(map[string]bool)
	for _, r := range rules {
		if r.Type == model.RuleTypeOutlier {
			outlierRules[r.ID] = true
		}
	}

	stats := make(map[string]*quality.ScopeStats)
	for _, ent := range ents {
		s := stats[ent.Position]
		if s == nil {
			s = &quality.ScopeStats{Scope: ent.Position}
			stats[ent.Position] = s
		}
		s.EntitiesTotal++

		fields, err := st.ListFieldValues(ctx, ent.ID)
		if err != nil {
			return nil, err
		}
		if len(fields) > 0 {
			s.EntitiesWithData++
		}

		open, err := st.ListViolations(ctx, store.ViolationFilter{
			EntityID: ent.ID,
			Review:   model.ReviewPending,
			Limit:    1000,
		})
		if err != nil {
			return nil, err
		}
		violated := make(map[string]bool)
		for _, v := range open {
			violated[v.Field] = true
			if outlierRules[v.RuleID] {
				s.Outliers++
			}
		}

		s.RecordsTotal += len(fields)
		for _, fv := range fields {
			if !violated[fv.Field] {
				s.RecordsValid++
			}
		}
	}

	summaries := make([]scopeSummary, 0, len(stats))
	for _, s := range stats {
		summaries = append(summaries, scopeSummary{
			ScopeStats:    *s,
			CoveragePct:   s.CoveragePct(),
			ValidationPct: s.ValidationPct(),
			OutlierPct:    s.OutlierPct(),
			Score:         quality.ScoreFor(*s),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Scope < summaries[j].Scope })
	return summaries, nil
}
