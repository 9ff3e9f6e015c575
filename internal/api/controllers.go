package api

import (
	"errors"
	"net/http"

	"martingale-core/internal/engine"
	"martingale-core/internal/strategy"

	"github.com/gin-gonic/gin"
)

type createStrategyRequest struct {
	Kind            string  `json:"kind" binding:"required,min=1"`
	TokenID         string  `json:"token_id" binding:"required,min=1"`
	InitialAmount   float64 `json:"initial_amount" binding:"gt=0"`
	DropPct         float64 `json:"drop_pct"`
	Multiplier      float64 `json:"multiplier"`
	MaxLevels       int     `json:"max_levels"`
	ProfitTargetPct float64 `json:"profit_target_pct"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	StopLossEnabled bool    `json:"stop_loss_enabled"`
	MaxSlippagePct  float64 `json:"max_slippage_pct"`
	MaxInvestment   float64 `json:"max_investment"`
	LiveExecution   bool    `json:"live_execution"`
}

type listTradesQuery struct {
	Limit int `form:"limit"`
}

func (q *listTradesQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// ownedStrategy loads a strategy and checks it belongs to the caller.
func (s *Server) ownedStrategy(c *gin.Context) *strategy.Strategy {
	id := c.Param("id")
	st := s.Engine.Get(c.Request.Context(), id)
	if st == nil || st.UserID != CurrentUserID(c) {
		respondError(c, http.StatusNotFound, "STRATEGY_NOT_FOUND", "strategy not found")
		return nil
	}
	return st
}

func (s *Server) createStrategy(c *gin.Context) {
	var req createStrategyRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}

	cfg := strategy.Config{
		Kind:            strategy.Kind(req.Kind),
		TokenID:         req.TokenID,
		InitialAmount:   req.InitialAmount,
		DropPct:         req.DropPct,
		Multiplier:      req.Multiplier,
		MaxLevels:       req.MaxLevels,
		ProfitTargetPct: req.ProfitTargetPct,
		StopLossPct:     req.StopLossPct,
		StopLossEnabled: req.StopLossEnabled,
		MaxSlippagePct:  req.MaxSlippagePct,
		MaxInvestment:   req.MaxInvestment,
		LiveExecution:   req.LiveExecution,
	}

	st, err := s.Engine.Create(c.Request.Context(), CurrentUserID(c), cfg)
	if err != nil {
		var verr *strategy.ValidationError
		if errors.As(err, &verr) {
			respondError(c, http.StatusBadRequest, "INVALID_CONFIG", verr.Error())
			return
		}
		// Initial buy failed: the strategy record exists with status failed,
		// so return it alongside the error.
		if st != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"code":     "INITIAL_BUY_FAILED",
				"error":    err.Error(),
				"strategy": st,
			})
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	c.JSON(http.StatusCreated, st)
}

func (s *Server) listStrategies(c *gin.Context) {
	list := s.Engine.List(c.Request.Context(), CurrentUserID(c))
	c.JSON(http.StatusOK, gin.H{
		"strategies": list,
		"count":      len(list),
	})
}

func (s *Server) getStrategy(c *gin.Context) {
	st := s.ownedStrategy(c)
	if st == nil {
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) pauseStrategy(c *gin.Context) {
	st := s.ownedStrategy(c)
	if st == nil {
		return
	}
	if err := s.Engine.Pause(c.Request.Context(), st.ID); err != nil {
		s.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": st.ID, "status": strategy.StatusPaused})
}

func (s *Server) resumeStrategy(c *gin.Context) {
	st := s.ownedStrategy(c)
	if st == nil {
		return
	}
	if err := s.Engine.Resume(c.Request.Context(), st.ID); err != nil {
		s.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": st.ID, "status": strategy.StatusActive})
}

func (s *Server) stopStrategy(c *gin.Context) {
	st := s.ownedStrategy(c)
	if st == nil {
		return
	}
	if err := s.Engine.Stop(c.Request.Context(), st.ID); err != nil {
		s.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": st.ID, "status": strategy.StatusStopped})
}

func (s *Server) respondLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		respondError(c, http.StatusNotFound, "STRATEGY_NOT_FOUND", "strategy not found")
	case errors.Is(err, engine.ErrBadTransition):
		respondError(c, http.StatusConflict, "BAD_TRANSITION", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func (s *Server) listTrades(c *gin.Context) {
	var q listTradesQuery
	if err := c.BindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	q.normalize()

	trades, err := s.DB.GetTradesByUser(c.Request.Context(), CurrentUserID(c), q.Limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trades": trades,
		"count":  len(trades),
	})
}

func (s *Server) listStrategyEvents(c *gin.Context) {
	st := s.ownedStrategy(c)
	if st == nil {
		return
	}
	events, err := s.DB.GetEventsByStrategy(c.Request.Context(), st.ID, 200)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) getRevenue(c *gin.Context) {
	total, err := s.DB.TotalRevenue(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_fees": total})
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Stats(c.Request.Context()))
}
