package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	draftdomain "github.com/smallbiznis/rampline/internal/draft/domain"
	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
	"github.com/smallbiznis/rampline/internal/syncer"
	"github.com/smallbiznis/rampline/internal/totals"
)

type buildSchedulePayload struct {
	Cadence   string `json:"cadence" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date"`
}

type putDraftPayload struct {
	Cadence   string               `json:"cadence" binding:"required"`
	StartDate string               `json:"start_date"`
	EndDate   string               `json:"end_date"`
	Periods   []quotedomain.Period `json:"periods"`
}

type updateTierPayload struct {
	PeriodIndex int                 `json:"period_index" binding:"required"`
	Tier        quotedomain.TierRow `json:"tier" binding:"required"`
}

// BuildSchedule splits the quote term by the requested cadence and
// stores the result as the quote's draft.
func (s *Server) BuildSchedule(c *gin.Context) {
	var payload buildSchedulePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cadence, err := quotedomain.ParseCadence(payload.Cadence)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	start, err := quotedomain.ParseDate(payload.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_date", "invalid value"))
		return
	}
	var end quotedomain.DateUTC
	if strings.TrimSpace(payload.EndDate) != "" {
		end, err = quotedomain.ParseDate(payload.EndDate)
		if err != nil {
			AbortWithError(c, newValidationError("end_date", "invalid_date", "invalid value"))
			return
		}
	}

	draft, err := s.drafts.Upsert(c.Request.Context(), draftdomain.UpsertDraftRequest{
		QuoteID: c.Param("quoteId"),
		Cadence: cadence,
		Start:   start,
		End:     end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": draft})
}

func (s *Server) GetDraft(c *gin.Context) {
	draft, err := s.drafts.Get(c.Request.Context(), c.Param("quoteId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": draft})
}

// PutDraft replaces the draft wholesale, keeping caller-edited periods.
func (s *Server) PutDraft(c *gin.Context) {
	var payload putDraftPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cadence, err := quotedomain.ParseCadence(payload.Cadence)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req := draftdomain.UpsertDraftRequest{
		QuoteID: c.Param("quoteId"),
		Cadence: cadence,
		Periods: payload.Periods,
	}
	if strings.TrimSpace(payload.StartDate) != "" {
		if req.Start, err = quotedomain.ParseDate(payload.StartDate); err != nil {
			AbortWithError(c, newValidationError("start_date", "invalid_date", "invalid value"))
			return
		}
	}
	if strings.TrimSpace(payload.EndDate) != "" {
		if req.End, err = quotedomain.ParseDate(payload.EndDate); err != nil {
			AbortWithError(c, newValidationError("end_date", "invalid_date", "invalid value"))
			return
		}
	}

	draft, err := s.drafts.Upsert(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": draft})
}

// UpdateDraftTier replaces one tier row on one period of the draft.
func (s *Server) UpdateDraftTier(c *gin.Context) {
	var payload updateTierPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	draft, err := s.drafts.UpdateTier(c.Request.Context(), draftdomain.UpdateTierRequest{
		QuoteID:     c.Param("quoteId"),
		PeriodIndex: payload.PeriodIndex,
		Tier:        payload.Tier,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": draft})
}

func (s *Server) DeleteDraft(c *gin.Context) {
	if err := s.drafts.Delete(c.Request.Context(), c.Param("quoteId")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type previewResponse struct {
	QuoteID string                 `json:"quote_id"`
	Periods []totals.PeriodPreview `json:"periods"`
	Total   decimal.Decimal        `json:"total"`
}

// PreviewQuote renders the draft into the amounts the backend would
// bill, without touching the backend.
func (s *Server) PreviewQuote(c *gin.Context) {
	quoteID := c.Param("quoteId")
	draft, err := s.drafts.Get(c.Request.Context(), quoteID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	previews, total := totals.BuildPreview(draft.Periods)
	c.JSON(http.StatusOK, gin.H{"data": previewResponse{
		QuoteID: quoteID,
		Periods: previews,
		Total:   total,
	}})
}

// SaveQuote pushes the draft schedule to the backend, period by period.
func (s *Server) SaveQuote(c *gin.Context) {
	quoteID := c.Param("quoteId")
	draft, err := s.drafts.Get(c.Request.Context(), quoteID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.saver.Save(c.Request.Context(), syncer.SaveRequest{
		QuoteID: quoteID,
		Cadence: draft.Cadence,
		Periods: draft.Periods,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetCatalog(c *gin.Context) {
	catalog, err := s.catalog.Catalog(c.Request.Context(), c.Param("productId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": catalog})
}
