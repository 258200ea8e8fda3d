package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmynk/tontine/internal/apperrors"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/middleware"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/service"
)

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	start, err := models.ParseDate(req.StartDate)
	if err != nil {
		s.writeError(c, apperrors.InvalidArgument("invalid start_date: %v", err))
		return
	}

	run, err := s.contributions.CreateSession(c.Request.Context(), service.CreateSessionInput{
		NumberOfMembers:     *req.NumberOfMembers,
		MinimalContribution: *req.MinimalContribution,
		StartDate:           start,
		EndDate:             parseOptionalDate(req.EndDate),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Session created", "session_id": run.ID})
}

func (s *Server) handleListSessions(c *gin.Context) {
	runs, err := s.contributions.ListSessions(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(runs, newSessionView))
}

func (s *Server) handleGetSession(c *gin.Context) {
	run, err := s.contributions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(run))
}

func (s *Server) handleCloseSession(c *gin.Context) {
	var req closeSessionRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	end, err := models.ParseDate(req.EndDate)
	if err != nil {
		s.writeError(c, apperrors.InvalidArgument("invalid end_date: %v", err))
		return
	}

	run, err := s.contributions.CloseSession(c.Request.Context(), c.Param("id"), end)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(run))
}

func (s *Server) handleEnroll(c *gin.Context) {
	var req enrollRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	m, err := s.contributions.Enroll(c.Request.Context(), c.Param("id"), req.UserID, req.NumberOfParts)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":              "User added to session",
		"user_contribution_id": m.ID,
		"user_id":              m.UserID,
		"number_of_parts":      m.NumberOfParts,
	})
}

func (s *Server) handleGenerateSchedule(c *gin.Context) {
	created, err := s.contributions.GenerateSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":               "Monthly contributions generated",
		"contributions_created": created,
	})
}

func (s *Server) handleListContributions(c *gin.Context) {
	contributions, err := s.contributions.ListContributions(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(contributions, newContributionView))
}

func (s *Server) handleSessionPeriods(c *gin.Context) {
	periods, err := s.contributions.SessionPeriods(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(periods, newPeriodView))
}

func (s *Server) handleSessionBalances(c *gin.Context) {
	balances, err := s.contributions.SessionBalances(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(balances, newBalanceView))
}

func (s *Server) handleRecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	result, err := s.contributions.RecordPayment(c.Request.Context(), c.Param("id"), parseOptionalDate(req.PaymentDate))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":             "Payment recorded",
		"payment_id":          result.Entry.ID,
		"status":              result.Entry.Status,
		"payment_date":        optionalDate(result.Entry.PaymentDate),
		"contribution_status": result.ContributionStatus,
	})
}

func (s *Server) handleSetWinner(c *gin.Context) {
	var req setWinnerRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	contribution, err := s.contributions.SetWinner(c.Request.Context(), c.Param("id"), req.WinnerUserID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":         "Winner defined",
		"contribution_id": contribution.ID,
		"status":          contribution.Status,
		"winner_user_id":  contribution.WinnerUserID,
	})
}

func (s *Server) handleContributionPayments(c *gin.Context) {
	entries, err := s.contributions.ListContributionPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(entries, newPaymentView))
}

func (s *Server) handleUserPayments(c *gin.Context) {
	entries, err := s.contributions.ListUserPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(entries, newPaymentView))
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	session, err := s.auth.Register(c.Request.Context(), auth.Registration{
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Credential: req.Password,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSessionResponse(session))
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	session, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(session))
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.auth.CurrentUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(user))
}

func (s *Server) handleUserIDByEmail(c *gin.Context) {
	user, err := s.auth.UserByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": user.ID})
}
