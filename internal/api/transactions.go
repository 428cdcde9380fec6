package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) listTransactions(c *gin.Context) {
	txns, err := s.ledger.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJSONList(txns))
}

func (s *Server) createTransaction(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	txn, err := req.transaction()
	if err != nil {
		writeError(c, err)
		return
	}

	created, err := s.ledger.Create(c.Request.Context(), txn)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJSON(created))
}

func (s *Server) updateTransaction(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(c, err)
		return
	}

	updated, err := s.ledger.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	if updated == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.JSON(http.StatusOK, toJSON(updated))
}

func (s *Server) deleteTransaction(c *gin.Context) {
	deleted, err := s.ledger.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteAllTransactions(c *gin.Context) {
	n, err := s.ledger.DeleteAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
