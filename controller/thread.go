package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"branchchat/service"
)

// ThreadController manages whole threads and the history target.
type ThreadController struct {
	turns *service.TurnService
}

func NewThreadController(turns *service.TurnService) *ThreadController {
	return &ThreadController{turns: turns}
}

func (th *ThreadController) Delete(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	ids, err := th.turns.DeleteThread(requestContext(c), uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": ids})
}

func (th *ThreadController) Archive(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	var input struct {
		Archive *bool `json:"archive" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	if err := th.turns.SetArchive(requestContext(c), uid, c.Param("id"), *input.Archive); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "archive": *input.Archive})
}

func (th *ThreadController) Archives(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	messages, err := th.turns.Archived(requestContext(c), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archives": messages})
}

func (th *ThreadController) SetHistoryTarget(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	var input struct {
		MessageID string `json:"messageId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	if err := th.turns.SetHistoryTarget(requestContext(c), uid, input.MessageID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"historyTarget": input.MessageID})
}

func (th *ThreadController) ClearHistoryTarget(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	if err := th.turns.SetHistoryTarget(requestContext(c), uid, ""); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"historyTarget": nil})
}
