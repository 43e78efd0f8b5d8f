package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"branchchat/conversation"
	"branchchat/service"
)

type ChatController struct {
	turns  *service.TurnService
	ledger service.Ledger
}

func NewChatController(turns *service.TurnService, ledger service.Ledger) *ChatController {
	return &ChatController{turns: turns, ledger: ledger}
}

func requestContext(c *gin.Context) context.Context {
	return service.WithRequestID(c.Request.Context(), c.GetString("requestId"))
}

// Conversation returns the forest view and the gem balance, loaded side by side.
// A ledger failure leaves the balance out rather than failing the view.
func (ch *ChatController) Conversation(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	ctx := requestContext(c)
	renderHTML, _ := strconv.ParseBool(c.DefaultQuery("html", "false"))

	var (
		view    *service.ConversationView
		balance *service.Balance
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		view, err = ch.turns.View(gctx, uid, c.Query("hovered"), renderHTML)
		return err
	})
	g.Go(func() error {
		b, err := ch.ledger.Balance(gctx, uid)
		if err != nil {
			logger.Warnf("[%s] failed to load balance for %s, %s", c.GetString("requestId"), uid, err)
			return nil
		}
		balance = b
		return nil
	})
	if err := g.Wait(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": view, "balance": balance})
}

func (ch *ChatController) Submit(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	var input struct {
		Text     string `json:"text"`
		ParentID string `json:"parentId"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	result, err := ch.turns.Submit(requestContext(c), uid, service.SubmitRequest{Text: input.Text, ParentID: input.ParentID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (ch *ChatController) Action(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	var input struct {
		Action string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	result, err := ch.turns.Action(requestContext(c), uid, c.Param("id"), input.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Retry re-asks when an answer did not resolve the question.
func (ch *ChatController) Retry(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	result, err := ch.turns.Retry(requestContext(c), uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type selectionInput struct {
	Text   string `json:"text"`
	Anchor *int   `json:"anchor"`
}

func (in selectionInput) selection(messageID string) conversation.Selection {
	sel := conversation.Selection{MessageID: messageID, Text: in.Text, Anchor: -1}
	if in.Anchor != nil {
		sel.Anchor = *in.Anchor
	}
	return sel
}

func (ch *ChatController) Select(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	var input selectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	sel, err := ch.turns.Select(requestContext(c), uid, input.selection(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selection": sel})
}

// Detail asks for more about a selected span of an answer.
func (ch *ChatController) Detail(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	var input selectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	result, err := ch.turns.RequestDetail(requestContext(c), uid, c.Param("id"), input.selection(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (ch *ChatController) Render(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	html, err := ch.turns.RenderMessage(requestContext(c), uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "html": html})
}

func (ch *ChatController) Reload(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	if err := ch.turns.Reload(requestContext(c), uid); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation reloaded"})
}

func (ch *ChatController) Settings(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	c.JSON(http.StatusOK, ch.turns.Settings(uid))
}

func (ch *ChatController) UpdateSettings(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	var input struct {
		Quality string `json:"quality"`
		Tone    string `json:"tone"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	settings, err := ch.turns.UpdateSettings(uid, input.Quality, input.Tone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (ch *ChatController) Gems(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	balance, err := ch.ledger.Balance(requestContext(c), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}
