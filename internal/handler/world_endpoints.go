package handler

import (
	"context"
	"net/http"

	"narrative-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// storyList обслуживает GET-списки по истории.
func storyList[T any](h *NarrativeHandler, fetch func(ctx context.Context, userID, storyID uuid.UUID) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := h.userID(c)
		if !ok {
			return
		}
		storyID, ok := h.uuidParam(c, "id")
		if !ok {
			return
		}
		result, err := fetch(c.Request.Context(), userID, storyID)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (h *NarrativeHandler) listElements(c *gin.Context) {
	storyList(h, h.world.Elements)(c)
}

func (h *NarrativeHandler) getTimeline(c *gin.Context) {
	storyList(h, h.world.Timeline)(c)
}

func (h *NarrativeHandler) listConnections(c *gin.Context) {
	storyList(h, h.world.Connections)(c)
}

func (h *NarrativeHandler) listMentions(c *gin.Context) {
	storyList(h, h.world.Mentions)(c)
}

func (h *NarrativeHandler) getWorld(c *gin.Context) {
	storyList(h, h.world.Snapshot)(c)
}

func (h *NarrativeHandler) brainstorm(c *gin.Context) {
	storyList(h, h.world.Brainstorm)(c)
}

// storyAndChild разбирает :id истории и дочерний параметр.
func (h *NarrativeHandler) storyAndChild(c *gin.Context, child string) (userID, storyID, childID uuid.UUID, ok bool) {
	if userID, ok = h.userID(c); !ok {
		return
	}
	if storyID, ok = h.uuidParam(c, "id"); !ok {
		return
	}
	childID, ok = h.uuidParam(c, child)
	return
}

func (h *NarrativeHandler) getDossier(c *gin.Context) {
	userID, storyID, elementID, ok := h.storyAndChild(c, "elementId")
	if !ok {
		return
	}
	dossier, err := h.world.Dossier(c.Request.Context(), userID, storyID, elementID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dossier)
}

func (h *NarrativeHandler) updateElement(c *gin.Context) {
	userID, storyID, elementID, ok := h.storyAndChild(c, "elementId")
	if !ok {
		return
	}
	var patch models.ElementPatch
	if !h.bindJSON(c, &patch) {
		return
	}
	element, err := h.world.UpdateElement(c.Request.Context(), userID, storyID, elementID, patch)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, element)
}

func (h *NarrativeHandler) deleteElement(c *gin.Context) {
	userID, storyID, elementID, ok := h.storyAndChild(c, "elementId")
	if !ok {
		return
	}
	if err := h.world.DeleteElement(c.Request.Context(), userID, storyID, elementID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NarrativeHandler) updateMoment(c *gin.Context) {
	userID, storyID, momentID, ok := h.storyAndChild(c, "momentId")
	if !ok {
		return
	}
	var patch models.MomentPatch
	if !h.bindJSON(c, &patch) {
		return
	}
	moment, err := h.world.UpdateMoment(c.Request.Context(), userID, storyID, momentID, patch)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, moment)
}

func (h *NarrativeHandler) deleteMoment(c *gin.Context) {
	userID, storyID, momentID, ok := h.storyAndChild(c, "momentId")
	if !ok {
		return
	}
	if err := h.world.DeleteMoment(c.Request.Context(), userID, storyID, momentID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NarrativeHandler) interviewCharacter(c *gin.Context) {
	userID, storyID, characterID, ok := h.storyAndChild(c, "characterId")
	if !ok {
		return
	}
	var req interviewRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.world.InterviewCharacter(c.Request.Context(), userID, storyID, characterID, req.Prompt)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
