package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type assetRequest struct {
	AssetName string `json:"asset_name" binding:"required"`
	AssetType string `json:"asset_type"`
}

type subgroupRequest struct {
	SubgroupName string `json:"subgroup_name"`
}

func (h *Handler) ListAssets(c *gin.Context) {
	assets, err := h.assets.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

func (h *Handler) GetAsset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	a, err := h.assets.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) CreateAsset(c *gin.Context) {
	var req assetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	a, err := h.assets.Create(c.Request.Context(), req.AssetName, req.AssetType)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) RenameAsset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req assetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	a, err := h.assets.Rename(c.Request.Context(), id, req.AssetName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) ListSubgroups(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	subgroups, err := h.assets.Subgroups(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, subgroups)
}

func (h *Handler) CreateSubgroup(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req subgroupRequest
	// the body is optional; an empty name gets the default
	_ = c.ShouldBindJSON(&req)
	s, err := h.assets.AddSubgroup(c.Request.Context(), id, req.SubgroupName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetSubgroup(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	s, err := h.assets.GetSubgroup(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) RenameSubgroup(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req subgroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.assets.RenameSubgroup(c.Request.Context(), id, req.SubgroupName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
